// package formatter provides functions to export analysis data to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
)

// ListFormat selects the representation of an analysis list export.
type ListFormat string

const (
	FormatJSON     ListFormat = "json"
	FormatCSV      ListFormat = "csv"
	FormatMarkdown ListFormat = "markdown"
	FormatText     ListFormat = "txt"
)

// Ext returns the file extension for f.
func (f ListFormat) Ext() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

const timeLayout = "2006-01-02 15:04"

func formatTime(ts models.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(timeLayout)
}

func formatOptionalTime(ts *models.Timestamp) string {
	if ts == nil {
		return ""
	}
	return formatTime(*ts)
}

func profileName(a models.Analysis) string {
	if a.Profile == nil {
		return ""
	}
	return a.Profile.Name
}

// FormatDuration renders seconds as "1m05s" or "12.3s".
func FormatDuration(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// ExportToCSV converts analyses to CSV format with columns: ID, URL, Status, Progress, Profile, Created, Completed
func ExportToCSV(analyses []models.Analysis) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "URL", "Status", "Progress", "Profile", "Created", "Completed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, a := range analyses {
		record := []string{
			a.ID,
			a.URL,
			string(a.Status),
			fmt.Sprintf("%.0f", a.Percent()),
			profileName(a),
			formatTime(a.CreatedAt),
			formatOptionalTime(a.CompletedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// escapeCell keeps pipes and newlines from breaking a Markdown table row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// ExportToMarkdown converts analyses to a Markdown table under title.
func ExportToMarkdown(analyses []models.Analysis, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Analyses"
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**Total**: %d\n\n", len(analyses))

	if len(analyses) == 0 {
		buf.WriteString("_No analyses._\n")
		return buf.Bytes(), nil
	}

	buf.WriteString("| ID | URL | Status | Progress | Created |\n")
	buf.WriteString("|----|-----|--------|----------|---------|\n")
	for _, a := range analyses {
		fmt.Fprintf(&buf, "| %s | %s | %s | %.0f%% | %s |\n",
			a.ID, escapeCell(a.URL), a.Status, a.Percent(), formatTime(a.CreatedAt))
	}

	return buf.Bytes(), nil
}

// ExportToText converts analyses to plain text format
func ExportToText(analyses []models.Analysis) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Analyses: %d\n\n", len(analyses))
	for i, a := range analyses {
		fmt.Fprintf(&buf, "%d. [%s] %s (%s)\n", i+1, a.Status, a.URL, a.ID)
	}

	return buf.Bytes(), nil
}

// ExportList renders analyses in format.
func ExportList(analyses []models.Analysis, format ListFormat) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(analyses)
	case FormatMarkdown:
		return ExportToMarkdown(analyses, "")
	case FormatText:
		return ExportToText(analyses)
	case FormatJSON, "":
		if analyses == nil {
			analyses = []models.Analysis{}
		}
		return shared.MarshalJSON(analyses, true)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// ReportToMarkdown summarizes a structured report: score, grade, findings, and section list.
func ReportToMarkdown(r *models.DetailedReport) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil report", shared.ErrInvalidInput)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Analysis Report: %s\n\n", r.URL)
	if !r.AnalysisDate.IsZero() {
		fmt.Fprintf(&buf, "**Analyzed**: %s\n", formatTime(r.AnalysisDate))
	}

	summary := r.ExecutiveSummary
	fmt.Fprintf(&buf, "**Overall Score**: %.0f/100\n", summary.OverallScore)
	if summary.Grade != "" {
		fmt.Fprintf(&buf, "**Grade**: %s\n", summary.Grade)
	}
	buf.WriteString("\n")

	writeList(&buf, "Key Findings", summary.KeyFindings)
	writeList(&buf, "Critical Issues", summary.CriticalIssues)
	writeList(&buf, "Quick Wins", summary.QuickWins)
	writeList(&buf, "Strategic Recommendations", summary.StrategicRecommendations)

	if len(r.Sections) > 0 {
		buf.WriteString("## Sections\n\n")
		for _, s := range r.Sections {
			if s.Priority != "" {
				fmt.Fprintf(&buf, "### %s (%s priority)\n\n", s.Title, s.Priority)
			} else {
				fmt.Fprintf(&buf, "### %s\n\n", s.Title)
			}
			if body := sectionBody(s.Content); body != "" {
				buf.WriteString(body)
				buf.WriteString("\n\n")
			}
		}
	}

	return buf.Bytes(), nil
}

func writeList(buf *bytes.Buffer, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(buf, "## %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(buf, "- %s\n", item)
	}
	buf.WriteString("\n")
}

// sectionBody renders string content as prose and anything else as a JSON block.
func sectionBody(content json.RawMessage) string {
	if len(content) == 0 || string(content) == "null" {
		return ""
	}

	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return text
	}

	var v any
	if err := json.Unmarshal(content, &v); err != nil {
		return ""
	}
	pretty, err := shared.MarshalJSON(v, true)
	if err != nil {
		return ""
	}
	return "```json\n" + string(pretty) + "\n```"
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToMetadataJSON generates a JSON representation of analysis metadata (without results or report)
func ToMetadataJSON(a *models.Analysis) ([]byte, error) {
	meta := *a
	meta.Results = nil
	meta.Report = nil
	meta.AIAnalysis = nil
	return shared.MarshalJSON(meta, true)
}

// WriteListExport writes analyses in format to filePath.
//
// Defaults to analyses_{epoch}{ext} as the filename.
func WriteListExport(analyses []models.Analysis, format ListFormat, filePath string) (string, error) {
	if filePath == "" {
		filePath = fmt.Sprintf("analyses_%d%s", time.Now().Unix(), format.Ext())
	}

	data, err := ExportList(analyses, format)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return filePath, nil
}

// WriteReport writes a rendered report to filePath, creating parent directories.
func WriteReport(body []byte, filePath string) (string, error) {
	if filePath == "" {
		return "", fmt.Errorf("%w: report path", shared.ErrMissingArgument)
	}

	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(filePath, body, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return filePath, nil
}

// WriteReportManifest writes m as indented JSON to filePath.
func WriteReportManifest(m *models.ReportManifest, filePath string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ScreenshotExportResult contains information about files created by WriteScreenshots
type ScreenshotExportResult struct {
	Directory string
	Files     []string
	Failed    []string
}

// WriteScreenshots downloads an analysis' screenshots into outputDir along with a metadata.json.
//
// Directory name defaults to the analysis ID.
// Relative screenshot paths are resolved against baseURL. Download failures are collected in Failed and do not abort.
func WriteScreenshots(a *models.Analysis, baseURL, outputDir string) (*ScreenshotExportResult, error) {
	if outputDir == "" {
		outputDir = a.ID
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ScreenshotExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", shared.ErrInvalidArgument, err)
	}

	for i, raw := range a.Screenshots {
		ref, err := url.Parse(raw)
		if err != nil {
			result.Failed = append(result.Failed, raw)
			continue
		}
		target := base.ResolveReference(ref)

		data, err := DownloadImage(target.String())
		if err != nil {
			result.Failed = append(result.Failed, raw)
			continue
		}

		ext := path.Ext(target.Path)
		if ext == "" {
			ext = ".png"
		}
		file := filepath.Join(outputDir, fmt.Sprintf("screenshot_%02d%s", i+1, ext))
		if err := os.WriteFile(file, data, 0644); err != nil {
			result.Failed = append(result.Failed, raw)
			continue
		}
		result.Files = append(result.Files, file)
	}

	meta, err := ToMetadataJSON(a)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metaFile := filepath.Join(outputDir, "metadata.json")
	if err := os.WriteFile(metaFile, meta, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}
	result.Files = append(result.Files, metaFile)

	return result, nil
}
