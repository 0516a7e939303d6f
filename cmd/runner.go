package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/perc/internal/client"
	"github.com/desertthunder/perc/internal/interceptor"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/repositories"
	"github.com/desertthunder/perc/internal/services"
	"github.com/desertthunder/perc/internal/session"
	"github.com/desertthunder/perc/internal/shared"
	"github.com/desertthunder/perc/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer

	logMu      sync.Mutex
	components []*log.Logger

	client      *client.Client
	interceptor *interceptor.Interceptor
	api         *services.API
	session     *session.Manager

	db     *sql.DB
	repo   *repositories.AnalysisRepository
	engine *tasks.AnalysisEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Client     *client.Client
}

// NewRunner creates a new Runner with the provided configuration.
//
// The HTTP client, interceptor, backend services, and session manager are wired here so every command shares one
// credential state. A 401 that cannot be recovered logs the session out.
func NewRunner(opts RunnerOpts) (*Runner, error) {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
	}

	c := opts.Client
	if c == nil {
		var err error
		c, err = client.NewFromConfig(opts.Config.API, r.componentLogger("client"))
		if err != nil {
			return nil, err
		}
	}

	ic := interceptor.New(interceptor.WithLogger(r.componentLogger("interceptor")))
	api := services.New(c, ic)
	mgr := session.NewManager(api.Auth, c,
		session.WithStore(session.NewStore(opts.Config.Session.Path)),
		session.WithRefreshInterval(opts.Config.Session.RefreshInterval()),
		session.WithLogger(r.componentLogger("session")),
	)
	ic.SetSessionExpired(mgr.Logout)

	r.client = c
	r.interceptor = ic
	r.api = api
	r.session = mgr
	return r, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, analyzeCommand, analysesCommand, systemCommand, cacheCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// componentLogger derives a child of the runner's logger tagged with the component name.
//
// Children copy the parent's level and writer when created, so they are tracked for [Runner.SetLogLevel] and
// [Runner.SetLogOutput].
func (r *Runner) componentLogger(name string) *log.Logger {
	l := shared.WithLogger(r.logger, "component", name)

	r.logMu.Lock()
	defer r.logMu.Unlock()
	r.components = append(r.components, l)
	return l
}

// SetLogLevel applies level to the runner's logger and every component logger.
func (r *Runner) SetLogLevel(level log.Level) {
	r.logMu.Lock()
	defer r.logMu.Unlock()

	shared.SetLogLevel(r.logger, level)
	for _, l := range r.components {
		shared.SetLogLevel(l, level)
	}
}

// SetLogOutput redirects the runner's logger and every component logger to w.
func (r *Runner) SetLogOutput(w io.Writer) {
	r.logMu.Lock()
	defer r.logMu.Unlock()

	r.logger.SetOutput(w)
	for _, l := range r.components {
		l.SetOutput(w)
	}
}

// Close stops the session refresh timer and closes the cache.
func (r *Runner) Close() {
	r.session.Close()
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("failed to close cache", "error", err)
		}
		r.db = nil
		r.repo = nil
	}
}

// requireSession restores the persisted session and fails when nobody is signed in.
func (r *Runner) requireSession(ctx context.Context) (*models.User, error) {
	if err := r.session.Restore(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	state := r.session.State()
	if !state.IsAuthenticated {
		return nil, fmt.Errorf("%w: run `perc auth login` first", shared.ErrNotAuthenticated)
	}
	return state.User, nil
}

// repository opens the local cache on first use.
func (r *Runner) repository() (*repositories.AnalysisRepository, error) {
	if r.repo != nil {
		return r.repo, nil
	}

	db, err := shared.OpenCache(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	r.repo = repositories.NewAnalysisRepository(db)
	return r.repo, nil
}

// cache returns a snapshot cacher, or nil when the local cache cannot be opened.
func (r *Runner) cache() *repositories.CacheAdapter {
	repo, err := r.repository()
	if err != nil {
		r.logger.Warn("local cache unavailable", "error", err)
		return nil
	}
	return repositories.NewCacheAdapter(repo, r.componentLogger("cache"))
}

func (r *Runner) newEngine(api tasks.AnalysisAPI) *tasks.AnalysisEngine {
	var cacher tasks.SnapshotCacher
	if adapter := r.cache(); adapter != nil {
		cacher = adapter
	}

	return tasks.NewAnalysisEngine(api, cacher,
		r.componentLogger("engine"),
		tasks.WithInterval(r.config.Poller.Interval()),
	)
}

// analysisEngine returns the engine bound to the v1 analysis API.
func (r *Runner) analysisEngine() *tasks.AnalysisEngine {
	if r.engine == nil {
		r.engine = r.newEngine(r.api.Analyses)
	}
	return r.engine
}

// legacyAnalyses adapts the legacy endpoints to the engine's create-and-poll contract.
type legacyAnalyses struct {
	*services.LegacyService
	analysisType models.AnalysisType
}

func (l legacyAnalyses) Create(ctx context.Context, rawURL, _ string) (*models.Analysis, error) {
	return l.Analyze(ctx, rawURL, l.analysisType)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writeRawJSON(body []byte, pretty bool) error {
	if !pretty || !json.Valid(body) {
		return r.writeBytes(body)
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return r.writeBytes(body)
	}
	return r.writeJSON(v, true)
}

func (r *Runner) writeBytes(body []byte) error {
	if _, err := r.output.Write(body); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(body) > 0 && body[len(body)-1] != '\n' {
		return r.writePlain("\n")
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

// writeAnalysis prints the human-readable summary of a.
func (r *Runner) writeAnalysis(a *models.Analysis) {
	r.writePlain("ID:        %s\n", a.ID)
	r.writePlain("URL:       %s\n", a.URL)
	r.writePlain("Status:    %s\n", a.Status)
	r.writePlain("Progress:  %.0f%%\n", a.Percent())
	if current := a.CurrentAnalyzer(); current != "" && a.Status.IsActive() {
		r.writePlain("Analyzer:  %s\n", current)
	}
	if a.Profile != nil && a.Profile.Name != "" {
		r.writePlain("Profile:   %s\n", a.Profile.Name)
	}
	if a.AnalysisType != "" {
		r.writePlain("Type:      %s\n", a.AnalysisType)
	}
	if !a.CreatedAt.IsZero() {
		r.writePlain("Created:   %s\n", a.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if a.CompletedAt != nil && !a.CompletedAt.IsZero() {
		r.writePlain("Completed: %s\n", a.CompletedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if a.Results != nil {
		s := a.Results.Summary
		r.writePlain("Analyzers: %d/%d succeeded, %d failed\n", s.SuccessfulAnalyzers, s.TotalAnalyzers, s.FailedAnalyzers)
		if s.CriticalIssues > 0 || s.Warnings > 0 {
			r.writePlain("Findings:  %d critical, %d warnings\n", s.CriticalIssues, s.Warnings)
		}
	}
	if len(a.Screenshots) > 0 {
		r.writePlain("Screens:   %d\n", len(a.Screenshots))
	}
}

// progressPrinter prints engine updates until the channel is closed, then signals done.
func (r *Runner) progressPrinter(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	defer close(done)
	for update := range progress {
		switch update.Phase {
		case tasks.CreateAnalysis:
			r.writePlain("📤 %s\n", update.Message)
		case tasks.PollAnalysis:
			r.writePlain("   %s\n", update.Message)
		case tasks.AnalysisDone:
			r.writePlain("✓ %s\n", update.Message)
		case tasks.AnalysisFailed:
			r.writePlain("✗ %s\n", update.Message)
		case tasks.ExportReport:
			r.writePlain("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}
}

// withProgress runs fn with a progress channel that is printed as updates arrive.
func (r *Runner) withProgress(fn func(chan<- tasks.ProgressUpdate) error) error {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go r.progressPrinter(progress, done)

	err := fn(progress)
	close(progress)
	<-done
	return err
}

func parseReportFormat(s string) (models.ReportFormat, error) {
	f := models.ReportFormat(strings.ToLower(strings.TrimSpace(s)))
	if f == "md" {
		f = models.ReportMarkdown
	}
	if !f.Valid() {
		return "", fmt.Errorf("%w: format must be json, markdown, or html, got %q", shared.ErrInvalidFlag, s)
	}
	return f, nil
}
