package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/perc/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SessionCookie is the cookie name the fake backend issues on login.
const SessionCookie = "session"

// FakeBackend is an in-process analysis backend routed with chi.
//
// Each GET of an analysis advances it one step along its status script, so pollers observe pending, running, then completed.
type FakeBackend struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[string]fakeUser
	sessions  map[string]string
	analyses  map[string]*models.Analysis
	scripts   map[string][]models.Status
	calls     map[string]int
	failures  map[string]*failure
	script    []models.Status
	profiles  []models.Profile
	reportMD  string
	reportHTM string
}

type fakeUser struct {
	password string
	user     models.User
}

type failure struct {
	status    int
	remaining int
}

type errorBody struct {
	Detail string `json:"detail"`
}

// NewFakeBackend starts a backend with one registered user: test@example.com / password.
func NewFakeBackend() *FakeBackend {
	b := &FakeBackend{
		users:    make(map[string]fakeUser),
		sessions: make(map[string]string),
		analyses: make(map[string]*models.Analysis),
		scripts:  make(map[string][]models.Status),
		calls:    make(map[string]int),
		failures: make(map[string]*failure),
		script:   []models.Status{models.StatusPending, models.StatusRunning, models.StatusCompleted},
		profiles: []models.Profile{
			{ID: "default", Name: "Default", Description: "All analyzers", IsDefault: true,
				AnalyzerConfigs: models.AnalyzerConfigs{Analyzers: []models.AnalyzerConfig{{Name: "seo", Version: "1.0"}, {Name: "content", Version: "1.0"}}}},
			{ID: "quick", Name: "Quick", Description: "SEO only",
				AnalyzerConfigs: models.AnalyzerConfigs{Analyzers: []models.AnalyzerConfig{{Name: "seo", Version: "1.0"}}}},
		},
		reportMD:  "# Report\n\nOverall score: 82\n",
		reportHTM: "<h1>Report</h1>",
	}
	b.users["test@example.com"] = fakeUser{
		password: "password",
		user:     models.User{ID: "user-1", Email: "test@example.com", FirstName: "Test", LastName: "User"},
	}
	b.Server = httptest.NewServer(b.Router())
	return b
}

// Router returns the chi router serving the backend's endpoints.
func (b *FakeBackend) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(b.count)

	r.Post("/auth/login", b.login)
	r.Post("/auth/register", b.register)
	r.Post("/auth/logout", b.logout)
	r.With(b.requireAuth).Get("/auth/me", b.me)
	r.Get("/api/v1/monitoring/health", b.health)
	r.Get("/api/v1/info", b.info)

	r.Group(func(r chi.Router) {
		r.Use(b.requireAuth)

		r.Post("/analyze", b.createLegacy)
		r.Get("/analyses", b.listLegacy)
		r.Get("/analyses/{id}", b.getAnalysis)
		r.Delete("/analyses/{id}", b.deleteAnalysis)
		r.Get("/analyses/{id}/report", b.report)

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/analyses", b.create)
			r.Get("/analyses", b.list)
			r.Get("/analyses/{id}", b.getAnalysis)
			r.Delete("/analyses/{id}", b.deleteAnalysis)
			r.Post("/analyses/{id}/retry", b.retry)
			r.Get("/analyses/{id}/job-status", b.jobStatus)
			r.Get("/profiles", b.listProfiles)
			r.Get("/profiles/{id}", b.getProfile)
			r.Get("/monitoring/metrics/analysis-performance", b.metrics)
		})
	})

	return r
}

// Calls returns how many requests reached path, including failed ones.
func (b *FakeBackend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

// FailNext makes the next n requests to path answer with status.
func (b *FakeBackend) FailNext(path string, status, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = &failure{status: status, remaining: n}
}

// ExpireSessions invalidates every issued session so the next authenticated request gets a 401.
func (b *FakeBackend) ExpireSessions() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = make(map[string]string)
}

// Script sets the status sequence served for id; the final status repeats once reached.
func (b *FakeBackend) Script(id string, statuses ...models.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scripts[id] = statuses
}

// AddAnalysis seeds an analysis.
func (b *FakeBackend) AddAnalysis(a models.Analysis) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.analyses[a.ID] = &a
}

// Session issues a session for email without going through login and returns its value.
func (b *FakeBackend) Session(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	token := uuid.NewString()
	b.sessions[token] = email
	return token
}

func (b *FakeBackend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		status := 0
		if f, ok := b.failures[r.URL.Path]; ok {
			status = f.status
			if f.remaining--; f.remaining <= 0 {
				delete(b.failures, r.URL.Path)
			}
		}
		b.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, errorBody{Detail: http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.sessionUser(r) == nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Detail: "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *FakeBackend) sessionUser(r *http.Request) *models.User {
	var token string
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		token = cookie.Value
	} else if scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
		token = value
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.sessions[token]
	if !ok {
		return nil
	}
	u := b.users[email].user
	return &u
}

func (b *FakeBackend) issue(w http.ResponseWriter, u models.User) {
	token := b.Session(u.Email)
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, models.AuthResponse{AccessToken: token, TokenType: "bearer", User: u})
}

func (b *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: "invalid body"})
		return
	}

	b.mu.Lock()
	u, ok := b.users[req.Email]
	b.mu.Unlock()
	if !ok || u.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, errorBody{Detail: "Invalid email or password"})
		return
	}
	b.issue(w, u.user)
}

func (b *FakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: "invalid body"})
		return
	}

	b.mu.Lock()
	if _, exists := b.users[req.Email]; exists {
		b.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "Email already registered"})
		return
	}
	u := models.User{ID: uuid.NewString(), Email: req.Email, FirstName: req.FirstName, LastName: req.LastName}
	b.users[req.Email] = fakeUser{password: req.Password, user: u}
	b.mu.Unlock()

	b.issue(w, u)
}

func (b *FakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		b.mu.Lock()
		delete(b.sessions, cookie.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Logged out"})
}

func (b *FakeBackend) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.sessionUser(r))
}

func (b *FakeBackend) newAnalysis(url string) *models.Analysis {
	a := &models.Analysis{
		ID:        uuid.NewString(),
		URL:       url,
		Status:    models.StatusPending,
		CreatedAt: models.NewTimestamp(time.Now().UTC()),
	}
	b.mu.Lock()
	b.analyses[a.ID] = a
	b.mu.Unlock()
	return a
}

func (b *FakeBackend) create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: "url is required"})
		return
	}
	a := b.newAnalysis(req.URL)
	if req.ProfileID != "" {
		a.Profile = &models.ProfileSummary{Name: req.ProfileID}
	}
	writeJSON(w, http.StatusCreated, a)
}

func (b *FakeBackend) createLegacy(w http.ResponseWriter, r *http.Request) {
	var req models.LegacyAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: "url is required"})
		return
	}
	a := b.newAnalysis(req.URL)
	a.AnalysisType = req.AnalysisType
	writeJSON(w, http.StatusOK, a)
}

func (b *FakeBackend) sorted(status models.Status) []models.Analysis {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Analysis, 0, len(b.analyses))
	for _, a := range b.analyses {
		if status == "" || a.Status == status {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *FakeBackend) listLegacy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.sorted(""))
}

func (b *FakeBackend) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	all := b.sorted(models.Status(q.Get("status")))
	start := min((page-1)*perPage, len(all))
	end := min(start+perPage, len(all))

	writeJSON(w, http.StatusOK, models.AnalysisPage{Analyses: all[start:end], Total: len(all), Page: page, PerPage: perPage})
}

// advance moves a to its next scripted status and fills progress.
func (b *FakeBackend) advance(a *models.Analysis) {
	if a.Status.IsTerminal() {
		return
	}

	script, ok := b.scripts[a.ID]
	if !ok {
		script = b.script
	}
	if len(script) == 0 {
		return
	}

	next := script[0]
	if len(script) > 1 {
		b.scripts[a.ID] = script[1:]
	} else {
		b.scripts[a.ID] = script
	}
	a.Status = next

	total := 2
	done := 0
	switch next {
	case models.StatusRunning, models.StatusProcessing:
		done = 1
	case models.StatusCompleted, models.StatusFailed:
		done = total
		now := models.NewTimestamp(time.Now().UTC())
		a.CompletedAt = &now
	}
	current := ""
	if done < total {
		current = "seo"
	}
	a.Progress = &models.Progress{
		TotalAnalyzers:     total,
		CompletedAnalyzers: done,
		ProgressPercentage: float64(done) / float64(total) * 100,
		CurrentAnalyzer:    current,
	}
	if next == models.StatusCompleted {
		a.Results = &models.Results{Summary: models.ResultSummary{TotalAnalyzers: total, SuccessfulAnalyzers: total}}
	}
}

func (b *FakeBackend) getAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	a, ok := b.analyses[id]
	if ok {
		b.advance(a)
	}
	var snapshot models.Analysis
	if ok {
		snapshot = *a
	}
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Analysis not found"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (b *FakeBackend) deleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	_, ok := b.analyses[id]
	delete(b.analyses, id)
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Analysis not found"})
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Analysis deleted"})
}

func (b *FakeBackend) retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	a, ok := b.analyses[id]
	if ok {
		a.Status = models.StatusPending
		a.CompletedAt = nil
		delete(b.scripts, id)
	}
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Analysis not found"})
		return
	}
	writeJSON(w, http.StatusOK, models.RetryResponse{Message: "Analysis queued for retry", TaskID: "task-" + id})
}

func (b *FakeBackend) jobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	a, ok := b.analyses[id]
	var status models.Status
	if ok {
		status = a.Status
	}
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Analysis not found"})
		return
	}

	state := "PENDING"
	switch status {
	case models.StatusRunning, models.StatusProcessing:
		state = "STARTED"
	case models.StatusCompleted:
		state = "SUCCESS"
	case models.StatusFailed:
		state = "FAILURE"
	}
	writeJSON(w, http.StatusOK, models.JobStatus{TaskID: "task-" + id, Status: state})
}

func (b *FakeBackend) report(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b.mu.Lock()
	a, ok := b.analyses[id]
	var url string
	if ok {
		url = a.URL
	}
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Detail: "Analysis not found"})
		return
	}

	switch r.URL.Query().Get("format") {
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown")
		fmt.Fprint(w, b.reportMD)
	case "html":
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, b.reportHTM)
	default:
		writeJSON(w, http.StatusOK, models.DetailedReport{
			ID:  id,
			URL: url,
			ExecutiveSummary: models.ExecutiveSummary{
				OverallScore:   82,
				Grade:          "B",
				KeyFindings:    []string{"Clear value proposition"},
				CriticalIssues: []string{"Missing meta description"},
				QuickWins:      []string{"Add alt text to hero image"},
			},
			Sections: []models.ReportSection{
				{Title: "SEO", Priority: models.PriorityHigh, Content: json.RawMessage(`{"score":70}`)},
			},
		})
	}
}

func (b *FakeBackend) listProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.profiles)
}

func (b *FakeBackend) getProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, p := range b.profiles {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody{Detail: "Profile not found"})
}

func (b *FakeBackend) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.SystemHealth{
		Status:    "healthy",
		Timestamp: models.NewTimestamp(time.Now().UTC()),
		Components: models.HealthComponents{
			Database: models.ComponentHealth{Status: "healthy", ResponseTime: "2ms"},
			Celery:   models.ComponentHealth{Status: "healthy", ActiveWorkers: 2, WorkerNames: []string{"w1", "w2"}},
		},
	})
}

func (b *FakeBackend) metrics(w http.ResponseWriter, r *http.Request) {
	hours, err := strconv.Atoi(r.URL.Query().Get("hours"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	writeJSON(w, http.StatusOK, models.PerformanceMetrics{
		TimePeriodHours: hours,
		Summary:         models.MetricsSummary{TotalAnalyses: 10, Completed: 8, Failed: 1, Running: 1, SuccessRate: 88.9},
		AnalyzerPerformance: []models.AnalyzerPerformance{
			{Name: "seo", TotalRuns: 10, Successful: 9, Failed: 1, SuccessRate: 90, AvgExecutionTime: 1.2},
		},
	})
}

func (b *FakeBackend) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.SystemInfo{
		Version:            "1.0.0",
		Features:           []string{"profiles", "progress"},
		AvailableAnalyzers: []string{"seo", "content"},
		TotalAnalyzerCount: 2,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
