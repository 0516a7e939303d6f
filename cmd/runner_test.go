package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
	"github.com/desertthunder/perc/internal/tasks"
	tu "github.com/desertthunder/perc/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig points every on-disk path at a temporary directory.
func testConfig(t *testing.T, baseURL string) *shared.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := shared.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.RateLimit = 0
	cfg.Session.Path = filepath.Join(dir, "session.json")
	cfg.Database.Path = filepath.Join(dir, "perc.db")
	cfg.Poller.IntervalMS = 5
	return cfg
}

func newTestRunner(t *testing.T, cfg *shared.Config) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	runner, err := NewRunner(RunnerOpts{Config: cfg, Logger: shared.NewDiscardLogger(), Output: output})
	require.NoError(t, err)
	t.Cleanup(runner.Close)
	return runner, output
}

// run executes one CLI invocation against runner.
func run(t *testing.T, runner *Runner, args ...string) error {
	t.Helper()
	return newApp(runner).Run(context.Background(), append([]string{"perc"}, args...))
}

func login(t *testing.T, runner *Runner) {
	t.Helper()
	require.NoError(t, run(t, runner, "auth", "login", "--email", "test@example.com", "--password", "password"))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner, err := NewRunner(RunnerOpts{})
			require.NoError(t, err)
			defer runner.Close()

			assert.NotNil(t, runner.config)
			assert.NotNil(t, runner.logger)
			assert.Equal(t, os.Stdout, runner.output)
			assert.NotNil(t, runner.client)
			assert.NotNil(t, runner.session)
			assert.Equal(t, shared.AuthModeCookie, runner.client.AuthMode())
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner, err := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})
			require.NoError(t, err)
			defer runner.Close()

			assert.Equal(t, "/test/path/config.toml", runner.configPath)
		})

		t.Run("rejects an invalid base URL", func(t *testing.T) {
			cfg := shared.DefaultConfig()
			cfg.API.BaseURL = "://nope"
			_, err := NewRunner(RunnerOpts{Config: cfg})
			assert.Error(t, err)
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			runner, output := newTestRunner(t, testConfig(t, "http://localhost"))

			require.NoError(t, runner.writeJSON(map[string]string{"key": "value"}, true))
			assert.Contains(t, output.String(), `"key": "value"`)
			assert.True(t, strings.HasSuffix(output.String(), "\n"))
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			runner, output := newTestRunner(t, testConfig(t, "http://localhost"))

			require.NoError(t, runner.writeJSON(map[string]string{"key": "value"}, false))
			assert.Equal(t, `{"key":"value"}`+"\n", output.String())
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner, _ := newTestRunner(t, testConfig(t, "http://localhost"))

			err := runner.writeJSON(make(chan int), false)
			assert.ErrorContains(t, err, "failed to marshal JSON")
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner, _ := newTestRunner(t, testConfig(t, "http://localhost"))
			runner.output = &tu.FWriter{}

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			assert.ErrorContains(t, err, "failed to write output")
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			runner, _ := newTestRunner(t, testConfig(t, "http://localhost"))
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner.output = &limitedWriter

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			assert.ErrorContains(t, err, "failed to write newline")
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t, "http://localhost"))

		require.NoError(t, runner.writePlain("hello %s", "world"))
		assert.Equal(t, "hello world", output.String())

		runner.output = &tu.FWriter{}
		assert.ErrorContains(t, runner.writePlain("test"), "failed to write output")
	})

	t.Run("register", func(t *testing.T) {
		runner, _ := newTestRunner(t, testConfig(t, "http://localhost"))

		var names []string
		for _, c := range runner.register() {
			names = append(names, c.Name)
		}
		assert.Equal(t, []string{"setup", "auth", "analyze", "analyses", "system", "cache", "tui"}, names)
	})

	t.Run("parseReportFormat", func(t *testing.T) {
		f, err := parseReportFormat("MD")
		require.NoError(t, err)
		assert.Equal(t, models.ReportMarkdown, f)

		_, err = parseReportFormat("pdf")
		assert.ErrorIs(t, err, shared.ErrInvalidFlag)
	})
}

func TestAuthCommands(t *testing.T) {
	backend := tu.NewFakeBackend()
	t.Cleanup(backend.Close)

	t.Run("Login Persists Session", func(t *testing.T) {
		cfg := testConfig(t, backend.URL)
		runner, output := newTestRunner(t, cfg)

		login(t, runner)
		assert.Contains(t, output.String(), "Signed in as Test User")
		tu.AssertFileExists(t, cfg.Session.Path)

		info, err := os.Stat(cfg.Session.Path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		next, nextOut := newTestRunner(t, cfg)
		require.NoError(t, run(t, next, "auth", "whoami"))
		assert.Contains(t, nextOut.String(), "test@example.com")
	})

	t.Run("Login Rejects Bad Password", func(t *testing.T) {
		runner, _ := newTestRunner(t, testConfig(t, backend.URL))
		err := run(t, runner, "auth", "login", "--email", "test@example.com", "--password", "wrong")
		assert.ErrorIs(t, err, shared.ErrAuthFailed)
	})

	t.Run("Login Requires Password", func(t *testing.T) {
		t.Setenv("PERC_PASSWORD", "")
		runner, _ := newTestRunner(t, testConfig(t, backend.URL))
		err := run(t, runner, "auth", "login", "--email", "test@example.com")
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})

	t.Run("Register", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t, backend.URL))
		err := run(t, runner, "auth", "register", "--email", "new@example.com", "--password", "secret", "--first-name", "New")
		require.NoError(t, err)
		assert.Contains(t, output.String(), "Account created")
		assert.True(t, runner.session.State().IsAuthenticated)
	})

	t.Run("Whoami Without Session", func(t *testing.T) {
		runner, _ := newTestRunner(t, testConfig(t, backend.URL))
		err := run(t, runner, "auth", "whoami")
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("Status", func(t *testing.T) {
		cfg := testConfig(t, backend.URL)
		runner, output := newTestRunner(t, cfg)

		require.NoError(t, run(t, runner, "auth", "status"))
		assert.Contains(t, output.String(), "Not authenticated")

		login(t, runner)
		output.Reset()
		require.NoError(t, run(t, runner, "auth", "status"))
		assert.Contains(t, output.String(), "Authenticated as test@example.com")
	})

	t.Run("Logout Clears Session", func(t *testing.T) {
		cfg := testConfig(t, backend.URL)
		runner, output := newTestRunner(t, cfg)
		login(t, runner)

		require.NoError(t, run(t, runner, "auth", "logout"))
		assert.Contains(t, output.String(), "Signed out")
		assert.NoFileExists(t, cfg.Session.Path)
		assert.Equal(t, 0, runner.session.ActiveTimers())
	})

	t.Run("Expired Session Requires Login", func(t *testing.T) {
		expiring := tu.NewFakeBackend()
		t.Cleanup(expiring.Close)

		cfg := testConfig(t, expiring.URL)
		runner, _ := newTestRunner(t, cfg)
		login(t, runner)

		expiring.ExpireSessions()

		next, _ := newTestRunner(t, cfg)
		err := run(t, next, "analyses", "list")
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
	})

	t.Run("Import Curl", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t, backend.URL))
		token := backend.Session("test@example.com")

		curl := fmt.Sprintf("curl '%s/auth/me' -H 'Accept: application/json' -b 'session=%s'", backend.URL, token)
		require.NoError(t, run(t, runner, "auth", "import-curl", "--curl", curl))
		assert.Contains(t, output.String(), "Session imported for test@example.com")
		assert.True(t, runner.session.State().IsAuthenticated)
	})

	t.Run("Import Curl Rejects Unknown Session", func(t *testing.T) {
		runner, _ := newTestRunner(t, testConfig(t, backend.URL))
		curl := fmt.Sprintf("curl '%s/auth/me' -b 'session=bogus'", backend.URL)
		err := run(t, runner, "auth", "import-curl", "--curl", curl)
		assert.ErrorIs(t, err, shared.ErrAuthFailed)
	})

	t.Run("Import Curl Requires Input", func(t *testing.T) {
		runner, _ := newTestRunner(t, testConfig(t, backend.URL))
		err := run(t, runner, "auth", "import-curl")
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})
}

func TestAnalysisCommands(t *testing.T) {
	backend := tu.NewFakeBackend()
	t.Cleanup(backend.Close)

	setup := func(t *testing.T) (*Runner, *bytes.Buffer, *shared.Config) {
		t.Helper()
		cfg := testConfig(t, backend.URL)
		runner, output := newTestRunner(t, cfg)
		login(t, runner)
		output.Reset()
		return runner, output, cfg
	}

	t.Run("Analyze And Watch", func(t *testing.T) {
		runner, output, _ := setup(t)

		require.NoError(t, run(t, runner, "analyze", "--watch", "example.com"))
		out := output.String()
		assert.Contains(t, out, "Analysis Complete!")
		assert.Contains(t, out, "https://example.com")
		assert.Contains(t, out, "completed")

		output.Reset()
		require.NoError(t, run(t, runner, "cache", "list"))
		assert.Contains(t, output.String(), "https://example.com")
		assert.Contains(t, output.String(), "completed")
	})

	t.Run("Analyze Without Watch", func(t *testing.T) {
		runner, output, _ := setup(t)

		require.NoError(t, run(t, runner, "analyze", "--json", "https://example.org"))
		var a models.Analysis
		require.NoError(t, json.Unmarshal(output.Bytes(), &a))
		assert.Equal(t, models.StatusPending, a.Status)
	})

	t.Run("Analyze Failure", func(t *testing.T) {
		runner, output, _ := setup(t)
		backend.AddAnalysis(models.Analysis{ID: "doomed", URL: "https://fail.example", Status: models.StatusPending})
		backend.Script("doomed", models.StatusRunning, models.StatusFailed)

		err := run(t, runner, "analyses", "watch", "doomed")
		assert.ErrorIs(t, err, shared.ErrAnalysisFailed)
		assert.Contains(t, output.String(), "Analysis Failed")
	})

	t.Run("Analyze Requires URL", func(t *testing.T) {
		runner, _, _ := setup(t)
		assert.ErrorIs(t, run(t, runner, "analyze"), shared.ErrMissingArgument)
	})

	t.Run("List Formats", func(t *testing.T) {
		runner, output, cfg := setup(t)
		backend.AddAnalysis(models.Analysis{ID: "listed", URL: "https://listed.example", Status: models.StatusCompleted})

		require.NoError(t, run(t, runner, "analyses", "list", "--format", "csv"))
		assert.Contains(t, output.String(), "ID,URL,Status")
		assert.Contains(t, output.String(), "https://listed.example")

		target := filepath.Join(filepath.Dir(cfg.Session.Path), "list.md")
		output.Reset()
		require.NoError(t, run(t, runner, "analyses", "list", "--format", "markdown", "--output", target))
		tu.AssertFileExists(t, target)
		assert.Contains(t, tu.MustReadFile(t, target), "https://listed.example")

		assert.ErrorIs(t, run(t, runner, "analyses", "list", "--format", "yaml"), shared.ErrInvalidFlag)
	})

	t.Run("Get Delete Retry Status", func(t *testing.T) {
		runner, output, _ := setup(t)
		backend.AddAnalysis(models.Analysis{ID: "crud", URL: "https://crud.example", Status: models.StatusFailed})

		require.NoError(t, run(t, runner, "analyses", "get", "crud"))
		assert.Contains(t, output.String(), "https://crud.example")

		output.Reset()
		require.NoError(t, run(t, runner, "analyses", "retry", "crud"))
		assert.Contains(t, output.String(), "perc analyses watch crud")

		output.Reset()
		require.NoError(t, run(t, runner, "analyses", "status", "crud"))
		assert.Contains(t, output.String(), "Job:")

		output.Reset()
		require.NoError(t, run(t, runner, "analyses", "delete", "crud"))
		assert.Contains(t, output.String(), "✓")

		err := run(t, runner, "analyses", "get", "crud")
		assert.Error(t, err)
	})

	t.Run("Report", func(t *testing.T) {
		runner, output, cfg := setup(t)
		backend.AddAnalysis(models.Analysis{ID: "rep", URL: "https://rep.example", Status: models.StatusCompleted})

		require.NoError(t, run(t, runner, "analyses", "report", "--summary", "rep"))
		assert.Contains(t, output.String(), "Missing meta description")

		target := filepath.Join(filepath.Dir(cfg.Session.Path), "reports", "rep.md")
		output.Reset()
		require.NoError(t, run(t, runner, "analyses", "report", "--format", "markdown", "--output", target, "rep"))
		assert.Contains(t, tu.MustReadFile(t, target), "Overall score: 82")

		assert.ErrorIs(t, run(t, runner, "analyses", "report", "--format", "html", "--summary", "rep"), shared.ErrInvalidFlag)
	})

	t.Run("Export Reports", func(t *testing.T) {
		runner, output, cfg := setup(t)
		backend.AddAnalysis(models.Analysis{ID: "exp-1", URL: "https://one.example", Status: models.StatusCompleted})
		backend.AddAnalysis(models.Analysis{ID: "exp-2", URL: "https://two.example", Status: models.StatusCompleted})

		dir := filepath.Join(filepath.Dir(cfg.Session.Path), "export")
		require.NoError(t, run(t, runner, "analyses", "export-reports", "--format", "html", "--output", dir, "exp-1", "exp-2", "missing"))

		assert.Contains(t, output.String(), "Exported:  2/3")
		assert.Contains(t, output.String(), "missing")
		tu.AssertFileExists(t, filepath.Join(dir, "exp-1.html"))
		tu.AssertFileExists(t, filepath.Join(dir, tasks.ManifestName))
	})
}

func TestSystemAndCacheCommands(t *testing.T) {
	backend := tu.NewFakeBackend()
	t.Cleanup(backend.Close)

	t.Run("Health Without Session", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t, backend.URL))
		require.NoError(t, run(t, runner, "system", "health"))
		assert.Contains(t, output.String(), "Backend is healthy")
		assert.Contains(t, output.String(), "2 workers")
	})

	t.Run("Info", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t, backend.URL))
		require.NoError(t, run(t, runner, "system", "info"))
		assert.Contains(t, output.String(), "1.0.0")
	})

	t.Run("Metrics And Profiles", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t, backend.URL))
		login(t, runner)
		output.Reset()

		require.NoError(t, run(t, runner, "system", "metrics", "--hours", "6"))
		assert.Contains(t, output.String(), "Last 6 hours")

		output.Reset()
		require.NoError(t, run(t, runner, "system", "profiles"))
		assert.Contains(t, output.String(), "* default")
		assert.Contains(t, output.String(), "quick")

		output.Reset()
		require.NoError(t, run(t, runner, "system", "profiles", "quick"))
		assert.Contains(t, output.String(), "quick")
		assert.NotContains(t, output.String(), "* default")

		err := run(t, runner, "system", "profiles", "missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("Cache Show And Clear", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t, backend.URL))
		login(t, runner)
		backend.AddAnalysis(models.Analysis{ID: "cached", URL: "https://cached.example", Status: models.StatusCompleted})
		require.NoError(t, run(t, runner, "analyses", "get", "cached"))

		output.Reset()
		require.NoError(t, run(t, runner, "cache", "show", "--json", "cached"))
		assert.Contains(t, output.String(), `"analysis_id": "cached"`)

		output.Reset()
		require.NoError(t, run(t, runner, "cache", "clear"))
		assert.Contains(t, output.String(), "Removed 1 cached analyses")

		err := run(t, runner, "cache", "show", "cached")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("Empty Cache", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t, backend.URL))
		require.NoError(t, run(t, runner, "cache", "list"))
		assert.Contains(t, output.String(), "Cache is empty")
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("Config", func(t *testing.T) {
		runner, output := newTestRunner(t, testConfig(t, "http://localhost"))
		path := filepath.Join(t.TempDir(), "config.toml")

		require.NoError(t, run(t, runner, "setup", "config", "--config", path))
		tu.AssertFileExists(t, path)
		assert.Contains(t, output.String(), path)

		assert.Error(t, run(t, runner, "setup", "config", "--config", path))
	})

	t.Run("Database", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(shared.EnvDBPath, filepath.Join(dir, "cache.db"))

		runner, output := newTestRunner(t, testConfig(t, "http://localhost"))
		require.NoError(t, run(t, runner, "setup", "database", "--config", filepath.Join(dir, "config.toml")))

		tu.AssertFileExists(t, filepath.Join(dir, "cache.db"))
		assert.Contains(t, output.String(), "Cache ready")
	})
}

func TestLogging(t *testing.T) {
	backend := tu.NewFakeBackend()
	t.Cleanup(backend.Close)

	newLoggedRunner := func(t *testing.T, logs *bytes.Buffer) *Runner {
		t.Helper()
		logger := shared.NewLogger(logs)
		shared.SetLogLevel(logger, log.WarnLevel)
		runner, err := NewRunner(RunnerOpts{Config: testConfig(t, backend.URL), Logger: logger, Output: &bytes.Buffer{}})
		require.NoError(t, err)
		t.Cleanup(runner.Close)
		return runner
	}

	t.Run("Quiet By Default", func(t *testing.T) {
		logs := &bytes.Buffer{}
		runner := newLoggedRunner(t, logs)

		require.NoError(t, run(t, runner, "system", "health"))
		assert.NotContains(t, logs.String(), "component=client")
	})

	t.Run("Verbose Reaches Component Loggers", func(t *testing.T) {
		logs := &bytes.Buffer{}
		runner := newLoggedRunner(t, logs)

		require.NoError(t, run(t, runner, "--verbose", "system", "health"))
		assert.Contains(t, logs.String(), "component=client")
		assert.Contains(t, logs.String(), "request_id=")
		assert.Contains(t, logs.String(), "/api/v1/monitoring/health")
	})

	t.Run("Later Components Inherit Level", func(t *testing.T) {
		logs := &bytes.Buffer{}
		runner := newLoggedRunner(t, logs)
		runner.SetLogLevel(log.DebugLevel)

		runner.componentLogger("tracker").Debug("tick")
		assert.Contains(t, logs.String(), "component=tracker")
	})

	t.Run("Output Redirect Reaches Component Loggers", func(t *testing.T) {
		logs := &bytes.Buffer{}
		redirected := &bytes.Buffer{}
		runner := newLoggedRunner(t, logs)
		runner.SetLogLevel(log.DebugLevel)
		runner.SetLogOutput(redirected)

		err := run(t, runner, "auth", "whoami")
		assert.ErrorIs(t, err, shared.ErrNotAuthenticated)

		assert.Empty(t, logs.String())
		assert.Contains(t, redirected.String(), "component=client")
		assert.Contains(t, redirected.String(), "component=session")
		assert.Contains(t, redirected.String(), "no active session")
	})
}
