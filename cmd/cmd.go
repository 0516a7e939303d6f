// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for configuration and the local cache.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml populated with defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize the local analysis cache and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles session operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the backend session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Usage:    "Account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Account password",
						Sources: cli.EnvVars("PERC_PASSWORD"),
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "register",
				Usage: "Create an account and sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Usage:    "Account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Aliases: []string{"p"},
						Usage:   "Account password",
						Sources: cli.EnvVars("PERC_PASSWORD"),
					},
					&cli.StringFlag{
						Name:  "first-name",
						Usage: "First name",
					},
					&cli.StringFlag{
						Name:  "last-name",
						Usage: "Last name",
					},
				},
				Action: r.AuthRegister,
			},
			{
				Name:   "logout",
				Usage:  "End the session and forget stored credentials",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Check whether the stored session is still valid",
				Action: r.AuthStatus,
			},
			{
				Name:  "whoami",
				Usage: "Show the signed-in user",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AuthWhoami,
			},
			{
				Name:  "import-curl",
				Usage: "Adopt a browser session from a DevTools \"Copy as cURL\" command",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
				},
				Action: r.AuthImportCurl,
			},
		},
	}
}

// analyzeCommand submits a URL for analysis
func analyzeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Submit a homepage for analysis",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "url"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "profile",
				Usage: "Analysis profile ID",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Poll until the analysis finishes",
			},
			&cli.BoolFlag{
				Name:  "legacy",
				Usage: "Use the legacy /analyze endpoint",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Legacy analysis type: homepage, competitor, tech_seo, accessibility",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Analyze,
	}
}

func idArg() []cli.Argument {
	return []cli.Argument{&cli.StringArg{Name: "id"}}
}

func legacyFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "legacy",
		Usage: "Use the legacy /analyses endpoints",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// analysesCommand handles operations on existing analyses
func analysesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "analyses",
		Aliases: []string{"a"},
		Usage:   "Inspect and manage analyses",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List analyses, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "per-page",
						Usage: "Analyses per page",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status: pending, running, processing, completed, failed",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json, csv, markdown",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the listing to a file instead of stdout",
					},
					legacyFlag(),
				},
				Action: r.AnalysesList,
			},
			{
				Name:      "get",
				Usage:     "Show one analysis",
				Arguments: idArg(),
				Flags:     []cli.Flag{jsonFlag(), legacyFlag()},
				Action:    r.AnalysesGet,
			},
			{
				Name:      "delete",
				Usage:     "Delete an analysis",
				Arguments: idArg(),
				Flags:     []cli.Flag{legacyFlag()},
				Action:    r.AnalysesDelete,
			},
			{
				Name:      "retry",
				Usage:     "Re-queue a failed analysis",
				Arguments: idArg(),
				Action:    r.AnalysesRetry,
			},
			{
				Name:      "status",
				Usage:     "Show the background job state of an analysis",
				Arguments: idArg(),
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.AnalysesStatus,
			},
			{
				Name:      "watch",
				Usage:     "Poll an analysis until it finishes",
				Arguments: idArg(),
				Flags:     []cli.Flag{legacyFlag()},
				Action:    r.AnalysesWatch,
			},
			{
				Name:      "report",
				Usage:     "Download the report of a completed analysis",
				Arguments: idArg(),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format: json, markdown, html",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to a file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "summary",
						Usage: "Render a JSON report as a Markdown summary",
					},
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the analysis in the web dashboard",
					},
				},
				Action: r.AnalysesReport,
			},
			{
				Name:      "export-reports",
				Usage:     "Download the reports of many analyses",
				ArgsUsage: "[id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format: json, markdown, html",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: perc_reports_{timestamp})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of concurrent writers (max 10)",
						Value: 5,
					},
					&cli.Float64Flag{
						Name:  "rate",
						Usage: "Maximum report requests per second",
						Value: 5,
					},
				},
				Action: r.AnalysesExportReports,
			},
			{
				Name:      "screenshots",
				Usage:     "Download the screenshots of a legacy analysis",
				Arguments: idArg(),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: the analysis ID)",
					},
				},
				Action: r.AnalysesScreenshots,
			},
		},
	}
}

// systemCommand reports backend health and capabilities
func systemCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "system",
		Usage: "Backend health, metrics, and capabilities",
		Commands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check backend component health",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SystemHealth,
			},
			{
				Name:  "metrics",
				Usage: "Show analysis performance metrics",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "hours",
						Usage: "Time window in hours",
						Value: 24,
					},
					jsonFlag(),
				},
				Action: r.SystemMetrics,
			},
			{
				Name:   "info",
				Usage:  "Show backend version and analyzers",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SystemInfo,
			},
			{
				Name:      "profiles",
				Usage:     "List analysis profiles, or show one",
				ArgsUsage: "[id]",
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.SystemProfiles,
			},
		},
	}
}

// cacheCommand handles the local analysis cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the local analysis cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached analyses",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Filter by status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records",
						Value: 50,
					},
				},
				Action: r.CacheList,
			},
			{
				Name:      "show",
				Usage:     "Show a cached analysis by its backend ID",
				Arguments: idArg(),
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.CacheShow,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached analysis",
				Action: r.CacheClear,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent cache migration",
				Action: r.CacheRollback,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for the interactive dashboard.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive analysis dashboard",
		Action:  r.TUI,
	}
}
