package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/perc/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	logger.SetLevel(log.WarnLevel)

	configPath := shared.GetEnv("PERC_CONFIG", "config.toml")
	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		logger.Fatalf("application error: %v", err)
	}

	runner, err := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatalf("application error: %v", err)
	}

	app := newApp(runner)

	err = app.Run(context.Background(), os.Args)
	runner.Close()

	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotImplemented):
		logger.Warn("not implemented")
		os.Exit(0)
	case errors.Is(err, shared.ErrSessionExpired), errors.Is(err, shared.ErrNotAuthenticated):
		logger.Error(err.Error(), "hint", "run `perc auth login` to sign in again")
		os.Exit(1)
	default:
		logger.Fatalf("application error: %v", err)
	}
}

// newApp builds the root command. --verbose raises every component logger to debug.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "perc",
		Usage:   "Analyze homepages and follow analyses from the terminal",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				runner.SetLogLevel(log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}
}
