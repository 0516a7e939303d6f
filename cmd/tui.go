package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/perc/internal/session"
	"github.com/desertthunder/perc/internal/shared"
	"github.com/desertthunder/perc/internal/tasks"
	"github.com/desertthunder/perc/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive analysis dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.requireSession(ctx); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logFile, err := shared.OpenLogFile(shared.ExpandHome("~/.perc/tui.log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogOutput(logFile)
	defer func() {
		r.SetLogOutput(os.Stderr)
		logFile.Close()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tracker := tasks.NewTracker(r.api.Analyses, r.componentLogger("tracker"),
		tasks.WithInterval(r.config.Poller.Interval()))
	defer tracker.StopAll()

	model := ui.NewModel(ctx, r.api.Analyses, r.analysisEngine(), tracker)
	p := tea.NewProgram(model, tea.WithContext(ctx))

	r.session.OnChange(func(s session.State) {
		if !s.IsAuthenticated && !s.IsLoading {
			p.Send(ui.SessionExpiredMsg(shared.ErrSessionExpired))
		}
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
