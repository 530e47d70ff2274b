package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
	"github.com/desertthunder/mtpsync/internal/tasks"
	"github.com/desertthunder/mtpsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI: review what is missing, confirm, and watch the transfer.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if !isTerminal(r.output) {
		return fmt.Errorf("%w: tui requires an interactive terminal", shared.ErrInvalidInput)
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	names, err := r.playlists(cmd)
	if err != nil {
		return err
	}

	// Logs go to a file while the TUI owns the terminal
	fileLogger, err := shared.NewFileLogger("./tmp/mtpsync-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	h, err := r.openDevice(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	var recorder tasks.RunRecorder
	if db, repo, err := r.openHistory(); err != nil {
		r.logger.Warn("run history unavailable", "error", err)
	} else {
		defer db.Close()
		recorder = repo
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(ctx, ui.ModelOpts{
		Engine: r.newEngine(recorder, false, false),
		Device: h,
		Desired: func(ctx context.Context) (models.DesiredSet, error) {
			return r.desiredSet(ctx, names)
		},
	})
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return model.Err()
}
