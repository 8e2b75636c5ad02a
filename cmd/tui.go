package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/songbook/internal/shared"
	"github.com/desertthunder/songbook/internal/tasks"
	"github.com/desertthunder/songbook/internal/ui"
)

// TUI launches the interactive song browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	st, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := filepath.Join(os.TempDir(), "songbook-tui.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer f.Close()
	r.SetLogger(shared.NewLogger(f))

	opts := ui.Options{Format: cmd.String("format"), Listing: r.listingOptions()}
	if sink, err := r.sink(ctx, cmd.String("dir")); err == nil {
		opts.Exporter = tasks.NewExporter(st, st, r.logger)
		opts.Sink = sink
	} else {
		r.logger.Info("exports disabled", "reason", err)
	}

	p := tea.NewProgram(ui.NewModel(ctx, st, opts), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
