package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/desertthunder/hlsx/internal/tasks"
	"github.com/desertthunder/hlsx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive catalog browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(filepath.Join(config.Cache.Dir, "hlsx-tui.log"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(config.Log.Level))
	r.SetLogger(fileLogger)

	progress := make(chan tasks.ProgressUpdate, 64)
	m, err := r.openManager(cmd, progress)
	if err != nil {
		return err
	}
	defer r.closeManager(m)

	if err := ui.Run(ctx, m, progress); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
