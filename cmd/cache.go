package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/hlsx/internal/formatter"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/offline"
	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/desertthunder/hlsx/internal/tasks"
	"github.com/urfave/cli/v3"
)

func resourceArg(cmd *cli.Command) (models.ResourceID, error) {
	uri := strings.TrimSpace(cmd.StringArg("uri"))
	if uri == "" {
		return "", fmt.Errorf("%w: stream URI", shared.ErrMissingArgument)
	}
	return models.ResourceID(uri), nil
}

// Download caches a stream. Without --track every track is downloaded.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	id, err := resourceArg(cmd)
	if err != nil {
		return err
	}

	var keys []models.TrackKey
	for _, s := range cmd.StringSlice("track") {
		k, err := models.ParseTrackKey(s)
		if err != nil {
			return err
		}
		keys = append(keys, k)
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.logProgress(progress)
	}()
	defer func() {
		close(progress)
		<-done
	}()

	m, err := r.openManager(cmd, progress)
	if err != nil {
		return err
	}
	defer r.closeManager(m)
	m.Executor().AddListener(NewNotifier(r.output))

	started, err := m.Download(ctx, id, offline.SelectKeys(keys...))
	if err != nil {
		return fmt.Errorf("failed to start download: %w", err)
	}
	r.reportStart(m, id, started)

	return r.wait(ctx, cmd, m)
}

func (r *Runner) reportStart(m *offline.Manager, id models.ResourceID, started bool) {
	name := m.DisplayName(id)
	switch {
	case started:
		r.writePlain("%s %s\n", dimColor.Sprint("→ Downloading"), name)
	case m.Tracker().IsTracked(id):
		r.writePlain("%s is already cached\n", name)
	default:
		r.writePlain("%s No tracks selected for %s, nothing to download\n", warnColor.Sprint("!"), name)
	}
}

// Remove evicts a stream from the cache.
func (r *Runner) Remove(ctx context.Context, cmd *cli.Command) error {
	id, err := resourceArg(cmd)
	if err != nil {
		return err
	}

	m, err := r.openManager(cmd, nil)
	if err != nil {
		return err
	}
	defer r.closeManager(m)

	if !m.Remove(id) {
		r.writePlain("%s is not cached\n", m.DisplayName(id))
		return nil
	}
	if err := r.wait(ctx, cmd, m); err != nil {
		return err
	}
	if cmd.Bool("wait") {
		if m.Tracker().IsTracked(id) {
			return fmt.Errorf("%w: removal of %s did not complete", shared.ErrTaskExecution, id)
		}
		r.writePlain("%s %s\n", okColor.Sprint("✓ Removed"), m.DisplayName(id))
	}
	return nil
}

// wait blocks until the executor is idle unless --wait=false. Unfinished actions are resumed on the next run.
func (r *Runner) wait(ctx context.Context, cmd *cli.Command, m *offline.Manager) error {
	if !cmd.Bool("wait") {
		r.writePlain("%s\n", dimColor.Sprint("Pending actions resume the next time the cache is opened"))
		return nil
	}
	if err := m.WaitIdle(ctx); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	return nil
}

func (r *Runner) logProgress(progress <-chan tasks.ProgressUpdate) {
	for update := range progress {
		switch update.Phase {
		case tasks.PhaseRetrying:
			r.writePlain("%s %s\n", warnColor.Sprint("↻"), update.Message)
		default:
			r.logger.Debug("progress", "phase", update.Phase, "resource", update.Resource, "message", update.Message)
		}
	}
}

// Status reports whether a stream is cached.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	id, err := resourceArg(cmd)
	if err != nil {
		return err
	}

	m, err := r.openManager(cmd, nil)
	if err != nil {
		return err
	}
	defer r.closeManager(m)

	entry, err := m.Status(id)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(entry, true)
	}

	r.writePlainHeader(entry.Name)
	r.writePlain("State:  %s\n", stateLabel(entry.State))
	r.writePlain("Tracks: %s\n", tracksLabel(entry.Tracks))
	r.writePlain("Files:  %d (%s)\n", entry.Files, shared.FormatBytes(entry.Bytes))
	return nil
}

// List prints every tracked stream.
func (r *Runner) List(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	m, err := r.openManager(cmd, nil)
	if err != nil {
		return err
	}
	defer r.closeManager(m)

	entries, err := m.Entries()
	if err != nil {
		return err
	}

	if out := cmd.String("output"); out != "" {
		path, err := formatter.WriteExport(entries, format, out)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d streams to %s\n", len(entries), path)
		return nil
	}
	return formatter.Render(r.output, entries, format)
}

// Tracks lists the selectable tracks of a stream.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	id, err := resourceArg(cmd)
	if err != nil {
		return err
	}

	m, err := r.openManager(cmd, nil)
	if err != nil {
		return err
	}
	defer r.closeManager(m)

	options, err := m.Tracks(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list tracks: %w", err)
	}
	_, err = r.output.Write(formatter.ExportTracks(options))
	return err
}

// Catalog lists the configured streams with their cache state.
func (r *Runner) Catalog(ctx context.Context, cmd *cli.Command) error {
	m, err := r.openManager(cmd, nil)
	if err != nil {
		return err
	}
	defer r.closeManager(m)

	for i, stream := range m.Catalog() {
		entry, err := m.Status(models.ResourceID(stream.URI))
		if err != nil {
			return err
		}
		r.writePlain("%d. %s [%s]\n", i+1, stream.Name, stateLabel(entry.State))
		r.writePlain("   %s\n", dimColor.Sprint(stream.URI))
	}
	return nil
}

func stateLabel(state string) string {
	switch state {
	case "cached":
		return okColor.Sprint(state)
	case "not cached":
		return dimColor.Sprint(state)
	case "interrupted":
		return failColor.Sprint(state)
	default:
		return warnColor.Sprint(state)
	}
}

func tracksLabel(tracks []string) string {
	if len(tracks) == 0 {
		return "all"
	}
	return strings.Join(tracks, ", ")
}
