package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/actionfile"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/repositories"
	"github.com/desertthunder/hlsx/internal/services"
	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/desertthunder/hlsx/internal/tasks"
	"github.com/desertthunder/hlsx/internal/tracker"
)

// Options overrides collaborators built by [New]. Zero values build the defaults from config.
type Options struct {
	DB         *sql.DB                     // Content index connection; opened from config when nil
	HTTPClient *http.Client                // Client used by the default fetch backend
	Fetcher    tasks.Fetcher               // Replaces the HLS fetch backend
	Tracks     services.TrackProvider      // Replaces the HLS track provider
	Progress   chan<- tasks.ProgressUpdate // Receives executor progress updates
}

// Manager owns every component of the offline cache.
type Manager struct {
	cfg    *shared.Config
	logger *log.Logger

	db     *sql.DB
	ownsDB bool
	index  *repositories.CachedFileRepository

	provider services.TrackProvider
	executor *tasks.Executor
	tracker  *tracker.Tracker

	trackedWriter *actionfile.Writer
	actionsWriter *actionfile.Writer

	names map[models.ResourceID]string
}

// New builds the cache under cfg.Cache.Dir and resumes actions left pending by a previous process.
func New(cfg *shared.Config, logger *log.Logger, opts Options) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", shared.ErrMissingConfig)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if err := os.MkdirAll(cfg.Cache.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	m := &Manager{cfg: cfg, logger: logger, db: opts.DB, names: make(map[models.ResourceID]string)}
	for _, entry := range cfg.Catalog {
		m.names[models.ResourceID(entry.URI)] = entry.Name
	}

	if m.db == nil {
		db, err := shared.OpenIndex(cfg.Database)
		if err != nil {
			return nil, err
		}
		m.db, m.ownsDB = db, true
	}
	m.index = repositories.NewCachedFileRepository(m.db)

	httpFetcher := services.NewHTTPFetcher(
		services.NewClient(cfg.Fetch, opts.HTTPClient),
		m.index,
		cfg.Cache.ContentPath(),
		shared.WithLogger(logger, "component", "fetcher"),
	)
	var fetcher tasks.Fetcher = httpFetcher
	if opts.Fetcher != nil {
		fetcher = opts.Fetcher
	}
	m.provider = httpFetcher
	if opts.Tracks != nil {
		m.provider = opts.Tracks
	}

	actionsFile, err := actionfile.New(cfg.Cache.ActionsPath(), nil)
	if err != nil {
		m.closeDB()
		return nil, err
	}
	trackedFile, err := actionfile.New(cfg.Cache.TrackedActionsPath(), nil)
	if err != nil {
		m.closeDB()
		return nil, err
	}

	pending := loadPending(actionsFile, logger)

	m.actionsWriter = actionfile.NewWriter(actionsFile, shared.WithLogger(logger, "component", "writer", "file", cfg.Cache.ActionsFile))
	m.trackedWriter = actionfile.NewWriter(trackedFile, shared.WithLogger(logger, "component", "writer", "file", cfg.Cache.TrackedActionsFile))

	retries := cfg.Executor.MinRetryCount
	if retries == 0 {
		retries = tasks.NoRetries
	}
	m.executor = tasks.NewExecutor(fetcher, tasks.Options{
		MaxParallel:   cfg.Executor.MaxParallelDownloads,
		MinRetryCount: retries,
		RetryDelay:    cfg.Executor.RetryDelay.Duration,
		MaxRetryDelay: cfg.Executor.MaxRetryDelay.Duration,
		Logger:        shared.WithLogger(logger, "component", "executor"),
		Journal:       m.actionsWriter,
		Progress:      opts.Progress,
	})

	m.tracker = tracker.New(trackedFile, m.trackedWriter, m.executor, shared.WithLogger(logger, "component", "tracker"))
	m.executor.AddListener(m.tracker)

	m.resume(pending)
	return m, nil
}

func loadPending(store *actionfile.File, logger *log.Logger) []models.ActionRecord {
	records, err := store.Load()
	switch {
	case err == nil:
		return records
	case errors.Is(err, shared.ErrMissingStore):
		logger.Debug("No pending actions stored yet")
	default:
		logger.Error("Pending actions are unreadable, nothing to resume", "error", err)
	}
	return nil
}

// resume resubmits journaled actions. Actions for untracked resources are routed through the tracker
// so downloads become tracked again; removals of untracked resources only clean up stored files.
func (m *Manager) resume(pending []models.ActionRecord) {
	var direct []models.ActionRecord
	for _, rec := range pending {
		tracked := m.tracker.IsTracked(rec.Resource)
		switch {
		case rec.IsRemove() && tracked:
			m.tracker.StartRemoval(rec.Resource)
		case rec.IsRemove():
			direct = append(direct, rec)
		case tracked:
			direct = append(direct, rec)
		default:
			m.tracker.StartDownload(rec.Resource, rec)
		}
	}
	m.executor.Resume(direct)
}

// Download starts caching id unless it is already tracked.
//
// The track provider lists the selectable tracks and chooser picks from them. Resources without
// selectable tracks are downloaded whole. Returns whether a download was started.
func (m *Manager) Download(ctx context.Context, id models.ResourceID, chooser Chooser) (bool, error) {
	if m.tracker.IsTracked(id) {
		m.logger.Debug("Already tracked", "resource", id)
		return false, nil
	}
	if chooser == nil {
		chooser = SelectAll
	}

	options, err := m.provider.Tracks(ctx, id)
	if err != nil {
		m.logger.Error("Failed to list tracks", "resource", id, "error", err)
		return false, err
	}

	var keys []models.TrackKey
	if len(options) > 0 {
		if keys, err = chooser(ctx, id, options); err != nil {
			return false, err
		}
		if len(keys) == 0 {
			m.logger.Info("No tracks selected", "resource", id)
			return false, nil
		}
	}

	rec := models.NewDownloadAction(id, keys, []byte(m.DisplayName(id)))
	return m.tracker.StartDownload(id, rec), nil
}

// Remove starts evicting id. Returns whether a removal was submitted.
func (m *Manager) Remove(id models.ResourceID) bool {
	return m.tracker.StartRemoval(id)
}

// Tracks lists the selectable tracks of id.
func (m *Manager) Tracks(ctx context.Context, id models.ResourceID) ([]models.TrackOption, error) {
	return m.provider.Tracks(ctx, id)
}

// DisplayName returns the catalog name of id, or id itself.
func (m *Manager) DisplayName(id models.ResourceID) string {
	if name, ok := m.names[id]; ok && name != "" {
		return name
	}
	return string(id)
}

// Catalog returns the configured streams.
func (m *Manager) Catalog() []shared.CatalogEntry { return m.cfg.Catalog }

// Status describes id, tracked or not.
func (m *Manager) Status(id models.ResourceID) (models.CacheEntry, error) {
	stats, err := m.index.StatsFor(id)
	if err != nil {
		return models.CacheEntry{}, err
	}

	rec, ok := m.tracker.Record(id)
	if !ok {
		return models.CacheEntry{Resource: id, Name: m.DisplayName(id), State: "not cached", Tracks: []string{}, Files: stats.Files, Bytes: stats.Bytes}, nil
	}
	return m.entry(rec, stats), nil
}

// Entries describes every tracked resource.
func (m *Manager) Entries() ([]models.CacheEntry, error) {
	stats, err := m.index.Stats()
	if err != nil {
		return nil, err
	}
	byResource := make(map[models.ResourceID]models.ResourceStats, len(stats))
	for _, s := range stats {
		byResource[s.Resource] = s
	}

	records := m.tracker.Tracked()
	entries := make([]models.CacheEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, m.entry(rec, byResource[rec.Resource]))
	}
	return entries, nil
}

func (m *Manager) entry(rec models.ActionRecord, stats models.ResourceStats) models.CacheEntry {
	e := models.NewCacheEntry(rec, stats)
	e.Removing = m.tracker.IsRemoving(rec.Resource)

	state, ok := m.tracker.LastState(rec.Resource)
	switch {
	case e.Removing:
		e.State = "removing"
	case !ok || state == models.StateCompleted || state == models.StateFailed:
		e.State = "cached"
	case state == models.StateCanceled:
		e.State = "interrupted"
	default:
		e.State = "downloading"
	}
	return e
}

// Tracker returns the tracked-state registry.
func (m *Manager) Tracker() *tracker.Tracker { return m.tracker }

// Executor returns the task executor.
func (m *Manager) Executor() *tasks.Executor { return m.executor }

// Index returns the content index.
func (m *Manager) Index() *repositories.CachedFileRepository { return m.index }

// WaitIdle blocks until no action is queued or running.
func (m *Manager) WaitIdle(ctx context.Context) error { return m.executor.WaitIdle(ctx) }

// Flush waits until every snapshot handed to the writers so far is on disk.
func (m *Manager) Flush() {
	m.trackedWriter.Flush()
	m.actionsWriter.Flush()
}

// Close cancels outstanding actions, drains both writers and closes the content index.
func (m *Manager) Close() error {
	var errs []error
	if err := m.executor.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.trackedWriter.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.actionsWriter.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := m.closeDB(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (m *Manager) closeDB() error {
	if m.ownsDB && m.db != nil {
		return m.db.Close()
	}
	return nil
}

// AddListener registers l for tracked-set change notifications.
func (m *Manager) AddListener(l tracker.Listener) { m.tracker.AddListener(l) }

// RemoveListener detaches l.
func (m *Manager) RemoveListener(l tracker.Listener) { m.tracker.RemoveListener(l) }
