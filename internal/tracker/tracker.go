package tracker

import (
	"errors"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// Loader reads the persisted record set.
type Loader interface {
	Load() ([]models.ActionRecord, error)
}

// SnapshotWriter accepts snapshots of the tracked set for asynchronous persistence.
// Reserve is called while the tracker lock is held; Enqueue is called after it is released.
type SnapshotWriter interface {
	Reserve() uint64
	Enqueue(seq uint64, records []models.ActionRecord)
}

// Submitter queues an action for execution and returns its task ID.
type Submitter interface {
	Submit(rec models.ActionRecord) string
}

// Tracker is the authoritative map from resource to its current action record.
type Tracker struct {
	mu       sync.Mutex
	actions  map[models.ResourceID]models.ActionRecord
	removing map[models.ResourceID]string
	states   map[models.ResourceID]models.State

	listeners ListenerSet
	writer    SnapshotWriter
	submitter Submitter
	logger    *log.Logger
}

// New loads the persisted record set and returns a tracker over it.
//
// A missing or unreadable store never fails construction; the tracker starts empty instead.
// writer may be nil to keep the tracked set in memory only.
func New(store Loader, writer SnapshotWriter, submitter Submitter, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	t := &Tracker{
		actions:   make(map[models.ResourceID]models.ActionRecord),
		removing:  make(map[models.ResourceID]string),
		states:    make(map[models.ResourceID]models.State),
		writer:    writer,
		submitter: submitter,
		logger:    logger,
	}
	if store != nil {
		t.load(store)
	}
	return t
}

func (t *Tracker) load(store Loader) {
	records, err := store.Load()
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrMissingStore):
		t.logger.Debug("No tracked actions stored yet", "error", err)
		return
	case errors.Is(err, shared.ErrCorruptStore):
		t.logger.Error("Tracked actions are unreadable, starting empty", "error", err)
		return
	default:
		t.logger.Error("Failed to load tracked actions, starting empty", "error", err)
		return
	}

	for _, rec := range records {
		t.actions[rec.Resource] = rec
	}
	t.logger.Debug("Loaded tracked actions", "count", len(t.actions))
}

// IsTracked reports whether id is cached or has an action in flight.
func (t *Tracker) IsTracked(id models.ResourceID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.actions[id]
	return ok
}

// TrackedSelection returns the recorded selection for id, or an empty slice when untracked.
func (t *Tracker) TrackedSelection(id models.ResourceID) []models.TrackKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.actions[id].Keys()
}

// Record returns the tracked record for id.
func (t *Tracker) Record(id models.ResourceID) (models.ActionRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.actions[id]
	return rec.Clone(), ok
}

// LastState returns the most recent task state observed for id.
func (t *Tracker) LastState(id models.ResourceID) (models.State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[id]
	return s, ok
}

// IsRemoving reports whether a removal has been submitted for id and has not finished.
func (t *Tracker) IsRemoving(id models.ResourceID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.removing[id]
	return ok
}

// Tracked returns a copy of every tracked record sorted by resource.
func (t *Tracker) Tracked() []models.ActionRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// StartDownload tracks rec under id and submits it for execution.
// It is a no-op returning false when id is already tracked.
func (t *Tracker) StartDownload(id models.ResourceID, rec models.ActionRecord) bool {
	if rec.IsRemove() {
		t.logger.Warn("Refusing removal record passed as download", "resource", id)
		return false
	}

	rec = rec.Clone()
	rec.Resource = id

	t.mu.Lock()
	if _, ok := t.actions[id]; ok {
		t.mu.Unlock()
		t.logger.Debug("Download ignored, already tracked", "resource", id)
		return false
	}
	t.actions[id] = rec
	seq, snap := t.captureLocked()
	t.mu.Unlock()

	t.publish(seq, snap)
	t.submit(rec)
	return true
}

// StartRemoval submits a removal for id. The tracked entry stays in place until the removal completes.
// It is a no-op returning false when id is untracked or a removal is already in flight.
func (t *Tracker) StartRemoval(id models.ResourceID) bool {
	t.mu.Lock()
	if _, ok := t.actions[id]; !ok {
		t.mu.Unlock()
		t.logger.Debug("Removal ignored, not tracked", "resource", id)
		return false
	}
	if _, ok := t.removing[id]; ok {
		t.mu.Unlock()
		t.logger.Debug("Removal ignored, already in flight", "resource", id)
		return false
	}
	t.removing[id] = ""
	t.mu.Unlock()

	taskID := t.submit(models.NewRemoveAction(id))

	t.mu.Lock()
	if _, ok := t.removing[id]; ok {
		t.removing[id] = taskID
	}
	t.mu.Unlock()
	return true
}

// OnTaskStateChanged reconciles an executor state report against the tracked set.
//
// A completed removal or a failed download drops the resource. No other transition changes membership.
func (t *Tracker) OnTaskStateChanged(ts models.TaskState) {
	id := ts.Action.Resource

	t.mu.Lock()
	if ts.Action.IsRemove() && ts.State.IsTerminal() {
		delete(t.removing, id)
	}
	if _, ok := t.actions[id]; !ok {
		t.mu.Unlock()
		return
	}
	t.states[id] = ts.State

	drop := (ts.Action.IsRemove() && ts.State == models.StateCompleted) ||
		(!ts.Action.IsRemove() && ts.State == models.StateFailed)
	if !drop {
		t.mu.Unlock()
		return
	}
	delete(t.actions, id)
	delete(t.states, id)
	seq, snap := t.captureLocked()
	t.mu.Unlock()

	t.logger.Debug("Resource untracked", "resource", id, "kind", ts.Action.Kind, "state", ts.State)
	t.publish(seq, snap)
}

// AddListener registers l for change notifications.
func (t *Tracker) AddListener(l Listener) { t.listeners.Add(l) }

// RemoveListener unregisters l.
func (t *Tracker) RemoveListener(l Listener) { t.listeners.Remove(l) }

func (t *Tracker) submit(rec models.ActionRecord) string {
	if t.submitter == nil {
		return ""
	}
	return t.submitter.Submit(rec)
}

// captureLocked reserves the next write position and copies the tracked set. Callers hold t.mu.
func (t *Tracker) captureLocked() (uint64, []models.ActionRecord) {
	var seq uint64
	if t.writer != nil {
		seq = t.writer.Reserve()
	}
	return seq, t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() []models.ActionRecord {
	out := make([]models.ActionRecord, 0, len(t.actions))
	for _, rec := range t.actions {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// publish notifies listeners and then hands the snapshot to the writer.
func (t *Tracker) publish(seq uint64, snap []models.ActionRecord) {
	t.listeners.NotifyAll()
	if t.writer != nil {
		t.writer.Enqueue(seq, snap)
	}
}
