package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// ProgressFunc receives byte counts while a download runs. total is 0 when unknown.
type ProgressFunc func(done, total int64)

// Fetcher performs the actual work behind an action.
type Fetcher interface {
	Download(ctx context.Context, rec models.ActionRecord, progress ProgressFunc) error
	Remove(ctx context.Context, rec models.ActionRecord) error
}

// StateListener receives every task state transition.
type StateListener interface {
	OnTaskStateChanged(ts models.TaskState)
}

// Journal accepts snapshots of the executor's pending actions.
type Journal interface {
	Reserve() uint64
	Enqueue(seq uint64, records []models.ActionRecord)
}

// Options configures an [Executor]. Zero values select the defaults.
type Options struct {
	MaxParallel   int           // Concurrent actions, default 2
	MinRetryCount int           // Retries after the first failed attempt, default 5
	RetryDelay    time.Duration // Delay before the first retry, default 1s
	MaxRetryDelay time.Duration // Upper bound for retry delays, default 5s
	Logger        *log.Logger
	Journal       Journal
	Progress      chan<- ProgressUpdate
}

const (
	DefaultMaxParallel   = 2
	DefaultMinRetryCount = 5
	DefaultRetryDelay    = time.Second
	DefaultMaxRetryDelay = 5 * time.Second
)

func (o Options) withDefaults() Options {
	if o.MaxParallel <= 0 {
		o.MaxParallel = DefaultMaxParallel
	}
	if o.MinRetryCount < 0 {
		o.MinRetryCount = 0
	} else if o.MinRetryCount == 0 {
		o.MinRetryCount = DefaultMinRetryCount
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.MaxRetryDelay < o.RetryDelay {
		o.MaxRetryDelay = max(DefaultMaxRetryDelay, o.RetryDelay)
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	return o
}

// NoRetries is a MinRetryCount value that disables retries.
const NoRetries = -1

type task struct {
	id        string
	action    models.ActionRecord
	attempts  int
	submitted time.Time
}

// Stats counts tasks by state.
type Stats struct {
	Queued    int
	Running   int
	Completed int
	Failed    int
	Canceled  int
}

// Executor is a bounded worker pool running [Fetcher] calls.
type Executor struct {
	fetcher Fetcher
	opts    Options
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []*task
	busy        map[models.ResourceID]bool
	journal     []*task
	stats       Stats
	outstanding int
	idle        chan struct{}
	closed      bool

	lmu       sync.Mutex
	listeners []StateListener
}

// NewExecutor starts the worker pool. Call [Executor.Close] to stop it.
func NewExecutor(fetcher Fetcher, opts Options) *Executor {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	idle := make(chan struct{})
	close(idle)

	e := &Executor{
		fetcher: fetcher,
		opts:    opts,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
		busy:    make(map[models.ResourceID]bool),
		idle:    idle,
	}
	e.cond = sync.NewCond(&e.mu)

	for i := 0; i < opts.MaxParallel; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	return e
}

// MaxParallel reports the configured concurrency limit.
func (e *Executor) MaxParallel() int { return e.opts.MaxParallel }

// AddListener registers l for state transitions. Listeners must have comparable dynamic types.
func (e *Executor) AddListener(l StateListener) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	for _, existing := range e.listeners {
		if existing == l {
			return
		}
	}
	next := make([]StateListener, len(e.listeners), len(e.listeners)+1)
	copy(next, e.listeners)
	e.listeners = append(next, l)
}

// RemoveListener unregisters l.
func (e *Executor) RemoveListener(l StateListener) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	next := make([]StateListener, 0, len(e.listeners))
	for _, existing := range e.listeners {
		if existing != l {
			next = append(next, existing)
		}
	}
	e.listeners = next
}

// Submit queues rec and returns its task ID. Queued is reported before Submit returns.
// Submitting to a closed executor reports Queued followed by Canceled.
func (e *Executor) Submit(rec models.ActionRecord) string {
	t := &task{id: shared.GenerateID(), action: rec.Clone(), submitted: time.Now()}
	e.report(t, models.StateQueued, nil)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.logger.Warn("Executor closed, canceling task", "task", t.id, "resource", rec.Resource)
		e.report(t, models.StateCanceled, shared.ErrExecutorClosed)
		return t.id
	}

	e.queue = append(e.queue, t)
	e.stats.Queued++
	if e.outstanding == 0 {
		e.idle = make(chan struct{})
	}
	e.outstanding++
	e.journal = append(e.journal, t)
	seq, snap := e.captureLocked()
	e.cond.Broadcast()
	e.mu.Unlock()

	e.logger.Debug("Task queued", "task", t.id, "kind", rec.Kind, "resource", rec.Resource)
	e.publish(seq, snap)
	return t.id
}

// Resume submits every record in order, typically the pending actions journaled by a previous process.
func (e *Executor) Resume(records []models.ActionRecord) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, e.Submit(rec))
	}
	if len(records) > 0 {
		e.logger.Info("Resumed pending actions", "count", len(records))
	}
	return ids
}

// Stats returns current task counts.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Pending returns the journaled actions in submission order.
func (e *Executor) Pending() []models.ActionRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingLocked()
}

// WaitIdle blocks until no task is queued or running, or ctx is done.
func (e *Executor) WaitIdle(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels running tasks, reports Canceled for queued ones and waits for the workers to exit.
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	queued := e.queue
	e.queue = nil
	e.stats.Queued -= len(queued)
	e.stats.Canceled += len(queued)
	e.cond.Broadcast()
	e.mu.Unlock()

	e.cancel()
	for _, t := range queued {
		e.report(t, models.StateCanceled, nil)
		e.finish(t, models.StateCanceled)
	}

	e.wg.Wait()
	e.logger.Debug("Executor stopped", "canceled", len(queued))
	return nil
}

func (e *Executor) worker(n int) {
	defer e.wg.Done()
	logger := shared.WithLogger(e.logger, "worker", n)

	for {
		t := e.next()
		if t == nil {
			return
		}

		state, err := e.execute(t)
		if state == models.StateFailed {
			logger.Error("Task failed", "task", t.id, "resource", t.action.Resource, "attempts", t.attempts, "error", err)
		} else {
			logger.Debug("Task finished", "task", t.id, "resource", t.action.Resource, "state", state, "elapsed", time.Since(t.submitted))
		}

		e.mu.Lock()
		delete(e.busy, t.action.Resource)
		e.stats.Running--
		switch state {
		case models.StateCompleted:
			e.stats.Completed++
		case models.StateFailed:
			e.stats.Failed++
		default:
			e.stats.Canceled++
		}
		e.cond.Broadcast()
		e.mu.Unlock()

		e.report(t, state, err)
		e.finish(t, state)
	}
}

// next blocks until a task is eligible to run or the executor closes.
func (e *Executor) next() *task {
	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		if e.closed {
			return nil
		}
		for i, t := range e.queue {
			if e.busy[t.action.Resource] {
				continue
			}
			e.queue = append(e.queue[:i:i], e.queue[i+1:]...)
			e.busy[t.action.Resource] = true
			e.stats.Queued--
			e.stats.Running++
			return t
		}
		e.cond.Wait()
	}
}

// execute runs t with retries and returns its terminal state.
func (e *Executor) execute(t *task) (models.State, error) {
	e.report(t, models.StateStarted, nil)

	var err error
	for retry := 0; retry <= e.opts.MinRetryCount; retry++ {
		if retry > 0 {
			e.sendProgress(retryingUpdate(t, err))
			timer := time.NewTimer(e.retryDelay(retry))
			select {
			case <-e.ctx.Done():
				timer.Stop()
				return models.StateCanceled, nil
			case <-timer.C:
			}
		}

		if e.ctx.Err() != nil {
			return models.StateCanceled, nil
		}

		t.attempts++
		err = e.attempt(t)
		if err == nil {
			return models.StateCompleted, nil
		}
		if e.ctx.Err() != nil {
			return models.StateCanceled, nil
		}
		if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrInvalidInput) {
			break
		}
		e.logger.Warn("Attempt failed", "task", t.id, "resource", t.action.Resource, "attempt", t.attempts, "error", err)
	}

	return models.StateFailed, fmt.Errorf("%w: %s %s after %d attempts: %v", shared.ErrTaskExecution, t.action.Kind, t.action.Resource, t.attempts, err)
}

func (e *Executor) attempt(t *task) error {
	if t.action.IsRemove() {
		return e.fetcher.Remove(e.ctx, t.action)
	}
	return e.fetcher.Download(e.ctx, t.action, func(done, total int64) {
		e.sendProgress(fetchingUpdate(t, done, total))
	})
}

// retryDelay grows linearly with the retry number up to MaxRetryDelay.
func (e *Executor) retryDelay(retry int) time.Duration {
	d := time.Duration(retry) * e.opts.RetryDelay
	return min(d, e.opts.MaxRetryDelay)
}

// finish drops completed and failed tasks from the journal and releases idle waiters.
func (e *Executor) finish(t *task, state models.State) {
	e.mu.Lock()
	var (
		seq   uint64
		snap  []models.ActionRecord
		dirty bool
	)
	if state != models.StateCanceled {
		for i, j := range e.journal {
			if j == t {
				e.journal = append(e.journal[:i:i], e.journal[i+1:]...)
				seq, snap = e.captureLocked()
				dirty = true
				break
			}
		}
	}
	e.outstanding--
	if e.outstanding == 0 {
		close(e.idle)
	}
	e.mu.Unlock()

	if dirty {
		e.publish(seq, snap)
	}
}

func (e *Executor) captureLocked() (uint64, []models.ActionRecord) {
	if e.opts.Journal == nil {
		return 0, nil
	}
	return e.opts.Journal.Reserve(), e.pendingLocked()
}

func (e *Executor) pendingLocked() []models.ActionRecord {
	out := make([]models.ActionRecord, len(e.journal))
	for i, t := range e.journal {
		out[i] = t.action.Clone()
	}
	return out
}

func (e *Executor) publish(seq uint64, snap []models.ActionRecord) {
	if e.opts.Journal != nil {
		e.opts.Journal.Enqueue(seq, snap)
	}
}

func (e *Executor) report(t *task, s models.State, err error) {
	e.lmu.Lock()
	listeners := e.listeners
	e.lmu.Unlock()

	ts := models.TaskState{TaskID: t.id, Action: t.action, State: s, Attempts: t.attempts, Err: err}
	for _, l := range listeners {
		l.OnTaskStateChanged(ts)
	}
	e.sendProgress(stateUpdate(t, s, err))
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Executor) sendProgress(update ProgressUpdate) {
	if e.opts.Progress == nil {
		return
	}
	select {
	case e.opts.Progress <- update:
	default:
	}
}
