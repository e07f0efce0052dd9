package actionfile

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

// Persister replaces the durable record set.
type Persister interface {
	Store(records []models.ActionRecord) error
}

// Writer applies record snapshots to a [Persister] on one background goroutine.
//
// Callers capture a snapshot and call [Writer.Reserve] while holding the lock that guards their state,
// then hand the snapshot over with [Writer.Enqueue] once the lock is released. Snapshots are stored
// strictly in reservation order even when they are enqueued out of order.
type Writer struct {
	persister Persister
	logger    *log.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	reserved uint64
	applied  uint64
	pending  map[uint64][]models.ActionRecord
	lastErr  error
	closed   bool
	done     chan struct{}
}

// NewWriter starts the writer goroutine. Call [Writer.Close] to drain and stop it.
func NewWriter(p Persister, logger *log.Logger) *Writer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	w := &Writer{
		persister: p,
		logger:    logger,
		pending:   make(map[uint64][]models.ActionRecord),
		done:      make(chan struct{}),
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Reserve allocates the next position in the write order.
func (w *Writer) Reserve() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reserved++
	return w.reserved
}

// Enqueue hands over the snapshot for a reserved position. The writer takes ownership of records.
// Snapshots enqueued after [Writer.Close] are dropped with a warning.
func (w *Writer) Enqueue(seq uint64, records []models.ActionRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.logger.Warn("Writer closed, dropping snapshot", "seq", seq, "records", len(records))
		return
	}
	if seq <= w.applied || seq > w.reserved {
		w.logger.Warn("Ignoring snapshot outside reserved range", "seq", seq)
		return
	}
	w.pending[seq] = records
	w.cond.Broadcast()
}

// Flush blocks until every snapshot reserved before the call has been applied or the writer stopped.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	target := w.reserved
	for w.applied < target && !w.stopped() {
		w.cond.Wait()
	}
}

// LastError returns the most recent store failure, if any.
func (w *Writer) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Close stores every contiguous pending snapshot and stops the goroutine.
func (w *Writer) Close() error {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()

	<-w.done
	return w.LastError()
}

func (w *Writer) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *Writer) run() {
	defer func() {
		w.mu.Lock()
		close(w.done)
		w.cond.Broadcast()
		w.mu.Unlock()
	}()

	for {
		w.mu.Lock()
		for {
			if _, ok := w.pending[w.applied+1]; ok || w.closed {
				break
			}
			w.cond.Wait()
		}

		seq := w.applied + 1
		records, ok := w.pending[seq]
		if !ok {
			if w.applied < w.reserved {
				w.logger.Warn("Stopping with unapplied snapshots", "applied", w.applied, "reserved", w.reserved)
			}
			w.mu.Unlock()
			return
		}
		delete(w.pending, seq)
		w.mu.Unlock()

		err := w.persister.Store(records)

		w.mu.Lock()
		if err != nil {
			w.lastErr = fmt.Errorf("%w: snapshot %d: %v", shared.ErrPersistenceWrite, seq, err)
			w.logger.Error("Failed to persist tracked actions", "seq", seq, "records", len(records), "error", err)
		} else {
			w.logger.Debug("Persisted tracked actions", "seq", seq, "records", len(records))
		}
		w.applied = seq
		w.cond.Broadcast()
		w.mu.Unlock()
	}
}
