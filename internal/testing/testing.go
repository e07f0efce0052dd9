// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/tasks"
)

// GateFetcher is a [tasks.Fetcher] whose calls block until Release is called or the context ends.
type GateFetcher struct {
	mu      sync.Mutex
	running int
	peak    int
	calls   []string
	fail    map[models.ResourceID]int
	err     error
	release chan struct{}
	once    sync.Once
}

// NewGateFetcher creates a closed gate. Call Release to let calls through.
func NewGateFetcher() *GateFetcher {
	return &GateFetcher{release: make(chan struct{}), fail: make(map[models.ResourceID]int)}
}

// NewOpenFetcher creates a fetcher whose calls return immediately.
func NewOpenFetcher() *GateFetcher {
	f := NewGateFetcher()
	f.Release()
	return f
}

// Release unblocks every pending and future call.
func (f *GateFetcher) Release() { f.once.Do(func() { close(f.release) }) }

// FailNext makes the next n calls for id fail with err, or a generic transient error when err is nil.
func (f *GateFetcher) FailNext(id models.ResourceID, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[id] = n
	f.err = err
}

func (f *GateFetcher) Download(ctx context.Context, rec models.ActionRecord, progress tasks.ProgressFunc) error {
	return f.wait(ctx, rec)
}

func (f *GateFetcher) Remove(ctx context.Context, rec models.ActionRecord) error {
	return f.wait(ctx, rec)
}

// Peak returns the highest number of concurrent calls observed.
func (f *GateFetcher) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// Calls returns "kind:resource" for every call in arrival order.
func (f *GateFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *GateFetcher) wait(ctx context.Context, rec models.ActionRecord) error {
	f.mu.Lock()
	f.running++
	f.peak = max(f.peak, f.running)
	f.calls = append(f.calls, fmt.Sprintf("%s:%s", rec.Kind, rec.Resource))
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	select {
	case <-f.release:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[rec.Resource] > 0 {
		f.fail[rec.Resource]--
		if f.err != nil {
			return f.err
		}
		return errors.New("transient failure")
	}
	return nil
}

// StateRecorder is a [tasks.StateListener] collecting every transition per task.
type StateRecorder struct {
	mu     sync.Mutex
	byTask map[string][]models.State
	last   map[string]models.TaskState
}

func NewStateRecorder() *StateRecorder {
	return &StateRecorder{byTask: make(map[string][]models.State), last: make(map[string]models.TaskState)}
}

func (r *StateRecorder) OnTaskStateChanged(ts models.TaskState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTask[ts.TaskID] = append(r.byTask[ts.TaskID], ts.State)
	r.last[ts.TaskID] = ts
}

// States returns the transitions reported for a task.
func (r *StateRecorder) States(id string) []models.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.State(nil), r.byTask[id]...)
}

// Final returns the last transition reported for a task.
func (r *StateRecorder) Final(id string) models.TaskState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[id]
}

// CountingListener counts change notifications.
type CountingListener struct {
	mu sync.Mutex
	n  int
}

func (c *CountingListener) OnTrackedChanged() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *CountingListener) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// MemJournal keeps the most recent snapshot handed to it.
type MemJournal struct {
	mu     sync.Mutex
	seq    uint64
	latest uint64
	snap   []models.ActionRecord
}

func (j *MemJournal) Reserve() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	return j.seq
}

func (j *MemJournal) Enqueue(seq uint64, records []models.ActionRecord) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if seq > j.latest {
		j.latest, j.snap = seq, records
	}
}

// Records returns the latest snapshot.
func (j *MemJournal) Records() []models.ActionRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snap
}

// WaitFor polls cond until it holds, failing the test after five seconds.
func WaitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
