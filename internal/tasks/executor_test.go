package tasks_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/hlsx/internal/mocks"
	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
	"github.com/desertthunder/hlsx/internal/tasks"
	tu "github.com/desertthunder/hlsx/internal/testing"
	"github.com/golang/mock/gomock"
	"github.com/sirkon/deepequal"
)

func newExecutor(t *testing.T, f tasks.Fetcher, opts tasks.Options) (*tasks.Executor, *tu.StateRecorder) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(&bytes.Buffer{})
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
		opts.MaxRetryDelay = 5 * time.Millisecond
	}
	e := tasks.NewExecutor(f, opts)
	rec := tu.NewStateRecorder()
	e.AddListener(rec)
	t.Cleanup(func() { e.Close() })
	return e, rec
}

func waitIdle(t *testing.T, e *tasks.Executor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
}

func download(id string) models.ActionRecord {
	return models.NewDownloadAction(models.ResourceID(id), nil, []byte(id))
}

func TestAdmissionControl(t *testing.T) {
	f := tu.NewGateFetcher()
	e, rec := newExecutor(t, f, tasks.Options{MaxParallel: 2})

	var ids []string
	for i := 0; i < 4; i++ {
		ids = append(ids, e.Submit(download(fmt.Sprintf("r%d", i))))
	}

	tu.WaitFor(t, "two running tasks", func() bool { return e.Stats().Running == 2 })
	time.Sleep(20 * time.Millisecond)

	stats := e.Stats()
	if stats.Running != 2 || stats.Queued != 2 {
		t.Fatalf("Stats() = %+v, want 2 running and 2 queued", stats)
	}
	for _, id := range ids[2:] {
		if got := rec.States(id); !deepequal.Equal(got, []models.State{models.StateQueued}) {
			t.Errorf("task %s states = %v, want only queued", id, got)
		}
	}

	f.Release()
	waitIdle(t, e)

	peak := f.Peak()
	if peak != 2 {
		t.Errorf("peak concurrency = %d, want 2", peak)
	}
	if got := e.Stats().Completed; got != 4 {
		t.Errorf("completed = %d, want 4", got)
	}

	want := []models.State{models.StateQueued, models.StateStarted, models.StateCompleted}
	for _, id := range ids {
		if got := rec.States(id); !deepequal.Equal(got, want) {
			deepequal.SideBySide(t, "task states", want, got)
		}
	}
}

func TestFIFOOrder(t *testing.T) {
	f := tu.NewOpenFetcher()
	e, _ := newExecutor(t, f, tasks.Options{MaxParallel: 1})

	for i := 0; i < 5; i++ {
		e.Submit(download(fmt.Sprintf("r%d", i)))
	}
	waitIdle(t, e)

	calls := f.Calls()
	want := []string{"download:r0", "download:r1", "download:r2", "download:r3", "download:r4"}
	if !deepequal.Equal(want, calls) {
		deepequal.SideBySide(t, "execution order", want, calls)
	}
}

func TestSameResourceIsSerialized(t *testing.T) {
	f := tu.NewGateFetcher()
	e, _ := newExecutor(t, f, tasks.Options{MaxParallel: 2})

	e.Submit(download("a"))
	e.Submit(models.NewRemoveAction("a"))
	e.Submit(download("b"))

	tu.WaitFor(t, "two fetcher calls", func() bool {
		calls := f.Calls()
		return len(calls) == 2
	})
	time.Sleep(20 * time.Millisecond)
	calls := f.Calls()
	slices.Sort(calls)
	want := []string{"download:a", "download:b"}
	if !deepequal.Equal(want, calls) {
		deepequal.SideBySide(t, "running while a is busy", want, calls)
	}

	f.Release()
	waitIdle(t, e)

	calls = f.Calls()
	if len(calls) != 3 || calls[2] != "remove:a" {
		t.Errorf("calls = %v, want removal of a last", calls)
	}
}

func TestRetries(t *testing.T) {
	t.Run("Transient failures are retried", func(t *testing.T) {
		f := tu.NewOpenFetcher()
		f.FailNext("a", 2, nil)
		e, rec := newExecutor(t, f, tasks.Options{MinRetryCount: 3})

		id := e.Submit(download("a"))
		waitIdle(t, e)

		final := rec.Final(id)
		if final.State != models.StateCompleted || final.Attempts != 3 {
			t.Errorf("final = %v after %d attempts, want completed after 3", final.State, final.Attempts)
		}
	})

	t.Run("Exhausted retries fail", func(t *testing.T) {
		f := tu.NewOpenFetcher()
		f.FailNext("a", 10, nil)
		e, rec := newExecutor(t, f, tasks.Options{MinRetryCount: 2})

		id := e.Submit(download("a"))
		waitIdle(t, e)

		final := rec.Final(id)
		if final.State != models.StateFailed {
			t.Fatalf("state = %v, want failed", final.State)
		}
		if final.Attempts != 3 {
			t.Errorf("attempts = %d, want 3", final.Attempts)
		}
		if !errors.Is(final.Err, shared.ErrTaskExecution) {
			t.Errorf("Err = %v, want ErrTaskExecution", final.Err)
		}
		want := []models.State{models.StateQueued, models.StateStarted, models.StateFailed}
		if got := rec.States(id); !deepequal.Equal(want, got) {
			deepequal.SideBySide(t, "task states", want, got)
		}
	})

	t.Run("Permanent errors are not retried", func(t *testing.T) {
		f := tu.NewOpenFetcher()
		f.FailNext("a", 10, fmt.Errorf("%w: playlist gone", shared.ErrNotFound))
		e, rec := newExecutor(t, f, tasks.Options{MinRetryCount: 5})

		id := e.Submit(download("a"))
		waitIdle(t, e)

		if final := rec.Final(id); final.State != models.StateFailed || final.Attempts != 1 {
			t.Errorf("final = %v after %d attempts, want failed after 1", final.State, final.Attempts)
		}
	})

	t.Run("NoRetries", func(t *testing.T) {
		f := tu.NewOpenFetcher()
		f.FailNext("a", 1, nil)
		e, rec := newExecutor(t, f, tasks.Options{MinRetryCount: tasks.NoRetries})

		id := e.Submit(download("a"))
		waitIdle(t, e)
		if final := rec.Final(id); final.State != models.StateFailed || final.Attempts != 1 {
			t.Errorf("final = %v after %d attempts, want failed after 1", final.State, final.Attempts)
		}
	})
}

func TestClose(t *testing.T) {
	t.Run("Cancels running and queued tasks", func(t *testing.T) {
		f := tu.NewGateFetcher()
		j := &tu.MemJournal{}
		e, rec := newExecutor(t, f, tasks.Options{MaxParallel: 1, Journal: j})

		running := e.Submit(download("a"))
		queued := e.Submit(download("b"))
		tu.WaitFor(t, "one running task", func() bool { return e.Stats().Running == 1 })

		if err := e.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		wantRunning := []models.State{models.StateQueued, models.StateStarted, models.StateCanceled}
		if got := rec.States(running); !deepequal.Equal(wantRunning, got) {
			deepequal.SideBySide(t, "running task states", wantRunning, got)
		}
		wantQueued := []models.State{models.StateQueued, models.StateCanceled}
		if got := rec.States(queued); !deepequal.Equal(wantQueued, got) {
			deepequal.SideBySide(t, "queued task states", wantQueued, got)
		}

		if got := len(j.Records()); got != 2 {
			t.Errorf("journal holds %d actions, want both canceled actions", got)
		}
		if got := e.Stats(); got.Canceled != 2 || got.Running != 0 || got.Queued != 0 {
			t.Errorf("Stats() = %+v", got)
		}
	})

	t.Run("Submit after Close", func(t *testing.T) {
		e, rec := newExecutor(t, tu.NewGateFetcher(), tasks.Options{})
		e.Close()

		id := e.Submit(download("a"))
		want := []models.State{models.StateQueued, models.StateCanceled}
		if got := rec.States(id); !deepequal.Equal(want, got) {
			deepequal.SideBySide(t, "late task states", want, got)
		}
		if err := rec.Final(id).Err; !errors.Is(err, shared.ErrExecutorClosed) {
			t.Errorf("late task error = %v, want ErrExecutorClosed", err)
		}
		if err := e.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})

	t.Run("Completed tasks are not resurrected", func(t *testing.T) {
		f := tu.NewOpenFetcher()
		e, rec := newExecutor(t, f, tasks.Options{})

		id := e.Submit(download("a"))
		waitIdle(t, e)
		e.Close()

		want := []models.State{models.StateQueued, models.StateStarted, models.StateCompleted}
		if got := rec.States(id); !deepequal.Equal(want, got) {
			deepequal.SideBySide(t, "task states", want, got)
		}
	})
}

func TestJournal(t *testing.T) {
	f := tu.NewGateFetcher()
	j := &tu.MemJournal{}
	e, _ := newExecutor(t, f, tasks.Options{MaxParallel: 1, Journal: j})

	e.Submit(download("a"))
	e.Submit(download("b"))
	tu.WaitFor(t, "both journaled", func() bool { return len(j.Records()) == 2 })

	pending := e.Pending()
	if len(pending) != 2 || pending[0].Resource != "a" || pending[1].Resource != "b" {
		t.Errorf("Pending() = %v, want a then b", pending)
	}

	f.Release()
	waitIdle(t, e)

	if got := len(j.Records()); got != 0 {
		t.Errorf("journal holds %d actions after completion, want 0", got)
	}
}

func TestResume(t *testing.T) {
	f := tu.NewOpenFetcher()
	e, rec := newExecutor(t, f, tasks.Options{})

	ids := e.Resume([]models.ActionRecord{download("a"), models.NewRemoveAction("b")})
	waitIdle(t, e)

	if len(ids) != 2 {
		t.Fatalf("Resume() returned %d ids", len(ids))
	}
	for _, id := range ids {
		if got := rec.Final(id).State; got != models.StateCompleted {
			t.Errorf("task %s = %v, want completed", id, got)
		}
	}
}

func TestRemoveListener(t *testing.T) {
	f := tu.NewOpenFetcher()
	e, rec := newExecutor(t, f, tasks.Options{})
	e.RemoveListener(rec)

	id := e.Submit(download("a"))
	waitIdle(t, e)
	if got := rec.States(id); len(got) != 0 {
		t.Errorf("removed listener received %v", got)
	}
}

func TestWithMockFetcher(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := mocks.NewFetcherMock(ctrl)

	progress := make(chan tasks.ProgressUpdate, 32)
	e, rec := newExecutor(t, m, tasks.Options{Progress: progress})

	dl := models.NewDownloadAction("a", []models.TrackKey{{Track: 1}}, []byte("Sintel"))
	rm := models.NewRemoveAction("a")

	gomock.InOrder(
		m.EXPECT().Download(gomock.Any(), dl, gomock.Any()).DoAndReturn(func(ctx context.Context, rec models.ActionRecord, p tasks.ProgressFunc) error {
			p(512, 1024)
			p(1024, 1024)
			return nil
		}),
		m.EXPECT().Remove(gomock.Any(), rm).Return(nil),
	)

	first := e.Submit(dl)
	second := e.Submit(rm)
	waitIdle(t, e)

	for _, id := range []string{first, second} {
		if got := rec.Final(id).State; got != models.StateCompleted {
			t.Errorf("task %s = %v, want completed", id, got)
		}
	}

	var fetching []tasks.ProgressUpdate
	for len(progress) > 0 {
		if u := <-progress; u.Phase == tasks.PhaseFetching {
			fetching = append(fetching, u)
		}
	}
	if len(fetching) != 2 || fetching[1].Done != 1024 || fetching[1].Total != 1024 {
		t.Errorf("fetching updates = %+v", fetching)
	}
}
