// Package tasks executes download and removal actions with admission control and retries.
//
// # Admission
//
// [Executor] runs a fixed pool of workers, at most [Options.MaxParallel] actions at a time.
// Additional submissions wait in FIFO order. Actions for the same resource never overlap; a
// queued action whose resource is busy is skipped until that resource frees up.
//
// # States
//
// Every submitted action reports Queued, then Started, then exactly one of Completed, Failed or
// Canceled to each registered [StateListener]. Closing the executor cancels running and queued work
// and reports Canceled for it.
//
// # Retries
//
// Failed attempts are retried [Options.MinRetryCount] times with a linear, capped delay.
// Errors wrapping [shared.ErrNotFound] or [shared.ErrInvalidInput] are not retried.
//
// # Progress Reporting
//
// Updates are sent on [Options.Progress] with select and default so reporting never blocks execution.
//
// # Journal
//
// When [Options.Journal] is set, the executor keeps the set of submitted actions that have not
// completed or failed and hands it to the journal after each change. Canceled actions stay in the set so
// they can be passed to [Executor.Resume] by the next process.
package tasks
