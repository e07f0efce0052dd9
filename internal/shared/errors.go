package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Action store errors
	ErrMissingStore     = fmt.Errorf("action store does not exist")
	ErrCorruptStore     = fmt.Errorf("action store is corrupt")
	ErrPersistenceWrite = fmt.Errorf("failed to persist actions")

	// Execution errors
	ErrTaskExecution  = fmt.Errorf("task execution failed")
	ErrExecutorClosed = fmt.Errorf("executor closed")

	// Fetch backend errors
	ErrFetchRequest       = fmt.Errorf("fetch request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrInvalidTrackKey = fmt.Errorf("invalid track key")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
