package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWorkerCount is returned by New when the worker count is not positive.
	ErrInvalidWorkerCount = errors.New("worker count must be positive")

	// ErrWorkerStart is returned by New when a worker could not set up its thread.
	ErrWorkerStart = errors.New("worker failed to start")

	// ErrNilTask is returned by Submit for a nil task.
	ErrNilTask = errors.New("task cannot be nil")

	// ErrGroupClosed is returned by Submit once shutdown has begun.
	ErrGroupClosed = errors.New("worker group is shut down")

	// ErrShutdownTimeout is returned by Shutdown when its context ends before
	// the workers have drained the queue.
	ErrShutdownTimeout = errors.New("error in shutting down: timeout reached")

	// ErrTaskPanic matches every *TaskPanicError.
	ErrTaskPanic = errors.New("task panicked")

	// ErrTaskExited is reported to hooks when a task ends its goroutine with
	// runtime.Goexit.
	ErrTaskExited = errors.New("task called runtime.Goexit")
)

// TaskPanicError carries a panic recovered from a task.
type TaskPanicError struct {
	Value any
	Stack []byte
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("task panic: %v", e.Value)
}

// Is reports ErrTaskPanic as a match so callers can use errors.Is.
func (e *TaskPanicError) Is(target error) bool {
	return target == ErrTaskPanic
}

// Unwrap exposes the panic value when it was itself an error.
func (e *TaskPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
