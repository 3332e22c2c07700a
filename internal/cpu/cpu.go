// Package cpu binds worker goroutines to OS threads and, where the platform
// allows it, to individual CPU cores.
package cpu

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrPinningUnsupported is returned by Pin on platforms without a thread
// affinity API.
var ErrPinningUnsupported = errors.New("cpu pinning is not supported on " + runtime.GOOS)

// Binding describes how a worker's goroutine is tied to the OS.
type Binding struct {
	// LockThread wires the goroutine to a dedicated OS thread.
	LockThread bool
	// Pin additionally restricts that thread to a single core. Implies LockThread.
	Pin bool
}

// Bind applies b to the calling goroutine for the worker with the given id.
// The returned release func must be deferred by the worker; it is never nil,
// even on error.
func Bind(workerID int, b Binding) (release func(), err error) {
	if !b.LockThread && !b.Pin {
		return func() {}, nil
	}

	runtime.LockOSThread()
	release = runtime.UnlockOSThread

	if !b.Pin {
		return release, nil
	}

	core := CoreFor(workerID)
	if err := pinToCore(core); err != nil {
		return release, fmt.Errorf("pin worker %d to cpu %d: %w", workerID, core, err)
	}
	return release, nil
}

// CoreFor maps a worker id onto the range [0, NumCPU).
func CoreFor(workerID int) int {
	n := runtime.NumCPU()
	core := workerID % n
	if core < 0 {
		core += n
	}
	return core
}
