package pool

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/utkarsh5026/workgroup/internal/cpu"
)

func TestWorkerGroup_PanicRecovery(t *testing.T) {
	t.Run("worker survives a panicking task", func(t *testing.T) {
		g := newTestGroup(t, 1)

		var counter atomic.Int32
		_ = g.Submit(func() { panic("task exploded") })
		for range 10 {
			_ = g.Submit(func() { counter.Add(1) })
		}
		_ = g.Close()

		if counter.Load() != 10 {
			t.Errorf("counter = %d, want 10; the single worker must survive the panic", counter.Load())
		}

		s := g.Stats()
		if s.Panicked != 1 || s.Completed != 11 {
			t.Errorf("Stats() = %+v, want Panicked=1 Completed=11", s)
		}
	})

	t.Run("capacity preserved after many panics", func(t *testing.T) {
		const workers = 3
		g := newTestGroup(t, workers)

		for range 50 {
			_ = g.Submit(func() { panic(errors.New("always fails")) })
		}

		// All workers must still be able to run concurrently.
		var ready sync.WaitGroup
		ready.Add(workers)
		release := make(chan struct{})
		for range workers {
			_ = g.Submit(func() {
				ready.Done()
				<-release
			})
		}

		done := make(chan struct{})
		go func() {
			ready.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("not every worker is alive after panicking tasks")
		}
		close(release)
	})

	t.Run("panic logged with stack", func(t *testing.T) {
		var buf syncBuffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		g := newTestGroup(t, 1, WithLogger(logger), WithName("logs"))
		_ = g.Submit(func() { panic("kaboom") })
		_ = g.Close()

		out := buf.String()
		for _, want := range []string{"level=ERROR", "task failed", "kaboom", "group=logs", "worker=0", "task=1", "stack="} {
			if !strings.Contains(out, want) {
				t.Errorf("log output missing %q:\n%s", want, out)
			}
		}
	})
}

func TestWorkerGroup_Goexit(t *testing.T) {
	g := newTestGroup(t, 1)

	var counter atomic.Int32
	var endErr error
	var mu sync.Mutex

	g2 := newTestGroup(t, 1, WithOnTaskEnd(func(_ int, seq uint64, _ time.Duration, err error) {
		if seq == 1 {
			mu.Lock()
			endErr = err
			mu.Unlock()
		}
	}))

	for _, grp := range []*WorkerGroup{g, g2} {
		_ = grp.Submit(func() { runtime.Goexit() })
		for range 5 {
			_ = grp.Submit(func() { counter.Add(1) })
		}
		if err := grp.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}

	if counter.Load() != 10 {
		t.Errorf("counter = %d, want 10; a replacement worker must take over", counter.Load())
	}
	if s := g.Stats(); s.Panicked != 1 || s.Completed != 6 {
		t.Errorf("Stats() = %+v, want Panicked=1 Completed=6", s)
	}

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(endErr, ErrTaskExited) {
		t.Errorf("OnTaskEnd error = %v, want %v", endErr, ErrTaskExited)
	}
}

func TestTaskPanicError(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name      string
		value     any
		wantMsg   string
		wantCause error
	}{
		{name: "string value", value: "boom", wantMsg: "task panic: boom"},
		{name: "error value", value: cause, wantMsg: "task panic: disk full", wantCause: cause},
		{name: "wrapped error value", value: fmt.Errorf("write: %w", cause), wantMsg: "task panic: write: disk full", wantCause: cause},
		{name: "int value", value: 7, wantMsg: "task panic: 7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := error(&TaskPanicError{Value: tt.value})

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
			}
			if !errors.Is(err, ErrTaskPanic) {
				t.Error("errors.Is(err, ErrTaskPanic) = false")
			}
			if tt.wantCause != nil && !errors.Is(err, tt.wantCause) {
				t.Errorf("errors.Is(err, %v) = false", tt.wantCause)
			}
			if errors.Is(err, ErrTaskExited) {
				t.Error("a panic must not match ErrTaskExited")
			}
		})
	}
}

func TestNew_WorkerStartFailure(t *testing.T) {
	orig := bindThread
	t.Cleanup(func() { bindThread = orig })

	refused := errors.New("affinity refused")
	var calls atomic.Int32
	bindThread = func(id int, b cpu.Binding) (func(), error) {
		calls.Add(1)
		if id == 2 {
			return func() {}, refused
		}
		return func() {}, nil
	}

	g, err := New(4, WithCPUPinning(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if g != nil {
		t.Error("New should return a nil group when a worker fails to start")
	}
	if !errors.Is(err, ErrWorkerStart) {
		t.Errorf("New() error = %v, want %v", err, ErrWorkerStart)
	}
	if !errors.Is(err, refused) {
		t.Errorf("New() error = %v, should wrap the binding error", err)
	}
	if calls.Load() != 4 {
		t.Errorf("bind called %d times, want 4", calls.Load())
	}
}

func TestNew_BindingPassedToWorkers(t *testing.T) {
	orig := bindThread
	t.Cleanup(func() { bindThread = orig })

	var mu sync.Mutex
	got := map[int]cpu.Binding{}
	bindThread = func(id int, b cpu.Binding) (func(), error) {
		mu.Lock()
		got[id] = b
		mu.Unlock()
		return func() {}, nil
	}

	tests := []struct {
		name string
		opt  Option
		want cpu.Binding
	}{
		{name: "default", opt: WithName("default"), want: cpu.Binding{}},
		{name: "locked threads", opt: WithLockedThreads(), want: cpu.Binding{LockThread: true}},
		{name: "cpu pinning", opt: WithCPUPinning(), want: cpu.Binding{LockThread: true, Pin: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mu.Lock()
			clear(got)
			mu.Unlock()

			g := newTestGroup(t, 2, tt.opt)
			_ = g.Close()

			mu.Lock()
			defer mu.Unlock()
			if len(got) != 2 {
				t.Fatalf("bind called for %d workers, want 2", len(got))
			}
			for id, b := range got {
				if b != tt.want {
					t.Errorf("worker %d binding = %+v, want %+v", id, b, tt.want)
				}
			}
		})
	}
}

func TestWorkerGroup_LockedThreads(t *testing.T) {
	// Real binding, no stubs: tasks must still run on locked workers.
	g := newTestGroup(t, 2, WithLockedThreads())

	var counter atomic.Int32
	for range 100 {
		_ = g.Submit(func() { counter.Add(1) })
	}
	_ = g.Close()

	if counter.Load() != 100 {
		t.Errorf("counter = %d, want 100", counter.Load())
	}
}
