package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/workgroup/internal/cpu"
	"github.com/utkarsh5026/workgroup/internal/queue"
)

// Task is a unit of work. It takes no arguments and returns nothing; any
// state it needs is captured by the closure.
type Task func()

// State is the lifecycle stage of a WorkerGroup.
type State int

const (
	// StateRunning accepts submissions and executes tasks.
	StateRunning State = iota
	// StateShuttingDown rejects submissions while workers drain the queue.
	StateShuttingDown
	// StateTerminated means every worker has exited.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting down"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats is a point-in-time snapshot of a group's counters.
type Stats struct {
	Workers   int    // Fixed worker count
	Pending   int    // Tasks waiting in the queue
	Active    int    // Tasks currently running
	Submitted uint64 // Tasks accepted by Submit
	Completed uint64 // Tasks that finished running, panicked ones included
	Panicked  uint64 // Tasks that panicked or exited their goroutine
}

// entry is a queued task with its submission bookkeeping.
type entry struct {
	seq      uint64
	task     Task
	queuedAt time.Time
}

// bindThread is replaced in tests to simulate thread setup failures.
var bindThread = cpu.Bind

// WorkerGroup is a fixed-size pool of long-lived workers fed by one
// unbounded FIFO queue.
//
// Producers and workers share a single mutex. Submit appends under the lock
// and signals one idle worker; workers wait on a condition variable until the
// queue is non-empty or the group is shutting down, pop the head, and run it
// with the lock released. A worker only exits once the group is shutting down
// and the queue is empty, so shutdown always drains submitted work.
type WorkerGroup struct {
	id      string
	name    string
	workers int
	conf    *config

	mu        sync.Mutex
	cond      *sync.Cond
	queue     *queue.FIFO[entry]
	running   bool
	state     State
	active    int
	submitted uint64
	completed uint64
	panicked  uint64

	eg        errgroup.Group
	closeOnce sync.Once
	done      chan struct{} // Closed when all workers have finished

	logger  *slog.Logger
	metrics *metrics
	tracer  trace.Tracer
}

// New starts a group of workers goroutines and returns once all of them are
// waiting for work.
//
// A non-positive count is rejected with ErrInvalidWorkerCount. If a worker
// cannot set up the OS thread binding requested by WithLockedThreads or
// WithCPUPinning, the workers already started are shut down and New returns
// an error wrapping ErrWorkerStart.
//
// Example:
//
//	wg, err := pool.New(4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer wg.Close()
//
//	for _, f := range files {
//	    wg.Submit(func() { compress(f) })
//	}
func New(workers int, opts ...Option) (*WorkerGroup, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWorkerCount, workers)
	}

	cfg := createConfig(opts...)
	id := uuid.NewString()
	name := cfg.name
	if name == "" {
		name = id
	}

	g := &WorkerGroup{
		id:      id,
		name:    name,
		workers: workers,
		conf:    cfg,
		queue:   queue.NewFIFO[entry](cfg.taskBuffer),
		running: true,
		state:   StateRunning,
		done:    make(chan struct{}),
		logger:  cfg.logger.With("group", name),
	}
	g.cond = sync.NewCond(&g.mu)

	if cfg.registerer != nil {
		m, err := newMetrics(cfg.registerer, name)
		if err != nil {
			return nil, err
		}
		g.metrics = m
	}

	if cfg.tracerProvider != nil {
		g.tracer = cfg.tracerProvider.Tracer(tracerName)
	}

	ready := make(chan error, workers)
	for i := range workers {
		g.spawn(i, ready)
	}

	go func() {
		_ = g.eg.Wait()
		g.terminate()
	}()

	var startErr error
	for range workers {
		if err := <-ready; err != nil && startErr == nil {
			startErr = err
		}
	}

	if startErr != nil {
		_ = g.Close()
		g.metrics.unregister(cfg.registerer)
		return nil, fmt.Errorf("%w: %w", ErrWorkerStart, startErr)
	}

	g.logger.Debug("worker group started", "id", id, "workers", workers)
	return g, nil
}

// Run creates a group, passes it to fn and closes it when fn returns, so
// every task fn submitted has finished by the time Run returns. The group is
// closed even if fn panics; the panic resumes after the drain.
//
// Example:
//
//	err := pool.Run(8, func(wg *pool.WorkerGroup) error {
//	    for _, u := range urls {
//	        if err := wg.Submit(func() { fetch(u) }); err != nil {
//	            return err
//	        }
//	    }
//	    return nil
//	})
func Run(workers int, fn func(*WorkerGroup) error, opts ...Option) error {
	g, err := New(workers, opts...)
	if err != nil {
		return err
	}
	defer g.Close()

	return fn(g)
}

// Submit appends task to the queue and wakes one idle worker. It is safe for
// concurrent use and only blocks for the brief critical section; tasks from
// concurrent callers are queued in the order the callers take the lock.
//
// Submit returns ErrNilTask for a nil task and ErrGroupClosed once shutdown
// has begun; otherwise it always succeeds. Whatever happens inside the task
// is not reported back to the caller.
func (g *WorkerGroup) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return ErrGroupClosed
	}

	g.submitted++
	seq := g.submitted
	g.queue.Push(entry{seq: seq, task: task, queuedAt: time.Now()})
	g.metrics.taskSubmitted()
	g.mu.Unlock()

	// One task can only ever need one worker.
	g.cond.Signal()

	debugLog("group %s: submitted task %d", g.name, seq)
	return nil
}

// Close stops accepting tasks, waits for the workers to run everything
// already queued, and returns once every worker has exited. It is safe to
// call more than once; later calls just wait for the same drain.
//
// Close must not be called from inside a task of the same group: the
// calling worker would wait for itself.
func (g *WorkerGroup) Close() error {
	return g.Shutdown(context.Background())
}

// Shutdown is Close with a deadline on the wait. If ctx ends first it
// returns an error wrapping ErrShutdownTimeout and ctx.Err(); the workers keep
// draining the queue in the background and a later Close or Shutdown can wait
// for them again.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	if err := wg.Shutdown(ctx); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
func (g *WorkerGroup) Shutdown(ctx context.Context) error {
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.running = false
		if g.state == StateRunning {
			g.state = StateShuttingDown
		}
		pending := g.queue.Len()
		g.mu.Unlock()

		// Every worker has to re-check its exit condition.
		g.cond.Broadcast()

		g.logger.Debug("worker group shutting down", "pending", pending)
	})

	return waitUntil(ctx, g.done)
}

// Done returns a channel that is closed once every worker has exited.
func (g *WorkerGroup) Done() <-chan struct{} {
	return g.done
}

// ID returns the group's generated identifier.
func (g *WorkerGroup) ID() string {
	return g.id
}

// Name returns the name given with WithName, or the ID.
func (g *WorkerGroup) Name() string {
	return g.name
}

// Workers returns the fixed number of workers.
func (g *WorkerGroup) Workers() int {
	return g.workers
}

// Pending returns the number of queued tasks no worker has picked up yet.
func (g *WorkerGroup) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.Len()
}

// State returns the group's lifecycle stage.
func (g *WorkerGroup) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Stats returns a consistent snapshot of the group's counters.
func (g *WorkerGroup) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Stats{
		Workers:   g.workers,
		Pending:   g.queue.Len(),
		Active:    g.active,
		Submitted: g.submitted,
		Completed: g.completed,
		Panicked:  g.panicked,
	}
}

// terminate runs once after the last worker has returned.
func (g *WorkerGroup) terminate() {
	g.mu.Lock()
	g.state = StateTerminated
	completed, panicked := g.completed, g.panicked
	g.mu.Unlock()

	close(g.done)

	g.logger.Debug("worker group terminated", "completed", completed, "panicked", panicked)
}
