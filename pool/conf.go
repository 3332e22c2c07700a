package pool

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/workgroup/internal/cpu"
)

// Option is a functional option for configuring a WorkerGroup.
type Option func(*config)

type config struct {
	name            string
	taskBuffer      int
	logger          *slog.Logger
	registerer      prometheus.Registerer
	tracerProvider  trace.TracerProvider
	rateLimiter     *rate.Limiter
	beforeTaskStart func(workerID int, seq uint64)
	onTaskEnd       func(workerID int, seq uint64, elapsed time.Duration, err error)
	binding         cpu.Binding
}

func createConfig(opts ...Option) *config {
	cfg := &config{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// WithName sets the name used for the group in logs, spans and metric labels.
// If not specified, the group's generated ID is used.
func WithName(name string) Option {
	return func(cfg *config) {
		if name != "" {
			cfg.name = name
		}
	}
}

// WithTaskBuffer sets the initial capacity of the task queue.
// The queue still grows without limit; this only avoids early reallocations
// when a burst of submissions is expected.
func WithTaskBuffer(size int) Option {
	return func(cfg *config) {
		if size > 0 {
			cfg.taskBuffer = size
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics registers the group's Prometheus collectors with reg.
// Each group is labelled with its name, so groups sharing a registry must
// have distinct names.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(cfg *config) {
		cfg.registerer = reg
	}
}

// WithTracerProvider records one span per executed task.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		cfg.tracerProvider = tp
	}
}

// WithRateLimit caps how fast workers start tasks.
// tasksPerSecond specifies the maximum number of tasks started per second.
// burst specifies how many tasks may start back to back.
// Submissions are never throttled; excess work waits in the queue.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *config) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithBeforeTaskStart sets a hook that runs on the worker right before each
// task. seq is the task's 1-based submission number. A panic in the hook is
// logged and the task still runs.
func WithBeforeTaskStart(fn func(workerID int, seq uint64)) Option {
	return func(cfg *config) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd sets a hook that runs on the worker after each task.
// err is nil unless the task panicked (ErrTaskPanic) or exited its
// goroutine (ErrTaskExited). A panic in the hook is logged and the worker
// keeps running.
func WithOnTaskEnd(fn func(workerID int, seq uint64, elapsed time.Duration, err error)) Option {
	return func(cfg *config) {
		cfg.onTaskEnd = fn
	}
}

// WithLockedThreads gives every worker its own OS thread for its lifetime.
// Useful when tasks rely on thread-local state (cgo, OpenGL, namespaces).
func WithLockedThreads() Option {
	return func(cfg *config) {
		cfg.binding.LockThread = true
	}
}

// WithCPUPinning locks every worker to its own OS thread and pins worker i to
// CPU i mod NumCPU. New fails with ErrWorkerStart if the platform refuses.
func WithCPUPinning() Option {
	return func(cfg *config) {
		cfg.binding.LockThread = true
		cfg.binding.Pin = true
	}
}
