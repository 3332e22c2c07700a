package pool

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utkarsh5026/workgroup/pool"

// spawn starts worker id on the errgroup. ready is non-nil only for the
// initial workers started by New, which report their thread setup result on
// it; replacement workers log the failure and run unbound instead.
func (g *WorkerGroup) spawn(id int, ready chan<- error) {
	g.eg.Go(func() error {
		release, err := bindThread(id, g.conf.binding)
		defer release()

		if ready != nil {
			ready <- err
			if err != nil {
				return nil
			}
		} else if err != nil {
			g.logger.Warn("replacement worker running without thread binding", "worker", id, "error", err)
		}

		g.metrics.workerStarted()
		defer g.metrics.workerStopped()

		g.loop(id)
		return nil
	})
}

// loop is the worker event loop: take the next task, run it, repeat until
// the group is shut down and drained.
func (g *WorkerGroup) loop(id int) {
	debugLog("group %s: worker %d started", g.name, id)

	for {
		e, ok := g.next()
		if !ok {
			debugLog("group %s: worker %d exiting", g.name, id)
			return
		}
		g.execute(id, e)
	}
}

// next blocks until a task is available or the group is shut down with an
// empty queue. ok is false only in the latter case.
func (g *WorkerGroup) next() (e entry, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Re-check after every wake-up: a signal may be consumed by another
	// worker before this one reacquires the lock.
	for g.running && g.queue.Len() == 0 {
		g.cond.Wait()
	}

	e, ok = g.queue.Pop()
	if !ok {
		return e, false
	}

	g.active++
	g.metrics.taskStarted(time.Since(e.queuedAt))
	return e, true
}

// execute runs one task outside the lock.
//
// A panic is recovered here so the worker survives and the group keeps its
// capacity. A task that calls runtime.Goexit takes the worker goroutine down
// with it; a replacement worker with the same id is started before it goes.
func (g *WorkerGroup) execute(id int, e entry) {
	ctx, span := g.startSpan(id, e)
	start := time.Now()
	returned := false

	defer func() {
		var err error
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = &TaskPanicError{Value: r, Stack: buf[:n]}
		} else if !returned {
			err = ErrTaskExited
			g.spawn(id, nil)
		}
		g.finish(id, e, time.Since(start), span, err)
	}()

	if g.conf.rateLimiter != nil {
		if err := g.conf.rateLimiter.Wait(ctx); err != nil {
			g.logger.Warn("rate limiter wait failed", "worker", id, "task", e.seq, "error", err)
		}
	}

	if g.conf.beforeTaskStart != nil {
		g.runHook("before task start", id, e.seq, func() { g.conf.beforeTaskStart(id, e.seq) })
	}

	e.task()
	returned = true
}

// finish records the outcome of a task.
func (g *WorkerGroup) finish(id int, e entry, elapsed time.Duration, span trace.Span, err error) {
	g.mu.Lock()
	g.active--
	g.completed++
	if err != nil {
		g.panicked++
	}
	g.metrics.taskFinished(elapsed, err != nil)
	g.mu.Unlock()

	if err != nil {
		attrs := []any{"worker", id, "task", e.seq, "error", err}
		if pe, ok := err.(*TaskPanicError); ok {
			attrs = append(attrs, "stack", string(pe.Stack))
		}
		g.logger.Error("task failed", attrs...)
	}

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}

	if g.conf.onTaskEnd != nil {
		g.runHook("task end", id, e.seq, func() { g.conf.onTaskEnd(id, e.seq, elapsed, err) })
	}
}

// runHook calls a user hook with its own recovery. A panicking hook is
// logged and never affects the task or the worker.
func (g *WorkerGroup) runHook(name string, id int, seq uint64, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			g.logger.Error("hook panicked", "hook", name, "worker", id, "task", seq, "panic", r, "stack", string(buf[:n]))
		}
	}()
	fn()
}

// startSpan opens the task span when tracing is enabled. The returned span
// is nil otherwise.
func (g *WorkerGroup) startSpan(id int, e entry) (context.Context, trace.Span) {
	ctx := context.Background()
	if g.tracer == nil {
		return ctx, nil
	}

	return g.tracer.Start(ctx, "workgroup.task",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("workgroup.group", g.name),
			attribute.Int("workgroup.worker", id),
			attribute.Int64("workgroup.task.seq", int64(e.seq)), // #nosec G115 -- sequence numbers stay far below MaxInt64
			attribute.Float64("workgroup.task.queue_wait_ms", float64(time.Since(e.queuedAt).Microseconds())/1000),
		),
	)
}
