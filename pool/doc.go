// Package pool provides a fixed-size worker group that runs submitted
// closures on a bounded set of long-lived goroutines.
//
// The primary type is WorkerGroup. It owns N workers, an unbounded FIFO queue
// of pending tasks, and a mutex plus condition variable coordinating
// producers and workers. Submitting never blocks beyond a short critical
// section; shutting down waits until every queued task has run.
//
// # Basic Usage
//
//	wg, err := pool.New(4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer wg.Close()
//
//	for i := range 100 {
//	    wg.Submit(func() { process(i) })
//	}
//
// Or, scoped so the group cannot outlive the call:
//
//	err := pool.Run(4, func(wg *pool.WorkerGroup) error {
//	    for i := range 100 {
//	        wg.Submit(func() { process(i) })
//	    }
//	    return nil
//	})
//
// # Ordering
//
// Tasks leave the queue in the order Submit calls acquired the lock. With one
// worker they also run in that order; with more, tasks start in queue order
// but may finish in any order.
//
// # Shutdown
//
// Close and Shutdown stop new submissions (Submit returns ErrGroupClosed),
// wake every worker, and wait until the queue is empty and all workers have
// exited. Nothing that was queued is discarded. Shutdown takes a context to
// bound the wait; the drain itself continues regardless.
//
// # Task Failures
//
// Tasks have no way to report errors to the submitter. A panic escaping a
// task is recovered by the worker, logged with its stack trace, counted in
// Stats.Panicked, and passed to the WithOnTaskEnd hook as a *TaskPanicError.
// The worker keeps running, so the group never loses capacity.
//
// # Configuration Options
//
//   - WithName(name): Name used in logs, spans and metric labels
//   - WithTaskBuffer(n): Initial queue capacity (the queue still grows)
//   - WithLogger(logger): slog.Logger for lifecycle and failure records
//   - WithMetrics(reg): Register Prometheus collectors
//   - WithTracerProvider(tp): One OpenTelemetry span per task
//   - WithRateLimit(tasksPerSecond, burst): Throttle task starts
//   - WithBeforeTaskStart(fn), WithOnTaskEnd(fn): Per-task hooks
//   - WithLockedThreads(): One dedicated OS thread per worker
//   - WithCPUPinning(): Dedicated threads pinned to cores
package pool
