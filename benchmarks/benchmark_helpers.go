package benchmarks

import (
	"log/slog"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/workgroup/pool"
)

// executor runs a batch of tasks to completion with a fixed amount of
// parallelism.
type executor struct {
	name string
	run  func(workers int, tasks []func()) error
}

// quiet keeps benchmark output free of log records.
var quiet = pool.WithLogger(slog.New(slog.DiscardHandler))

// getAllExecutors returns the worker group alongside the usual alternatives
// for bounded parallel execution.
func getAllExecutors() []executor {
	return []executor{
		{name: "WorkerGroup", run: runWorkerGroup},
		{name: "WorkerGroup_LockedThreads", run: runWorkerGroupWith(pool.WithLockedThreads())},
		{name: "ChannelPool", run: runChannelPool},
		{name: "ErrgroupLimit", run: runErrgroupLimit},
		{name: "GoroutinePerTask", run: runGoroutinePerTask},
	}
}

// getBasicExecutors returns the executors that keep a fixed set of workers.
func getBasicExecutors() []executor {
	return []executor{
		{name: "WorkerGroup", run: runWorkerGroup},
		{name: "ChannelPool", run: runChannelPool},
	}
}

// runExecutorBenchmark runs a benchmark function for every executor
func runExecutorBenchmark(b *testing.B, executors []executor, benchFunc func(b *testing.B, e executor)) {
	for _, e := range executors {
		b.Run(e.name, func(b *testing.B) {
			benchFunc(b, e)
		})
	}
}

func runWorkerGroup(workers int, tasks []func()) error {
	return runWorkerGroupWith()(workers, tasks)
}

func runWorkerGroupWith(opts ...pool.Option) func(int, []func()) error {
	return func(workers int, tasks []func()) error {
		return pool.Run(workers, func(wg *pool.WorkerGroup) error {
			for _, t := range tasks {
				if err := wg.Submit(t); err != nil {
					return err
				}
			}
			return nil
		}, append([]pool.Option{quiet}, opts...)...)
	}
}

// runChannelPool is the classic fixed pool fed by a buffered channel.
func runChannelPool(workers int, tasks []func()) error {
	ch := make(chan func(), workers*2)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for t := range ch {
				t()
			}
		}()
	}

	for _, t := range tasks {
		ch <- t
	}
	close(ch)
	wg.Wait()
	return nil
}

func runErrgroupLimit(workers int, tasks []func()) error {
	var g errgroup.Group
	g.SetLimit(workers)
	for _, t := range tasks {
		g.Go(func() error {
			t()
			return nil
		})
	}
	return g.Wait()
}

func runGoroutinePerTask(_ int, tasks []func()) error {
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for _, t := range tasks {
		go func() {
			defer wg.Done()
			t()
		}()
	}
	wg.Wait()
	return nil
}

// =============================================================================
// Benchmark Workload Generators
// =============================================================================

// sink keeps the compiler from discarding computed results.
var sink sync.Map

// cpuBoundWork simulates a CPU-intensive operation
func cpuBoundWork(iterations, task int) func() {
	return func() {
		result := 0
		for i := range iterations {
			result += i * task
		}
		if result == -1 {
			sink.Store(task, result)
		}
	}
}

// ioBoundWork simulates an I/O operation with a delay
func ioBoundWork(delay time.Duration) func() {
	return func() {
		time.Sleep(delay)
	}
}

// mixedWork simulates a realistic workload with variable processing time
func mixedWork(task int) func() {
	return func() {
		// Simulate variable processing time (0-10ms)
		time.Sleep(time.Duration(task%10) * time.Millisecond)
		cpuBoundWork(1000, task)()
	}
}

// makeTasks builds n tasks from a workload generator.
func makeTasks(n int, gen func(i int) func()) []func() {
	tasks := make([]func(), n)
	for i := range tasks {
		tasks[i] = gen(i)
	}
	return tasks
}

// reportThroughput adds tasks/sec to the benchmark output.
func reportThroughput(b *testing.B, taskCount, workers int) {
	b.Helper()

	nsPerOp := float64(b.Elapsed().Nanoseconds()) / float64(b.N)
	tasksPerSec := (float64(taskCount) / nsPerOp) * 1e9

	b.ReportMetric(tasksPerSec, "tasks/sec")
	if workers > 0 {
		b.ReportMetric(tasksPerSec/float64(workers), "tasks/sec/worker")
	}
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}

	sorted := slices.Clone(latencies)
	slices.Sort(sorted)

	// Calculate index using the nearest-rank method
	index := max(int(math.Round(p*float64(len(sorted)-1))), 0)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
