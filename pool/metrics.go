package pool

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "workgroup"

// metrics holds the Prometheus collectors of one group.
// A nil *metrics is valid and records nothing.
type metrics struct {
	submitted prometheus.Counter
	completed prometheus.Counter
	panicked  prometheus.Counter
	queued    prometheus.Gauge
	active    prometheus.Gauge
	workers   prometheus.Gauge
	duration  prometheus.Histogram
	queueWait prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer, group string) (*metrics, error) {
	labels := prometheus.Labels{"group": group}

	m := &metrics{
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "tasks_submitted_total",
			Help:        "Total number of tasks accepted by Submit",
			ConstLabels: labels,
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "tasks_completed_total",
			Help:        "Total number of tasks that finished running, panicked ones included",
			ConstLabels: labels,
		}),
		panicked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "tasks_panicked_total",
			Help:        "Total number of tasks that panicked or exited their goroutine",
			ConstLabels: labels,
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "tasks_queued",
			Help:        "Number of tasks waiting for a worker",
			ConstLabels: labels,
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "tasks_active",
			Help:        "Number of tasks currently running",
			ConstLabels: labels,
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "workers",
			Help:        "Number of live worker goroutines",
			ConstLabels: labels,
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "task_duration_seconds",
			Help:        "Task execution time in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "task_queue_wait_seconds",
			Help:        "Time between Submit and the start of execution in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
			ConstLabels: labels,
		}),
	}

	collectors := m.collectors()
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, prev := range collectors[:i] {
				reg.Unregister(prev)
			}
			return nil, fmt.Errorf("register metrics for group %q: %w", group, err)
		}
	}

	return m, nil
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.submitted, m.completed, m.panicked,
		m.queued, m.active, m.workers,
		m.duration, m.queueWait,
	}
}

// unregister removes the collectors so a group name can be reused.
func (m *metrics) unregister(reg prometheus.Registerer) {
	if m == nil {
		return
	}
	for _, c := range m.collectors() {
		reg.Unregister(c)
	}
}

func (m *metrics) taskSubmitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
	m.queued.Inc()
}

func (m *metrics) taskStarted(wait time.Duration) {
	if m == nil {
		return
	}
	m.queued.Dec()
	m.active.Inc()
	m.queueWait.Observe(wait.Seconds())
}

func (m *metrics) taskFinished(elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.completed.Inc()
	m.duration.Observe(elapsed.Seconds())
	if failed {
		m.panicked.Inc()
	}
}

func (m *metrics) workerStarted() {
	if m == nil {
		return
	}
	m.workers.Inc()
}

func (m *metrics) workerStopped() {
	if m == nil {
		return
	}
	m.workers.Dec()
}
