package foreman

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsTracer exports scheduler events as Prometheus metrics. Aggregations
// across worlds are left to the Prometheus side.
type MetricsTracer struct {
	cycles     prometheus.Counter
	steals     *prometheus.CounterVec
	runs       *prometheus.CounterVec
	partitions prometheus.Counter
	marks      prometheus.Counter
	unmarks    prometheus.Counter
}

// NewMetricsTracer creates labeled collectors and registers them with the
// registry. Passing a nil registry disables registration, which is only
// useful in tests.
func NewMetricsTracer(reg *prometheus.Registry) *MetricsTracer {
	m := &MetricsTracer{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foreman",
			Name:      "cycles_total",
			Help:      "Number of completed execution cycles.",
		}),
		steals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foreman",
			Name:      "steals_total",
			Help:      "Number of steal attempts by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foreman",
			Name:      "system_runs_total",
			Help:      "Number of system executions by kind.",
		}, []string{"kind"}),
		partitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foreman",
			Name:      "partitions_total",
			Help:      "Number of partition completions.",
		}),
		marks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foreman",
			Name:      "marks_runnable_total",
			Help:      "Number of nodes marked runnable.",
		}),
		unmarks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "foreman",
			Name:      "unmarks_runnable_total",
			Help:      "Number of nodes unmarked runnable by exclusion.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.cycles, m.steals, m.runs, m.partitions, m.marks, m.unmarks)
	}
	return m
}

func (m *MetricsTracer) StartCycle() {}

func (m *MetricsTracer) EndCycle() {
	m.cycles.Inc()
}

func (m *MetricsTracer) StealReturnComplete(Thread) {
	m.steals.WithLabelValues("complete").Inc()
}

func (m *MetricsTracer) StealReturnPending(Thread) {
	m.steals.WithLabelValues("pending").Inc()
}

func (m *MetricsTracer) MarkRunnable(ScheduleNode) {
	m.marks.Inc()
}

func (m *MetricsTracer) UnmarkRunnable(ScheduleNode) {
	m.unmarks.Inc()
}

func (m *MetricsTracer) StartRunSendable(Thread, ScheduleNode, string) {}

func (m *MetricsTracer) EndRunSendable(Thread, ScheduleNode, string) {
	m.runs.WithLabelValues("sendable").Inc()
}

func (m *MetricsTracer) StartRunUnsendable(Thread, ScheduleNode, string) {}

func (m *MetricsTracer) EndRunUnsendable(Thread, ScheduleNode, string) {
	m.runs.WithLabelValues("unsendable").Inc()
}

func (m *MetricsTracer) Partition(ScheduleNode, string) {
	m.partitions.Inc()
}
