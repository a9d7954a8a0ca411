package foreman

import (
	"fmt"

	"go.uber.org/zap"
)

// NodeKind distinguishes the three kinds of scheduler nodes.
type NodeKind uint8

const (
	// SendSystemNode is a thread-safe system, runnable on any thread.
	SendSystemNode NodeKind = iota
	// UnsendSystemNode is a main-thread-only system.
	UnsendSystemNode
	// PartitionNode is a named synchronization point owning no work.
	PartitionNode
)

func (k NodeKind) String() string {
	switch k {
	case SendSystemNode:
		return "send"
	case UnsendSystemNode:
		return "unsend"
	default:
		return "partition"
	}
}

// ScheduleNode identifies one node of the scheduling topology.
type ScheduleNode struct {
	Kind  NodeKind
	Index int
}

func (n ScheduleNode) String() string {
	return fmt.Sprintf("%s(%d)", n.Kind, n.Index)
}

// Thread identifies the executor thread an event happened on. ThreadMain is
// the reserved main thread; worker threads count from zero.
type Thread int

// ThreadMain is the main executor thread, the only one that may run
// unsendable systems.
const ThreadMain Thread = -1

func (t Thread) String() string {
	if t == ThreadMain {
		return "main"
	}
	return fmt.Sprintf("worker(%d)", int(t))
}

// Tracer records the events of an execution cycle, for profiling and
// testing. Implementations must tolerate concurrent calls from multiple
// executor threads.
type Tracer interface {
	// StartCycle marks the beginning of a cycle.
	StartCycle()
	// EndCycle marks the end of a cycle.
	EndCycle()
	// StealReturnComplete records a steal attempt finding all work done.
	StealReturnComplete(thread Thread)
	// StealReturnPending records a steal attempt finding an empty pool
	// while work remains.
	StealReturnPending(thread Thread)
	// MarkRunnable records a node entering a runnable pool.
	MarkRunnable(node ScheduleNode)
	// UnmarkRunnable records a node leaving a runnable pool because an
	// exclusive node was stolen.
	UnmarkRunnable(node ScheduleNode)
	// StartRunSendable records a thread-safe system starting.
	StartRunSendable(thread Thread, node ScheduleNode, debugName string)
	// EndRunSendable records a thread-safe system finishing.
	EndRunSendable(thread Thread, node ScheduleNode, debugName string)
	// StartRunUnsendable records a main-thread system starting.
	StartRunUnsendable(thread Thread, node ScheduleNode, debugName string)
	// EndRunUnsendable records a main-thread system finishing.
	EndRunUnsendable(thread Thread, node ScheduleNode, debugName string)
	// Partition records a partition completing.
	Partition(node ScheduleNode, name string)
}

// NoopTracer discards every event. Embed it to implement a partial tracer.
type NoopTracer struct{}

func (NoopTracer) StartCycle()                                     {}
func (NoopTracer) EndCycle()                                       {}
func (NoopTracer) StealReturnComplete(Thread)                      {}
func (NoopTracer) StealReturnPending(Thread)                       {}
func (NoopTracer) MarkRunnable(ScheduleNode)                       {}
func (NoopTracer) UnmarkRunnable(ScheduleNode)                     {}
func (NoopTracer) StartRunSendable(Thread, ScheduleNode, string)   {}
func (NoopTracer) EndRunSendable(Thread, ScheduleNode, string)     {}
func (NoopTracer) StartRunUnsendable(Thread, ScheduleNode, string) {}
func (NoopTracer) EndRunUnsendable(Thread, ScheduleNode, string)   {}
func (NoopTracer) Partition(ScheduleNode, string)                  {}

// MultiTracer fans every event out to its children in order.
type MultiTracer struct {
	tracers []Tracer
}

// NewMultiTracer aggregates multiple tracers into one sink.
func NewMultiTracer(tracers ...Tracer) MultiTracer {
	return MultiTracer{tracers: tracers}
}

func (m MultiTracer) StartCycle() {
	for _, t := range m.tracers {
		t.StartCycle()
	}
}

func (m MultiTracer) EndCycle() {
	for _, t := range m.tracers {
		t.EndCycle()
	}
}

func (m MultiTracer) StealReturnComplete(th Thread) {
	for _, t := range m.tracers {
		t.StealReturnComplete(th)
	}
}

func (m MultiTracer) StealReturnPending(th Thread) {
	for _, t := range m.tracers {
		t.StealReturnPending(th)
	}
}

func (m MultiTracer) MarkRunnable(n ScheduleNode) {
	for _, t := range m.tracers {
		t.MarkRunnable(n)
	}
}

func (m MultiTracer) UnmarkRunnable(n ScheduleNode) {
	for _, t := range m.tracers {
		t.UnmarkRunnable(n)
	}
}

func (m MultiTracer) StartRunSendable(th Thread, n ScheduleNode, name string) {
	for _, t := range m.tracers {
		t.StartRunSendable(th, n, name)
	}
}

func (m MultiTracer) EndRunSendable(th Thread, n ScheduleNode, name string) {
	for _, t := range m.tracers {
		t.EndRunSendable(th, n, name)
	}
}

func (m MultiTracer) StartRunUnsendable(th Thread, n ScheduleNode, name string) {
	for _, t := range m.tracers {
		t.StartRunUnsendable(th, n, name)
	}
}

func (m MultiTracer) EndRunUnsendable(th Thread, n ScheduleNode, name string) {
	for _, t := range m.tracers {
		t.EndRunUnsendable(th, n, name)
	}
}

func (m MultiTracer) Partition(n ScheduleNode, name string) {
	for _, t := range m.tracers {
		t.Partition(n, name)
	}
}

// LogTracer logs every scheduler event through a zap logger.
type LogTracer struct {
	log *zap.Logger
}

// NewLogTracer wraps a zap logger as a tracer. A nil logger logs nowhere.
func NewLogTracer(log *zap.Logger) LogTracer {
	if log == nil {
		log = zap.NewNop()
	}
	return LogTracer{log: log}
}

func (l LogTracer) StartCycle() {
	l.log.Debug("start_cycle")
}

func (l LogTracer) EndCycle() {
	l.log.Debug("end_cycle")
}

func (l LogTracer) StealReturnComplete(th Thread) {
	l.log.Debug("steal_return_complete", zap.Stringer("thread", th))
}

func (l LogTracer) StealReturnPending(th Thread) {
	l.log.Debug("steal_return_pending", zap.Stringer("thread", th))
}

func (l LogTracer) MarkRunnable(n ScheduleNode) {
	l.log.Debug("mark_runnable", zap.Stringer("node", n))
}

func (l LogTracer) UnmarkRunnable(n ScheduleNode) {
	l.log.Debug("unmark_runnable", zap.Stringer("node", n))
}

func (l LogTracer) StartRunSendable(th Thread, n ScheduleNode, name string) {
	l.log.Debug("start_run_sendable",
		zap.Stringer("thread", th), zap.Stringer("node", n), zap.String("system", name))
}

func (l LogTracer) EndRunSendable(th Thread, n ScheduleNode, name string) {
	l.log.Debug("end_run_sendable",
		zap.Stringer("thread", th), zap.Stringer("node", n), zap.String("system", name))
}

func (l LogTracer) StartRunUnsendable(th Thread, n ScheduleNode, name string) {
	l.log.Debug("start_run_unsendable",
		zap.Stringer("thread", th), zap.Stringer("node", n), zap.String("system", name))
}

func (l LogTracer) EndRunUnsendable(th Thread, n ScheduleNode, name string) {
	l.log.Debug("end_run_unsendable",
		zap.Stringer("thread", th), zap.Stringer("node", n), zap.String("system", name))
}

func (l LogTracer) Partition(n ScheduleNode, name string) {
	l.log.Debug("partition", zap.Stringer("node", n), zap.String("partition", name))
}
