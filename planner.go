package foreman

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/TheBitDrifter/bark"
)

type wakeupState uint8

const (
	// stateBlocked nodes wait for blocked > 0 dependencies or exclusions.
	stateBlocked wakeupState = iota
	// statePending systems sit in a runnable pool; pending partitions do
	// not exist (a partition with no blockers completes in place).
	statePending
	// stateStarted systems are executing.
	stateStarted
	// stateCompleted nodes are done for the cycle.
	stateCompleted
)

func (s wakeupState) String() string {
	switch s {
	case stateBlocked:
		return "Blocked"
	case statePending:
		return "Pending"
	case stateStarted:
		return "Started"
	default:
		return "Completed"
	}
}

type nodeState struct {
	state   wakeupState
	blocked int
}

// stealStatus is the outcome of a steal attempt.
type stealStatus uint8

const (
	// stealReady hands the caller a runnable system index.
	stealReady stealStatus = iota
	// stealPending means the pool is empty but systems remain.
	stealPending
	// stealCycleComplete means every system of the cycle has completed.
	stealCycleComplete
)

// planner is the tick-local scheduling state. A fresh planner is cloned from
// the topology's initial planner at the start of each cycle.
type planner struct {
	// states tracks the wakeup state per node. Started nodes stay in the
	// map; non-started nodes with zero blockers may be re-blocked when an
	// exclusion starts.
	states map[ScheduleNode]nodeState

	// sendRunnable and unsendRunnable hold the indices of systems that may
	// be runnable, stolen smallest-index first.
	sendRunnable   *roaring.Bitmap
	unsendRunnable *roaring.Bitmap

	// remaining counts not-yet-completed systems.
	remaining int
}

func (p *planner) clone() *planner {
	states := make(map[ScheduleNode]nodeState, len(p.states))
	for n, s := range p.states {
		states[n] = s
	}
	return &planner{
		states:         states,
		sendRunnable:   p.sendRunnable.Clone(),
		unsendRunnable: p.unsendRunnable.Clone(),
		remaining:      p.remaining,
	}
}

func (p *planner) stealSend(tr Tracer, thread Thread, topo *topology) (stealStatus, int) {
	return p.steal(tr, thread, topo, p.sendRunnable, SendSystemNode)
}

func (p *planner) stealUnsend(tr Tracer, thread Thread, topo *topology) (stealStatus, int) {
	return p.steal(tr, thread, topo, p.unsendRunnable, UnsendSystemNode)
}

// steal removes the smallest runnable index from the pool, marks it Started
// and blocks its exclusions.
func (p *planner) steal(
	tr Tracer, thread Thread, topo *topology,
	pool *roaring.Bitmap, kind NodeKind,
) (stealStatus, int) {
	if p.remaining == 0 {
		tr.StealReturnComplete(thread)
		return stealCycleComplete, 0
	}
	if pool.IsEmpty() {
		tr.StealReturnPending(thread)
		return stealPending, 0
	}
	index := pool.Minimum()
	pool.Remove(index)
	n := ScheduleNode{Kind: kind, Index: int(index)}

	state := p.states[n]
	if state.state != statePending {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "node " + topo.nodeName(n) + " is in the runnable pool but state is " + state.state.String(),
		}))
	}
	p.states[n] = nodeState{state: stateStarted}

	// starting a node has no effect on its dependencies and dependents

	for _, excl := range topo.exclusionsOf(n) {
		exclState := p.states[excl]
		switch exclState.state {
		case statePending:
			p.states[excl] = nodeState{state: stateBlocked, blocked: 1}
			switch excl.Kind {
			case SendSystemNode:
				p.takeRunnable(p.sendRunnable, excl, topo)
			case UnsendSystemNode:
				p.takeRunnable(p.unsendRunnable, excl, topo)
			default:
				panic(bark.AddTrace(SchedulerInvariantError{
					Detail: "partitions are not exclusive with other nodes",
				}))
			}
			tr.UnmarkRunnable(excl)
		case stateBlocked:
			exclState.blocked++
			p.states[excl] = exclState
		case stateStarted:
			panic(bark.AddTrace(SchedulerInvariantError{
				Detail: "started node " + topo.nodeName(excl) + " excludes a freshly stolen node",
			}))
		case stateCompleted:
			// completed nodes need no blocking
		}
	}

	return stealReady, int(index)
}

func (p *planner) takeRunnable(pool *roaring.Bitmap, n ScheduleNode, topo *topology) {
	if !pool.Contains(uint32(n.Index)) {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "pending node " + topo.nodeName(n) + " missing from its runnable pool",
		}))
	}
	pool.Remove(uint32(n.Index))
}

// complete marks a system node as completed, releasing its dependents and
// exclusions. Partition nodes are completed in place by the release walk.
func (p *planner) complete(tr Tracer, n ScheduleNode, topo *topology, wake *notifier) {
	state := p.states[n]
	if state.state != stateStarted {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "cannot complete node " + topo.nodeName(n) + " in state " + state.state.String(),
		}))
	}
	p.states[n] = nodeState{state: stateCompleted}

	p.removeOneBlock(tr, topo, topo.dependentsOf(n))
	p.removeOneBlock(tr, topo, topo.exclusionsOf(n))

	p.remaining--

	wake.notifyAll()
}

// removeOneBlock removes one blocker from each queued node. Partition chains
// can be long, so resolution runs on an explicit worklist instead of
// recursing.
func (p *planner) removeOneBlock(tr Tracer, topo *topology, nodes []ScheduleNode) {
	queue := make([]ScheduleNode, len(nodes))
	copy(queue, nodes)

	for len(queue) > 0 {
		n := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		state := p.states[n]
		switch {
		case state.state == stateBlocked && state.blocked > 1:
			state.blocked--
			p.states[n] = state
		case state.state == stateBlocked && state.blocked == 1:
			switch n.Kind {
			case SendSystemNode:
				p.states[n] = nodeState{state: statePending}
				p.insertRunnable(p.sendRunnable, n, topo)
				tr.MarkRunnable(n)
			case UnsendSystemNode:
				p.states[n] = nodeState{state: statePending}
				p.insertRunnable(p.unsendRunnable, n, topo)
				tr.MarkRunnable(n)
			case PartitionNode:
				p.states[n] = nodeState{state: stateCompleted}
				tr.Partition(n, topo.partitionNames[n.Index])
				queue = append(queue, topo.dependentsOf(n)...)
			}
		case state.state == stateCompleted:
			// no exclusion bookkeeping for completed nodes
		default:
			panic(bark.AddTrace(SchedulerInvariantError{
				Detail: "node " + topo.nodeName(n) + " in state " + state.state.String() + " should not have blockers",
			}))
		}
	}
}

func (p *planner) insertRunnable(pool *roaring.Bitmap, n ScheduleNode, topo *topology) {
	if pool.Contains(uint32(n.Index)) {
		panic(bark.AddTrace(SchedulerInvariantError{
			Detail: "blocked node " + topo.nodeName(n) + " is already in its runnable pool",
		}))
	}
	pool.Add(uint32(n.Index))
}
