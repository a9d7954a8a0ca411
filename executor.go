package foreman

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// notifier is a broadcast channel standing in for a condition variable with
// a bounded wait.
type notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{})}
}

func (n *notifier) notifyAll() {
	n.mu.Lock()
	close(n.ch)
	n.ch = make(chan struct{})
	n.mu.Unlock()
}

func (n *notifier) channel() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// executor runs cycles against a fixed topology: one main thread plus a
// configurable number of workers. Only the main thread executes unsendable
// systems; it picks up sendable work when no unsendable work is available.
type executor struct {
	world         *World
	topo          *topology
	sendSystems   []*SystemSpec
	unsendSystems []*SystemSpec
}

// cycleState is the shared mutable state of one cycle.
type cycleState struct {
	mu      sync.Mutex
	planner *planner
	wake    *notifier

	aborted  atomic.Bool
	panicked sync.Once
	panicVal any
}

func (cs *cycleState) recordPanic(val any) {
	cs.panicked.Do(func() {
		cs.panicVal = val
	})
	cs.aborted.Store(true)
	cs.wake.notifyAll()
}

// execute runs exactly one cycle. A panic inside a system is fatal to the
// cycle: no further systems start, currently running systems finish, and the
// first panic is re-raised here with storages in last-consistent state.
func (ex *executor) execute(tr Tracer) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tr.StartCycle()

	cs := &cycleState{
		planner: ex.topo.initial.clone(),
		wake:    newNotifier(),
	}

	var group errgroup.Group
	for i := 0; i < Config.workerCount; i++ {
		thread := Thread(i)
		group.Go(func() error {
			ex.workerLoop(cs, tr, thread)
			return nil
		})
	}

	ex.mainLoop(cs, tr)
	_ = group.Wait()

	tr.EndCycle()

	if cs.aborted.Load() {
		panic(cs.panicVal)
	}
}

// workerLoop steals sendable systems until the cycle completes.
func (ex *executor) workerLoop(cs *cycleState, tr Tracer, thread Thread) {
	for {
		if cs.aborted.Load() {
			return
		}
		cs.mu.Lock()
		status, index := cs.planner.stealSend(tr, thread, ex.topo)
		cs.mu.Unlock()

		switch status {
		case stealCycleComplete:
			return
		case stealPending:
			ex.idle(cs)
		case stealReady:
			ex.runSendable(cs, tr, thread, index)
		}
	}
}

// mainLoop prefers unsendable work and falls back to sendable work so the
// main thread's capacity is not wasted.
func (ex *executor) mainLoop(cs *cycleState, tr Tracer) {
	for {
		if cs.aborted.Load() {
			return
		}
		cs.mu.Lock()
		status, index := cs.planner.stealUnsend(tr, ThreadMain, ex.topo)
		if status == stealPending {
			sendStatus, sendIndex := cs.planner.stealSend(tr, ThreadMain, ex.topo)
			if sendStatus == stealReady {
				cs.mu.Unlock()
				ex.runSendable(cs, tr, ThreadMain, sendIndex)
				continue
			}
		}
		cs.mu.Unlock()

		switch status {
		case stealCycleComplete:
			return
		case stealPending:
			ex.idle(cs)
		case stealReady:
			ex.runUnsendable(cs, tr, index)
		}
	}
}

// idle blocks until new work may be available. The timeout exists only to
// break out on a suspected deadlock.
func (ex *executor) idle(cs *cycleState) {
	select {
	case <-cs.wake.channel():
	case <-time.After(Config.stealWait):
	}
}

func (ex *executor) runSendable(cs *cycleState, tr Tracer, thread Thread, index int) {
	sys := ex.sendSystems[index]
	node := ScheduleNode{Kind: SendSystemNode, Index: index}

	tr.StartRunSendable(thread, node, sys.name)
	panicVal := ex.runSystem(sys, thread)
	tr.EndRunSendable(thread, node, sys.name)

	ex.finish(cs, tr, node, panicVal)
}

func (ex *executor) runUnsendable(cs *cycleState, tr Tracer, index int) {
	sys := ex.unsendSystems[index]
	node := ScheduleNode{Kind: UnsendSystemNode, Index: index}

	tr.StartRunUnsendable(ThreadMain, node, sys.name)
	panicVal := ex.runSystem(sys, ThreadMain)
	tr.EndRunUnsendable(ThreadMain, node, sys.name)

	ex.finish(cs, tr, node, panicVal)
}

func (ex *executor) finish(cs *cycleState, tr Tracer, node ScheduleNode, panicVal any) {
	if panicVal != nil {
		// set before complete so no further system gets stolen
		cs.recordPanic(panicVal)
	}
	cs.mu.Lock()
	cs.planner.complete(tr, node, ex.topo, cs.wake)
	cs.mu.Unlock()
}

// runSystem builds the system's resource handles, runs it, and releases the
// locks. A panic is captured and returned rather than unwinding the
// executor thread.
func (ex *executor) runSystem(sys *SystemSpec, thread Thread) (panicVal any) {
	ctx := &SystemContext{world: ex.world, spec: sys, thread: thread}
	defer func() {
		ctx.release()
		if r := recover(); r != nil {
			panicVal = r
		}
	}()
	ctx.acquire()
	sys.fn(ctx)
	return nil
}
