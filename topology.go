package foreman

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/TheBitDrifter/bark"
	mapset "github.com/deckarep/golang-set/v2"
)

// order is one before → after edge in the scheduling graph.
type order struct {
	before, after ScheduleNode
}

// topology stores the dependency and exclusion relationships of the
// schedule, computed once at world build time.
type topology struct {
	// dependents[a] lists every b waiting for a; b is a wakeup candidate
	// when a completes.
	dependents map[ScheduleNode][]ScheduleNode

	// exclusions[a] lists every b that must not execute concurrently with
	// a. The relation is symmetric.
	exclusions map[ScheduleNode][]ScheduleNode

	// initial is the planner state cloned into a fresh planner at the
	// start of each cycle.
	initial planner

	sendNames      []string
	unsendNames    []string
	partitionNames []string
}

func (t *topology) nodeName(n ScheduleNode) string {
	switch n.Kind {
	case SendSystemNode:
		return t.sendNames[n.Index]
	case UnsendSystemNode:
		return t.unsendNames[n.Index]
	default:
		return t.partitionNames[n.Index]
	}
}

func (t *topology) dependentsOf(n ScheduleNode) []ScheduleNode {
	return t.dependents[n]
}

func (t *topology) exclusionsOf(n ScheduleNode) []ScheduleNode {
	return t.exclusions[n]
}

func (t *topology) allNodes() []ScheduleNode {
	nodes := make([]ScheduleNode, 0, len(t.sendNames)+len(t.unsendNames)+len(t.partitionNames))
	for i := range t.sendNames {
		nodes = append(nodes, ScheduleNode{Kind: SendSystemNode, Index: i})
	}
	for i := range t.unsendNames {
		nodes = append(nodes, ScheduleNode{Kind: UnsendSystemNode, Index: i})
	}
	for i := range t.partitionNames {
		nodes = append(nodes, ScheduleNode{Kind: PartitionNode, Index: i})
	}
	return nodes
}

func newTopology(
	sendNames, unsendNames, partitionNames []string,
	orders []order,
	resources map[resourceKey]map[ScheduleNode][]resourceAccess,
) *topology {
	t := &topology{
		sendNames:      sendNames,
		unsendNames:    unsendNames,
		partitionNames: partitionNames,
	}
	nodes := t.allNodes()

	t.dependents = buildDependents(nodes, orders)
	checkAcyclic(t, nodes, orders)
	t.exclusions = buildExclusions(nodes, resources)
	t.initial = buildInitialPlanner(t, nodes, orders)
	return t
}

func buildDependents(nodes []ScheduleNode, orders []order) map[ScheduleNode][]ScheduleNode {
	dependents := make(map[ScheduleNode][]ScheduleNode, len(nodes))
	for _, n := range nodes {
		dependents[n] = nil
	}
	for _, o := range orders {
		if _, ok := dependents[o.before]; !ok {
			panic(bark.AddTrace(SchedulerInvariantError{Detail: "ordering edge from unknown node"}))
		}
		dependents[o.before] = append(dependents[o.before], o.after)
	}
	return dependents
}

// checkAcyclic runs a full topological pass over the ordering edges and
// panics naming the nodes left on a cycle.
func checkAcyclic(t *topology, nodes []ScheduleNode, orders []order) {
	counts := make(map[ScheduleNode]int, len(nodes))
	for _, n := range nodes {
		counts[n] = 0
	}
	for _, o := range orders {
		counts[o.after]++
	}

	queue := make([]ScheduleNode, 0, len(nodes))
	for _, n := range nodes {
		if counts[n] == 0 {
			queue = append(queue, n)
		}
	}
	processed := 0
	for len(queue) > 0 {
		n := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		processed++
		for _, dep := range t.dependents[n] {
			counts[dep]--
			if counts[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if processed == len(nodes) {
		return
	}
	var cyclic []string
	for _, n := range nodes {
		if counts[n] > 0 {
			cyclic = append(cyclic, t.nodeName(n))
		}
	}
	panic(DependencyCycleError{Nodes: cyclic})
}

// buildExclusions derives the mutual-exclusion relation: two distinct nodes
// exclude each other iff some resource is touched by both and at least one
// of them writes it.
func buildExclusions(
	nodes []ScheduleNode,
	resources map[resourceKey]map[ScheduleNode][]resourceAccess,
) map[ScheduleNode][]ScheduleNode {
	sets := make(map[ScheduleNode]mapset.Set[ScheduleNode], len(nodes))
	for _, n := range nodes {
		sets[n] = mapset.NewThreadUnsafeSet[ScheduleNode]()
	}

	for _, accessors := range resources {
		for n1, accesses1 := range accessors {
			for n2, accesses2 := range accessors {
				if n1 == n2 {
					continue
				}
				if anyConflict(accesses1, accesses2) {
					sets[n1].Add(n2)
				}
			}
		}
	}

	exclusions := make(map[ScheduleNode][]ScheduleNode, len(nodes))
	for n, set := range sets {
		exclusions[n] = set.ToSlice()
	}
	return exclusions
}

func anyConflict(a, b []resourceAccess) bool {
	for _, x := range a {
		for _, y := range b {
			if x.conflictsWith(y) {
				return true
			}
		}
	}
	return false
}

// buildInitialPlanner computes the starting wakeup state of every node.
// Partitions with zero dependency count complete immediately and their
// dependents' counts are decremented transitively.
func buildInitialPlanner(t *topology, nodes []ScheduleNode, orders []order) planner {
	counts := make(map[ScheduleNode]int, len(nodes))
	for _, n := range nodes {
		counts[n] = 0
	}
	for _, o := range orders {
		counts[o.after]++
	}

	// trim dependencyless partitions
	var depless []ScheduleNode
	for _, n := range nodes {
		if n.Kind == PartitionNode && counts[n] == 0 {
			depless = append(depless, n)
		}
	}
	for len(depless) > 0 {
		par := depless[len(depless)-1]
		depless = depless[:len(depless)-1]
		for _, dep := range t.dependents[par] {
			counts[dep]--
			if counts[dep] < 0 {
				panic(bark.AddTrace(SchedulerInvariantError{
					Detail: "dependency count underflow while trimming partitions",
				}))
			}
			if dep.Kind == PartitionNode && counts[dep] == 0 {
				depless = append(depless, dep)
			}
		}
	}

	p := planner{
		states:         make(map[ScheduleNode]nodeState, len(nodes)),
		sendRunnable:   roaring.New(),
		unsendRunnable: roaring.New(),
		remaining:      len(t.sendNames) + len(t.unsendNames),
	}
	for _, n := range nodes {
		count := counts[n]
		switch {
		case count > 0:
			p.states[n] = nodeState{state: stateBlocked, blocked: count}
		case n.Kind == PartitionNode:
			p.states[n] = nodeState{state: stateCompleted}
		default:
			p.states[n] = nodeState{state: statePending}
			if n.Kind == SendSystemNode {
				p.sendRunnable.Add(uint32(n.Index))
			} else {
				p.unsendRunnable.Add(uint32(n.Index))
			}
		}
	}
	return p
}
