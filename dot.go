package foreman

import "github.com/emicklei/dot"

// Dot renders the scheduling topology as a Graphviz digraph: solid edges for
// ordering dependencies, dashed edges for mutual exclusion, diamond-shaped
// nodes for partitions. Useful when debugging why two systems never overlap
// or why a cycle stalls.
func (w *World) Dot() string {
	g := dot.NewGraph(dot.Directed)

	nodes := make(map[ScheduleNode]dot.Node)
	for _, n := range w.topo.allNodes() {
		gn := g.Node(w.topo.nodeName(n))
		if n.Kind == PartitionNode {
			gn.Attr("shape", "diamond")
		}
		nodes[n] = gn
	}

	for _, n := range w.topo.allNodes() {
		for _, dep := range w.topo.dependentsOf(n) {
			g.Edge(nodes[n], nodes[dep])
		}
		for _, excl := range w.topo.exclusionsOf(n) {
			// the relation is symmetric; draw each pair once
			if less(n, excl) {
				g.Edge(nodes[n], nodes[excl]).
					Attr("style", "dashed").
					Attr("dir", "none")
			}
		}
	}

	return g.String()
}

func less(a, b ScheduleNode) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Index < b.Index
}
