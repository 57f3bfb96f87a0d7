package graph

// Directed is an immutable directed graph indexed for successor and
// predecessor queries. It is built once from an edge collection; edge
// endpoints implicitly join the node set. A constructed graph is safe to
// share across concurrent readers.
type Directed[N comparable, L any] struct {
	nodes    map[N]struct{}
	edges    []Edge[N, L]
	outgoing map[N][]Edge[N, L]
	incoming map[N][]Edge[N, L]
}

// NewDirected builds a graph from edges plus optional extra nodes that have
// no edges of their own.
func NewDirected[N comparable, L any](edges []Edge[N, L], extraNodes ...N) *Directed[N, L] {
	g := &Directed[N, L]{
		nodes:    make(map[N]struct{}, len(edges)+len(extraNodes)),
		edges:    make([]Edge[N, L], len(edges)),
		outgoing: make(map[N][]Edge[N, L]),
		incoming: make(map[N][]Edge[N, L]),
	}
	copy(g.edges, edges)
	for _, node := range extraNodes {
		g.nodes[node] = struct{}{}
	}
	for _, edge := range g.edges {
		g.nodes[edge.From] = struct{}{}
		g.nodes[edge.To] = struct{}{}
		g.outgoing[edge.From] = append(g.outgoing[edge.From], edge)
		g.incoming[edge.To] = append(g.incoming[edge.To], edge)
	}
	return g
}

// Nodes returns every node in the graph in no particular order.
func (g *Directed[N, L]) Nodes() []N {
	nodes := make([]N, 0, len(g.nodes))
	for node := range g.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

// Edges returns every edge in insertion order.
func (g *Directed[N, L]) Edges() []Edge[N, L] {
	edges := make([]Edge[N, L], len(g.edges))
	copy(edges, g.edges)
	return edges
}

// HasNode reports whether node is part of the graph.
func (g *Directed[N, L]) HasNode(node N) bool {
	_, ok := g.nodes[node]
	return ok
}

// Len returns the number of nodes.
func (g *Directed[N, L]) Len() int {
	return len(g.nodes)
}

// OutgoingEdges returns the edges leaving node. Unknown nodes yield an empty
// result rather than an error.
func (g *Directed[N, L]) OutgoingEdges(node N) []Edge[N, L] {
	return g.outgoing[node]
}

// IncomingEdges returns the edges arriving at node.
func (g *Directed[N, L]) IncomingEdges(node N) []Edge[N, L] {
	return g.incoming[node]
}

// Successors returns the target node of every outgoing edge, repeated targets
// included.
func (g *Directed[N, L]) Successors(node N) []N {
	edges := g.outgoing[node]
	if len(edges) == 0 {
		return nil
	}
	successors := make([]N, len(edges))
	for i, edge := range edges {
		successors[i] = edge.To
	}
	return successors
}

// Predecessors returns the source node of every incoming edge.
func (g *Directed[N, L]) Predecessors(node N) []N {
	edges := g.incoming[node]
	if len(edges) == 0 {
		return nil
	}
	predecessors := make([]N, len(edges))
	for i, edge := range edges {
		predecessors[i] = edge.From
	}
	return predecessors
}

// OutDegree returns the number of edges leaving node.
func (g *Directed[N, L]) OutDegree(node N) int {
	return len(g.outgoing[node])
}

// InDegree returns the number of edges arriving at node.
func (g *Directed[N, L]) InDegree(node N) int {
	return len(g.incoming[node])
}

// Roots returns every node with no incoming edges, in no particular order.
func (g *Directed[N, L]) Roots() []N {
	var roots []N
	for node := range g.nodes {
		if len(g.incoming[node]) == 0 {
			roots = append(roots, node)
		}
	}
	return roots
}

// Terminals returns every node with no outgoing edges.
func (g *Directed[N, L]) Terminals() []N {
	var terminals []N
	for node := range g.nodes {
		if len(g.outgoing[node]) == 0 {
			terminals = append(terminals, node)
		}
	}
	return terminals
}
