// Package dominator computes dominator sets over a directed graph. A node D
// dominates a node N when every path from the root to N passes through D;
// dominator chains give cheap representative paths through branch-heavy
// graphs.
package dominator

import "github.com/louisbranch/storyweave/internal/graph"

// Sets returns, for every node reachable from root, the set of its
// dominators (every node always dominates itself). Nodes unreachable from
// root are omitted. The computation is the iterative dataflow formulation:
// Dom(n) = {n} ∪ ⋂ Dom(p) over reachable predecessors, repeated until no set
// changes.
func Sets[N comparable, L any](g *graph.Directed[N, L], root N) map[N]map[N]struct{} {
	if !g.HasNode(root) {
		return nil
	}

	reachable := reachableFrom(g, root)
	dominators := make(map[N]map[N]struct{}, len(reachable))
	for node := range reachable {
		if node == root {
			dominators[node] = map[N]struct{}{node: {}}
			continue
		}
		all := make(map[N]struct{}, len(reachable))
		for candidate := range reachable {
			all[candidate] = struct{}{}
		}
		dominators[node] = all
	}

	for changed := true; changed; {
		changed = false
		for node := range reachable {
			if node == root {
				continue
			}
			next := map[N]struct{}{node: {}}
			first := true
			for _, predecessor := range g.Predecessors(node) {
				if _, ok := reachable[predecessor]; !ok {
					continue
				}
				if first {
					for dom := range dominators[predecessor] {
						next[dom] = struct{}{}
					}
					first = false
					continue
				}
				for dom := range next {
					if dom == node {
						continue
					}
					if _, ok := dominators[predecessor][dom]; !ok {
						delete(next, dom)
					}
				}
			}
			if !sameSet(dominators[node], next) {
				dominators[node] = next
				changed = true
			}
		}
	}

	return dominators
}

func reachableFrom[N comparable, L any](g *graph.Directed[N, L], root N) map[N]struct{} {
	reachable := map[N]struct{}{root: {}}
	frontier := []N{root}
	for len(frontier) > 0 {
		node := frontier[0]
		frontier = frontier[1:]
		for _, successor := range g.Successors(node) {
			if _, seen := reachable[successor]; seen {
				continue
			}
			reachable[successor] = struct{}{}
			frontier = append(frontier, successor)
		}
	}
	return reachable
}

func sameSet[N comparable](a, b map[N]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for node := range a {
		if _, ok := b[node]; !ok {
			return false
		}
	}
	return true
}
