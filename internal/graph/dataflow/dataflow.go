// Package dataflow computes, per graph node, the set of entities guaranteed
// to have been introduced on every path from a designated start node.
//
// The analysis is a forward "must" dataflow: the meet operator is set
// intersection over predecessors and the per-node transfer function is
// (incoming ∪ introduced) − removed. Cycles converge through the worklist.
package dataflow

import "errors"

// ErrStartNotFound indicates the start id is absent from the node mapping.
var ErrStartNotFound = errors.New("start node is not in the node mapping")

// Node describes one vertex of the analysed graph: its links plus the
// entities it introduces and removes. An entity both introduced and removed
// at the same node counts as removed.
type Node[N comparable, E comparable] struct {
	ID           N
	Predecessors []N
	Successors   []N
	Introduced   map[E]struct{}
	Removed      map[E]struct{}
}

// Analyze runs the fixed-point analysis over the complete node mapping and
// returns the must-introduced set for every node id in the input. Dangling
// predecessor ids are skipped; nodes never reached from start keep their
// initial empty set unless they are predecessor-less, in which case their
// local transfer applies.
func Analyze[N comparable, E comparable](nodes map[N]Node[N, E], start N) (map[N]map[E]struct{}, error) {
	startNode, ok := nodes[start]
	if !ok {
		return nil, ErrStartNotFound
	}

	result := make(map[N]map[E]struct{}, len(nodes))
	for id := range nodes {
		result[id] = make(map[E]struct{})
	}
	result[start] = transfer(startNode, nil)

	queue := make([]N, 0, len(startNode.Successors)+1)
	queued := make(map[N]struct{}, len(startNode.Successors)+1)
	enqueue := func(id N) {
		if _, seen := queued[id]; seen {
			return
		}
		if _, known := nodes[id]; !known {
			return
		}
		queued[id] = struct{}{}
		queue = append(queue, id)
	}
	enqueue(start)
	for _, successor := range startNode.Successors {
		enqueue(successor)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		delete(queued, id)

		node := nodes[id]
		var next map[E]struct{}
		meet, hasPredecessors := meetPredecessors(nodes, result, node)
		switch {
		case !hasPredecessors && id == start:
			next = transfer(startNode, nil)
		case !hasPredecessors:
			// Isolated or unreachable nodes only guarantee their own
			// local introductions.
			next = transfer(node, nil)
		default:
			next = transfer(node, meet)
		}

		if setsEqual(result[id], next) {
			continue
		}
		result[id] = next
		for _, successor := range node.Successors {
			enqueue(successor)
		}
	}

	return result, nil
}

// meetPredecessors intersects the current must-sets of every predecessor that
// exists in the mapping. The second return value reports whether the node has
// any declared predecessors at all, dangling or not.
func meetPredecessors[N comparable, E comparable](nodes map[N]Node[N, E], result map[N]map[E]struct{}, node Node[N, E]) (map[E]struct{}, bool) {
	if len(node.Predecessors) == 0 {
		return nil, false
	}
	var meet map[E]struct{}
	for _, predecessor := range node.Predecessors {
		if _, known := nodes[predecessor]; !known {
			continue
		}
		predecessorSet := result[predecessor]
		if meet == nil {
			meet = make(map[E]struct{}, len(predecessorSet))
			for entity := range predecessorSet {
				meet[entity] = struct{}{}
			}
			continue
		}
		for entity := range meet {
			if _, ok := predecessorSet[entity]; !ok {
				delete(meet, entity)
			}
		}
	}
	if meet == nil {
		meet = make(map[E]struct{})
	}
	return meet, true
}

// transfer applies the node's local effect: union its introductions into the
// incoming set, then drop its removals.
func transfer[N comparable, E comparable](node Node[N, E], incoming map[E]struct{}) map[E]struct{} {
	out := make(map[E]struct{}, len(incoming)+len(node.Introduced))
	for entity := range incoming {
		out[entity] = struct{}{}
	}
	for entity := range node.Introduced {
		out[entity] = struct{}{}
	}
	for entity := range node.Removed {
		delete(out, entity)
	}
	return out
}

func setsEqual[E comparable](a, b map[E]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for entity := range a {
		if _, ok := b[entity]; !ok {
			return false
		}
	}
	return true
}
