// Package statespace explores a branching concrete state space and collapses
// it into a finite quotient graph by merging states that share the same
// (scene, signature) key.
//
// The signature projection is the caller's precision lever: a coarse
// projection merges more aggressively and may conflate states that differ in
// ways the caller cares about. Termination is only guaranteed when the caller
// supplies a terminal predicate or a max depth; the explorer does not defend
// against transition functions that never stop yielding successors.
package statespace

import (
	"errors"

	"github.com/louisbranch/storyweave/internal/graph"
)

var (
	// ErrNilTransitions indicates the transition function is missing.
	ErrNilTransitions = errors.New("transition function is required")
	// ErrNilSignature indicates the signature projection is missing.
	ErrNilSignature = errors.New("signature function is required")
)

// Node identifies an equivalence class of concrete states at a scene. Two
// concrete states map to the same Node iff the signature projection agrees.
type Node[S comparable] struct {
	Scene     string
	Signature S
}

// Transition describes one step of concrete exploration, produced on demand
// by the caller's transition function.
type Transition[T any, L any] struct {
	ToScene   string
	Label     L
	NextState T
}

// Config describes one exploration run. Transitions and Signature are
// required; Terminal and MaxDepth are optional bounds (MaxDepth zero means
// unbounded).
type Config[T any, S comparable, L any] struct {
	InitialScene string
	InitialState T
	Transitions  func(scene string, state T) []Transition[T, L]
	Signature    func(state T) S
	Terminal     func(scene string) bool
	MaxDepth     int
}

// Result is the merged quotient graph together with one arbitrarily-chosen
// representative concrete state per node and the set of terminal nodes.
type Result[T any, S comparable, L any] struct {
	Graph           *graph.Directed[Node[S], L]
	Representatives map[Node[S]]T
	Terminals       map[Node[S]]struct{}
}

type frontierEntry[T any, S comparable] struct {
	node  Node[S]
	state T
	depth int
}

// Explore runs a breadth-first state-merging exploration from the initial
// scene and state. Later concrete states that map to an already-seen node are
// discarded without expansion, but every yielded transition still records an
// edge in the quotient graph.
func Explore[T any, S comparable, L any](cfg Config[T, S, L]) (Result[T, S, L], error) {
	if cfg.Transitions == nil {
		return Result[T, S, L]{}, ErrNilTransitions
	}
	if cfg.Signature == nil {
		return Result[T, S, L]{}, ErrNilSignature
	}

	initial := Node[S]{Scene: cfg.InitialScene, Signature: cfg.Signature(cfg.InitialState)}
	representatives := map[Node[S]]T{initial: cfg.InitialState}
	terminals := make(map[Node[S]]struct{})
	var edges []graph.Edge[Node[S], L]

	frontier := []frontierEntry[T, S]{{node: initial, state: cfg.InitialState}}
	for len(frontier) > 0 {
		entry := frontier[0]
		frontier = frontier[1:]

		if cfg.MaxDepth > 0 && entry.depth >= cfg.MaxDepth {
			terminals[entry.node] = struct{}{}
			continue
		}
		if cfg.Terminal != nil && cfg.Terminal(entry.node.Scene) {
			terminals[entry.node] = struct{}{}
			continue
		}

		transitions := cfg.Transitions(entry.node.Scene, entry.state)
		if len(transitions) == 0 {
			terminals[entry.node] = struct{}{}
			continue
		}
		for _, transition := range transitions {
			successor := Node[S]{Scene: transition.ToScene, Signature: cfg.Signature(transition.NextState)}
			if _, seen := representatives[successor]; !seen {
				representatives[successor] = transition.NextState
				frontier = append(frontier, frontierEntry[T, S]{
					node:  successor,
					state: transition.NextState,
					depth: entry.depth + 1,
				})
			}
			edges = append(edges, graph.Edge[Node[S], L]{From: entry.node, To: successor, Label: transition.Label})
		}
	}

	nodes := make([]Node[S], 0, len(representatives))
	for node := range representatives {
		nodes = append(nodes, node)
	}
	return Result[T, S, L]{
		Graph:           graph.NewDirected(edges, nodes...),
		Representatives: representatives,
		Terminals:       terminals,
	}, nil
}
