package dataflow

import (
	"errors"
	"testing"
)

func set(entities ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(entities))
	for _, entity := range entities {
		out[entity] = struct{}{}
	}
	return out
}

func assertSet(t *testing.T, got map[string]struct{}, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected set %v, got %v", want, got)
	}
	for _, entity := range want {
		if _, ok := got[entity]; !ok {
			t.Fatalf("expected set %v to contain %q, got %v", want, entity, got)
		}
	}
}

func TestAnalyzeLinearChain(t *testing.T) {
	nodes := map[string]Node[string, string]{
		"a": {ID: "a", Successors: []string{"b"}, Introduced: set("x")},
		"b": {ID: "b", Predecessors: []string{"a"}, Successors: []string{"c"}, Introduced: set("y"), Removed: set("x")},
		"c": {ID: "c", Predecessors: []string{"b"}},
	}

	result, err := Analyze(nodes, "a")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	assertSet(t, result["a"], "x")
	assertSet(t, result["b"], "y")
	assertSet(t, result["c"], "y")
}

func TestAnalyzeMeetAtJoin(t *testing.T) {
	// Two branches introduce different entities; only the shared one
	// survives the join.
	nodes := map[string]Node[string, string]{
		"start": {ID: "start", Successors: []string{"left", "right"}, Introduced: set("hero")},
		"left":  {ID: "left", Predecessors: []string{"start"}, Successors: []string{"join"}, Introduced: set("sword")},
		"right": {ID: "right", Predecessors: []string{"start"}, Successors: []string{"join"}, Introduced: set("shield")},
		"join":  {ID: "join", Predecessors: []string{"left", "right"}},
	}

	result, err := Analyze(nodes, "start")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	assertSet(t, result["join"], "hero")
}

func TestAnalyzeRemoveAfterIntroduceAtSameNode(t *testing.T) {
	nodes := map[string]Node[string, string]{
		"start": {ID: "start", Introduced: set("ghost"), Removed: set("ghost")},
	}

	result, err := Analyze(nodes, "start")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	assertSet(t, result["start"])
}

func TestAnalyzeCycleConverges(t *testing.T) {
	nodes := map[string]Node[string, string]{
		"start": {ID: "start", Successors: []string{"loop"}, Introduced: set("torch")},
		"loop":  {ID: "loop", Predecessors: []string{"start", "back"}, Successors: []string{"back"}, Introduced: set("rope")},
		"back":  {ID: "back", Predecessors: []string{"loop"}, Successors: []string{"loop"}},
	}

	result, err := Analyze(nodes, "start")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	// Sets start empty, so the back edge conservatively drains the meet:
	// only the loop's own introduction survives convergence.
	assertSet(t, result["loop"], "rope")
	assertSet(t, result["back"], "rope")
}

func TestAnalyzeDanglingPredecessorIsSkipped(t *testing.T) {
	nodes := map[string]Node[string, string]{
		"start": {ID: "start", Successors: []string{"next"}, Introduced: set("map")},
		"next":  {ID: "next", Predecessors: []string{"start", "missing"}},
	}

	result, err := Analyze(nodes, "start")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	assertSet(t, result["next"], "map")
}

func TestAnalyzeIsolatedNodeKeepsLocalTransfer(t *testing.T) {
	nodes := map[string]Node[string, string]{
		"start":  {ID: "start", Successors: []string{"island"}, Introduced: set("key")},
		"island": {ID: "island", Introduced: set("coin"), Removed: set("key")},
	}

	result, err := Analyze(nodes, "start")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	// A predecessor-less non-start node uses its own local transfer only,
	// even when the start lists it as a successor.
	assertSet(t, result["island"], "coin")
}

func TestAnalyzeIdempotent(t *testing.T) {
	nodes := map[string]Node[string, string]{
		"start": {ID: "start", Successors: []string{"left", "right"}, Introduced: set("hero", "map")},
		"left":  {ID: "left", Predecessors: []string{"start"}, Successors: []string{"join"}, Removed: set("map")},
		"right": {ID: "right", Predecessors: []string{"start"}, Successors: []string{"join"}},
		"join":  {ID: "join", Predecessors: []string{"left", "right"}},
	}

	first, err := Analyze(nodes, "start")
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	second, err := Analyze(nodes, "start")
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("expected identical result sizes, got %d and %d", len(first), len(second))
	}
	for id, want := range first {
		got := second[id]
		if len(got) != len(want) {
			t.Fatalf("node %q differs between runs: %v vs %v", id, want, got)
		}
		for entity := range want {
			if _, ok := got[entity]; !ok {
				t.Fatalf("node %q differs between runs: %v vs %v", id, want, got)
			}
		}
	}
}

func TestAnalyzeMissingStartFails(t *testing.T) {
	nodes := map[string]Node[string, string]{
		"a": {ID: "a"},
	}

	_, err := Analyze(nodes, "missing")
	if !errors.Is(err, ErrStartNotFound) {
		t.Fatalf("expected ErrStartNotFound, got %v", err)
	}
}
