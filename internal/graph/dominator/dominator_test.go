package dominator

import (
	"testing"

	"github.com/louisbranch/storyweave/internal/graph"
)

func diamond() *graph.Directed[string, string] {
	return graph.NewDirected([]graph.Edge[string, string]{
		{From: "entry", To: "left"},
		{From: "entry", To: "right"},
		{From: "left", To: "merge"},
		{From: "right", To: "merge"},
		{From: "merge", To: "exit"},
	})
}

func assertDominators(t *testing.T, got map[string]struct{}, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected dominators %v, got %v", want, got)
	}
	for _, node := range want {
		if _, ok := got[node]; !ok {
			t.Fatalf("expected dominators %v to include %q, got %v", want, node, got)
		}
	}
}

func TestSetsDiamond(t *testing.T) {
	dominators := Sets(diamond(), "entry")

	assertDominators(t, dominators["entry"], "entry")
	assertDominators(t, dominators["left"], "entry", "left")
	assertDominators(t, dominators["right"], "entry", "right")
	// Neither branch dominates the merge point.
	assertDominators(t, dominators["merge"], "entry", "merge")
	assertDominators(t, dominators["exit"], "entry", "merge", "exit")
}

func TestSetsIgnoresUnreachableNodes(t *testing.T) {
	g := graph.NewDirected([]graph.Edge[string, string]{
		{From: "entry", To: "next"},
		{From: "island", To: "islet"},
	})

	dominators := Sets(g, "entry")

	if _, ok := dominators["island"]; ok {
		t.Fatal("expected unreachable node to be omitted")
	}
	assertDominators(t, dominators["next"], "entry", "next")
}

func TestSetsCycle(t *testing.T) {
	g := graph.NewDirected([]graph.Edge[string, string]{
		{From: "entry", To: "head"},
		{From: "head", To: "body"},
		{From: "body", To: "head"},
		{From: "body", To: "exit"},
	})

	dominators := Sets(g, "entry")

	assertDominators(t, dominators["head"], "entry", "head")
	assertDominators(t, dominators["body"], "entry", "head", "body")
	assertDominators(t, dominators["exit"], "entry", "head", "body", "exit")
}

func TestSetsUnknownRoot(t *testing.T) {
	if got := Sets(diamond(), "nowhere"); got != nil {
		t.Fatalf("expected nil result for unknown root, got %v", got)
	}
}
