// Package flow turns scenario content into the generic directed-graph
// representation and enumerates bounded sets of playthrough paths.
package flow

import (
	"github.com/louisbranch/storyweave/internal/graph"
	"github.com/louisbranch/storyweave/internal/story"
)

// DefaultMaxPaths caps path enumeration when the caller passes no bound.
const DefaultMaxPaths = 100

// ChoiceKind distinguishes linear scene transitions from player choices.
type ChoiceKind int

const (
	// ChoiceLinear is the scene's single "next scene" transition.
	ChoiceLinear ChoiceKind = iota
	// ChoiceBranch is a labelled player choice.
	ChoiceBranch
)

// Choice labels a scene-graph edge with the transition kind and, for
// branches, the choice text.
type Choice struct {
	Kind  ChoiceKind
	Label string
}

// BuildGraph constructs the scene-transition graph. Scenes with no outgoing
// or incoming references still appear as nodes.
func BuildGraph(scenario story.Scenario) *graph.Directed[string, Choice] {
	var edges []graph.Edge[string, Choice]
	nodes := make([]string, 0, len(scenario.Scenes))
	for _, scene := range scenario.Scenes {
		nodes = append(nodes, scene.ID)
		if scene.Next != "" {
			edges = append(edges, graph.Edge[string, Choice]{
				From:  scene.ID,
				To:    scene.Next,
				Label: Choice{Kind: ChoiceLinear},
			})
		}
		for _, branch := range scene.Branches {
			if branch.Next == "" {
				continue
			}
			edges = append(edges, graph.Edge[string, Choice]{
				From:  scene.ID,
				To:    branch.Next,
				Label: Choice{Kind: ChoiceBranch, Label: branch.Label},
			})
		}
	}
	return graph.NewDirected(edges, nodes...)
}

// FindStartScene returns the scene referenced by no other scene's linear or
// branch target. When zero or several scenes qualify it falls back to the
// scenario's first scene; the heuristic is ambiguous for cyclic or
// disconnected scenarios and deliberately left that way. The second return
// value is false only for scenarios with no scenes.
func FindStartScene(scenario story.Scenario) (string, bool) {
	if len(scenario.Scenes) == 0 {
		return "", false
	}

	referenced := make(map[string]struct{})
	for _, scene := range scenario.Scenes {
		if scene.Next != "" {
			referenced[scene.Next] = struct{}{}
		}
		for _, branch := range scene.Branches {
			if branch.Next != "" {
				referenced[branch.Next] = struct{}{}
			}
		}
	}

	var candidates []string
	for _, scene := range scenario.Scenes {
		if _, ok := referenced[scene.ID]; !ok {
			candidates = append(candidates, scene.ID)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}
	return scenario.Scenes[0].ID, true
}

// FindEndingScenes returns every scene with neither a linear successor nor
// any branch with a successor, in scene order.
func FindEndingScenes(scenario story.Scenario) []string {
	var endings []string
	for _, scene := range scenario.Scenes {
		if scene.IsEnding() {
			endings = append(endings, scene.ID)
		}
	}
	return endings
}

// EnumeratePaths returns up to maxPaths simple paths from the start scene to
// any ending scene. A non-positive maxPaths falls back to DefaultMaxPaths.
// The result is empty when the scenario has no start or no endings.
func EnumeratePaths(scenario story.Scenario, maxPaths int) [][]string {
	if maxPaths <= 0 {
		maxPaths = DefaultMaxPaths
	}

	start, ok := FindStartScene(scenario)
	if !ok {
		return nil
	}
	endings := FindEndingScenes(scenario)
	if len(endings) == 0 {
		return nil
	}
	endingSet := make(map[string]struct{}, len(endings))
	for _, ending := range endings {
		endingSet[ending] = struct{}{}
	}

	g := BuildGraph(scenario)
	var paths [][]string
	onPath := map[string]struct{}{start: {}}

	var walk func(node string, path []string)
	walk = func(node string, path []string) {
		if len(paths) >= maxPaths {
			return
		}
		if _, ending := endingSet[node]; ending {
			paths = append(paths, append([]string(nil), path...))
			return
		}
		for _, successor := range g.Successors(node) {
			// Simple paths only; revisiting a scene on the current
			// path would loop forever.
			if _, visiting := onPath[successor]; visiting {
				continue
			}
			onPath[successor] = struct{}{}
			walk(successor, append(path, successor))
			delete(onPath, successor)
		}
	}
	walk(start, []string{start})

	return paths
}
