package consistency

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/storyweave/internal/graph/statespace"
	"github.com/louisbranch/storyweave/internal/metrics"
	"github.com/louisbranch/storyweave/internal/story"
	"github.com/louisbranch/storyweave/internal/story/flow"
	"github.com/louisbranch/storyweave/internal/telemetry"
)

// WorldState is the concrete narrative state carried through state-space
// exploration: the set of entities currently present. Apply and Without
// return fresh copies; a WorldState handed to the explorer is never mutated.
type WorldState struct {
	present map[string]struct{}
}

// NewWorldState returns an empty world state.
func NewWorldState() WorldState {
	return WorldState{present: make(map[string]struct{})}
}

// Apply returns a copy with the scene's introductions added and its removals
// dropped, removals last.
func (w WorldState) Apply(scene story.Scene) WorldState {
	next := make(map[string]struct{}, len(w.present)+len(scene.Introduces))
	for entity := range w.present {
		next[entity] = struct{}{}
	}
	for _, entity := range scene.Introduces {
		next[entity] = struct{}{}
	}
	for _, entity := range scene.Removes {
		delete(next, entity)
	}
	return WorldState{present: next}
}

// Has reports whether the entity is currently present.
func (w WorldState) Has(entity string) bool {
	_, ok := w.present[entity]
	return ok
}

// Entities returns the present entities in sorted order.
func (w WorldState) Entities() []string {
	entities := make([]string, 0, len(w.present))
	for entity := range w.present {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	return entities
}

// EntitySignature projects a world state to the sorted joined entity list.
// It is the default precision: states at the same scene merge iff the same
// entities are present.
func EntitySignature(state WorldState) string {
	return strings.Join(state.Entities(), "|")
}

// ExploreOptions bounds a state-space exploration. A zero MaxDepth defaults
// to four visits per scene, which keeps cyclic scenarios finite; Signature
// defaults to EntitySignature.
type ExploreOptions struct {
	MaxDepth  int
	Signature func(WorldState) string
}

// Exploration summarises one frontier-merged exploration run.
type Exploration struct {
	Result     statespace.Result[WorldState, string, flow.Choice]
	StartScene string
	Endings    []string
}

// ExploreScenario runs a frontier-merged exploration of the scenario's full
// branching state space and returns the bounded quotient graph.
func (c *Checker) ExploreScenario(ctx context.Context, scenario story.Scenario, opts ExploreOptions) (Exploration, error) {
	ctx, span := tracer.Start(ctx, "consistency.explore_scenario",
		trace.WithAttributes(attribute.String("scenario.id", scenario.ID)))
	defer span.End()

	if len(scenario.Scenes) == 0 {
		return Exploration{}, ErrNoScenes
	}

	signature := opts.Signature
	if signature == nil {
		signature = EntitySignature
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 4 * len(scenario.Scenes)
	}

	start, _ := flow.FindStartScene(scenario)
	endings := flow.FindEndingScenes(scenario)
	endingSet := make(map[string]struct{}, len(endings))
	for _, ending := range endings {
		endingSet[ending] = struct{}{}
	}

	scenes := make(map[string]story.Scene, len(scenario.Scenes))
	for _, scene := range scenario.Scenes {
		scenes[scene.ID] = scene
	}

	startScene := scenes[start]
	initial := NewWorldState().Apply(startScene)

	transitions := func(sceneID string, state WorldState) []statespace.Transition[WorldState, flow.Choice] {
		scene, ok := scenes[sceneID]
		if !ok {
			return nil
		}
		var out []statespace.Transition[WorldState, flow.Choice]
		if scene.Next != "" {
			out = append(out, statespace.Transition[WorldState, flow.Choice]{
				ToScene:   scene.Next,
				Label:     flow.Choice{Kind: flow.ChoiceLinear},
				NextState: state.Apply(scenes[scene.Next]),
			})
		}
		for _, branch := range scene.Branches {
			if branch.Next == "" {
				continue
			}
			out = append(out, statespace.Transition[WorldState, flow.Choice]{
				ToScene:   branch.Next,
				Label:     flow.Choice{Kind: flow.ChoiceBranch, Label: branch.Label},
				NextState: state.Apply(scenes[branch.Next]),
			})
		}
		return out
	}

	result, err := statespace.Explore(statespace.Config[WorldState, string, flow.Choice]{
		InitialScene: start,
		InitialState: initial,
		Transitions:  transitions,
		Signature:    signature,
		Terminal: func(sceneID string) bool {
			_, ok := endingSet[sceneID]
			return ok
		},
		MaxDepth: maxDepth,
	})
	if err != nil {
		return Exploration{}, fmt.Errorf("explore scenario %s: %w", scenario.ID, err)
	}

	metrics.StateNodesMerged.Add(float64(result.Graph.Len()))
	span.SetAttributes(attribute.Int("statespace.nodes", result.Graph.Len()))
	c.emit(ctx, telemetry.TypeExploreCompleted, scenario.ID,
		fmt.Sprintf("%d merged states", result.Graph.Len()))

	return Exploration{Result: result, StartScene: start, Endings: endings}, nil
}
