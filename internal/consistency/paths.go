package consistency

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/storyweave/internal/graph"
	"github.com/louisbranch/storyweave/internal/graph/dominator"
	"github.com/louisbranch/storyweave/internal/metrics"
	"github.com/louisbranch/storyweave/internal/story"
	"github.com/louisbranch/storyweave/internal/story/flow"
	"github.com/louisbranch/storyweave/internal/telemetry"
)

// PathEvaluation is the unit of work handed to an external evaluator: one
// playthrough path with its concatenated scene content.
type PathEvaluation struct {
	ScenarioID string
	SceneIDs   []string
	Content    string
}

// Verdict is an external evaluator's judgement of one path.
type Verdict struct {
	Passed bool
	Issues []string
}

// Evaluator judges a playthrough path for narrative consistency. The
// production implementation is an LLM-backed service owned by the caller;
// this engine only defines the seam.
type Evaluator interface {
	EvaluatePath(ctx context.Context, evaluation PathEvaluation) (Verdict, error)
}

// PathResult pairs one evaluated path with its verdict or evaluation error.
type PathResult struct {
	SceneIDs []string
	Verdict  Verdict
	Err      error
}

// SelectDominatorPaths picks up to maxPaths representative start-to-ending
// paths. For each ending, the ending's dominator chain is stitched into one
// concrete path: every playthrough reaching that ending necessarily passes
// through each dominator, so validating the stitched path covers the
// narrative spine shared by all of them.
func (c *Checker) SelectDominatorPaths(ctx context.Context, scenario story.Scenario, maxPaths int) ([][]string, error) {
	_, span := tracer.Start(ctx, "consistency.select_dominator_paths",
		trace.WithAttributes(attribute.String("scenario.id", scenario.ID)))
	defer span.End()

	if len(scenario.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	if maxPaths <= 0 {
		maxPaths = flow.DefaultMaxPaths
	}

	g := flow.BuildGraph(scenario)
	start, _ := flow.FindStartScene(scenario)
	endings := flow.FindEndingScenes(scenario)
	if len(endings) == 0 {
		return nil, nil
	}

	dominators := dominator.Sets(g, start)

	var paths [][]string
	seen := make(map[string]struct{})
	for _, ending := range endings {
		if len(paths) >= maxPaths {
			break
		}
		domSet, reachable := dominators[ending]
		if !reachable {
			continue
		}

		// Dominators of a node are totally ordered by their own
		// dominator-set sizes along any path to it.
		chain := make([]string, 0, len(domSet))
		for dom := range domSet {
			chain = append(chain, dom)
		}
		sort.Slice(chain, func(i, j int) bool {
			if len(dominators[chain[i]]) != len(dominators[chain[j]]) {
				return len(dominators[chain[i]]) < len(dominators[chain[j]])
			}
			return chain[i] < chain[j]
		})

		path, ok := stitchChain(g, chain)
		if !ok {
			continue
		}
		key := strings.Join(path, "\x00")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		paths = append(paths, path)
	}

	metrics.PathsEnumerated.Add(float64(len(paths)))
	span.SetAttributes(attribute.Int("paths.count", len(paths)))
	return paths, nil
}

// CheckPaths evaluates the selected representative paths with the external
// evaluator. Per-path evaluation failures are recorded and skipped, never
// fatal; the error return covers path selection only.
func (c *Checker) CheckPaths(ctx context.Context, scenario story.Scenario, evaluator Evaluator, maxPaths int) ([]PathResult, error) {
	ctx, span := tracer.Start(ctx, "consistency.check_paths",
		trace.WithAttributes(attribute.String("scenario.id", scenario.ID)))
	defer span.End()

	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	paths, err := c.SelectDominatorPaths(ctx, scenario, maxPaths)
	if err != nil {
		return nil, err
	}

	results := make([]PathResult, 0, len(paths))
	for _, path := range paths {
		verdict, err := evaluator.EvaluatePath(ctx, PathEvaluation{
			ScenarioID: scenario.ID,
			SceneIDs:   path,
			Content:    concatContent(scenario, path),
		})
		if err != nil {
			metrics.PathEvaluations.WithLabelValues("error").Inc()
			results = append(results, PathResult{SceneIDs: path, Err: err})
			continue
		}
		outcome := "failed"
		if verdict.Passed {
			outcome = "passed"
		}
		metrics.PathEvaluations.WithLabelValues(outcome).Inc()
		results = append(results, PathResult{SceneIDs: path, Verdict: verdict})
	}

	c.emit(ctx, telemetry.TypePathsEvaluated, scenario.ID,
		fmt.Sprintf("%d paths evaluated", len(results)))
	return results, nil
}

// stitchChain expands a dominator chain into a concrete path by joining the
// consecutive chain nodes with shortest graph segments.
func stitchChain(g *graph.Directed[string, flow.Choice], chain []string) ([]string, bool) {
	if len(chain) == 0 {
		return nil, false
	}
	path := []string{chain[0]}
	for i := 1; i < len(chain); i++ {
		segment, ok := shortestPath(g, chain[i-1], chain[i])
		if !ok {
			return nil, false
		}
		path = append(path, segment[1:]...)
	}
	return path, true
}

// shortestPath is a plain BFS from source to target.
func shortestPath(g *graph.Directed[string, flow.Choice], source, target string) ([]string, bool) {
	if source == target {
		return []string{source}, true
	}
	previous := map[string]string{source: source}
	frontier := []string{source}
	for len(frontier) > 0 {
		node := frontier[0]
		frontier = frontier[1:]
		for _, successor := range g.Successors(node) {
			if _, seen := previous[successor]; seen {
				continue
			}
			previous[successor] = node
			if successor == target {
				var path []string
				for at := target; ; at = previous[at] {
					path = append([]string{at}, path...)
					if at == source {
						return path, true
					}
				}
			}
			frontier = append(frontier, successor)
		}
	}
	return nil, false
}

func concatContent(scenario story.Scenario, path []string) string {
	var b strings.Builder
	for i, sceneID := range path {
		scene, ok := scenario.SceneByID(sceneID)
		if !ok {
			continue
		}
		if i > 0 {
			b.WriteString("\n\n")
		}
		if scene.Title != "" {
			b.WriteString(scene.Title)
			b.WriteString("\n")
		}
		b.WriteString(scene.Content)
	}
	return b.String()
}
