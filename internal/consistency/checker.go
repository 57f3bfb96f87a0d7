package consistency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/storyweave/internal/graph"
	"github.com/louisbranch/storyweave/internal/graph/dataflow"
	"github.com/louisbranch/storyweave/internal/metrics"
	"github.com/louisbranch/storyweave/internal/platform/id"
	"github.com/louisbranch/storyweave/internal/storage"
	"github.com/louisbranch/storyweave/internal/story"
	"github.com/louisbranch/storyweave/internal/story/flow"
	"github.com/louisbranch/storyweave/internal/telemetry"
)

var tracer = otel.Tracer("storyweave.consistency")

// ErrNoScenes indicates a scenario with nothing to check.
var ErrNoScenes = errors.New("scenario has no scenes")

// Config wires optional collaborators into a Checker. Every field may be
// left zero: reports are then not persisted, telemetry is dropped, and the
// real clock and id generator apply.
type Config struct {
	Reports     ReportStore
	Telemetry   *telemetry.Emitter
	Clock       func() time.Time
	IDGenerator func() (string, error)
}

// Checker runs consistency analyses over scenario content. A Checker is
// stateless between calls and safe for concurrent use.
type Checker struct {
	reports   ReportStore
	telemetry *telemetry.Emitter
	clock     func() time.Time
	idGen     func() (string, error)
}

// NewChecker creates a checker from the given configuration.
func NewChecker(cfg Config) *Checker {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = id.NewID
	}
	return &Checker{
		reports:   cfg.Reports,
		telemetry: cfg.Telemetry,
		clock:     clock,
		idGen:     idGen,
	}
}

// CheckScenario builds the scene graph, runs the must-introduced analysis
// from the start scene, and returns a report of every narrative-consistency
// finding. The report is persisted when a report store is configured.
func (c *Checker) CheckScenario(ctx context.Context, scenario story.Scenario) (Report, error) {
	ctx, span := tracer.Start(ctx, "consistency.check_scenario",
		trace.WithAttributes(attribute.String("scenario.id", scenario.ID)))
	defer span.End()

	started := c.clock()
	if len(scenario.Scenes) == 0 {
		return Report{}, ErrNoScenes
	}

	g := flow.BuildGraph(scenario)
	start, _ := flow.FindStartScene(scenario)
	must, err := mustIntroduced(g, scenario, start)
	if err != nil {
		return Report{}, fmt.Errorf("analyze scenario %s: %w", scenario.ID, err)
	}

	findings := collectFindings(g, scenario, start, must)

	reportID, err := c.idGen()
	if err != nil {
		return Report{}, fmt.Errorf("generate report id: %w", err)
	}
	report := Report{
		ID:         reportID,
		ScenarioID: scenario.ID,
		CreatedAt:  c.clock().UTC(),
		Findings:   findings,
	}

	metrics.ScenariosChecked.Inc()
	for _, finding := range findings {
		metrics.FindingsReported.WithLabelValues(string(finding.Kind)).Inc()
	}
	metrics.CheckDuration.Observe(float64(c.clock().Sub(started).Milliseconds()))
	span.SetAttributes(attribute.Int("findings.count", len(findings)))

	if c.reports != nil {
		if err := c.reports.PutReport(ctx, report); err != nil {
			return Report{}, fmt.Errorf("persist report: %w", err)
		}
	}
	c.emit(ctx, telemetry.TypeCheckCompleted, scenario.ID,
		fmt.Sprintf("%d findings", len(findings)))

	return report, nil
}

// MustIntroduced returns the per-scene guaranteed entity sets for a scenario
// using its computed start scene.
func (c *Checker) MustIntroduced(ctx context.Context, scenario story.Scenario) (map[string]map[string]struct{}, error) {
	_, span := tracer.Start(ctx, "consistency.must_introduced",
		trace.WithAttributes(attribute.String("scenario.id", scenario.ID)))
	defer span.End()

	if len(scenario.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	start, _ := flow.FindStartScene(scenario)
	return mustIntroduced(flow.BuildGraph(scenario), scenario, start)
}

func mustIntroduced(g *graph.Directed[string, flow.Choice], scenario story.Scenario, start string) (map[string]map[string]struct{}, error) {
	nodes := make(map[string]dataflow.Node[string, string], len(scenario.Scenes))
	for _, scene := range scenario.Scenes {
		nodes[scene.ID] = dataflow.Node[string, string]{
			ID:           scene.ID,
			Predecessors: g.Predecessors(scene.ID),
			Successors:   g.Successors(scene.ID),
			Introduced:   toSet(scene.Introduces),
			Removed:      toSet(scene.Removes),
		}
	}
	return dataflow.Analyze(nodes, start)
}

func collectFindings(g *graph.Directed[string, flow.Choice], scenario story.Scenario, start string, must map[string]map[string]struct{}) []Finding {
	reachable := reachableFrom(g, start)

	var findings []Finding
	for _, scene := range scenario.Scenes {
		if _, ok := reachable[scene.ID]; !ok {
			findings = append(findings, Finding{
				Kind:     KindUnreachableScene,
				Severity: SeverityWarning,
				SceneID:  scene.ID,
				Message:  fmt.Sprintf("scene %s is unreachable from start scene %s", scene.ID, start),
			})
			continue
		}

		// Entities guaranteed before this scene's own effects apply.
		incoming := meetOverPredecessors(g, must, scene.ID, start)
		introduced := toSet(scene.Introduces)

		for _, entity := range scene.References {
			if _, ok := must[scene.ID][entity]; ok {
				continue
			}
			findings = append(findings, Finding{
				Kind:     KindDanglingReference,
				Severity: SeverityError,
				SceneID:  scene.ID,
				Entity:   entity,
				Message:  fmt.Sprintf("scene %s references %q, which is not guaranteed present on every path", scene.ID, entity),
			})
		}
		for _, entity := range scene.Removes {
			if _, local := introduced[entity]; local {
				continue
			}
			if _, ok := incoming[entity]; ok {
				continue
			}
			findings = append(findings, Finding{
				Kind:     KindRemoveWithoutIntroduce,
				Severity: SeverityWarning,
				SceneID:  scene.ID,
				Entity:   entity,
				Message:  fmt.Sprintf("scene %s removes %q, which is not guaranteed present at that point", scene.ID, entity),
			})
		}
		for _, entity := range scene.Introduces {
			if _, ok := incoming[entity]; !ok {
				continue
			}
			findings = append(findings, Finding{
				Kind:     KindShadowedIntroduce,
				Severity: SeverityWarning,
				SceneID:  scene.ID,
				Entity:   entity,
				Message:  fmt.Sprintf("scene %s introduces %q, which is already guaranteed present", scene.ID, entity),
			})
		}
	}

	if len(flow.FindEndingScenes(scenario)) == 0 {
		findings = append(findings, Finding{
			Kind:     KindNoEndingScene,
			Severity: SeverityWarning,
			Message:  "scenario has no ending scene; every playthrough loops forever",
		})
	}

	return findings
}

func (c *Checker) emit(ctx context.Context, eventType, scenarioID, detail string) {
	if c.telemetry == nil {
		return
	}
	// Telemetry failures never fail an analysis.
	_ = c.telemetry.Emit(ctx, storage.TelemetryEvent{
		Type:       eventType,
		Severity:   string(telemetry.SeverityInfo),
		ScenarioID: scenarioID,
		Detail:     detail,
	})
}

// meetOverPredecessors intersects the must-sets of the scene's predecessors.
// The start scene and isolated scenes have no guaranteed incoming entities.
func meetOverPredecessors(g *graph.Directed[string, flow.Choice], must map[string]map[string]struct{}, sceneID, start string) map[string]struct{} {
	predecessors := g.Predecessors(sceneID)
	if sceneID == start || len(predecessors) == 0 {
		return nil
	}
	meet := make(map[string]struct{})
	for entity := range must[predecessors[0]] {
		meet[entity] = struct{}{}
	}
	for _, predecessor := range predecessors[1:] {
		for entity := range meet {
			if _, ok := must[predecessor][entity]; !ok {
				delete(meet, entity)
			}
		}
	}
	return meet
}

func reachableFrom(g *graph.Directed[string, flow.Choice], start string) map[string]struct{} {
	reachable := map[string]struct{}{start: {}}
	frontier := []string{start}
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

func toSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		out[value] = struct{}{}
	}
	return out
}
