package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/louisbranch/storyweave/internal/consistency"
	"github.com/louisbranch/storyweave/internal/storage"
	"github.com/louisbranch/storyweave/internal/story"
)

const harborYAML = `id: scn-harbor
title: The Harbor
scenes:
  - id: intro
    next: fork
    introduces: [captain]
  - id: fork
    branches:
      - label: take the skiff
        next: skiff
      - label: walk the pier
        next: pier
  - id: skiff
    next: end
    introduces: [oar]
  - id: pier
    next: end
  - id: end
    references: [captain, oar]
`

type memoryScenarioStore struct {
	scenarios map[string]story.Scenario
}

func newMemoryScenarioStore() *memoryScenarioStore {
	return &memoryScenarioStore{scenarios: make(map[string]story.Scenario)}
}

func (s *memoryScenarioStore) PutScenario(ctx context.Context, scenario story.Scenario) error {
	s.scenarios[scenario.ID] = scenario
	return nil
}

func (s *memoryScenarioStore) GetScenario(ctx context.Context, id string) (story.Scenario, error) {
	scenario, ok := s.scenarios[id]
	if !ok {
		return story.Scenario{}, storage.ErrNotFound
	}
	return scenario, nil
}

func (s *memoryScenarioStore) ListScenarios(ctx context.Context) ([]story.Scenario, error) {
	var out []story.Scenario
	for _, scenario := range s.scenarios {
		out = append(out, scenario)
	}
	return out, nil
}

func (s *memoryScenarioStore) DeleteScenario(ctx context.Context, id string) error {
	if _, ok := s.scenarios[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.scenarios, id)
	return nil
}

type memoryReportStore struct {
	reports []consistency.Report
}

func (s *memoryReportStore) PutReport(ctx context.Context, report consistency.Report) error {
	s.reports = append(s.reports, report)
	return nil
}

func (s *memoryReportStore) GetReport(ctx context.Context, id string) (consistency.Report, error) {
	for _, report := range s.reports {
		if report.ID == id {
			return report, nil
		}
	}
	return consistency.Report{}, storage.ErrNotFound
}

func (s *memoryReportStore) ListReports(ctx context.Context, scenarioID string) ([]consistency.Report, error) {
	var out []consistency.Report
	for i := len(s.reports) - 1; i >= 0; i-- {
		if s.reports[i].ScenarioID == scenarioID {
			out = append(out, s.reports[i])
		}
	}
	return out, nil
}

type passingEvaluator struct {
	calls int
}

func (e *passingEvaluator) EvaluatePath(ctx context.Context, evaluation consistency.PathEvaluation) (consistency.Verdict, error) {
	e.calls++
	return consistency.Verdict{Passed: true}, nil
}

func newTestServer(t *testing.T) (*Server, *memoryScenarioStore, *memoryReportStore) {
	t.Helper()

	scenarios := newMemoryScenarioStore()
	reports := &memoryReportStore{}
	server, err := New(Config{
		Checker:   consistency.NewChecker(consistency.Config{Reports: reports}),
		Scenarios: scenarios,
		Reports:   reports,
		Evaluator: &passingEvaluator{},
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server, scenarios, reports
}

func TestNewRequiresChecker(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected missing checker error")
	}
}

func TestStoreScenarioAndCheckByID(t *testing.T) {
	server, scenarios, _ := newTestServer(t)

	_, stored, err := server.storeScenarioHandler()(context.Background(), nil, StoreScenarioInput{ScenarioYAML: harborYAML})
	if err != nil {
		t.Fatalf("store scenario: %v", err)
	}
	if stored.ScenarioID != "scn-harbor" {
		t.Fatalf("scenario_id = %q, want scn-harbor", stored.ScenarioID)
	}
	if stored.SceneCount != 5 {
		t.Fatalf("scene_count = %d, want 5", stored.SceneCount)
	}
	if _, ok := scenarios.scenarios["scn-harbor"]; !ok {
		t.Fatal("expected scenario in store")
	}

	_, checked, err := server.checkScenarioHandler()(context.Background(), nil, CheckScenarioInput{
		ScenarioRef: ScenarioRef{ScenarioID: "scn-harbor"},
	})
	if err != nil {
		t.Fatalf("check scenario: %v", err)
	}
	if !checked.HasErrors {
		t.Fatal("expected dangling reference error")
	}
	var sawDangling bool
	for _, finding := range checked.Findings {
		if finding.Kind == string(consistency.KindDanglingReference) && finding.Entity == "oar" {
			sawDangling = true
		}
	}
	if !sawDangling {
		t.Fatalf("expected oar dangling finding, got %v", checked.Findings)
	}
}

func TestStoreScenarioGeneratesMissingID(t *testing.T) {
	server, _, _ := newTestServer(t)

	doc := "title: Untitled Draft\nscenes:\n  - id: solo\n"
	_, stored, err := server.storeScenarioHandler()(context.Background(), nil, StoreScenarioInput{ScenarioYAML: doc})
	if err != nil {
		t.Fatalf("store scenario: %v", err)
	}
	if stored.ScenarioID == "" {
		t.Fatal("expected generated scenario id")
	}
}

func TestCheckScenarioInlineYAML(t *testing.T) {
	server, _, _ := newTestServer(t)

	_, checked, err := server.checkScenarioHandler()(context.Background(), nil, CheckScenarioInput{
		ScenarioRef: ScenarioRef{ScenarioYAML: harborYAML},
	})
	if err != nil {
		t.Fatalf("check scenario: %v", err)
	}
	if len(checked.Findings) == 0 {
		t.Fatal("expected findings from inline document")
	}
}

func TestResolveScenarioRejectsBadRefs(t *testing.T) {
	server, _, _ := newTestServer(t)

	tests := []struct {
		name string
		ref  ScenarioRef
	}{
		{name: "neither", ref: ScenarioRef{}},
		{name: "both", ref: ScenarioRef{ScenarioID: "scn-1", ScenarioYAML: harborYAML}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := server.resolveScenario(context.Background(), tc.ref); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	_, err := server.resolveScenario(context.Background(), ScenarioRef{ScenarioID: "missing"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnumeratePathsHandler(t *testing.T) {
	server, _, _ := newTestServer(t)

	_, result, err := server.enumeratePathsHandler()(context.Background(), nil, EnumeratePathsInput{
		ScenarioRef: ScenarioRef{ScenarioYAML: harborYAML},
	})
	if err != nil {
		t.Fatalf("enumerate paths: %v", err)
	}
	if result.StartScene != "intro" {
		t.Fatalf("start_scene = %q, want intro", result.StartScene)
	}
	if len(result.Endings) != 1 || result.Endings[0] != "end" {
		t.Fatalf("endings = %v, want [end]", result.Endings)
	}
	if len(result.Paths) != 2 {
		t.Fatalf("paths = %d, want 2", len(result.Paths))
	}
}

func TestMustEntitiesHandler(t *testing.T) {
	server, _, _ := newTestServer(t)

	_, result, err := server.mustEntitiesHandler()(context.Background(), nil, MustEntitiesInput{
		ScenarioRef: ScenarioRef{ScenarioYAML: harborYAML},
	})
	if err != nil {
		t.Fatalf("must entities: %v", err)
	}

	byScene := make(map[string][]string, len(result.Scenes))
	for _, scene := range result.Scenes {
		byScene[scene.SceneID] = scene.Entities
	}
	if got := byScene["skiff"]; len(got) != 2 || got[0] != "captain" || got[1] != "oar" {
		t.Fatalf("skiff entities = %v, want [captain oar]", got)
	}
	if got := byScene["end"]; len(got) != 1 || got[0] != "captain" {
		t.Fatalf("end entities = %v, want [captain]", got)
	}
}

func TestExploreStateSpaceHandler(t *testing.T) {
	server, _, _ := newTestServer(t)

	_, result, err := server.exploreStateSpaceHandler()(context.Background(), nil, ExploreStateSpaceInput{
		ScenarioRef: ScenarioRef{ScenarioYAML: harborYAML},
	})
	if err != nil {
		t.Fatalf("explore state space: %v", err)
	}
	if result.StartScene != "intro" {
		t.Fatalf("start_scene = %q, want intro", result.StartScene)
	}
	// The oar split keeps two end states apart, so six states total.
	if result.StateCount != 6 {
		t.Fatalf("state_count = %d, want 6", result.StateCount)
	}
	if len(result.States) != result.StateCount {
		t.Fatalf("states = %d, want %d", len(result.States), result.StateCount)
	}
}

func TestEvaluatePathsHandler(t *testing.T) {
	server, _, _ := newTestServer(t)

	_, result, err := server.evaluatePathsHandler()(context.Background(), nil, EvaluatePathsInput{
		ScenarioRef: ScenarioRef{ScenarioYAML: harborYAML},
	})
	if err != nil {
		t.Fatalf("evaluate paths: %v", err)
	}
	if len(result.Paths) == 0 {
		t.Fatal("expected evaluated paths")
	}
	for _, path := range result.Paths {
		if !path.Passed || path.Error != "" {
			t.Fatalf("expected passing verdicts, got %+v", path)
		}
	}

	server.evaluator = nil
	if _, _, err := server.evaluatePathsHandler()(context.Background(), nil, EvaluatePathsInput{
		ScenarioRef: ScenarioRef{ScenarioYAML: harborYAML},
	}); err == nil {
		t.Fatal("expected missing evaluator error")
	}
}

func TestListReportsHandler(t *testing.T) {
	server, _, reports := newTestServer(t)

	if _, _, err := server.checkScenarioHandler()(context.Background(), nil, CheckScenarioInput{
		ScenarioRef: ScenarioRef{ScenarioYAML: harborYAML},
	}); err != nil {
		t.Fatalf("check scenario: %v", err)
	}
	if len(reports.reports) != 1 {
		t.Fatalf("expected 1 persisted report, got %d", len(reports.reports))
	}

	_, result, err := server.listReportsHandler()(context.Background(), nil, ListReportsInput{ScenarioID: "scn-harbor"})
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if len(result.Reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(result.Reports))
	}
	if result.Reports[0].ReportID != reports.reports[0].ID {
		t.Fatalf("report_id = %q, want %q", result.Reports[0].ReportID, reports.reports[0].ID)
	}
	if !result.Reports[0].HasErrors {
		t.Fatal("expected report with errors")
	}
}
