package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/storyweave/internal/consistency"
	"github.com/louisbranch/storyweave/internal/platform/id"
	"github.com/louisbranch/storyweave/internal/story"
	"github.com/louisbranch/storyweave/internal/story/flow"
	"github.com/louisbranch/storyweave/internal/story/yamlcodec"
)

// ScenarioRef selects the scenario a tool operates on: either a stored
// scenario by id or an inline YAML document. Exactly one must be set.
type ScenarioRef struct {
	ScenarioID   string `json:"scenario_id,omitempty" jsonschema:"id of a stored scenario"`
	ScenarioYAML string `json:"scenario_yaml,omitempty" jsonschema:"inline scenario YAML document"`
}

// StoreScenarioInput represents the MCP tool input for storing a scenario.
type StoreScenarioInput struct {
	ScenarioYAML string `json:"scenario_yaml" jsonschema:"scenario YAML document to store"`
}

// StoreScenarioResult represents the MCP tool output for storing a scenario.
type StoreScenarioResult struct {
	ScenarioID string `json:"scenario_id" jsonschema:"id of the stored scenario"`
	Title      string `json:"title" jsonschema:"scenario title"`
	SceneCount int    `json:"scene_count" jsonschema:"number of scenes stored"`
}

// ListScenariosInput represents the MCP tool input for listing scenarios.
type ListScenariosInput struct{}

// ScenarioSummary summarises one stored scenario.
type ScenarioSummary struct {
	ScenarioID string `json:"scenario_id" jsonschema:"scenario id"`
	Title      string `json:"title" jsonschema:"scenario title"`
	SceneCount int    `json:"scene_count" jsonschema:"number of scenes"`
	UpdatedAt  string `json:"updated_at" jsonschema:"last update time in RFC 3339"`
}

// ListScenariosResult represents the MCP tool output for listing scenarios.
type ListScenariosResult struct {
	Scenarios []ScenarioSummary `json:"scenarios" jsonschema:"stored scenarios"`
}

// CheckScenarioInput represents the MCP tool input for a consistency check.
type CheckScenarioInput struct {
	ScenarioRef
}

// FindingPayload represents one consistency finding.
type FindingPayload struct {
	Kind     string `json:"kind" jsonschema:"finding kind"`
	Severity string `json:"severity" jsonschema:"error or warning"`
	SceneID  string `json:"scene_id,omitempty" jsonschema:"scene the finding is located in"`
	Entity   string `json:"entity,omitempty" jsonschema:"entity the finding is about"`
	Message  string `json:"message" jsonschema:"human readable description"`
}

// CheckScenarioResult represents the MCP tool output for a consistency check.
type CheckScenarioResult struct {
	ReportID  string           `json:"report_id" jsonschema:"id of the generated report"`
	HasErrors bool             `json:"has_errors" jsonschema:"whether any finding is error severity"`
	Findings  []FindingPayload `json:"findings" jsonschema:"consistency findings"`
}

// EnumeratePathsInput represents the MCP tool input for path enumeration.
type EnumeratePathsInput struct {
	ScenarioRef
	MaxPaths int `json:"max_paths,omitempty" jsonschema:"maximum number of paths, default 100"`
}

// EnumeratePathsResult represents the MCP tool output for path enumeration.
type EnumeratePathsResult struct {
	StartScene string     `json:"start_scene" jsonschema:"detected start scene"`
	Endings    []string   `json:"endings" jsonschema:"ending scene ids"`
	Paths      [][]string `json:"paths" jsonschema:"scene id sequences from start to an ending"`
}

// MustEntitiesInput represents the MCP tool input for guaranteed entities.
type MustEntitiesInput struct {
	ScenarioRef
}

// SceneEntities pairs one scene with its guaranteed-present entities.
type SceneEntities struct {
	SceneID  string   `json:"scene_id" jsonschema:"scene id"`
	Entities []string `json:"entities" jsonschema:"entities guaranteed present on every path"`
}

// MustEntitiesResult represents the MCP tool output for guaranteed entities.
type MustEntitiesResult struct {
	Scenes []SceneEntities `json:"scenes" jsonschema:"guaranteed entities per reachable scene"`
}

// ExploreStateSpaceInput represents the MCP tool input for exploration.
type ExploreStateSpaceInput struct {
	ScenarioRef
	MaxDepth int `json:"max_depth,omitempty" jsonschema:"maximum exploration depth, default four times the scene count"`
}

// StateNode summarises one merged state node.
type StateNode struct {
	SceneID  string   `json:"scene_id" jsonschema:"scene id"`
	Entities []string `json:"entities" jsonschema:"entities present in this state"`
	Terminal bool     `json:"terminal" jsonschema:"whether exploration stopped here"`
}

// ExploreStateSpaceResult represents the MCP tool output for exploration.
type ExploreStateSpaceResult struct {
	StartScene string      `json:"start_scene" jsonschema:"detected start scene"`
	StateCount int         `json:"state_count" jsonschema:"number of merged state nodes"`
	EdgeCount  int         `json:"edge_count" jsonschema:"number of transitions"`
	States     []StateNode `json:"states" jsonschema:"merged state nodes"`
}

// EvaluatePathsInput represents the MCP tool input for path evaluation.
type EvaluatePathsInput struct {
	ScenarioRef
	MaxPaths int `json:"max_paths,omitempty" jsonschema:"maximum number of representative paths"`
}

// PathVerdict represents one evaluated path.
type PathVerdict struct {
	SceneIDs []string `json:"scene_ids" jsonschema:"scene id sequence"`
	Passed   bool     `json:"passed" jsonschema:"whether the evaluator passed the path"`
	Issues   []string `json:"issues,omitempty" jsonschema:"issues the evaluator reported"`
	Error    string   `json:"error,omitempty" jsonschema:"evaluation error, when the evaluator failed"`
}

// EvaluatePathsResult represents the MCP tool output for path evaluation.
type EvaluatePathsResult struct {
	Paths []PathVerdict `json:"paths" jsonschema:"verdict per representative path"`
}

// ListReportsInput represents the MCP tool input for listing reports.
type ListReportsInput struct {
	ScenarioID string `json:"scenario_id" jsonschema:"scenario to list reports for"`
}

// ReportSummary summarises one stored consistency report.
type ReportSummary struct {
	ReportID     string `json:"report_id" jsonschema:"report id"`
	CreatedAt    string `json:"created_at" jsonschema:"creation time in RFC 3339"`
	FindingCount int    `json:"finding_count" jsonschema:"number of findings"`
	HasErrors    bool   `json:"has_errors" jsonschema:"whether any finding is error severity"`
}

// ListReportsResult represents the MCP tool output for listing reports.
type ListReportsResult struct {
	Reports []ReportSummary `json:"reports" jsonschema:"stored reports, newest first"`
}

// StoreScenarioTool defines the MCP tool schema for storing a scenario.
func StoreScenarioTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "store_scenario",
		Description: "Validates and stores a scenario YAML document",
	}
}

// ListScenariosTool defines the MCP tool schema for listing scenarios.
func ListScenariosTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_scenarios",
		Description: "Lists stored scenarios",
	}
}

// CheckScenarioTool defines the MCP tool schema for consistency checks.
func CheckScenarioTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "check_scenario",
		Description: "Runs the narrative-consistency check over a scenario",
	}
}

// EnumeratePathsTool defines the MCP tool schema for path enumeration.
func EnumeratePathsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "enumerate_paths",
		Description: "Enumerates playthrough paths from the start scene to every ending",
	}
}

// MustEntitiesTool defines the MCP tool schema for guaranteed entities.
func MustEntitiesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "must_entities",
		Description: "Computes the entities guaranteed present at each scene",
	}
}

// ExploreStateSpaceTool defines the MCP tool schema for exploration.
func ExploreStateSpaceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "explore_state_space",
		Description: "Explores the merged branching state space of a scenario",
	}
}

// EvaluatePathsTool defines the MCP tool schema for path evaluation.
func EvaluatePathsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "evaluate_paths",
		Description: "Evaluates representative playthrough paths with the configured evaluator",
	}
}

// ListReportsTool defines the MCP tool schema for listing reports.
func ListReportsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_reports",
		Description: "Lists stored consistency reports for a scenario, newest first",
	}
}

func (s *Server) resolveScenario(ctx context.Context, ref ScenarioRef) (story.Scenario, error) {
	switch {
	case ref.ScenarioYAML != "" && ref.ScenarioID != "":
		return story.Scenario{}, fmt.Errorf("set scenario_id or scenario_yaml, not both")
	case ref.ScenarioYAML != "":
		return yamlcodec.Decode(strings.NewReader(ref.ScenarioYAML))
	case ref.ScenarioID != "":
		if s.scenarios == nil {
			return story.Scenario{}, fmt.Errorf("scenario storage is not configured")
		}
		return s.scenarios.GetScenario(ctx, ref.ScenarioID)
	default:
		return story.Scenario{}, fmt.Errorf("scenario_id or scenario_yaml is required")
	}
}

func (s *Server) storeScenarioHandler() mcp.ToolHandlerFor[StoreScenarioInput, StoreScenarioResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input StoreScenarioInput) (*mcp.CallToolResult, StoreScenarioResult, error) {
		if s.scenarios == nil {
			return nil, StoreScenarioResult{}, fmt.Errorf("scenario storage is not configured")
		}
		scenario, err := yamlcodec.Decode(strings.NewReader(input.ScenarioYAML))
		if err != nil {
			return nil, StoreScenarioResult{}, err
		}
		if scenario.ID == "" {
			generated, err := id.NewID()
			if err != nil {
				return nil, StoreScenarioResult{}, fmt.Errorf("generate scenario id: %w", err)
			}
			scenario.ID = generated
		}
		if err := s.scenarios.PutScenario(ctx, scenario); err != nil {
			return nil, StoreScenarioResult{}, err
		}
		return nil, StoreScenarioResult{
			ScenarioID: scenario.ID,
			Title:      scenario.Title,
			SceneCount: len(scenario.Scenes),
		}, nil
	}
}

func (s *Server) listScenariosHandler() mcp.ToolHandlerFor[ListScenariosInput, ListScenariosResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListScenariosInput) (*mcp.CallToolResult, ListScenariosResult, error) {
		if s.scenarios == nil {
			return nil, ListScenariosResult{}, fmt.Errorf("scenario storage is not configured")
		}
		scenarios, err := s.scenarios.ListScenarios(ctx)
		if err != nil {
			return nil, ListScenariosResult{}, err
		}
		result := ListScenariosResult{Scenarios: make([]ScenarioSummary, 0, len(scenarios))}
		for _, scenario := range scenarios {
			result.Scenarios = append(result.Scenarios, ScenarioSummary{
				ScenarioID: scenario.ID,
				Title:      scenario.Title,
				SceneCount: len(scenario.Scenes),
				UpdatedAt:  scenario.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil, result, nil
	}
}

func (s *Server) checkScenarioHandler() mcp.ToolHandlerFor[CheckScenarioInput, CheckScenarioResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CheckScenarioInput) (*mcp.CallToolResult, CheckScenarioResult, error) {
		scenario, err := s.resolveScenario(ctx, input.ScenarioRef)
		if err != nil {
			return nil, CheckScenarioResult{}, err
		}
		report, err := s.checker.CheckScenario(ctx, scenario)
		if err != nil {
			return nil, CheckScenarioResult{}, err
		}
		result := CheckScenarioResult{
			ReportID:  report.ID,
			HasErrors: report.HasErrors(),
			Findings:  make([]FindingPayload, 0, len(report.Findings)),
		}
		for _, finding := range report.Findings {
			result.Findings = append(result.Findings, FindingPayload{
				Kind:     string(finding.Kind),
				Severity: string(finding.Severity),
				SceneID:  finding.SceneID,
				Entity:   finding.Entity,
				Message:  finding.Message,
			})
		}
		return nil, result, nil
	}
}

func (s *Server) enumeratePathsHandler() mcp.ToolHandlerFor[EnumeratePathsInput, EnumeratePathsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EnumeratePathsInput) (*mcp.CallToolResult, EnumeratePathsResult, error) {
		scenario, err := s.resolveScenario(ctx, input.ScenarioRef)
		if err != nil {
			return nil, EnumeratePathsResult{}, err
		}
		start, ok := flow.FindStartScene(scenario)
		if !ok {
			return nil, EnumeratePathsResult{}, consistency.ErrNoScenes
		}
		return nil, EnumeratePathsResult{
			StartScene: start,
			Endings:    flow.FindEndingScenes(scenario),
			Paths:      flow.EnumeratePaths(scenario, input.MaxPaths),
		}, nil
	}
}

func (s *Server) mustEntitiesHandler() mcp.ToolHandlerFor[MustEntitiesInput, MustEntitiesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input MustEntitiesInput) (*mcp.CallToolResult, MustEntitiesResult, error) {
		scenario, err := s.resolveScenario(ctx, input.ScenarioRef)
		if err != nil {
			return nil, MustEntitiesResult{}, err
		}
		must, err := s.checker.MustIntroduced(ctx, scenario)
		if err != nil {
			return nil, MustEntitiesResult{}, err
		}
		result := MustEntitiesResult{Scenes: make([]SceneEntities, 0, len(must))}
		for sceneID, entities := range must {
			sorted := make([]string, 0, len(entities))
			for entity := range entities {
				sorted = append(sorted, entity)
			}
			sort.Strings(sorted)
			result.Scenes = append(result.Scenes, SceneEntities{SceneID: sceneID, Entities: sorted})
		}
		sort.Slice(result.Scenes, func(i, j int) bool {
			return result.Scenes[i].SceneID < result.Scenes[j].SceneID
		})
		return nil, result, nil
	}
}

func (s *Server) exploreStateSpaceHandler() mcp.ToolHandlerFor[ExploreStateSpaceInput, ExploreStateSpaceResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ExploreStateSpaceInput) (*mcp.CallToolResult, ExploreStateSpaceResult, error) {
		scenario, err := s.resolveScenario(ctx, input.ScenarioRef)
		if err != nil {
			return nil, ExploreStateSpaceResult{}, err
		}
		exploration, err := s.checker.ExploreScenario(ctx, scenario, consistency.ExploreOptions{MaxDepth: input.MaxDepth})
		if err != nil {
			return nil, ExploreStateSpaceResult{}, err
		}
		result := ExploreStateSpaceResult{
			StartScene: exploration.StartScene,
			StateCount: exploration.Result.Graph.Len(),
			EdgeCount:  len(exploration.Result.Graph.Edges()),
		}
		for node, state := range exploration.Result.Representatives {
			_, terminal := exploration.Result.Terminals[node]
			result.States = append(result.States, StateNode{
				SceneID:  node.Scene,
				Entities: state.Entities(),
				Terminal: terminal,
			})
		}
		sort.Slice(result.States, func(i, j int) bool {
			if result.States[i].SceneID != result.States[j].SceneID {
				return result.States[i].SceneID < result.States[j].SceneID
			}
			return strings.Join(result.States[i].Entities, "|") < strings.Join(result.States[j].Entities, "|")
		})
		return nil, result, nil
	}
}

func (s *Server) evaluatePathsHandler() mcp.ToolHandlerFor[EvaluatePathsInput, EvaluatePathsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EvaluatePathsInput) (*mcp.CallToolResult, EvaluatePathsResult, error) {
		if s.evaluator == nil {
			return nil, EvaluatePathsResult{}, fmt.Errorf("path evaluator is not configured")
		}
		scenario, err := s.resolveScenario(ctx, input.ScenarioRef)
		if err != nil {
			return nil, EvaluatePathsResult{}, err
		}
		results, err := s.checker.CheckPaths(ctx, scenario, s.evaluator, input.MaxPaths)
		if err != nil {
			return nil, EvaluatePathsResult{}, err
		}
		payload := EvaluatePathsResult{Paths: make([]PathVerdict, 0, len(results))}
		for _, result := range results {
			verdict := PathVerdict{
				SceneIDs: result.SceneIDs,
				Passed:   result.Verdict.Passed,
				Issues:   result.Verdict.Issues,
			}
			if result.Err != nil {
				verdict.Error = result.Err.Error()
			}
			payload.Paths = append(payload.Paths, verdict)
		}
		return nil, payload, nil
	}
}

func (s *Server) listReportsHandler() mcp.ToolHandlerFor[ListReportsInput, ListReportsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListReportsInput) (*mcp.CallToolResult, ListReportsResult, error) {
		if s.reports == nil {
			return nil, ListReportsResult{}, fmt.Errorf("report storage is not configured")
		}
		reports, err := s.reports.ListReports(ctx, input.ScenarioID)
		if err != nil {
			return nil, ListReportsResult{}, err
		}
		result := ListReportsResult{Reports: make([]ReportSummary, 0, len(reports))}
		for _, report := range reports {
			result.Reports = append(result.Reports, ReportSummary{
				ReportID:     report.ID,
				CreatedAt:    report.CreatedAt.UTC().Format(time.RFC3339),
				FindingCount: len(report.Findings),
				HasErrors:    report.HasErrors(),
			})
		}
		return nil, result, nil
	}
}
