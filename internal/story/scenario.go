// Package story models branching scenario content: scenes, player-choice
// branches, and the entity annotations the consistency engine analyses.
package story

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/storyweave/internal/platform/id"
)

var (
	// ErrEmptyTitle indicates a missing scenario title.
	ErrEmptyTitle = errors.New("scenario title is required")
	// ErrNoScenes indicates a scenario with no scenes.
	ErrNoScenes = errors.New("scenario requires at least one scene")
	// ErrEmptySceneID indicates a scene without an id.
	ErrEmptySceneID = errors.New("scene id is required")
	// ErrDuplicateSceneID indicates two scenes sharing an id.
	ErrDuplicateSceneID = errors.New("scene id is duplicated")
	// ErrUnknownSceneRef indicates a next or branch target that names no
	// scene in the scenario.
	ErrUnknownSceneRef = errors.New("scene reference target is unknown")
	// ErrEmptyBranchLabel indicates a branch without choice text.
	ErrEmptyBranchLabel = errors.New("branch label is required")
)

// Branch is a labelled optional transition from a scene, representing a
// player choice. An empty Next means the choice ends the story.
type Branch struct {
	Label string
	Next  string
}

// Scene is an atomic unit of narrative content. Next is the optional linear
// successor; Branches are labelled alternatives. Introduces, Removes, and
// References annotate which entities the scene brings in, writes out, and
// mentions.
type Scene struct {
	ID         string
	Title      string
	Content    string
	Next       string
	Branches   []Branch
	Introduces []string
	Removes    []string
	References []string
}

// Scenario is an authored branching story. Scene order carries no meaning
// beyond the first-scene fallback used when no unambiguous start exists.
type Scenario struct {
	ID        string
	Title     string
	Scenes    []Scene
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateScenarioInput describes the content needed to create a scenario.
type CreateScenarioInput struct {
	Title  string
	Scenes []Scene
}

// CreateScenario creates a scenario with a generated id and timestamps.
func CreateScenario(input CreateScenarioInput, now func() time.Time, idGenerator func() (string, error)) (Scenario, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateScenarioInput(input)
	if err != nil {
		return Scenario{}, err
	}

	scenarioID, err := idGenerator()
	if err != nil {
		return Scenario{}, fmt.Errorf("generate scenario id: %w", err)
	}

	createdAt := now().UTC()
	return Scenario{
		ID:        scenarioID,
		Title:     normalized.Title,
		Scenes:    normalized.Scenes,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// NormalizeCreateScenarioInput trims and validates scenario content.
func NormalizeCreateScenarioInput(input CreateScenarioInput) (CreateScenarioInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return CreateScenarioInput{}, ErrEmptyTitle
	}
	scenes, err := NormalizeScenes(input.Scenes)
	if err != nil {
		return CreateScenarioInput{}, err
	}
	input.Scenes = scenes
	return input, nil
}

// NormalizeScenes trims scene content, deduplicates entity annotations, and
// validates ids, branch labels, and reference targets.
func NormalizeScenes(scenes []Scene) ([]Scene, error) {
	if len(scenes) == 0 {
		return nil, ErrNoScenes
	}

	known := make(map[string]struct{}, len(scenes))
	normalized := make([]Scene, len(scenes))
	for i, scene := range scenes {
		scene.ID = strings.TrimSpace(scene.ID)
		if scene.ID == "" {
			return nil, ErrEmptySceneID
		}
		if _, dup := known[scene.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSceneID, scene.ID)
		}
		known[scene.ID] = struct{}{}

		scene.Title = strings.TrimSpace(scene.Title)
		scene.Next = strings.TrimSpace(scene.Next)
		scene.Introduces = dedupe(scene.Introduces)
		scene.Removes = dedupe(scene.Removes)
		scene.References = dedupe(scene.References)
		for j, branch := range scene.Branches {
			branch.Label = strings.TrimSpace(branch.Label)
			if branch.Label == "" {
				return nil, fmt.Errorf("%w: scene %s", ErrEmptyBranchLabel, scene.ID)
			}
			branch.Next = strings.TrimSpace(branch.Next)
			scene.Branches[j] = branch
		}
		normalized[i] = scene
	}

	for _, scene := range normalized {
		if scene.Next != "" {
			if _, ok := known[scene.Next]; !ok {
				return nil, fmt.Errorf("%w: scene %s next %s", ErrUnknownSceneRef, scene.ID, scene.Next)
			}
		}
		for _, branch := range scene.Branches {
			if branch.Next == "" {
				continue
			}
			if _, ok := known[branch.Next]; !ok {
				return nil, fmt.Errorf("%w: scene %s branch %q next %s", ErrUnknownSceneRef, scene.ID, branch.Label, branch.Next)
			}
		}
	}

	return normalized, nil
}

// SceneByID returns the scene with the given id.
func (s Scenario) SceneByID(sceneID string) (Scene, bool) {
	for _, scene := range s.Scenes {
		if scene.ID == sceneID {
			return scene, true
		}
	}
	return Scene{}, false
}

// IsEnding reports whether the scene has neither a linear successor nor any
// branch with a successor.
func (s Scene) IsEnding() bool {
	if s.Next != "" {
		return false
	}
	for _, branch := range s.Branches {
		if branch.Next != "" {
			return false
		}
	}
	return true
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
