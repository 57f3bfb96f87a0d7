// Package yamlcodec reads and writes scenarios as YAML documents, the
// authoring format checked into content repositories.
package yamlcodec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/storyweave/internal/story"
)

// scenarioDoc is the top-level YAML structure.
type scenarioDoc struct {
	ID     string     `yaml:"id,omitempty"`
	Title  string     `yaml:"title"`
	Scenes []sceneDoc `yaml:"scenes"`
}

type sceneDoc struct {
	ID         string      `yaml:"id"`
	Title      string      `yaml:"title,omitempty"`
	Content    string      `yaml:"content,omitempty"`
	Next       string      `yaml:"next,omitempty"`
	Branches   []branchDoc `yaml:"branches,omitempty"`
	Introduces []string    `yaml:"introduces,omitempty"`
	Removes    []string    `yaml:"removes,omitempty"`
	References []string    `yaml:"references,omitempty"`
}

type branchDoc struct {
	Label string `yaml:"label"`
	Next  string `yaml:"next,omitempty"`
}

// Decode reads one scenario document. Unknown YAML fields are rejected, and
// the scene list is normalized and validated before the scenario is returned.
func Decode(r io.Reader) (story.Scenario, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var doc scenarioDoc
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return story.Scenario{}, fmt.Errorf("decode scenario: empty document")
		}
		return story.Scenario{}, fmt.Errorf("decode scenario: %w", err)
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		return story.Scenario{}, story.ErrEmptyTitle
	}

	scenes := make([]story.Scene, 0, len(doc.Scenes))
	for _, scene := range doc.Scenes {
		branches := make([]story.Branch, 0, len(scene.Branches))
		for _, branch := range scene.Branches {
			branches = append(branches, story.Branch{Label: branch.Label, Next: branch.Next})
		}
		if len(branches) == 0 {
			branches = nil
		}
		scenes = append(scenes, story.Scene{
			ID:         scene.ID,
			Title:      scene.Title,
			Content:    scene.Content,
			Next:       scene.Next,
			Branches:   branches,
			Introduces: scene.Introduces,
			Removes:    scene.Removes,
			References: scene.References,
		})
	}
	scenes, err := story.NormalizeScenes(scenes)
	if err != nil {
		return story.Scenario{}, err
	}

	return story.Scenario{
		ID:     strings.TrimSpace(doc.ID),
		Title:  title,
		Scenes: scenes,
	}, nil
}

// DecodeFile reads one scenario document from disk.
func DecodeFile(path string) (story.Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return story.Scenario{}, fmt.Errorf("open scenario file: %w", err)
	}
	defer file.Close()
	scenario, err := Decode(file)
	if err != nil {
		return story.Scenario{}, fmt.Errorf("%s: %w", path, err)
	}
	return scenario, nil
}

// Encode writes the scenario as a YAML document. Timestamps are storage
// concerns and are not part of the authoring format.
func Encode(w io.Writer, scenario story.Scenario) error {
	doc := scenarioDoc{
		ID:     scenario.ID,
		Title:  scenario.Title,
		Scenes: make([]sceneDoc, 0, len(scenario.Scenes)),
	}
	for _, scene := range scenario.Scenes {
		branches := make([]branchDoc, 0, len(scene.Branches))
		for _, branch := range scene.Branches {
			branches = append(branches, branchDoc{Label: branch.Label, Next: branch.Next})
		}
		if len(branches) == 0 {
			branches = nil
		}
		doc.Scenes = append(doc.Scenes, sceneDoc{
			ID:         scene.ID,
			Title:      scene.Title,
			Content:    scene.Content,
			Next:       scene.Next,
			Branches:   branches,
			Introduces: scene.Introduces,
			Removes:    scene.Removes,
			References: scene.References,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		_ = encoder.Close()
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	return nil
}
