package yamlcodec

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/storyweave/internal/story"
)

const harborYAML = `id: scn-harbor
title: The Harbor
scenes:
  - id: intro
    title: Arrival
    content: The ferry docks at dusk.
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
    references: [captain]
`

func TestDecodeScenario(t *testing.T) {
	scenario, err := Decode(strings.NewReader(harborYAML))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if scenario.ID != "scn-harbor" {
		t.Fatalf("id = %q, want scn-harbor", scenario.ID)
	}
	if scenario.Title != "The Harbor" {
		t.Fatalf("title = %q, want The Harbor", scenario.Title)
	}
	if len(scenario.Scenes) != 5 {
		t.Fatalf("scenes = %d, want 5", len(scenario.Scenes))
	}
	intro := scenario.Scenes[0]
	if intro.Next != "fork" || len(intro.Introduces) != 1 || intro.Introduces[0] != "captain" {
		t.Fatalf("intro scene did not decode: %+v", intro)
	}
	fork := scenario.Scenes[1]
	if len(fork.Branches) != 2 || fork.Branches[0].Label != "take the skiff" {
		t.Fatalf("fork branches did not decode: %+v", fork)
	}
}

func TestDecodeNormalizesContent(t *testing.T) {
	doc := `title: "  Trimmed  "
scenes:
  - id: "  solo  "
    introduces: [ghost, ghost, "  "]
`
	scenario, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if scenario.Title != "Trimmed" {
		t.Fatalf("title = %q, want Trimmed", scenario.Title)
	}
	if scenario.Scenes[0].ID != "solo" {
		t.Fatalf("scene id = %q, want solo", scenario.Scenes[0].ID)
	}
	if got := scenario.Scenes[0].Introduces; len(got) != 1 || got[0] != "ghost" {
		t.Fatalf("introduces = %v, want [ghost]", got)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	doc := `title: Bad
chapters:
  - id: one
`
	if _, err := Decode(strings.NewReader(doc)); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "missing title",
			doc:  "scenes:\n  - id: a\n",
			want: story.ErrEmptyTitle,
		},
		{
			name: "no scenes",
			doc:  "title: Empty\n",
			want: story.ErrNoScenes,
		},
		{
			name: "duplicate scene id",
			doc:  "title: Dup\nscenes:\n  - id: a\n  - id: a\n",
			want: story.ErrDuplicateSceneID,
		},
		{
			name: "unknown next target",
			doc:  "title: Dangle\nscenes:\n  - id: a\n    next: ghost\n",
			want: story.ErrUnknownSceneRef,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.doc))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	if _, err := Decode(strings.NewReader("")); err == nil {
		t.Fatal("expected empty document error")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original, err := Decode(strings.NewReader(harborYAML))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, original); err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode round trip: %v", err)
	}

	if decoded.ID != original.ID || decoded.Title != original.Title {
		t.Fatalf("header did not round-trip: %+v", decoded)
	}
	if len(decoded.Scenes) != len(original.Scenes) {
		t.Fatalf("scenes = %d, want %d", len(decoded.Scenes), len(original.Scenes))
	}
	for i := range original.Scenes {
		if decoded.Scenes[i].ID != original.Scenes[i].ID {
			t.Fatalf("scene %d id = %q, want %q", i, decoded.Scenes[i].ID, original.Scenes[i].ID)
		}
	}
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harbor.yaml")
	if err := os.WriteFile(path, []byte(harborYAML), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	scenario, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("decode file: %v", err)
	}
	if scenario.ID != "scn-harbor" {
		t.Fatalf("id = %q, want scn-harbor", scenario.ID)
	}

	if _, err := DecodeFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}
