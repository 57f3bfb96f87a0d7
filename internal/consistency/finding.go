// Package consistency orchestrates the graph engine over scenario content:
// it computes guaranteed-entity sets per scene, flags dangling narrative
// references, explores the merged state space, and selects representative
// paths for external evaluation.
package consistency

import (
	"context"
	"time"
)

// FindingKind classifies a consistency finding.
type FindingKind string

const (
	// KindDanglingReference flags a scene referencing an entity that is
	// not guaranteed present on every path reaching it.
	KindDanglingReference FindingKind = "dangling_reference"
	// KindRemoveWithoutIntroduce flags removal of an entity that was never
	// guaranteed present at that point.
	KindRemoveWithoutIntroduce FindingKind = "remove_without_introduce"
	// KindShadowedIntroduce flags introduction of an entity already
	// guaranteed present.
	KindShadowedIntroduce FindingKind = "shadowed_introduce"
	// KindUnreachableScene flags a scene no path from the start reaches.
	KindUnreachableScene FindingKind = "unreachable_scene"
	// KindNoEndingScene flags a scenario without any ending scene.
	KindNoEndingScene FindingKind = "no_ending_scene"
)

// Severity grades a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one consistency problem located in a scenario.
type Finding struct {
	Kind     FindingKind
	Severity Severity
	SceneID  string
	Entity   string
	Message  string
}

// Report is the persisted outcome of one consistency check.
type Report struct {
	ID         string
	ScenarioID string
	CreatedAt  time.Time
	Findings   []Finding
}

// HasErrors reports whether any finding is error severity.
func (r Report) HasErrors() bool {
	for _, finding := range r.Findings {
		if finding.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ReportStore persists consistency reports.
type ReportStore interface {
	PutReport(ctx context.Context, report Report) error
	GetReport(ctx context.Context, id string) (Report, error)
	ListReports(ctx context.Context, scenarioID string) ([]Report, error)
}
