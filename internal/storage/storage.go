// Package storage defines the persistence interfaces for scenario content,
// consistency reports, and analysis telemetry.
//
// Implementations of these interfaces (e.g. using SQLite) live in
// subpackages. ErrNotFound is the shared missing-record sentinel.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/storyweave/internal/story"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates an insert collided with an existing record.
var ErrAlreadyExists = errors.New("record already exists")

// ScenarioStore persists scenario content records.
type ScenarioStore interface {
	PutScenario(ctx context.Context, scenario story.Scenario) error
	GetScenario(ctx context.Context, id string) (story.Scenario, error)
	ListScenarios(ctx context.Context) ([]story.Scenario, error)
	DeleteScenario(ctx context.Context, id string) error
}

// TelemetryEvent records one operational event from an analysis run.
type TelemetryEvent struct {
	Timestamp  time.Time
	Type       string
	Severity   string
	ScenarioID string
	Detail     string
}

// TelemetryStore appends operational telemetry events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, event TelemetryEvent) error
}
