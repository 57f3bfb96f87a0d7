// Package sqlite provides a SQLite-backed implementation of the scenario,
// report, and telemetry stores.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/storyweave/internal/consistency"
	sqlitemigrate "github.com/louisbranch/storyweave/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/storyweave/internal/storage"
	"github.com/louisbranch/storyweave/internal/storage/sqlite/migrations"
	"github.com/louisbranch/storyweave/internal/story"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists scenarios, consistency reports, and telemetry in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutScenario inserts or replaces one scenario record.
func (s *Store) PutScenario(ctx context.Context, scenario story.Scenario) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	scenarioID := strings.TrimSpace(scenario.ID)
	if scenarioID == "" {
		return fmt.Errorf("scenario id is required")
	}
	scenesJSON, err := json.Marshal(scenario.Scenes)
	if err != nil {
		return fmt.Errorf("encode scenes: %w", err)
	}
	createdAt := scenario.CreatedAt.UTC()
	updatedAt := scenario.UpdatedAt.UTC()
	if createdAt.IsZero() && updatedAt.IsZero() {
		createdAt = time.Now().UTC()
		updatedAt = createdAt
	} else {
		if createdAt.IsZero() {
			createdAt = updatedAt
		}
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO scenarios (id, title, scenes_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   scenes_json = excluded.scenes_json,
		   updated_at = excluded.updated_at`,
		scenarioID,
		scenario.Title,
		string(scenesJSON),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put scenario: %w", err)
	}
	return nil
}

// GetScenario returns one scenario by ID.
func (s *Store) GetScenario(ctx context.Context, id string) (story.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return story.Scenario{}, err
	}
	if s == nil || s.sqlDB == nil {
		return story.Scenario{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return story.Scenario{}, fmt.Errorf("scenario id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, title, scenes_json, created_at, updated_at
		   FROM scenarios
		  WHERE id = ?`,
		id,
	)
	return scanScenario(row.Scan)
}

// ListScenarios returns every stored scenario ordered by ID.
func (s *Store) ListScenarios(ctx context.Context) ([]story.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, title, scenes_json, created_at, updated_at
		   FROM scenarios
		  ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var scenarios []story.Scenario
	for rows.Next() {
		scenario, err := scanScenario(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list scenarios: %w", err)
		}
		scenarios = append(scenarios, scenario)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	return scenarios, nil
}

// DeleteScenario removes one scenario by ID.
func (s *Store) DeleteScenario(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("scenario id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scenario: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanScenario(scan func(dest ...any) error) (story.Scenario, error) {
	var scenario story.Scenario
	var scenesJSON string
	var createdAt int64
	var updatedAt int64
	err := scan(&scenario.ID, &scenario.Title, &scenesJSON, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return story.Scenario{}, storage.ErrNotFound
		}
		return story.Scenario{}, err
	}
	if err := json.Unmarshal([]byte(scenesJSON), &scenario.Scenes); err != nil {
		return story.Scenario{}, fmt.Errorf("decode scenes: %w", err)
	}
	scenario.CreatedAt = fromMillis(createdAt)
	scenario.UpdatedAt = fromMillis(updatedAt)
	return scenario, nil
}

// PutReport inserts one consistency report. Report IDs are unique; a
// collision returns storage.ErrAlreadyExists.
func (s *Store) PutReport(ctx context.Context, report consistency.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	reportID := strings.TrimSpace(report.ID)
	if reportID == "" {
		return fmt.Errorf("report id is required")
	}
	scenarioID := strings.TrimSpace(report.ScenarioID)
	if scenarioID == "" {
		return fmt.Errorf("scenario id is required")
	}
	findingsJSON, err := json.Marshal(report.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO reports (id, scenario_id, created_at, findings_json)
		 VALUES (?, ?, ?, ?)`,
		reportID,
		scenarioID,
		toMillis(createdAt),
		string(findingsJSON),
	)
	if err != nil {
		if isReportUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put report: %w", err)
	}
	return nil
}

// GetReport returns one report by ID.
func (s *Store) GetReport(ctx context.Context, id string) (consistency.Report, error) {
	if err := ctx.Err(); err != nil {
		return consistency.Report{}, err
	}
	if s == nil || s.sqlDB == nil {
		return consistency.Report{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return consistency.Report{}, fmt.Errorf("report id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, scenario_id, created_at, findings_json
		   FROM reports
		  WHERE id = ?`,
		id,
	)
	return scanReport(row.Scan)
}

// ListReports returns the scenario's reports, newest first.
func (s *Store) ListReports(ctx context.Context, scenarioID string) ([]consistency.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	scenarioID = strings.TrimSpace(scenarioID)
	if scenarioID == "" {
		return nil, fmt.Errorf("scenario id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, scenario_id, created_at, findings_json
		   FROM reports
		  WHERE scenario_id = ?
		  ORDER BY created_at DESC, id ASC`,
		scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []consistency.Report
	for rows.Next() {
		report, err := scanReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

func scanReport(scan func(dest ...any) error) (consistency.Report, error) {
	var report consistency.Report
	var findingsJSON string
	var createdAt int64
	err := scan(&report.ID, &report.ScenarioID, &createdAt, &findingsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return consistency.Report{}, storage.ErrNotFound
		}
		return consistency.Report{}, err
	}
	if err := json.Unmarshal([]byte(findingsJSON), &report.Findings); err != nil {
		return consistency.Report{}, fmt.Errorf("decode findings: %w", err)
	}
	report.CreatedAt = fromMillis(createdAt)
	return report, nil
}

// AppendTelemetryEvent records one operational event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, event storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	occurredAt := event.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO telemetry_events (occurred_at, event_type, severity, scenario_id, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		toMillis(occurredAt),
		event.Type,
		event.Severity,
		event.ScenarioID,
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

func isReportUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "reports.id")
}

var _ storage.ScenarioStore = (*Store)(nil)
var _ storage.TelemetryStore = (*Store)(nil)
var _ consistency.ReportStore = (*Store)(nil)
