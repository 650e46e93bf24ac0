// Package history keeps a record of past runs in SQLite so flaky cases can be
// spotted across runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/torosent/apicontract/internal/result"
)

// Run is one stored run.
type Run struct {
	ID          string
	StartedAt   time.Time
	BaseURL     string
	Total       int
	Passed      int
	Failed      int
	SetupErrors int
	Skipped     int
	DurationMs  float64
	Cases       []CaseRecord
}

// CaseRecord is one stored case result.
type CaseRecord struct {
	Name       string
	Method     string
	Path       string
	Outcome    result.Outcome
	Kind       result.FailureKind
	Status     int
	DurationMs float64
	Detail     string
}

// FlakyCase is a case whose outcome changed within the inspected runs.
type FlakyCase struct {
	Name   string
	Passed int
	Failed int
}

// FromSummary converts a finished run for storage.
func FromSummary(s result.Summary) Run {
	run := Run{
		ID:          s.RunID,
		StartedAt:   s.StartedAt,
		BaseURL:     s.BaseURL,
		Total:       s.Total,
		Passed:      s.Passed,
		Failed:      s.Failed,
		SetupErrors: s.SetupErrors,
		Skipped:     s.Skipped,
		DurationMs:  s.DurationMs,
		Cases:       make([]CaseRecord, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		run.Cases = append(run.Cases, CaseRecord{
			Name:       r.Case,
			Method:     r.Method,
			Path:       r.Path,
			Outcome:    r.Outcome,
			Kind:       r.Kind,
			Status:     r.Status,
			DurationMs: r.DurationMs,
			Detail:     r.Detail(),
		})
	}
	return run
}

// Store implements run history backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and runs migrations. A plain
// file path is accepted.
func Open(dsn string) (*Store, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	} else if !strings.Contains(dsn, "busy_timeout") {
		dsn += "&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a run and its case results in one transaction.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, base_url, total, passed, failed, setup_errors, skipped, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.BaseURL,
		run.Total, run.Passed, run.Failed, run.SetupErrors, run.Skipped, run.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO case_results (run_id, position, name, method, path, outcome, kind, status, duration_ms, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare case insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range run.Cases {
		_, err := stmt.ExecContext(ctx, run.ID, i, c.Name, c.Method, c.Path,
			string(c.Outcome), string(c.Kind), c.Status, c.DurationMs, c.Detail)
		if err != nil {
			return fmt.Errorf("insert case %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. Case results are not loaded.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, base_url, total, passed, failed, setup_errors, skipped, duration_ms
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started string
		if err := rows.Scan(&run.ID, &started, &run.BaseURL, &run.Total, &run.Passed,
			&run.Failed, &run.SetupErrors, &run.Skipped, &run.DurationMs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Cases returns the stored case results of one run in declaration order.
func (s *Store) Cases(ctx context.Context, runID string) ([]CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, method, path, outcome, kind, status, duration_ms, detail
		FROM case_results WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []CaseRecord
	for rows.Next() {
		var c CaseRecord
		var outcome, kind string
		if err := rows.Scan(&c.Name, &c.Method, &c.Path, &outcome, &kind, &c.Status, &c.DurationMs, &c.Detail); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		c.Outcome = result.Outcome(outcome)
		c.Kind = result.FailureKind(kind)
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// Flaky returns cases that both passed and did not pass within the last
// window runs, ordered by name.
func (s *Store) Flaky(ctx context.Context, window int) ([]FlakyCase, error) {
	if window <= 0 {
		window = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT name,
		       SUM(CASE WHEN outcome = 'passed' THEN 1 ELSE 0 END) AS passed,
		       SUM(CASE WHEN outcome = 'passed' THEN 0 ELSE 1 END) AS failed
		FROM case_results
		WHERE run_id IN (SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?)
		GROUP BY name
		HAVING passed > 0 AND failed > 0
		ORDER BY name`, window)
	if err != nil {
		return nil, fmt.Errorf("query flaky cases: %w", err)
	}
	defer rows.Close()

	var flaky []FlakyCase
	for rows.Next() {
		var f FlakyCase
		if err := rows.Scan(&f.Name, &f.Passed, &f.Failed); err != nil {
			return nil, fmt.Errorf("scan flaky case: %w", err)
		}
		flaky = append(flaky, f)
	}
	return flaky, rows.Err()
}
