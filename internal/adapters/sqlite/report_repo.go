// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/storyorder/internal/ports/secondary"
)

// ReportRepository implements secondary.ReportRepository with SQLite.
type ReportRepository struct {
	db *sql.DB
}

// NewReportRepository creates a new SQLite build report repository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// SaveRun persists a run and its problems in one transaction.
func (r *ReportRepository) SaveRun(ctx context.Context, run *secondary.BuildRunRecord, problems []*secondary.BuildProblemRecord) error {
	startedAt, err := parseTime(run.StartedAt)
	if err != nil {
		return fmt.Errorf("invalid started_at: %w", err)
	}
	var finishedAt sql.NullTime
	if run.FinishedAt != "" {
		t, err := parseTime(run.FinishedAt)
		if err != nil {
			return fmt.Errorf("invalid finished_at: %w", err)
		}
		finishedAt = sql.NullTime{Time: t, Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO build_runs (id, started_at, finished_at, data_path, locale, events, chapters, entries, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, startedAt, finishedAt, run.DataPath, run.Locale,
		run.Events, run.Chapters, run.Entries, run.Failed,
	)
	if err != nil {
		return fmt.Errorf("failed to create build run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO build_problems (run_id, subject_id, kind, file, message, fatal) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare problem insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range problems {
		var file sql.NullString
		if p.File != "" {
			file = sql.NullString{String: p.File, Valid: true}
		}
		fatal := 0
		if p.Fatal {
			fatal = 1
		}
		if _, err := stmt.ExecContext(ctx, run.ID, p.SubjectID, p.Kind, file, p.Message, fatal); err != nil {
			return fmt.Errorf("failed to record problem for %s: %w", p.SubjectID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit build run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run.
func (r *ReportRepository) LatestRun(ctx context.Context) (*secondary.BuildRunRecord, error) {
	var (
		startedAt  time.Time
		finishedAt sql.NullTime
	)

	record := &secondary.BuildRunRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, data_path, locale, events, chapters, entries, failed
		 FROM build_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	).Scan(&record.ID, &startedAt, &finishedAt, &record.DataPath, &record.Locale,
		&record.Events, &record.Chapters, &record.Entries, &record.Failed)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, secondary.ErrNoBuildRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest build run: %w", err)
	}

	record.StartedAt = startedAt.UTC().Format(time.RFC3339)
	if finishedAt.Valid {
		record.FinishedAt = finishedAt.Time.UTC().Format(time.RFC3339)
	}
	return record, nil
}

// ListProblems returns a run's problems in insertion order.
func (r *ReportRepository) ListProblems(ctx context.Context, runID string) ([]*secondary.BuildProblemRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT subject_id, kind, file, message, fatal FROM build_problems WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list build problems: %w", err)
	}
	defer rows.Close()

	var problems []*secondary.BuildProblemRecord
	for rows.Next() {
		var (
			file  sql.NullString
			fatal int
		)
		p := &secondary.BuildProblemRecord{RunID: runID}
		if err := rows.Scan(&p.SubjectID, &p.Kind, &file, &p.Message, &fatal); err != nil {
			return nil, fmt.Errorf("failed to scan build problem: %w", err)
		}
		p.File = file.String
		p.Fatal = fatal == 1
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate build problems: %w", err)
	}
	return problems, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Ensure ReportRepository implements the interface
var _ secondary.ReportRepository = (*ReportRepository)(nil)
