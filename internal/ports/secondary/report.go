package secondary

import (
	"context"
	"errors"
)

// ErrNoBuildRuns is returned when no build has been recorded yet.
var ErrNoBuildRuns = errors.New("no build runs recorded")

// BuildRunRecord represents a build run as stored in persistence.
type BuildRunRecord struct {
	ID         string
	StartedAt  string
	FinishedAt string
	DataPath   string
	Locale     string
	Events     int
	Chapters   int
	Entries    int
	Failed     int
}

// BuildProblemRecord represents one problem of a build run.
type BuildProblemRecord struct {
	RunID     string
	SubjectID string // event id or main_<n>
	Kind      string
	File      string // Empty string means null
	Message   string
	Fatal     bool
}

// ReportRepository defines the secondary port for build report persistence.
type ReportRepository interface {
	// SaveRun persists a run and its problems in one transaction.
	SaveRun(ctx context.Context, run *BuildRunRecord, problems []*BuildProblemRecord) error

	// LatestRun returns the most recently started run, or ErrNoBuildRuns.
	LatestRun(ctx context.Context) (*BuildRunRecord, error)

	// ListProblems returns a run's problems in insertion order.
	ListProblems(ctx context.Context, runID string) ([]*BuildProblemRecord, error)
}
