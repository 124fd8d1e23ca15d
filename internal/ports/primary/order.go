// Package primary defines the primary ports (driving adapters) for the application.
package primary

import "context"

// OrderService defines the primary port for story order resolution.
type OrderService interface {
	// Load reads the game tables. Resolution methods load on first use,
	// so calling Load explicitly is only needed to inspect the summary.
	Load(ctx context.Context) (*LoadSummary, error)

	// ResolveEvent returns the reading order of one event.
	ResolveEvent(ctx context.Context, eventID string) (*Resolution, error)

	// ResolveChapter returns the reading order of one main-story chapter.
	ResolveChapter(ctx context.Context, chapter int) (*Resolution, error)

	// ListEvents lists the events that have story files, newest first.
	ListEvents(ctx context.Context, req ListEventsRequest) ([]*Event, error)

	// ListChapters lists the main-story chapters that have story files.
	ListChapters(ctx context.Context) ([]*Chapter, error)

	// Build resolves every selected event and chapter and records a report.
	// Per-id failures are reported, not returned.
	Build(ctx context.Context, req BuildRequest) (*BuildReport, error)

	// LatestReport returns the most recent recorded build.
	LatestReport(ctx context.Context) (*BuildReport, error)
}

// LoadSummary describes the loaded game tables.
type LoadSummary struct {
	DataPath  string
	Stages    int
	Events    int
	Chapters  int
	Manifests int
	Missing   []string // tables absent from the data tree
}

// Resolution is the ordered story list of one event or chapter.
type Resolution struct {
	ID        string
	Title     string
	Family    string
	Strategy  string
	Wordcount int
	Entries   []*StoryEntry
	Problems  []*Problem
}

// StoryEntry is one story file at its reading position.
type StoryEntry struct {
	Position        int // 1-based
	DisplayCode     string
	ResolvedStageID string
	StageName       string
	Phase           string
	PhaseLabel      string
	DangerLevel     string
	Wordcount       *int
	SourceFileName  string
	Strategy        string
}

// Problem is a diagnostic or failure attached to an id.
type Problem struct {
	SubjectID string
	Kind      string
	File      string
	Message   string
	Fatal     bool
}

// ListEventsRequest filters the event list.
type ListEventsRequest struct {
	IncludeReplicate bool
	Limit            int // 0 means no limit
}

// Event is an event with story files.
type Event struct {
	ID          string
	Name        string
	Type        string
	StartTime   string // RFC 3339, empty when unknown
	IsReplicate bool
	StoryFiles  int
	Wordcount   int
}

// Chapter is a main-story chapter with story files.
type Chapter struct {
	Number     int
	ID         string
	Title      string
	StoryFiles int
}

// BuildRequest selects what a build resolves.
type BuildRequest struct {
	EventIDs         []string // explicit events; empty means all
	Chapters         []int    // explicit chapters; empty means all
	IncludeMain      bool
	MainOnly         bool
	IncludeReplicate bool
	Limit            int // newest N events, 0 means all
}

// BuildReport summarizes one build run.
type BuildReport struct {
	RunID      string
	StartedAt  string
	FinishedAt string
	DataPath   string
	Locale     string
	Events     int
	Chapters   int
	Entries    int
	Failed     int
	Problems   []*Problem
}

// HasFailures reports whether any id failed to resolve.
func (r *BuildReport) HasFailures() bool {
	return r.Failed > 0
}

// FailedIDs returns the ids that failed, in report order.
func (r *BuildReport) FailedIDs() []string {
	var ids []string
	for _, p := range r.Problems {
		if p.Fatal {
			ids = append(ids, p.SubjectID)
		}
	}
	return ids
}
