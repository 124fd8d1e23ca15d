package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/example/storyorder/internal/core/wordcount"
	"github.com/example/storyorder/internal/ports/primary"
)

// OrderAdapter is a thin adapter that translates CLI operations to OrderService calls.
// It depends only on the OrderService interface, enabling easy testing with mocks.
type OrderAdapter struct {
	service primary.OrderService
	out     io.Writer
}

// NewOrderAdapter creates a new OrderAdapter with the given service.
func NewOrderAdapter(service primary.OrderService, out io.Writer) *OrderAdapter {
	return &OrderAdapter{
		service: service,
		out:     out,
	}
}

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("⚠")
	failMark = color.New(color.FgRed).Sprint("✗")
)

// Resolve prints the reading order of one event.
func (a *OrderAdapter) Resolve(ctx context.Context, eventID string) (*primary.Resolution, error) {
	res, err := a.service.ResolveEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", eventID, err)
	}
	a.printResolution(res)
	return res, nil
}

// Chapter prints the reading order of one main-story chapter.
func (a *OrderAdapter) Chapter(ctx context.Context, chapter int) (*primary.Resolution, error) {
	res, err := a.service.ResolveChapter(ctx, chapter)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chapter %d: %w", chapter, err)
	}
	a.printResolution(res)
	return res, nil
}

func (a *OrderAdapter) printResolution(res *primary.Resolution) {
	fmt.Fprintf(a.out, "\n%s: %s\n", res.ID, res.Title)
	fmt.Fprintf(a.out, "Family:    %s\n", res.Family)
	fmt.Fprintf(a.out, "Strategy:  %s\n", res.Strategy)
	fmt.Fprintf(a.out, "Wordcount: %s\n", orDash(wordcount.FormatCount(res.Wordcount)))
	fmt.Fprintln(a.out)

	if len(res.Entries) == 0 {
		fmt.Fprintln(a.out, "No story files found.")
	} else {
		w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "#\tCODE\tPHASE\tNAME\tLEVEL\tWORDS\tFILE")
		fmt.Fprintln(w, "-\t----\t-----\t----\t-----\t-----\t----")
		for _, e := range res.Entries {
			words := "-"
			if e.Wordcount != nil {
				words = orDash(wordcount.FormatCount(*e.Wordcount))
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Position,
				e.DisplayCode,
				orDash(e.PhaseLabel),
				orDash(e.StageName),
				orDash(e.DangerLevel),
				words,
				e.SourceFileName,
			)
		}
		w.Flush()
	}

	a.printProblems(res.Problems)
}

func (a *OrderAdapter) printProblems(problems []*primary.Problem) {
	if len(problems) == 0 {
		return
	}
	fmt.Fprintln(a.out)
	fmt.Fprintf(a.out, "Problems (%d):\n", len(problems))
	for _, p := range problems {
		mark := warnMark
		if p.Fatal {
			mark = failMark
		}
		line := fmt.Sprintf("  %s %s [%s] %s", mark, p.SubjectID, p.Kind, p.Message)
		if p.File != "" {
			line += " (" + p.File + ")"
		}
		fmt.Fprintln(a.out, line)
	}
}

// Events lists the events that have story files.
func (a *OrderAdapter) Events(ctx context.Context, req primary.ListEventsRequest) ([]*primary.Event, error) {
	events, err := a.service.ListEvents(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	if len(events) == 0 {
		fmt.Fprintln(a.out, "No events found.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Check the data path:")
		fmt.Fprintln(a.out, "  storyorder doctor")
		return events, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTART\tFILES\tWORDS")
	fmt.Fprintln(w, "--\t----\t----\t-----\t-----\t-----")
	for _, e := range events {
		name := e.Name
		if e.IsReplicate {
			name += color.New(color.FgCyan).Sprint(" [rerun]")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.ID,
			name,
			orDash(e.Type),
			orDash(startDate(e.StartTime)),
			e.StoryFiles,
			orDash(wordcount.FormatCount(e.Wordcount)),
		)
	}
	w.Flush()
	return events, nil
}

// Chapters lists the main-story chapters that have story files.
func (a *OrderAdapter) Chapters(ctx context.Context) ([]*primary.Chapter, error) {
	chapters, err := a.service.ListChapters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}

	if len(chapters) == 0 {
		fmt.Fprintln(a.out, "No main story chapters found.")
		return chapters, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CHAPTER\tID\tTITLE\tFILES")
	fmt.Fprintln(w, "-------\t--\t-----\t-----")
	for _, c := range chapters {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", c.Number, c.ID, c.Title, c.StoryFiles)
	}
	w.Flush()
	return chapters, nil
}

// Build runs a batch build and prints its report.
func (a *OrderAdapter) Build(ctx context.Context, req primary.BuildRequest) (*primary.BuildReport, error) {
	report, err := a.service.Build(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}
	a.printReport(report)
	return report, nil
}

// Report prints the most recent recorded build.
func (a *OrderAdapter) Report(ctx context.Context) (*primary.BuildReport, error) {
	report, err := a.service.LatestReport(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest report: %w", err)
	}
	a.printReport(report)
	return report, nil
}

func (a *OrderAdapter) printReport(r *primary.BuildReport) {
	fmt.Fprintf(a.out, "\nBuild: %s\n", r.RunID)
	fmt.Fprintf(a.out, "Data:     %s (%s)\n", r.DataPath, r.Locale)
	fmt.Fprintf(a.out, "Started:  %s\n", r.StartedAt)
	fmt.Fprintf(a.out, "Finished: %s\n", r.FinishedAt)
	fmt.Fprintf(a.out, "Events:   %d\n", r.Events)
	fmt.Fprintf(a.out, "Chapters: %d\n", r.Chapters)
	fmt.Fprintf(a.out, "Entries:  %d\n", r.Entries)

	a.printProblems(r.Problems)

	fmt.Fprintln(a.out)
	if r.HasFailures() {
		fmt.Fprintf(a.out, "%s %d failed: %s\n", failMark, r.Failed, strings.Join(r.FailedIDs(), ", "))
		return
	}
	fmt.Fprintf(a.out, "%s All %d ids resolved\n", okMark, r.Events+r.Chapters)
}

// Doctor loads the game tables and reports what was found.
// Returns false when a table is missing.
func (a *OrderAdapter) Doctor(ctx context.Context) (bool, error) {
	summary, err := a.service.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load game data: %w", err)
	}

	missing := make(map[string]bool, len(summary.Missing))
	for _, m := range summary.Missing {
		missing[m] = true
	}
	check := func(name string, n int, unit string) {
		if missing[name] {
			fmt.Fprintf(a.out, "%-16s %s missing\n", name, failMark)
			return
		}
		fmt.Fprintf(a.out, "%-16s %s %d %s\n", name, okMark, n, unit)
	}

	fmt.Fprintf(a.out, "\nData: %s\n\n", summary.DataPath)
	fmt.Fprintln(a.out, "Table            Status")
	fmt.Fprintln(a.out, "─────────────────────────")
	check("stage_table", summary.Stages, "stages")
	check("activity_table", summary.Events, "events")
	check("zone_table", summary.Chapters, "chapters")
	check("wordcount", summary.Manifests, "manifests")
	fmt.Fprintln(a.out)

	return len(summary.Missing) == 0, nil
}

// startDate trims an RFC3339 time to its date.
func startDate(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i > 0 {
		return ts[:i]
	}
	return ts
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
