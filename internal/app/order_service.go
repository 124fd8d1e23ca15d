package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/storyorder/internal/core/activity"
	"github.com/example/storyorder/internal/core/resolve"
	"github.com/example/storyorder/internal/core/stage"
	"github.com/example/storyorder/internal/core/storyfile"
	"github.com/example/storyorder/internal/core/wordcount"
	"github.com/example/storyorder/internal/core/zone"
	"github.com/example/storyorder/internal/ctxutil"
	"github.com/example/storyorder/internal/logging"
	"github.com/example/storyorder/internal/ports/primary"
	"github.com/example/storyorder/internal/ports/secondary"
)

// Problem kinds for per-id failures; diagnostics keep their resolve kind.
const (
	KindOrderingError = "ordering_error"
	KindResolveError  = "resolve_error"
)

// OrderSettings carries the configuration the service needs.
type OrderSettings struct {
	Policy      storyfile.Policy
	Labels      resolve.PhaseLabels
	Concurrency int
	Locale      string
}

// OrderServiceImpl implements the OrderService interface.
type OrderServiceImpl struct {
	source   secondary.GameDataSource
	reports  secondary.ReportRepository
	logger   *zap.Logger
	settings OrderSettings

	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	loaded *tables
}

// tables is the immutable state shared by every resolution.
type tables struct {
	resolver   *resolve.Resolver
	catalog    *stage.Catalog
	index      *wordcount.Index
	activities *activity.Table
	zones      *zone.Table
	summary    primary.LoadSummary
}

// NewOrderService creates a new OrderService with injected dependencies.
// reports may be nil, in which case builds are not recorded.
func NewOrderService(source secondary.GameDataSource, reports secondary.ReportRepository, logger *zap.Logger, settings OrderSettings) *OrderServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}
	return &OrderServiceImpl{
		source:   source,
		reports:  reports,
		logger:   logger,
		settings: settings,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Load reads and parses every game table, replacing any earlier load.
func (s *OrderServiceImpl) Load(ctx context.Context) (*primary.LoadSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.loaded = t
	summary := t.summary
	return &summary, nil
}

// state returns the loaded tables, loading them on first use.
func (s *OrderServiceImpl) state(ctx context.Context) (*tables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded != nil {
		return s.loaded, nil
	}
	t, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.loaded = t
	return t, nil
}

func (s *OrderServiceImpl) load(ctx context.Context) (*tables, error) {
	summary := primary.LoadSummary{DataPath: s.source.Root()}

	stageData, err := s.readTable(ctx, "stage_table", s.source.StageTable, &summary)
	if err != nil {
		return nil, err
	}
	catalog := stage.Empty()
	if stageData != nil {
		if catalog, err = stage.Parse(stageData); err != nil {
			return nil, err
		}
	}

	activityData, err := s.readTable(ctx, "activity_table", s.source.ActivityTable, &summary)
	if err != nil {
		return nil, err
	}
	activities := activity.Empty()
	if activityData != nil {
		if activities, err = activity.Parse(activityData); err != nil {
			return nil, err
		}
	}

	zoneData, err := s.readTable(ctx, "zone_table", s.source.ZoneTable, &summary)
	if err != nil {
		return nil, err
	}
	zones := zone.Empty()
	if zoneData != nil {
		if zones, err = zone.Parse(zoneData); err != nil {
			return nil, err
		}
	}

	manifestData, err := s.readTable(ctx, "wordcount", s.source.WordcountManifest, &summary)
	if err != nil {
		return nil, err
	}
	index := wordcount.Empty()
	if manifestData != nil {
		if index, err = wordcount.Parse(manifestData); err != nil {
			return nil, err
		}
	}

	summary.Stages = catalog.Len()
	summary.Events = activities.Len()
	summary.Chapters = len(zones.Chapters())
	summary.Manifests = index.Events()

	s.logger.Info("game tables loaded",
		zap.String("root", summary.DataPath),
		zap.Int("stages", summary.Stages),
		zap.Int("events", summary.Events),
		zap.Int("chapters", summary.Chapters),
		zap.Int("manifests", summary.Manifests),
		zap.Strings("missing", summary.Missing),
	)

	resolver := resolve.New(resolve.Tables{
		Catalog:    catalog,
		Index:      index,
		Activities: activities,
		Policy:     s.settings.Policy,
	}, resolve.WithPhaseLabels(s.settings.Labels))

	return &tables{
		resolver:   resolver,
		catalog:    catalog,
		index:      index,
		activities: activities,
		zones:      zones,
		summary:    summary,
	}, nil
}

// readTable returns nil data for a missing table so the caller can fall
// back to an empty one.
func (s *OrderServiceImpl) readTable(ctx context.Context, name string, read func(context.Context) ([]byte, error), summary *primary.LoadSummary) ([]byte, error) {
	data, err := read(ctx)
	if errors.Is(err, secondary.ErrDataNotFound) {
		s.logger.Warn("table not found, continuing without it", zap.String("table", name), zap.Error(err))
		summary.Missing = append(summary.Missing, name)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// ResolveEvent returns the reading order of one event.
func (s *OrderServiceImpl) ResolveEvent(ctx context.Context, eventID string) (*primary.Resolution, error) {
	t, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	files, err := s.source.EventStoryFiles(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list story files of %s: %w", eventID, err)
	}
	return s.resolve(ctx, t, eventID, files)
}

// ResolveChapter returns the reading order of one main-story chapter.
func (s *OrderServiceImpl) ResolveChapter(ctx context.Context, chapter int) (*primary.Resolution, error) {
	t, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	byChapter, err := s.mainFilesByChapter(ctx)
	if err != nil {
		return nil, err
	}
	files, ok := byChapter[chapter]
	if !ok {
		return nil, fmt.Errorf("chapter %d has no story files: %w", chapter, secondary.ErrDataNotFound)
	}
	return s.resolve(ctx, t, storyfile.ChapterID(chapter), files)
}

func (s *OrderServiceImpl) resolve(ctx context.Context, t *tables, id string, files []string) (*primary.Resolution, error) {
	res, err := t.resolver.Resolve(resolve.Input{ID: id, Files: files})
	if err != nil {
		return nil, err
	}
	s.logDiagnostics(ctx, res)
	return toResolution(res, t.title(id)), nil
}

func (s *OrderServiceImpl) logDiagnostics(ctx context.Context, res *resolve.Result) {
	log := logging.WithRun(ctx, s.logger)
	for _, d := range res.Diagnostics {
		fields := []zap.Field{
			zap.String("id", d.ID),
			zap.String("kind", string(d.Kind)),
			zap.String("file", d.File),
		}
		if d.Kind.Warning() {
			log.Warn(d.Message, fields...)
		} else {
			log.Debug(d.Message, fields...)
		}
	}
	log.Debug("resolved",
		zap.String("id", res.ID),
		zap.String("family", string(res.Family)),
		zap.String("strategy", res.Strategy),
		zap.Int("entries", len(res.Entries)),
	)
}

// ListEvents lists the events that have story files. Events known to the
// activity table come first, newest start first; the rest follow by id.
func (s *OrderServiceImpl) ListEvents(ctx context.Context, req primary.ListEventsRequest) ([]*primary.Event, error) {
	t, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.source.StoryEventIDs(ctx)
	if errors.Is(err, secondary.ErrDataNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var known []activity.Info
	var unknown []string
	for _, id := range ids {
		info, ok := t.activities.Get(id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		if isReplicate(info) && !req.IncludeReplicate {
			continue
		}
		known = append(known, info)
	}
	activity.SortByStart(known, true)

	var events []*primary.Event
	for _, info := range known {
		events = append(events, &primary.Event{
			ID:          info.ID,
			Name:        info.Name,
			Type:        info.Type,
			StartTime:   formatUnix(info.StartTime),
			IsReplicate: isReplicate(info),
		})
	}
	for _, id := range unknown {
		if strings.HasSuffix(id, "_rep") && !req.IncludeReplicate {
			continue
		}
		events = append(events, &primary.Event{ID: id, Name: id})
	}

	if req.Limit > 0 && len(events) > req.Limit {
		events = events[:req.Limit]
	}

	for _, e := range events {
		files, err := s.source.EventStoryFiles(ctx, e.ID)
		if err != nil && !errors.Is(err, secondary.ErrDataNotFound) {
			return nil, fmt.Errorf("failed to list story files of %s: %w", e.ID, err)
		}
		e.StoryFiles = len(files)
		e.Wordcount = t.index.TotalFor(e.ID)
	}
	return events, nil
}

// ListChapters lists the main-story chapters that have story files.
func (s *OrderServiceImpl) ListChapters(ctx context.Context) ([]*primary.Chapter, error) {
	t, err := s.state(ctx)
	if err != nil {
		return nil, err
	}
	byChapter, err := s.mainFilesByChapter(ctx)
	if err != nil {
		return nil, err
	}

	numbers := make([]int, 0, len(byChapter))
	for n := range byChapter {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	chapters := make([]*primary.Chapter, 0, len(numbers))
	for _, n := range numbers {
		id := storyfile.ChapterID(n)
		chapters = append(chapters, &primary.Chapter{
			Number:     n,
			ID:         id,
			Title:      t.title(id),
			StoryFiles: len(byChapter[n]),
		})
	}
	return chapters, nil
}

// mainFilesByChapter groups the main-story files by chapter. A missing
// main-story directory yields no chapters.
func (s *OrderServiceImpl) mainFilesByChapter(ctx context.Context) (map[int][]string, error) {
	files, err := s.source.MainStoryFiles(ctx)
	if errors.Is(err, secondary.ErrDataNotFound) {
		return map[int][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list main story files: %w", err)
	}

	out := make(map[int][]string)
	for _, f := range files {
		ch, ok := storyfile.ChapterOf(f)
		if !ok {
			s.logger.Debug("main story file has no chapter", zap.String("file", f))
			continue
		}
		out[ch] = append(out[ch], f)
	}
	return out, nil
}

// target is one id a build resolves.
type target struct {
	id      string
	chapter bool
	files   []string
}

type outcome struct {
	result *resolve.Result
	err    error
}

// Build resolves every selected event and chapter in parallel. A failing id
// is recorded as a fatal problem and does not stop the others.
func (s *OrderServiceImpl) Build(ctx context.Context, req primary.BuildRequest) (*primary.BuildReport, error) {
	t, err := s.state(ctx)
	if err != nil {
		return nil, err
	}

	runID := s.newID()
	ctx = ctxutil.WithRunID(ctx, runID)
	log := logging.WithRun(ctx, s.logger)
	started := s.now().UTC()

	targets, err := s.buildTargets(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Info("build started", zap.Int("targets", len(targets)), zap.Int("concurrency", s.settings.Concurrency))

	outcomes := make([]outcome, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Concurrency)
	for i, tg := range targets {
		i, tg := i, tg
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			files := tg.files
			if !tg.chapter {
				var err error
				files, err = s.source.EventStoryFiles(gctx, tg.id)
				if err != nil {
					outcomes[i] = outcome{err: fmt.Errorf("failed to list story files of %s: %w", tg.id, err)}
					return nil
				}
			}
			res, err := t.resolver.Resolve(resolve.Input{ID: tg.id, Files: files})
			if err == nil {
				s.logDiagnostics(gctx, res)
			}
			outcomes[i] = outcome{result: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build cancelled: %w", err)
	}

	report := &primary.BuildReport{
		RunID:     runID,
		StartedAt: started.Format(time.RFC3339),
		DataPath:  t.summary.DataPath,
		Locale:    s.settings.Locale,
	}
	for i, tg := range targets {
		if tg.chapter {
			report.Chapters++
		} else {
			report.Events++
		}

		o := outcomes[i]
		if o.err != nil {
			report.Failed++
			report.Problems = append(report.Problems, failure(tg.id, o.err))
			log.Error("failed to resolve", zap.String("id", tg.id), zap.Error(o.err))
			continue
		}
		report.Entries += len(o.result.Entries)
		for _, d := range o.result.Warnings() {
			report.Problems = append(report.Problems, toProblem(d))
		}
	}
	report.FinishedAt = s.now().UTC().Format(time.RFC3339)

	if s.reports != nil {
		if err := s.reports.SaveRun(ctx, toRunRecord(report), toProblemRecords(report)); err != nil {
			return nil, fmt.Errorf("failed to save build report: %w", err)
		}
	}

	log.Info("build finished",
		zap.Int("events", report.Events),
		zap.Int("chapters", report.Chapters),
		zap.Int("entries", report.Entries),
		zap.Int("failed", report.Failed),
		zap.Int("problems", len(report.Problems)),
	)
	return report, nil
}

// buildTargets selects the ids of a build: events newest first, then
// chapters in ascending order.
func (s *OrderServiceImpl) buildTargets(ctx context.Context, req primary.BuildRequest) ([]target, error) {
	var targets []target

	if !req.MainOnly {
		ids := req.EventIDs
		if len(ids) == 0 {
			events, err := s.ListEvents(ctx, primary.ListEventsRequest{
				IncludeReplicate: req.IncludeReplicate,
				Limit:            req.Limit,
			})
			if err != nil {
				return nil, err
			}
			for _, e := range events {
				ids = append(ids, e.ID)
			}
		}
		for _, id := range ids {
			targets = append(targets, target{id: id})
		}
	}

	if req.IncludeMain || req.MainOnly {
		byChapter, err := s.mainFilesByChapter(ctx)
		if err != nil {
			return nil, err
		}
		numbers := req.Chapters
		if len(numbers) == 0 {
			for n := range byChapter {
				numbers = append(numbers, n)
			}
			sort.Ints(numbers)
		}
		for _, n := range numbers {
			files, ok := byChapter[n]
			if !ok {
				s.logger.Warn("chapter has no story files", zap.Int("chapter", n))
				continue
			}
			targets = append(targets, target{id: storyfile.ChapterID(n), chapter: true, files: files})
		}
	}
	return targets, nil
}

// LatestReport returns the most recent recorded build.
func (s *OrderServiceImpl) LatestReport(ctx context.Context) (*primary.BuildReport, error) {
	if s.reports == nil {
		return nil, secondary.ErrNoBuildRuns
	}
	run, err := s.reports.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	problems, err := s.reports.ListProblems(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load problems of run %s: %w", run.ID, err)
	}

	report := &primary.BuildReport{
		RunID:      run.ID,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DataPath:   run.DataPath,
		Locale:     run.Locale,
		Events:     run.Events,
		Chapters:   run.Chapters,
		Entries:    run.Entries,
		Failed:     run.Failed,
	}
	for _, p := range problems {
		report.Problems = append(report.Problems, &primary.Problem{
			SubjectID: p.SubjectID,
			Kind:      p.Kind,
			File:      p.File,
			Message:   p.Message,
			Fatal:     p.Fatal,
		})
	}
	return report, nil
}

// title returns the display title of an event or chapter id.
func (t *tables) title(id string) string {
	if info, ok := t.activities.Get(id); ok && info.Name != "" {
		return info.Name
	}
	var n int
	if _, err := fmt.Sscanf(id, "main_%d", &n); err == nil && storyfile.ChapterID(n) == id {
		if ch, ok := t.zones.Get(n); ok && ch.DisplayTitle() != "" {
			return ch.DisplayTitle()
		}
	}
	return id
}

func isReplicate(info activity.Info) bool {
	return info.IsReplicate || strings.HasSuffix(info.ID, "_rep")
}

func formatUnix(sec int64) string {
	if sec <= 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func failure(id string, err error) *primary.Problem {
	kind := KindResolveError
	var orderErr *resolve.OrderingError
	if errors.As(err, &orderErr) {
		kind = KindOrderingError
	}
	return &primary.Problem{SubjectID: id, Kind: kind, Message: err.Error(), Fatal: true}
}

func toProblem(d resolve.Diagnostic) *primary.Problem {
	return &primary.Problem{
		SubjectID: d.ID,
		Kind:      string(d.Kind),
		File:      d.File,
		Message:   d.Message,
	}
}

func toResolution(res *resolve.Result, title string) *primary.Resolution {
	out := &primary.Resolution{
		ID:        res.ID,
		Title:     title,
		Family:    string(res.Family),
		Strategy:  res.Strategy,
		Wordcount: res.Wordcount(),
	}
	for i, e := range res.Entries {
		out.Entries = append(out.Entries, &primary.StoryEntry{
			Position:        i + 1,
			DisplayCode:     e.DisplayCode,
			ResolvedStageID: e.ResolvedStageID,
			StageName:       e.StageName,
			Phase:           string(e.Phase),
			PhaseLabel:      e.PhaseLabel,
			DangerLevel:     e.DangerLevel,
			Wordcount:       e.Wordcount,
			SourceFileName:  e.SourceFileName,
			Strategy:        e.Strategy,
		})
	}
	for _, d := range res.Warnings() {
		out.Problems = append(out.Problems, toProblem(d))
	}
	return out
}

func toRunRecord(r *primary.BuildReport) *secondary.BuildRunRecord {
	return &secondary.BuildRunRecord{
		ID:         r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DataPath:   r.DataPath,
		Locale:     r.Locale,
		Events:     r.Events,
		Chapters:   r.Chapters,
		Entries:    r.Entries,
		Failed:     r.Failed,
	}
}

func toProblemRecords(r *primary.BuildReport) []*secondary.BuildProblemRecord {
	records := make([]*secondary.BuildProblemRecord, 0, len(r.Problems))
	for _, p := range r.Problems {
		records = append(records, &secondary.BuildProblemRecord{
			RunID:     r.RunID,
			SubjectID: p.SubjectID,
			Kind:      p.Kind,
			File:      p.File,
			Message:   p.Message,
			Fatal:     p.Fatal,
		})
	}
	return records
}

// Ensure OrderServiceImpl implements the interface
var _ primary.OrderService = (*OrderServiceImpl)(nil)
