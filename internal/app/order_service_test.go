package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/example/storyorder/internal/core/resolve"
	"github.com/example/storyorder/internal/core/storyfile"
	"github.com/example/storyorder/internal/logging"
	"github.com/example/storyorder/internal/ports/primary"
	"github.com/example/storyorder/internal/ports/secondary"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockGameData implements secondary.GameDataSource for testing.
type mockGameData struct {
	tables    map[string]string   // table name -> JSON
	events    map[string][]string // event id -> story files
	mainFiles []string
	tableErr  error
	fileErr   map[string]error

	mu        sync.Mutex
	tableHits int
}

func newMockGameData() *mockGameData {
	return &mockGameData{
		tables:  map[string]string{},
		events:  map[string][]string{},
		fileErr: map[string]error{},
	}
}

func (m *mockGameData) table(name string) ([]byte, error) {
	m.mu.Lock()
	m.tableHits++
	m.mu.Unlock()
	if m.tableErr != nil {
		return nil, m.tableErr
	}
	data, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, secondary.ErrDataNotFound)
	}
	return []byte(data), nil
}

func (m *mockGameData) StageTable(ctx context.Context) ([]byte, error)    { return m.table("stage") }
func (m *mockGameData) ActivityTable(ctx context.Context) ([]byte, error) { return m.table("activity") }
func (m *mockGameData) ZoneTable(ctx context.Context) ([]byte, error)     { return m.table("zone") }
func (m *mockGameData) WordcountManifest(ctx context.Context) ([]byte, error) {
	return m.table("wordcount")
}

func (m *mockGameData) StoryEventIDs(ctx context.Context) ([]string, error) {
	if len(m.events) == 0 {
		return nil, secondary.ErrDataNotFound
	}
	ids := make([]string, 0, len(m.events))
	for id := range m.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockGameData) EventStoryFiles(ctx context.Context, eventID string) ([]string, error) {
	if err := m.fileErr[eventID]; err != nil {
		return nil, err
	}
	files, ok := m.events[eventID]
	if !ok {
		return nil, secondary.ErrDataNotFound
	}
	return files, nil
}

func (m *mockGameData) MainStoryFiles(ctx context.Context) ([]string, error) {
	if m.mainFiles == nil {
		return nil, secondary.ErrDataNotFound
	}
	return m.mainFiles, nil
}

func (m *mockGameData) Root() string {
	return "/data/ja_JP"
}

// mockReportRepository implements secondary.ReportRepository for testing.
type mockReportRepository struct {
	mu       sync.Mutex
	runs     []*secondary.BuildRunRecord
	problems map[string][]*secondary.BuildProblemRecord
	saveErr  error
}

func newMockReportRepository() *mockReportRepository {
	return &mockReportRepository{problems: map[string][]*secondary.BuildProblemRecord{}}
}

func (m *mockReportRepository) SaveRun(ctx context.Context, run *secondary.BuildRunRecord, problems []*secondary.BuildProblemRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.runs = append(m.runs, run)
	m.problems[run.ID] = problems
	return nil
}

func (m *mockReportRepository) LatestRun(ctx context.Context) (*secondary.BuildRunRecord, error) {
	if len(m.runs) == 0 {
		return nil, secondary.ErrNoBuildRuns
	}
	return m.runs[len(m.runs)-1], nil
}

func (m *mockReportRepository) ListProblems(ctx context.Context, runID string) ([]*secondary.BuildProblemRecord, error) {
	return m.problems[runID], nil
}

// ============================================================================
// Fixtures
// ============================================================================

const testStageTable = `{"stages": {
	"act9d0_01": {"code": "DM-1", "name": "start", "dangerLevel": "LV.10"},
	"act9d0_02": {"code": "DM-2", "dangerLevel": "LV.20", "unlockCondition": [{"stageId": "act9d0_01", "completeState": "PASS"}]},
	"act8d0_01": {"code": "OD-1"},
	"act8d0_02": {"code": "OD-2", "unlockCondition": [{"stageId": "act8d0_01", "completeState": "PASS"}]},
	"act99d0_01": {"code": "CY-1", "unlockCondition": [{"stageId": "act99d0_02", "completeState": "PASS"}]},
	"act99d0_02": {"code": "CY-2", "unlockCondition": [{"stageId": "act99d0_01", "completeState": "PASS"}]},
	"main_05-01": {"code": "5-1"},
	"main_05-02": {"code": "5-2", "unlockCondition": [{"stageId": "main_05-01", "completeState": "PASS"}]}
}}`

const testActivityTable = `{"basicInfo": {
	"act9d0":    {"id": "act9d0", "name": "Darknights Memoir", "type": "TYPE_ACT9D0", "startTime": 1600000000},
	"act8d0":    {"id": "act8d0", "name": "Older Event", "startTime": 1500000000},
	"act99d0":   {"id": "act99d0", "name": "Broken Event", "startTime": 1400000000},
	"act15mini": {"id": "act15mini", "name": "Mini", "type": "MINISTORY", "startTime": 1700000000},
	"act9d0_rep": {"id": "act9d0_rep", "name": "Rerun", "startTime": 1800000000, "isReplicate": true}
}}`

const testZoneTable = `{"zones": {
	"main_5": {"zoneID": "main_5", "zoneIndex": 5, "type": "MAINLINE", "zoneNameFirst": "第五章", "zoneNameSecond": "灼熱"}
}}`

const testWordcount = `{
	"act9d0": {
		"activities/act9d0/level_act9d0_01_beg.json": 1200,
		"activities/act9d0/level_act9d0_01_end.json": 800
	}
}`

func newTestGameData() *mockGameData {
	m := newMockGameData()
	m.tables["stage"] = testStageTable
	m.tables["activity"] = testActivityTable
	m.tables["zone"] = testZoneTable
	m.tables["wordcount"] = testWordcount
	m.events["act9d0"] = []string{
		"activities/act9d0/level_act9d0_02_beg.json",
		"activities/act9d0/level_act9d0_01_end.json",
		"activities/act9d0/level_act9d0_01_beg.json",
	}
	m.events["act8d0"] = []string{
		"activities/act8d0/level_act8d0_02_beg.json",
		"activities/act8d0/level_act8d0_01_beg.json",
	}
	m.events["act99d0"] = []string{"activities/act99d0/level_act99d0_01_beg.json"}
	m.events["act15mini"] = []string{
		"activities/act15mini/level_act15mini_st02.json",
		"activities/act15mini/level_act15mini_st01.json",
		"activities/act15mini/act15mini_01.json",
	}
	m.events["act9d0_rep"] = []string{"activities/act9d0_rep/level_act9d0_rep_01_beg.json"}
	m.events["act0new"] = []string{"activities/act0new/level_act0new_01_beg.json"}
	m.mainFiles = []string{
		"obt/main/level_main_05-02_beg.json",
		"obt/main/level_main_05-01_beg.json",
		"obt/main/level_main_06-01_beg.json",
		"obt/main/readme.json",
	}
	return m
}

func newTestOrderService(source secondary.GameDataSource, reports secondary.ReportRepository) *OrderServiceImpl {
	svc := NewOrderService(source, reports, nil, OrderSettings{
		Policy:      storyfile.DefaultPolicy(),
		Labels:      resolve.DefaultPhaseLabels(),
		Concurrency: 4,
		Locale:      "ja_JP",
	})
	svc.newID = func() string { return "run-test" }
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return svc
}

func entrySources(res *primary.Resolution) []string {
	out := make([]string, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, e.SourceFileName)
	}
	return out
}

// ============================================================================
// Tests
// ============================================================================

func TestOrderService_Load(t *testing.T) {
	source := newTestGameData()
	delete(source.tables, "zone")
	svc := newTestOrderService(source, nil)

	summary, err := svc.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/data/ja_JP", summary.DataPath)
	assert.Equal(t, 8, summary.Stages)
	assert.Equal(t, 5, summary.Events)
	assert.Equal(t, 0, summary.Chapters)
	assert.Equal(t, 1, summary.Manifests)
	assert.Equal(t, []string{"zone_table"}, summary.Missing)
}

func TestOrderService_Load_Errors(t *testing.T) {
	t.Run("read failure", func(t *testing.T) {
		source := newTestGameData()
		source.tableErr = errors.New("disk on fire")
		_, err := newTestOrderService(source, nil).Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk on fire")
	})

	t.Run("corrupt table", func(t *testing.T) {
		source := newTestGameData()
		source.tables["wordcount"] = `{"act9d0": {"x.json": "many"}}`
		_, err := newTestOrderService(source, nil).Load(context.Background())
		require.Error(t, err)
	})
}

func TestOrderService_LoadsOnce(t *testing.T) {
	source := newTestGameData()
	svc := newTestOrderService(source, nil)
	ctx := context.Background()

	_, err := svc.ResolveEvent(ctx, "act9d0")
	require.NoError(t, err)
	_, err = svc.ResolveEvent(ctx, "act8d0")
	require.NoError(t, err)

	assert.Equal(t, 4, source.tableHits)
}

func TestOrderService_ResolveEvent(t *testing.T) {
	svc := newTestOrderService(newTestGameData(), nil)

	res, err := svc.ResolveEvent(context.Background(), "act9d0")
	require.NoError(t, err)

	assert.Equal(t, "Darknights Memoir", res.Title)
	assert.Equal(t, string(storyfile.FamilyStandard), res.Family)
	assert.Equal(t, resolve.StrategyManifest, res.Strategy)
	assert.Equal(t, []string{
		"activities/act9d0/level_act9d0_01_beg.json",
		"activities/act9d0/level_act9d0_01_end.json",
		"activities/act9d0/level_act9d0_02_beg.json",
	}, entrySources(res))
	assert.Equal(t, 2000, res.Wordcount)
	assert.Equal(t, 1, res.Entries[0].Position)
	assert.Equal(t, "DM-1", res.Entries[0].DisplayCode)
	assert.Equal(t, "戦闘後", res.Entries[1].PhaseLabel)
	assert.Equal(t, "LV.20", res.Entries[2].DangerLevel)
	assert.Equal(t, resolve.StrategyGraph, res.Entries[2].Strategy)
	assert.Empty(t, res.Problems)
}

func TestOrderService_ResolveEvent_Errors(t *testing.T) {
	svc := newTestOrderService(newTestGameData(), nil)
	ctx := context.Background()

	_, err := svc.ResolveEvent(ctx, "act404")
	assert.True(t, errors.Is(err, secondary.ErrDataNotFound))

	_, err = svc.ResolveEvent(ctx, "act99d0")
	var orderErr *resolve.OrderingError
	assert.True(t, errors.As(err, &orderErr))
}

func TestOrderService_ResolveEvent_MiniStoryProblems(t *testing.T) {
	svc := newTestOrderService(newTestGameData(), nil)

	res, err := svc.ResolveEvent(context.Background(), "act15mini")
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, "ST-1", res.Entries[0].DisplayCode)
	assert.Equal(t, "ST-2", res.Entries[1].DisplayCode)
	require.Len(t, res.Problems, 1)
	assert.Equal(t, string(resolve.KindSkippedFile), res.Problems[0].Kind)
	assert.False(t, res.Problems[0].Fatal)
}

func TestOrderService_ResolveChapter(t *testing.T) {
	svc := newTestOrderService(newTestGameData(), nil)
	ctx := context.Background()

	res, err := svc.ResolveChapter(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "main_5", res.ID)
	assert.Equal(t, "第五章 灼熱", res.Title)
	assert.Equal(t, string(storyfile.FamilyMainStory), res.Family)
	assert.Equal(t, []string{
		"obt/main/level_main_05-01_beg.json",
		"obt/main/level_main_05-02_beg.json",
	}, entrySources(res))

	_, err = svc.ResolveChapter(ctx, 9)
	assert.True(t, errors.Is(err, secondary.ErrDataNotFound))
}

func TestOrderService_ListEvents(t *testing.T) {
	svc := newTestOrderService(newTestGameData(), nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  primary.ListEventsRequest
		want []string
	}{
		{
			name: "default skips replicates",
			want: []string{"act15mini", "act9d0", "act8d0", "act99d0", "act0new"},
		},
		{
			name: "with replicates",
			req:  primary.ListEventsRequest{IncludeReplicate: true},
			want: []string{"act9d0_rep", "act15mini", "act9d0", "act8d0", "act99d0", "act0new"},
		},
		{
			name: "limit",
			req:  primary.ListEventsRequest{Limit: 2},
			want: []string{"act15mini", "act9d0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := svc.ListEvents(ctx, tt.req)
			require.NoError(t, err)
			var ids []string
			for _, e := range events {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	events, err := svc.ListEvents(ctx, primary.ListEventsRequest{})
	require.NoError(t, err)
	dm := events[1]
	assert.Equal(t, "Darknights Memoir", dm.Name)
	assert.Equal(t, 3, dm.StoryFiles)
	assert.Equal(t, 2000, dm.Wordcount)
	assert.Equal(t, "2020-09-13T12:26:40Z", dm.StartTime)
	assert.Equal(t, "act0new", events[4].Name)
	assert.Empty(t, events[4].StartTime)
}

func TestOrderService_ListChapters(t *testing.T) {
	svc := newTestOrderService(newTestGameData(), nil)

	chapters, err := svc.ListChapters(context.Background())
	require.NoError(t, err)

	require.Len(t, chapters, 2)
	assert.Equal(t, 5, chapters[0].Number)
	assert.Equal(t, "第五章 灼熱", chapters[0].Title)
	assert.Equal(t, 2, chapters[0].StoryFiles)
	assert.Equal(t, "main_6", chapters[1].Title)
}

func TestOrderService_Build(t *testing.T) {
	defer goleak.VerifyNone(t)

	reports := newMockReportRepository()
	svc := newTestOrderService(newTestGameData(), reports)

	report, err := svc.Build(context.Background(), primary.BuildRequest{IncludeMain: true})
	require.NoError(t, err)

	assert.Equal(t, "run-test", report.RunID)
	assert.Equal(t, "2026-10-01T12:00:00Z", report.StartedAt)
	assert.Equal(t, 5, report.Events)
	assert.Equal(t, 2, report.Chapters)
	assert.Equal(t, 1, report.Failed)
	assert.True(t, report.HasFailures())
	assert.Equal(t, []string{"act99d0"}, report.FailedIDs())
	// act9d0 3 + act8d0 2 + act15mini 2 + act0new 1 + main_5 2 + main_6 1
	assert.Equal(t, 11, report.Entries)

	var kinds []string
	for _, p := range report.Problems {
		kinds = append(kinds, p.SubjectID+":"+p.Kind)
	}
	assert.Contains(t, kinds, "act99d0:"+KindOrderingError)
	assert.Contains(t, kinds, "act15mini:"+string(resolve.KindSkippedFile))
	assert.Contains(t, kinds, "act0new:"+string(resolve.KindUnresolvedToken))

	require.Len(t, reports.runs, 1)
	assert.Equal(t, "run-test", reports.runs[0].ID)
	assert.Equal(t, 1, reports.runs[0].Failed)
	assert.Len(t, reports.problems["run-test"], len(report.Problems))
}

func TestOrderService_Build_Selection(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newTestOrderService(newTestGameData(), nil)
	ctx := context.Background()

	tests := []struct {
		name         string
		req          primary.BuildRequest
		wantEvents   int
		wantChapters int
	}{
		{name: "explicit events", req: primary.BuildRequest{EventIDs: []string{"act9d0", "act8d0"}}, wantEvents: 2},
		{name: "main only", req: primary.BuildRequest{MainOnly: true}, wantChapters: 2},
		{name: "main chapters", req: primary.BuildRequest{MainOnly: true, Chapters: []int{6, 7}}, wantChapters: 1},
		{name: "limit with main", req: primary.BuildRequest{Limit: 1, IncludeMain: true}, wantEvents: 1, wantChapters: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := svc.Build(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEvents, report.Events)
			assert.Equal(t, tt.wantChapters, report.Chapters)
		})
	}
}

func TestOrderService_Build_ListingFailureIsPerEvent(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newTestGameData()
	source.fileErr["act8d0"] = errors.New("permission denied")
	svc := newTestOrderService(source, nil)

	report, err := svc.Build(context.Background(), primary.BuildRequest{EventIDs: []string{"act8d0", "act9d0"}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Problems, 1)
	assert.Equal(t, KindResolveError, report.Problems[0].Kind)
	assert.Equal(t, 3, report.Entries)
}

func TestOrderService_Build_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc := newTestOrderService(newTestGameData(), nil)
	_, err := svc.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Build(ctx, primary.BuildRequest{EventIDs: []string{"act9d0"}})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOrderService_Build_SaveError(t *testing.T) {
	reports := newMockReportRepository()
	reports.saveErr = errors.New("database is locked")
	svc := newTestOrderService(newTestGameData(), reports)

	_, err := svc.Build(context.Background(), primary.BuildRequest{EventIDs: []string{"act9d0"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save build report")
}

func TestOrderService_LatestReport(t *testing.T) {
	reports := newMockReportRepository()
	svc := newTestOrderService(newTestGameData(), reports)
	ctx := context.Background()

	_, err := svc.LatestReport(ctx)
	assert.True(t, errors.Is(err, secondary.ErrNoBuildRuns))

	built, err := svc.Build(ctx, primary.BuildRequest{EventIDs: []string{"act99d0", "act9d0"}})
	require.NoError(t, err)

	latest, err := svc.LatestReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, built.RunID, latest.RunID)
	assert.Equal(t, built.Entries, latest.Entries)
	assert.Equal(t, built.FailedIDs(), latest.FailedIDs())

	_, err = newTestOrderService(newTestGameData(), nil).LatestReport(ctx)
	assert.True(t, errors.Is(err, secondary.ErrNoBuildRuns))
}

func TestOrderService_LogsDiagnosticsWithRunID(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestOrderService(newTestGameData(), nil)
	svc.logger = logging.NewWriter(&buf, zapcore.WarnLevel)

	_, err := svc.Build(context.Background(), primary.BuildRequest{EventIDs: []string{"act15mini"}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"run_id":"run-test"`)
	assert.Contains(t, out, `"kind":"skipped_file"`)
	assert.True(t, strings.Contains(out, "act15mini_01.json"))
}
