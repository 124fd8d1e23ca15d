package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/example/storyorder/internal/ports/secondary"
)

// Locations inside a locale directory.
const (
	excelDir      = "gamedata/excel"
	storyDir      = "gamedata/story"
	activitiesDir = "activities"
	mainStoryDir  = "obt/main"
	wordcountFile = "wordcount.json"
)

// GameDataAdapter implements secondary.GameDataSource over an extracted
// locale directory, e.g. data/ArknightsStoryJson/ja_JP.
type GameDataAdapter struct {
	root string
}

// NewGameDataAdapter creates a new filesystem game data adapter.
func NewGameDataAdapter(root string) *GameDataAdapter {
	return &GameDataAdapter{root: root}
}

// Root returns the locale directory being read.
func (a *GameDataAdapter) Root() string {
	return a.root
}

// StageTable reads gamedata/excel/stage_table.json.
func (a *GameDataAdapter) StageTable(ctx context.Context) ([]byte, error) {
	return a.readFile(ctx, filepath.Join(excelDir, "stage_table.json"))
}

// ActivityTable reads gamedata/excel/activity_table.json.
func (a *GameDataAdapter) ActivityTable(ctx context.Context) ([]byte, error) {
	return a.readFile(ctx, filepath.Join(excelDir, "activity_table.json"))
}

// ZoneTable reads gamedata/excel/zone_table.json.
func (a *GameDataAdapter) ZoneTable(ctx context.Context) ([]byte, error) {
	return a.readFile(ctx, filepath.Join(excelDir, "zone_table.json"))
}

// WordcountManifest reads wordcount.json.
func (a *GameDataAdapter) WordcountManifest(ctx context.Context) ([]byte, error) {
	return a.readFile(ctx, wordcountFile)
}

// StoryEventIDs lists the event directories under gamedata/story/activities.
func (a *GameDataAdapter) StoryEventIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(a.root, storyDir, activitiesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, notFound(err, dir)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// EventStoryFiles lists an event's story files as paths relative to the
// story root, e.g. "activities/act9d0/level_act9d0_01_beg.json".
func (a *GameDataAdapter) EventStoryFiles(ctx context.Context, eventID string) ([]string, error) {
	if eventID == "" || strings.ContainsAny(eventID, `/\`) || eventID == "." || eventID == ".." {
		return nil, fmt.Errorf("invalid event id %q", eventID)
	}
	return a.listJSON(ctx, path.Join(activitiesDir, eventID))
}

// MainStoryFiles lists the main-story files, e.g. "obt/main/level_main_05-01_beg.json".
func (a *GameDataAdapter) MainStoryFiles(ctx context.Context) ([]string, error) {
	return a.listJSON(ctx, mainStoryDir)
}

func (a *GameDataAdapter) readFile(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := filepath.Join(a.root, rel)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, notFound(err, p)
	}
	return data, nil
}

// listJSON returns the .json files directly inside rel (slash-separated,
// relative to the story root), sorted.
func (a *GameDataAdapter) listJSON(ctx context.Context, rel string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(a.root, storyDir, filepath.FromSlash(rel))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, notFound(err, dir)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, path.Join(rel, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// notFound maps a missing path to secondary.ErrDataNotFound.
func notFound(err error, p string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", p, secondary.ErrDataNotFound)
	}
	return fmt.Errorf("failed to read %s: %w", p, err)
}

// Ensure GameDataAdapter implements the interface
var _ secondary.GameDataSource = (*GameDataAdapter)(nil)
