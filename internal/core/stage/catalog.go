// Package stage contains the stage catalog: stage metadata and unlock
// dependencies parsed from stage_table.json.
// This is part of the Functional Core - no I/O, only pure functions.
package stage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Condition is one unlock prerequisite of a stage.
type Condition struct {
	StageID       string
	CompleteState string // PASS, COMPLETE, ...
}

// Record is one stage from the stage table.
type Record struct {
	ID          string
	Code        string // display code, e.g. "OR-1" or "OR-ST-1"
	Name        string
	DangerLevel string // free-text recommended level
	StageType   string // MAIN, ACTIVITY, ...
	ZoneID      string
	LevelID     string
	Unlock      []Condition
}

// IsEntry reports whether the stage has no unlock prerequisites.
func (r Record) IsEntry() bool {
	return len(r.Unlock) == 0
}

// Catalog is an immutable lookup of stages by id.
type Catalog struct {
	stages map[string]Record
	ids    []string // sorted
}

type rawTable struct {
	Stages map[string]rawStage `json:"stages"`
}

type rawStage struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	DangerLevel     string `json:"dangerLevel"`
	StageType       string `json:"stageType"`
	ZoneID          string `json:"zoneId"`
	LevelID         string `json:"levelId"`
	UnlockCondition []struct {
		StageID       string `json:"stageId"`
		CompleteState string `json:"completeState"`
	} `json:"unlockCondition"`
}

// Parse builds a Catalog from the raw stage table.
func Parse(data []byte) (*Catalog, error) {
	var raw rawTable
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse stage table: %w", err)
	}

	records := make([]Record, 0, len(raw.Stages))
	for id, s := range raw.Stages {
		rec := Record{
			ID:          id,
			Code:        s.Code,
			Name:        s.Name,
			DangerLevel: s.DangerLevel,
			StageType:   s.StageType,
			ZoneID:      s.ZoneID,
			LevelID:     s.LevelID,
		}
		for _, c := range s.UnlockCondition {
			rec.Unlock = append(rec.Unlock, Condition{StageID: c.StageID, CompleteState: c.CompleteState})
		}
		records = append(records, rec)
	}
	return New(records), nil
}

// New builds a Catalog from already-parsed records. Later duplicates win.
func New(records []Record) *Catalog {
	c := &Catalog{stages: make(map[string]Record, len(records))}
	for _, r := range records {
		c.stages[r.ID] = r
	}
	c.ids = make([]string, 0, len(c.stages))
	for id := range c.stages {
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
	return c
}

// Empty returns a catalog with no stages.
func Empty() *Catalog {
	return New(nil)
}

// Len returns the number of stages in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ids)
}

// Get returns the stage with the given id.
func (c *Catalog) Get(id string) (Record, bool) {
	if c == nil {
		return Record{}, false
	}
	r, ok := c.stages[id]
	return r, ok
}

// ForEvent returns the stages belonging to an event, sorted by id.
// A stage matches when its id starts with "<eventID>_", when its levelId
// references the event directory, or when its id starts with one of the
// alias prefixes (e.g. "a003_" for act3d0). No match yields an empty slice.
func (c *Catalog) ForEvent(eventID string, aliasPrefixes []string) []Record {
	if c == nil || eventID == "" {
		return nil
	}
	idPrefix := eventID + "_"
	levelRef := "/" + strings.ToUpper(eventID) + "/"

	return c.filter(func(r Record) bool {
		if strings.HasPrefix(r.ID, idPrefix) {
			return true
		}
		if r.LevelID != "" && strings.Contains(strings.ToUpper(r.LevelID), levelRef) {
			return true
		}
		for _, p := range aliasPrefixes {
			if p != "" && strings.HasPrefix(r.ID, p) {
				return true
			}
		}
		return false
	})
}

// ForChapter returns the main-story stages of a chapter, including its
// interlude (st_, spst_) and tutorial (tr_) stages, sorted by id.
func (c *Catalog) ForChapter(chapter int) []Record {
	if c == nil || chapter < 0 {
		return nil
	}
	prefixes := ChapterPrefixes(chapter)
	return c.filter(func(r Record) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(r.ID, p) {
				return true
			}
		}
		return false
	})
}

// ChapterPrefixes returns the stage id prefixes scoped to a main-story chapter.
func ChapterPrefixes(chapter int) []string {
	cc := fmt.Sprintf("%02d-", chapter)
	return []string{"main_" + cc, "st_" + cc, "spst_" + cc, "tr_" + cc}
}

func (c *Catalog) filter(match func(Record) bool) []Record {
	var out []Record
	for _, id := range c.ids {
		if r := c.stages[id]; match(r) {
			out = append(out, r)
		}
	}
	return out
}
