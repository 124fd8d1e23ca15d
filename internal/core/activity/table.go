// Package activity parses the activity (event) table.
package activity

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Info is one event from the activity table's basicInfo section.
type Info struct {
	ID          string
	Name        string
	Type        string
	DisplayType string
	StartTime   int64 // unix seconds
	EndTime     int64
	IsReplicate bool
	HasStage    bool
}

// IsMiniStory reports whether the event carries the MINISTORY type flag.
func (i Info) IsMiniStory() bool {
	return i.Type == "MINISTORY"
}

// Start returns the event start as a time in UTC.
func (i Info) Start() time.Time {
	return time.Unix(i.StartTime, 0).UTC()
}

// Table is an immutable lookup of events by id.
type Table struct {
	byID map[string]Info
}

type rawTable struct {
	BasicInfo map[string]struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Type        string `json:"type"`
		DisplayType string `json:"displayType"`
		StartTime   int64  `json:"startTime"`
		EndTime     int64  `json:"endTime"`
		IsReplicate bool   `json:"isReplicate"`
		HasStage    bool   `json:"hasStage"`
	} `json:"basicInfo"`
}

// Parse builds a Table from the raw activity table.
func Parse(data []byte) (*Table, error) {
	var raw rawTable
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse activity table: %w", err)
	}
	t := &Table{byID: make(map[string]Info, len(raw.BasicInfo))}
	for key, a := range raw.BasicInfo {
		id := a.ID
		if id == "" {
			id = key
		}
		t.byID[id] = Info{
			ID:          id,
			Name:        a.Name,
			Type:        a.Type,
			DisplayType: a.DisplayType,
			StartTime:   a.StartTime,
			EndTime:     a.EndTime,
			IsReplicate: a.IsReplicate,
			HasStage:    a.HasStage,
		}
	}
	return t, nil
}

// Empty returns a table with no events.
func Empty() *Table {
	return &Table{byID: map[string]Info{}}
}

// Get returns the event with the given id.
func (t *Table) Get(id string) (Info, bool) {
	if t == nil {
		return Info{}, false
	}
	i, ok := t.byID[id]
	return i, ok
}

// Type returns the event's type flag, or "" when the event is unknown.
func (t *Table) Type(id string) string {
	i, _ := t.Get(id)
	return i.Type
}

// Len returns the number of events.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byID)
}

// All returns every event, newest start first; ties break on id.
func (t *Table) All() []Info {
	if t == nil {
		return nil
	}
	out := make([]Info, 0, len(t.byID))
	for _, i := range t.byID {
		out = append(out, i)
	}
	SortByStart(out, true)
	return out
}

// SortByStart orders events by start time, newest first when desc is set.
// Events starting at the same time are ordered by id.
func SortByStart(events []Info, desc bool) {
	sort.SliceStable(events, func(a, b int) bool {
		ea, eb := events[a], events[b]
		if ea.StartTime != eb.StartTime {
			if desc {
				return ea.StartTime > eb.StartTime
			}
			return ea.StartTime < eb.StartTime
		}
		return ea.ID < eb.ID
	})
}
