// Package zone parses main-story chapters from the zone table.
package zone

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MainlineType is the zone type of main-story chapters.
const MainlineType = "MAINLINE"

// Chapter is one main-story zone.
type Chapter struct {
	ZoneID     string
	Index      int
	NameFirst  string // e.g. "第五章"
	NameSecond string // e.g. "寄生..."
	NameThird  string // e.g. "EPISODE 05"
	CanPreview bool
}

// Number returns the chapter number.
func (c Chapter) Number() int {
	return c.Index
}

// DisplayTitle joins the first and second zone names.
func (c Chapter) DisplayTitle() string {
	return strings.TrimSpace(c.NameFirst + " " + c.NameSecond)
}

// Table holds the main-story chapters.
type Table struct {
	chapters map[int]Chapter
}

type rawTable struct {
	Zones map[string]struct {
		ZoneID         string `json:"zoneID"`
		ZoneIndex      int    `json:"zoneIndex"`
		Type           string `json:"type"`
		ZoneNameFirst  string `json:"zoneNameFirst"`
		ZoneNameSecond string `json:"zoneNameSecond"`
		ZoneNameThird  string `json:"zoneNameThird"`
		CanPreview     bool   `json:"canPreview"`
	} `json:"zones"`
}

// Parse builds a Table from the raw zone table, keeping only MAINLINE zones
// whose id starts with "main_".
func Parse(data []byte) (*Table, error) {
	var raw rawTable
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse zone table: %w", err)
	}
	t := &Table{chapters: map[int]Chapter{}}
	for id, z := range raw.Zones {
		if !strings.HasPrefix(id, "main_") || z.Type != MainlineType {
			continue
		}
		t.chapters[z.ZoneIndex] = Chapter{
			ZoneID:     id,
			Index:      z.ZoneIndex,
			NameFirst:  z.ZoneNameFirst,
			NameSecond: z.ZoneNameSecond,
			NameThird:  z.ZoneNameThird,
			CanPreview: z.CanPreview,
		}
	}
	return t, nil
}

// Empty returns a table with no chapters.
func Empty() *Table {
	return &Table{chapters: map[int]Chapter{}}
}

// Get returns the chapter with the given number.
func (t *Table) Get(n int) (Chapter, bool) {
	if t == nil {
		return Chapter{}, false
	}
	c, ok := t.chapters[n]
	return c, ok
}

// Chapters returns the chapter numbers in ascending order.
func (t *Table) Chapters() []int {
	if t == nil {
		return nil
	}
	out := make([]int, 0, len(t.chapters))
	for n := range t.chapters {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
