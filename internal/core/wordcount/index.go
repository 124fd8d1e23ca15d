// Package wordcount indexes the per-event word-count manifest.
//
// The manifest maps an event id to an object of story path -> character
// count. The object's key order is the authoritative story order for the
// event, so it is read with gjson, which walks keys in document order.
package wordcount

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidManifest is returned when the manifest is not a JSON object of
// objects with integer counts.
var ErrInvalidManifest = errors.New("invalid wordcount manifest")

// Entry is one manifest line for an event.
type Entry struct {
	Path     string // path as written in the manifest
	Key      string // normalized lookup key
	Count    int
	Position int // 0-based position in the manifest object
}

type eventIndex struct {
	entries []Entry
	byKey   map[string]int // key -> index into entries
	total   int
}

// Index is an immutable view of the manifest.
type Index struct {
	events map[string]*eventIndex
}

// Empty returns an index with no events.
func Empty() *Index {
	return &Index{events: map[string]*eventIndex{}}
}

// Parse builds an Index from raw manifest bytes.
func Parse(data []byte) (*Index, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidManifest)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidManifest)
	}

	idx := Empty()
	var parseErr error
	root.ForEach(func(eventKey, eventVal gjson.Result) bool {
		eventID := eventKey.String()
		if !eventVal.IsObject() {
			parseErr = fmt.Errorf("%w: event %s is not an object", ErrInvalidManifest, eventID)
			return false
		}
		ev := &eventIndex{byKey: map[string]int{}}
		pos := 0
		eventVal.ForEach(func(pathKey, countVal gjson.Result) bool {
			p := pathKey.String()
			if countVal.Type != gjson.Number || countVal.Num != float64(countVal.Int()) {
				parseErr = fmt.Errorf("%w: count for %s/%s is not an integer", ErrInvalidManifest, eventID, p)
				return false
			}
			key := NormalizeKey(p)
			if _, dup := ev.byKey[key]; dup {
				// first occurrence keeps its position and count
				return true
			}
			count := int(countVal.Int())
			ev.byKey[key] = len(ev.entries)
			ev.entries = append(ev.entries, Entry{Path: p, Key: key, Count: count, Position: pos})
			ev.total += count
			pos++
			return true
		})
		if parseErr != nil {
			return false
		}
		idx.events[eventID] = ev
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return idx, nil
}

// OrderFor returns the manifest entries of an event in manifest order.
// An event with no manifest, or an empty manifest object, reports false.
func (x *Index) OrderFor(eventID string) ([]Entry, bool) {
	ev := x.event(eventID)
	if ev == nil || len(ev.entries) == 0 {
		return nil, false
	}
	out := make([]Entry, len(ev.entries))
	copy(out, ev.entries)
	return out, true
}

// CountFor returns the character count for a story file of an event.
// fileOrPath may be an on-disk file name or a manifest path.
func (x *Index) CountFor(eventID, fileOrPath string) (int, bool) {
	ev := x.event(eventID)
	if ev == nil {
		return 0, false
	}
	i, ok := ev.byKey[NormalizeKey(fileOrPath)]
	if !ok {
		return 0, false
	}
	return ev.entries[i].Count, true
}

// TotalFor returns the sum of all known counts for an event, 0 if absent.
func (x *Index) TotalFor(eventID string) int {
	ev := x.event(eventID)
	if ev == nil {
		return 0
	}
	return ev.total
}

// Events returns the number of events in the manifest.
func (x *Index) Events() int {
	if x == nil {
		return 0
	}
	return len(x.events)
}

func (x *Index) event(eventID string) *eventIndex {
	if x == nil {
		return nil
	}
	return x.events[eventID]
}

// NormalizeKey reduces a manifest path or an on-disk file name to the common
// lookup key: separators unified, path cleaned, directory dropped, ".json"
// and a leading "level_" removed.
//
//	activities/act9d0/level_act9d0_01_beg.json -> act9d0_01_beg
//	level_act9d0_01_beg.json                   -> act9d0_01_beg
//	act9d0_01_beg                              -> act9d0_01_beg
func NormalizeKey(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	base := path.Base(path.Clean(p))
	base = strings.TrimSuffix(base, ".json")
	base = strings.TrimPrefix(base, "level_")
	return base
}
