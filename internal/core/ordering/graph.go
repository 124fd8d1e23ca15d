// Package ordering linearizes a set of stages along their unlock conditions.
// This is part of the Functional Core - no I/O, only pure functions.
package ordering

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/storyorder/internal/core/stage"
)

// ErrCycle is matched by errors reporting a cyclic unlock graph.
var ErrCycle = errors.New("unlock graph contains a cycle")

// CycleError reports the stages left unprocessed when Kahn's algorithm stalls.
type CycleError struct {
	Remaining []string // sorted stage ids
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("unlock graph contains a cycle through %d stages: %s",
		len(e.Remaining), strings.Join(e.Remaining, ", "))
}

// Is makes errors.Is(err, ErrCycle) true for a *CycleError.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycle
}

// Order returns the stages in a topological order of their unlock graph.
//
// Edges run prerequisite -> stage and only between stages of the input set;
// prerequisites outside the set are ignored. Among stages that become ready
// at the same time the smaller display code goes first, then the smaller id.
// Duplicate ids in the input keep their first occurrence.
func Order(stages []stage.Record) ([]stage.Record, error) {
	nodes := make(map[string]stage.Record, len(stages))
	for _, s := range stages {
		if _, dup := nodes[s.ID]; !dup {
			nodes[s.ID] = s
		}
	}

	indegree := make(map[string]int, len(nodes))
	next := make(map[string][]string, len(nodes))
	for id := range nodes {
		indegree[id] = 0
	}
	for id, s := range nodes {
		seen := map[string]bool{}
		for _, c := range s.Unlock {
			if _, in := nodes[c.StageID]; !in || seen[c.StageID] {
				continue
			}
			seen[c.StageID] = true
			next[c.StageID] = append(next[c.StageID], id)
			indegree[id]++
		}
	}

	var ready []stage.Record
	for id, d := range indegree {
		if d == 0 {
			ready = append(ready, nodes[id])
		}
	}

	out := make([]stage.Record, 0, len(nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		cur := ready[0]
		ready = ready[1:]
		out = append(out, cur)

		for _, id := range next[cur.ID] {
			indegree[id]--
			if indegree[id] == 0 {
				ready = append(ready, nodes[id])
			}
		}
	}

	if len(out) < len(nodes) {
		var remaining []string
		for id, d := range indegree {
			if d > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Remaining: remaining}
	}
	return out, nil
}

func less(a, b stage.Record) bool {
	if a.Code != b.Code {
		return a.Code < b.Code
	}
	return a.ID < b.ID
}
