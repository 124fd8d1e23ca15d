package resolve

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/example/storyorder/internal/core/ordering"
	"github.com/example/storyorder/internal/core/stage"
	"github.com/example/storyorder/internal/core/storyfile"
)

// Strategy names, in precedence order.
const (
	StrategyManifest = "manifest"
	StrategyVirtual  = "virtual"
	StrategyGraph    = "graph"
	StrategyLexical  = "lexical"
)

// strategy places some of the pending tokens and hands the rest to the next
// strategy. A strategy that does not apply returns every token as rest.
type strategy struct {
	name  string
	apply func(s *resolution, pending []storyfile.Token) (placed []Entry, rest []storyfile.Token, err error)
}

func defaultStrategies() []strategy {
	return []strategy{
		{name: StrategyManifest, apply: manifestOrder},
		{name: StrategyVirtual, apply: virtualOrder},
		{name: StrategyGraph, apply: graphOrder},
		{name: StrategyLexical, apply: lexicalOrder},
	}
}

// manifestOrder follows the word-count manifest verbatim. Files absent from
// the manifest are left for the fallback strategies; manifest entries with
// no file are reported and skipped.
func manifestOrder(s *resolution, pending []storyfile.Token) ([]Entry, []storyfile.Token, error) {
	manifest, ok := s.resolver.tables.Index.OrderFor(s.id)
	if !ok {
		s.report(KindDataNotFound, "", "no word-count manifest")
		return nil, pending, nil
	}

	byKey := make(map[string]int, len(pending))
	for i, tok := range pending {
		if _, dup := byKey[tok.Key]; !dup {
			byKey[tok.Key] = i
		}
	}

	used := make([]bool, len(pending))
	var placed []Entry
	for _, m := range manifest {
		i, found := byKey[m.Key]
		if !found || used[i] {
			s.report(KindManifestUnmatched, m.Path, "manifest entry has no story file")
			continue
		}
		used[i] = true
		placed = append(placed, s.entry(pending[i], StrategyManifest))
	}
	return placed, unused(pending, used), nil
}

// virtualOrder places MINISTORY and TYPE_ACT4D0 files by file index.
// Gameplay stages are never consulted.
func virtualOrder(s *resolution, pending []storyfile.Token) ([]Entry, []storyfile.Token, error) {
	if !s.family.Virtual() {
		return nil, pending, nil
	}
	sorted := make([]storyfile.Token, len(pending))
	copy(sorted, pending)
	sort.SliceStable(sorted, func(a, b int) bool {
		return sorted[a].FileIndex < sorted[b].FileIndex
	})

	placed := make([]Entry, 0, len(sorted))
	for _, tok := range sorted {
		placed = append(placed, s.entry(tok, StrategyVirtual))
	}
	return placed, nil, nil
}

// graphOrder walks the unlock graph of the event's stages and emits each
// stage's files at its position: interludes, then pre-battle, then
// post-battle. Files whose token names no stage in scope are left over.
func graphOrder(s *resolution, pending []storyfile.Token) ([]Entry, []storyfile.Token, error) {
	if s.family != storyfile.FamilyStandard && s.family != storyfile.FamilyMainStory {
		return nil, pending, nil
	}

	scope := s.stageScope(pending)
	if len(scope) == 0 {
		s.report(KindDataNotFound, "", "no stages in the stage table")
		return nil, pending, nil
	}

	ordered, err := ordering.Order(scope)
	if err != nil {
		return nil, nil, &OrderingError{ID: s.id, Err: err}
	}

	byStage := make(map[string][]int)
	inScope := make(map[string]bool, len(scope))
	for _, r := range scope {
		inScope[r.ID] = true
	}
	used := make([]bool, len(pending))
	for i, tok := range pending {
		if inScope[tok.StageToken] {
			byStage[tok.StageToken] = append(byStage[tok.StageToken], i)
		}
	}

	var placed []Entry
	for _, r := range ordered {
		idx := byStage[r.ID]
		sort.SliceStable(idx, func(a, b int) bool {
			return phaseRank(pending[idx[a]]) < phaseRank(pending[idx[b]])
		})
		for _, i := range idx {
			used[i] = true
			placed = append(placed, s.entry(pending[i], StrategyGraph))
		}
	}
	return placed, unused(pending, used), nil
}

// lexicalOrder places every remaining file by raw name.
func lexicalOrder(s *resolution, pending []storyfile.Token) ([]Entry, []storyfile.Token, error) {
	sorted := make([]storyfile.Token, len(pending))
	copy(sorted, pending)
	sortByRawName(sorted)

	placed := make([]Entry, 0, len(sorted))
	for _, tok := range sorted {
		placed = append(placed, s.entry(tok, StrategyLexical))
	}
	return placed, nil, nil
}

var chapterID = regexp.MustCompile(`^main_(\d+)$`)

// stageScope returns the stages eligible for an event's graph: the event's
// own stages (or the chapter's for main story) plus any stage a file token
// names exactly.
func (s *resolution) stageScope(pending []storyfile.Token) []stage.Record {
	catalog := s.resolver.tables.Catalog

	var base []stage.Record
	if s.family == storyfile.FamilyMainStory {
		for _, ch := range s.chapters(pending) {
			base = append(base, catalog.ForChapter(ch)...)
		}
	} else {
		base = catalog.ForEvent(s.id, s.resolver.tables.Policy.For(s.id).StagePrefixes)
	}

	seen := make(map[string]bool, len(base))
	scope := make([]stage.Record, 0, len(base))
	for _, r := range base {
		if !seen[r.ID] {
			seen[r.ID] = true
			scope = append(scope, r)
		}
	}
	for _, tok := range pending {
		if seen[tok.StageToken] {
			continue
		}
		if r, ok := catalog.Get(tok.StageToken); ok {
			seen[r.ID] = true
			scope = append(scope, r)
		}
	}
	return scope
}

// chapters returns the main-story chapters in scope: the one named by the
// id, or else every chapter the files belong to.
func (s *resolution) chapters(pending []storyfile.Token) []int {
	if m := chapterID.FindStringSubmatch(s.id); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return []int{n}
		}
	}
	seen := map[int]bool{}
	var out []int
	for _, tok := range pending {
		if tok.Chapter >= 0 && !seen[tok.Chapter] {
			seen[tok.Chapter] = true
			out = append(out, tok.Chapter)
		}
	}
	sort.Ints(out)
	return out
}

func phaseRank(tok storyfile.Token) int {
	switch tok.Phase {
	case storyfile.PhasePreBattle:
		return 1
	case storyfile.PhasePostBattle:
		return 2
	default:
		return 0
	}
}

func unused(tokens []storyfile.Token, used []bool) []storyfile.Token {
	var rest []storyfile.Token
	for i, tok := range tokens {
		if !used[i] {
			rest = append(rest, tok)
		}
	}
	return rest
}
