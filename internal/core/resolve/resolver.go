// Package resolve produces the reading order of one event or main-story
// chapter from its story file names and the loaded game tables.
// This is part of the Functional Core - no I/O, only pure functions.
package resolve

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/example/storyorder/internal/core/activity"
	"github.com/example/storyorder/internal/core/stage"
	"github.com/example/storyorder/internal/core/storyfile"
	"github.com/example/storyorder/internal/core/wordcount"
)

// Tables are the read-only inputs shared by every resolution.
// Nil tables behave as empty ones.
type Tables struct {
	Catalog    *stage.Catalog
	Index      *wordcount.Index
	Activities *activity.Table
	Policy     storyfile.Policy
}

// PhaseLabels are the display labels attached to entries.
type PhaseLabels struct {
	PreBattle  string
	PostBattle string
	Interlude  string
}

// DefaultPhaseLabels returns the Japanese labels used by the archive.
func DefaultPhaseLabels() PhaseLabels {
	return PhaseLabels{
		PreBattle:  "戦闘前",
		PostBattle: "戦闘後",
		Interlude:  "間章",
	}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPhaseLabels replaces the default phase labels.
func WithPhaseLabels(l PhaseLabels) Option {
	return func(r *Resolver) {
		r.labels = l
	}
}

// Resolver orders story files. It holds no mutable state and is safe for
// concurrent use once constructed.
type Resolver struct {
	tables     Tables
	labels     PhaseLabels
	strategies []strategy
}

// New creates a Resolver over the given tables.
func New(tables Tables, opts ...Option) *Resolver {
	r := &Resolver{
		tables:     tables,
		labels:     DefaultPhaseLabels(),
		strategies: defaultStrategies(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Input names the event or chapter and lists its story files.
type Input struct {
	ID    string
	Files []string
}

// Entry is one story file at its resolved position.
type Entry struct {
	DisplayCode     string
	ResolvedStageID string
	StageName       string
	StageToken      string
	Phase           storyfile.Phase
	PhaseLabel      string
	DangerLevel     string
	Wordcount       *int
	SourceFileName  string
	Strategy        string
}

// Key identifies an entry within its event. Battle files of the same stage
// share a ResolvedStageID and differ by phase.
func (e Entry) Key() string {
	switch e.Phase {
	case storyfile.PhasePreBattle:
		return e.ResolvedStageID + "#beg"
	case storyfile.PhasePostBattle:
		return e.ResolvedStageID + "#end"
	default:
		return e.ResolvedStageID
	}
}

// Result is the resolved order of one event or chapter.
type Result struct {
	ID     string
	Family storyfile.Family
	// Strategy names the first strategy that placed any entry.
	Strategy    string
	Entries     []Entry
	Diagnostics []Diagnostic
}

// Wordcount sums the known counts of the entries.
func (r *Result) Wordcount() int {
	total := 0
	for _, e := range r.Entries {
		if e.Wordcount != nil {
			total += *e.Wordcount
		}
	}
	return total
}

// Warnings returns the diagnostics worth surfacing to a user.
func (r *Result) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Kind.Warning() {
			out = append(out, d)
		}
	}
	return out
}

// Resolve orders the story files of one event or chapter. Non-fatal
// problems are returned as diagnostics on the result; only a cyclic unlock
// graph fails, with an *OrderingError.
func (r *Resolver) Resolve(in Input) (*Result, error) {
	hints := storyfile.Hints{ActivityType: r.tables.Activities.Type(in.ID)}
	class := storyfile.Classify(in.ID, in.Files, hints, r.tables.Policy)

	res := &resolution{
		resolver: r,
		id:       in.ID,
		family:   class.Family,
	}
	for _, tok := range class.Skipped {
		res.report(KindSkippedFile, tok.RawFileName,
			fmt.Sprintf("only _st files are story files for %s events", class.Family))
	}

	pending := make([]storyfile.Token, len(class.Tokens))
	copy(pending, class.Tokens)
	sortByRawName(pending)

	result := &Result{ID: in.ID, Family: class.Family}
	for _, s := range r.strategies {
		if len(pending) == 0 {
			break
		}
		placed, rest, err := s.apply(res, pending)
		if err != nil {
			return nil, err
		}
		if len(placed) > 0 && result.Strategy == "" {
			result.Strategy = s.name
		}
		result.Entries = append(result.Entries, placed...)
		pending = rest
	}

	if class.Family.Virtual() {
		numberVirtual(result.Entries)
	}
	res.dedupe(result.Entries)
	result.Diagnostics = res.diags
	return result, nil
}

// resolution is the per-call state shared by the strategies.
type resolution struct {
	resolver *Resolver
	id       string
	family   storyfile.Family
	diags    []Diagnostic
}

func (s *resolution) report(kind DiagnosticKind, file, msg string) {
	s.diags = append(s.diags, Diagnostic{Kind: kind, ID: s.id, File: file, Message: msg})
}

// entry annotates a placed token. Virtual families get a synthesized ST-k
// stage; other families take code, name and danger level from the stage
// table, warning when the token matches no stage.
func (s *resolution) entry(tok storyfile.Token, strategy string) Entry {
	t := s.resolver.tables
	e := Entry{
		StageToken:     tok.StageToken,
		Phase:          tok.Phase,
		PhaseLabel:     s.resolver.labels.label(tok),
		SourceFileName: tok.RawFileName,
		Strategy:       strategy,
	}
	if n, ok := t.Index.CountFor(s.id, tok.RawFileName); ok {
		e.Wordcount = &n
	}

	if s.family.Virtual() {
		// ST-k ids are assigned by position once the order is final.
		return e
	}

	e.ResolvedStageID = tok.StageToken
	e.DisplayCode = tok.StageToken
	rec, ok := t.Catalog.Get(tok.StageToken)
	if !ok {
		s.report(KindUnresolvedToken, tok.RawFileName,
			fmt.Sprintf("stage token %q matches no stage", tok.StageToken))
		return e
	}
	if rec.Code != "" {
		e.DisplayCode = rec.Code
	}
	e.StageName = rec.Name
	e.DangerLevel = rec.DangerLevel
	return e
}

// numberVirtual gives each entry of a virtual family the synthesized stage
// of its position: ST-1, ST-2, ... in reading order.
func numberVirtual(entries []Entry) {
	for i := range entries {
		entries[i].ResolvedStageID = VirtualStageID(i)
		entries[i].DisplayCode = entries[i].ResolvedStageID
		entries[i].StageName = VirtualStageName(i)
	}
}

// dedupe keeps entry keys unique by suffixing repeats. A display code shared
// by two different stages is reported but left as the table has it.
func (s *resolution) dedupe(entries []Entry) {
	seen := make(map[string]int, len(entries))
	codes := make(map[string]string, len(entries))
	for i := range entries {
		key := entries[i].Key()
		seen[key]++
		if seen[key] == 1 {
			s.checkCode(codes, entries[i])
			continue
		}
		base := entries[i].ResolvedStageID
		for n := seen[key]; ; n++ {
			entries[i].ResolvedStageID = base + "~" + strconv.Itoa(n)
			if _, taken := seen[entries[i].Key()]; !taken {
				break
			}
		}
		seen[entries[i].Key()] = 1
		s.report(KindDuplicateKey, entries[i].SourceFileName,
			fmt.Sprintf("%s already used, renamed to %s", key, entries[i].ResolvedStageID))
	}
}

// checkCode records the stage holding a display code within a phase.
func (s *resolution) checkCode(codes map[string]string, e Entry) {
	code := e.DisplayCode + "#" + string(e.Phase)
	first, ok := codes[code]
	if !ok {
		codes[code] = e.ResolvedStageID
		return
	}
	if first != e.ResolvedStageID {
		s.report(KindDuplicateKey, e.SourceFileName,
			fmt.Sprintf("display code %s of %s already used by %s", e.DisplayCode, e.ResolvedStageID, first))
	}
}

func (l PhaseLabels) label(tok storyfile.Token) string {
	switch {
	case tok.Phase == storyfile.PhasePreBattle:
		return l.PreBattle
	case tok.Phase == storyfile.PhasePostBattle:
		return l.PostBattle
	case tok.Kind == storyfile.KindInterlude:
		return l.Interlude
	default:
		return ""
	}
}

// VirtualStageID is the synthesized stage of the file at index i.
func VirtualStageID(i int) string {
	return "ST-" + strconv.Itoa(i+1)
}

// VirtualStageName is the display name of the synthesized stage at index i.
func VirtualStageName(i int) string {
	return "シナリオ " + strconv.Itoa(i+1)
}

func sortByRawName(tokens []storyfile.Token) {
	sort.SliceStable(tokens, func(a, b int) bool {
		return tokens[a].RawFileName < tokens[b].RawFileName
	})
}
