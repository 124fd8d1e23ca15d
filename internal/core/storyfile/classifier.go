// Package storyfile classifies raw story file names into structured tokens
// and decides which processing family an event belongs to.
// This is part of the Functional Core - no I/O, only pure functions.
package storyfile

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/example/storyorder/internal/core/wordcount"
)

// Family selects the ordering algorithm for an event or chapter.
type Family string

const (
	FamilyStandard   Family = "STANDARD"
	FamilyMiniStory  Family = "MINISTORY"
	FamilyTypeAct4d0 Family = "TYPE_ACT4D0"
	FamilyMainStory  Family = "MAIN_STORY"
)

// Virtual reports whether the family orders by synthesized ST-k stages
// instead of gameplay stages.
func (f Family) Virtual() bool {
	return f == FamilyMiniStory || f == FamilyTypeAct4d0
}

// Phase is the battle phase a story file belongs to.
type Phase string

const (
	PhaseNone       Phase = "NONE"
	PhasePreBattle  Phase = "PRE_BATTLE"
	PhasePostBattle Phase = "POST_BATTLE"
)

// Kind is the structural kind of a story file.
type Kind string

const (
	KindBattle    Kind = "battle"    // _beg / _end
	KindInterlude Kind = "interlude" // _stNN, st_, spst_
	KindUnknown   Kind = "unknown"   // matched no rule
)

// MiniStoryType is the activity table type value that flags a MINISTORY event.
const MiniStoryType = "MINISTORY"

// Token is the parsed form of one raw story file name.
type Token struct {
	EventID     string
	RawFileName string
	Key         string // normalized name, shared with the wordcount index
	StageToken  string
	Phase       Phase
	Kind        Kind
	Rule        string
	Number      int // embedded numeric suffix, -1 when absent
	Chapter     int // main-story chapter, -1 when absent
	FileIndex   int
	Recognized  bool
}

// Hints carries table-derived facts about the event being classified.
type Hints struct {
	ActivityType string
}

// Classification is the result of classifying one event's files.
type Classification struct {
	Family Family
	// Tokens are the story files that take part in ordering, in input order.
	Tokens []Token
	// Skipped are files excluded by the family (gameplay files of
	// MINISTORY / TYPE_ACT4D0 events).
	Skipped []Token
}

type match struct {
	stageToken string
	phase      Phase
	kind       Kind
	number     int
	chapter    int
}

// rule is one filename grammar. Rules are tried in order; first match wins.
type rule struct {
	name  string
	re    *regexp.Regexp
	build func(eventID string, family Family, m []string) match
}

var rules = []rule{
	{
		name: "main_battle",
		re:   regexp.MustCompile(`^(?:level_)?main_(\d+)-(\d+)_(beg|end)\.json$`),
		build: func(_ string, _ Family, m []string) match {
			ch, st := atoi(m[1]), atoi(m[2])
			return match{
				stageToken: "main_" + pad2(ch) + "-" + pad2(st),
				phase:      battlePhase(m[3]),
				kind:       KindBattle,
				number:     st,
				chapter:    ch,
			}
		},
	},
	{
		name: "main_interlude",
		re:   regexp.MustCompile(`^(?:level_)?(st|spst)_(\d+)-(\d+)\.json$`),
		build: func(_ string, _ Family, m []string) match {
			ch, st := atoi(m[2]), atoi(m[3])
			return match{
				stageToken: m[1] + "_" + pad2(ch) + "-" + pad2(st),
				phase:      PhaseNone,
				kind:       KindInterlude,
				number:     st,
				chapter:    ch,
			}
		},
	},
	{
		// level_<event>_st<NN>.json keeps the "st" infix, except for
		// TYPE_ACT4D0 events whose stage ids are <event>_<NN>.
		name: "story_only",
		re:   regexp.MustCompile(`^(?:level_)?(.+)_st(\d+)\.json$`),
		build: func(_ string, family Family, m []string) match {
			token := m[1] + "_st" + m[2]
			if family == FamilyTypeAct4d0 {
				token = m[1] + "_" + zfill2(m[2])
			}
			return match{
				stageToken: token,
				phase:      PhaseNone,
				kind:       KindInterlude,
				number:     atoi(m[2]),
				chapter:    -1,
			}
		},
	},
	{
		name: "battle",
		re:   regexp.MustCompile(`^(?:level_)?(.+)_(beg|end)\.json$`),
		build: func(_ string, _ Family, m []string) match {
			return match{
				stageToken: m[1],
				phase:      battlePhase(m[2]),
				kind:       KindBattle,
				number:     trailingNumber(m[1]),
				chapter:    -1,
			}
		},
	},
}

var chapterIDPattern = regexp.MustCompile(`^main_(\d+)$`)

// DetectFamily decides the processing family of an event or chapter.
// Precedence: activity type flag, policy override, main-story path or id,
// then STANDARD.
func DetectFamily(id string, rawFileNames []string, hints Hints, policy Policy) Family {
	if hints.ActivityType == MiniStoryType {
		return FamilyMiniStory
	}
	if f := policy.For(id).Family; f != "" {
		return f
	}
	if chapterIDPattern.MatchString(id) {
		return FamilyMainStory
	}
	for _, name := range rawFileNames {
		if strings.Contains(slashed(name), "obt/main/") {
			return FamilyMainStory
		}
	}
	return FamilyStandard
}

// ClassifyName parses a single file name for an event of the given family.
// Unrecognized names get the file stem as token and phase NONE.
func ClassifyName(eventID string, family Family, rawFileName string, policy Policy) Token {
	base := baseName(rawFileName)
	tok := Token{
		EventID:     eventID,
		RawFileName: rawFileName,
		Key:         wordcount.NormalizeKey(rawFileName),
		Phase:       PhaseNone,
		Kind:        KindUnknown,
		Number:      -1,
		Chapter:     -1,
		FileIndex:   -1,
	}
	for _, r := range rules {
		m := r.re.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		got := r.build(eventID, family, m)
		tok.StageToken = policy.For(eventID).rewriteToken(eventID, got.stageToken)
		tok.Phase = got.phase
		tok.Kind = got.kind
		tok.Number = got.number
		tok.Chapter = got.chapter
		tok.Rule = r.name
		tok.Recognized = true
		return tok
	}
	tok.StageToken = strings.TrimSuffix(base, ".json")
	return tok
}

// Classify parses every file of an event and assigns file indexes.
// Duplicate names are collapsed to their first occurrence.
func Classify(id string, rawFileNames []string, hints Hints, policy Policy) Classification {
	family := DetectFamily(id, rawFileNames, hints, policy)
	out := Classification{Family: family}

	seen := make(map[string]bool, len(rawFileNames))
	for _, name := range rawFileNames {
		if seen[name] {
			continue
		}
		seen[name] = true

		tok := ClassifyName(id, family, name, policy)
		if family.Virtual() && tok.Rule != "story_only" {
			out.Skipped = append(out.Skipped, tok)
			continue
		}
		out.Tokens = append(out.Tokens, tok)
	}

	assignFileIndexes(family, out.Tokens)
	return out
}

// assignFileIndexes ranks tokens: by numeric suffix for virtual families,
// lexically by raw file name otherwise. Ties break on the raw name.
func assignFileIndexes(family Family, tokens []Token) {
	order := make([]int, len(tokens))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := tokens[order[a]], tokens[order[b]]
		if family.Virtual() && ta.Number != tb.Number {
			return ta.Number < tb.Number
		}
		return ta.RawFileName < tb.RawFileName
	})
	for rank, i := range order {
		tokens[i].FileIndex = rank
	}
}

// ChapterOf returns the main-story chapter encoded in a file name.
func ChapterOf(rawFileName string) (int, bool) {
	tok := ClassifyName("", FamilyMainStory, rawFileName, Policy{})
	if tok.Chapter < 0 {
		return 0, false
	}
	return tok.Chapter, true
}

// ChapterID returns the id used for a main-story chapter, e.g. "main_5".
func ChapterID(chapter int) string {
	return "main_" + strconv.Itoa(chapter)
}

func battlePhase(s string) Phase {
	if s == "beg" {
		return PhasePreBattle
	}
	return PhasePostBattle
}

func slashed(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func baseName(p string) string {
	p = slashed(p)
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func pad2(n int) string {
	if n >= 0 && n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// zfill2 left-pads a digit string to at least two characters.
func zfill2(s string) string {
	if len(s) >= 2 {
		return s
	}
	return strings.Repeat("0", 2-len(s)) + s
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

func trailingNumber(s string) int {
	m := trailingDigits.FindStringSubmatch(s)
	if m == nil {
		return -1
	}
	return atoi(m[1])
}
