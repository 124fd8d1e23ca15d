package storyfile

import (
	"testing"
)

func TestDetectFamily(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name  string
		id    string
		files []string
		hints Hints
		want  Family
	}{
		{
			name:  "activity table flag wins",
			id:    "act15mini",
			hints: Hints{ActivityType: "MINISTORY"},
			want:  FamilyMiniStory,
		},
		{
			name:  "flag wins over override list",
			id:    "act4d0",
			hints: Hints{ActivityType: "MINISTORY"},
			want:  FamilyMiniStory,
		},
		{
			name: "irregular event id",
			id:   "act6d5",
			want: FamilyTypeAct4d0,
		},
		{
			name: "alias-only override keeps standard family",
			id:   "act3d0",
			want: FamilyStandard,
		},
		{
			name: "chapter id",
			id:   "main_5",
			want: FamilyMainStory,
		},
		{
			name:  "main story path",
			id:    "chapter-five",
			files: []string{"gamedata/story/obt/main/level_main_05-01_beg.json"},
			want:  FamilyMainStory,
		},
		{
			name:  "windows main story path",
			id:    "chapter-five",
			files: []string{`story\obt\main\level_main_05-01_beg.json`},
			want:  FamilyMainStory,
		},
		{
			name:  "default",
			id:    "act9d0",
			files: []string{"level_act9d0_01_beg.json"},
			hints: Hints{ActivityType: "TYPE_ACT9D0"},
			want:  FamilyStandard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectFamily(tt.id, tt.files, tt.hints, policy)
			if got != tt.want {
				t.Errorf("DetectFamily(%q) = %s, want %s", tt.id, got, tt.want)
			}
		})
	}
}

func TestClassifyName(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name      string
		eventID   string
		family    Family
		file      string
		wantToken string
		wantPhase Phase
		wantKind  Kind
		wantRule  string
	}{
		{"pre battle", "act9d0", FamilyStandard, "level_act9d0_01_beg.json", "act9d0_01", PhasePreBattle, KindBattle, "battle"},
		{"post battle", "act9d0", FamilyStandard, "level_act9d0_01_end.json", "act9d0_01", PhasePostBattle, KindBattle, "battle"},
		{"ex stage", "act9d0", FamilyStandard, "level_act9d0_ex01_beg.json", "act9d0_ex01", PhasePreBattle, KindBattle, "battle"},
		{"interlude keeps st infix", "act9d0", FamilyStandard, "level_act9d0_st01.json", "act9d0_st01", PhaseNone, KindInterlude, "story_only"},
		{"ministory keeps st infix", "act15mini", FamilyMiniStory, "level_act15mini_st02.json", "act15mini_st02", PhaseNone, KindInterlude, "story_only"},
		{"type act4d0 drops st infix", "act4d0", FamilyTypeAct4d0, "level_act4d0_st01.json", "act4d0_01", PhaseNone, KindInterlude, "story_only"},
		{"type act4d0 pads single digit", "act7d5", FamilyTypeAct4d0, "level_act7d5_st3.json", "act7d5_03", PhaseNone, KindInterlude, "story_only"},
		{"alias rewrite", "act3d0", FamilyStandard, "level_act3d0_01_beg.json", "a003_01", PhasePreBattle, KindBattle, "battle"},
		{"main battle", "main_5", FamilyMainStory, "level_main_05-01_beg.json", "main_05-01", PhasePreBattle, KindBattle, "main_battle"},
		{"main battle without level prefix", "main_5", FamilyMainStory, "main_5-2_end.json", "main_05-02", PhasePostBattle, KindBattle, "main_battle"},
		{"main interlude", "main_5", FamilyMainStory, "level_st_05-03.json", "st_05-03", PhaseNone, KindInterlude, "main_interlude"},
		{"main special interlude", "main_5", FamilyMainStory, "obt/main/level_spst_05-04.json", "spst_05-04", PhaseNone, KindInterlude, "main_interlude"},
		{"unrecognized", "act9d0", FamilyStandard, "act9d0_entry.json", "act9d0_entry", PhaseNone, KindUnknown, ""},
		{"case sensitive", "act9d0", FamilyStandard, "LEVEL_act9d0_01_BEG.json", "LEVEL_act9d0_01_BEG", PhaseNone, KindUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := ClassifyName(tt.eventID, tt.family, tt.file, policy)
			if tok.StageToken != tt.wantToken {
				t.Errorf("StageToken = %q, want %q", tok.StageToken, tt.wantToken)
			}
			if tok.Phase != tt.wantPhase {
				t.Errorf("Phase = %s, want %s", tok.Phase, tt.wantPhase)
			}
			if tok.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", tok.Kind, tt.wantKind)
			}
			if tok.Rule != tt.wantRule {
				t.Errorf("Rule = %q, want %q", tok.Rule, tt.wantRule)
			}
			if tok.Recognized != (tt.wantRule != "") {
				t.Errorf("Recognized = %v", tok.Recognized)
			}
			if tok.RawFileName != tt.file {
				t.Errorf("RawFileName = %q, want %q", tok.RawFileName, tt.file)
			}
		})
	}
}

func TestClassify_TypeAct4d0Scenario(t *testing.T) {
	c := Classify("act4d0", []string{"level_act4d0_st01.json"}, Hints{}, DefaultPolicy())

	if c.Family != FamilyTypeAct4d0 {
		t.Fatalf("Family = %s, want %s", c.Family, FamilyTypeAct4d0)
	}
	if len(c.Tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(c.Tokens))
	}
	if c.Tokens[0].StageToken != "act4d0_01" {
		t.Errorf("StageToken = %q, want act4d0_01", c.Tokens[0].StageToken)
	}
}

func TestClassify_MiniStorySkipsGameplayFiles(t *testing.T) {
	files := []string{
		"level_act15mini_st02.json",
		"act15mini_01.json",
		"level_act15mini_st01.json",
		"level_act15mini_01_beg.json",
	}
	c := Classify("act15mini", files, Hints{ActivityType: "MINISTORY"}, DefaultPolicy())

	if c.Family != FamilyMiniStory {
		t.Fatalf("Family = %s", c.Family)
	}
	if len(c.Tokens) != 2 {
		t.Fatalf("expected 2 story tokens, got %d", len(c.Tokens))
	}
	if len(c.Skipped) != 2 {
		t.Fatalf("expected 2 skipped files, got %d", len(c.Skipped))
	}

	// Tokens stay in input order; FileIndex is by numeric suffix.
	if c.Tokens[0].RawFileName != "level_act15mini_st02.json" || c.Tokens[0].FileIndex != 1 {
		t.Errorf("unexpected first token: %+v", c.Tokens[0])
	}
	if c.Tokens[1].RawFileName != "level_act15mini_st01.json" || c.Tokens[1].FileIndex != 0 {
		t.Errorf("unexpected second token: %+v", c.Tokens[1])
	}
}

func TestClassify_NumericNotLexicalIndex(t *testing.T) {
	files := []string{"level_act6d5_st10.json", "level_act6d5_st9.json", "level_act6d5_st2.json"}
	c := Classify("act6d5", files, Hints{}, DefaultPolicy())

	want := map[string]int{
		"level_act6d5_st2.json":  0,
		"level_act6d5_st9.json":  1,
		"level_act6d5_st10.json": 2,
	}
	for _, tok := range c.Tokens {
		if tok.FileIndex != want[tok.RawFileName] {
			t.Errorf("%s FileIndex = %d, want %d", tok.RawFileName, tok.FileIndex, want[tok.RawFileName])
		}
	}
}

func TestClassify_StandardIndexIsLexicalAndDeduplicated(t *testing.T) {
	files := []string{"level_b_01_beg.json", "level_a_01_beg.json", "level_b_01_beg.json"}
	c := Classify("x", files, Hints{}, Policy{})

	if len(c.Tokens) != 2 {
		t.Fatalf("expected duplicates collapsed to 2 tokens, got %d", len(c.Tokens))
	}
	if c.Tokens[0].FileIndex != 1 || c.Tokens[1].FileIndex != 0 {
		t.Errorf("unexpected indexes: %d, %d", c.Tokens[0].FileIndex, c.Tokens[1].FileIndex)
	}
	if len(c.Skipped) != 0 {
		t.Errorf("standard family should not skip files")
	}
}

func TestChapterOf(t *testing.T) {
	tests := []struct {
		file   string
		want   int
		wantOK bool
	}{
		{"level_main_05-01_beg.json", 5, true},
		{"level_st_12-03.json", 12, true},
		{"level_spst_00-01.json", 0, true},
		{"level_act9d0_01_beg.json", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, ok := ChapterOf(tt.file)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ChapterOf(%q) = (%d, %v), want (%d, %v)", tt.file, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPolicyMerge(t *testing.T) {
	base := DefaultPolicy()
	merged := base.Merge(Policy{Events: map[string]Override{
		"act99d0": {Family: FamilyTypeAct4d0},
		"act6d5":  {},
	}})

	if merged.For("act99d0").Family != FamilyTypeAct4d0 {
		t.Error("expected added override")
	}
	if merged.For("act6d5").Family != "" {
		t.Error("expected replaced override")
	}
	if base.For("act6d5").Family != FamilyTypeAct4d0 {
		t.Error("merge must not mutate the base policy")
	}
	if (Policy{}).For("act4d0").Family != "" {
		t.Error("zero policy has no overrides")
	}
}
