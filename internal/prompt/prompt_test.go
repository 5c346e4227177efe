package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyNoRules(t *testing.T) {
	text := "Hello there."
	if got := Apply(text, nil); got != text {
		t.Fatalf("expected unchanged text, got %q", got)
	}
}

func TestBuildWithoutRulesPrefixesInstructions(t *testing.T) {
	cases := []struct {
		style, pitch string
		want         string
	}{
		{"normal", "normal", "hi"},
		{"cheerful", "normal", "Say cheerfully: hi"},
		{"normal", "high", "Say in a very high-pitched voice: hi"},
		{"sad", "low", "Say sadly: Say in a very low-pitched voice: hi"},
		{"unknown", "", "hi"},
	}
	for _, tc := range cases {
		got := Build(Input{Text: "hi", StyleID: tc.style, PitchID: tc.pitch})
		if got != tc.want {
			t.Fatalf("style=%q pitch=%q: got %q want %q", tc.style, tc.pitch, got, tc.want)
		}
	}
}

func TestApplyMatchesSubstrings(t *testing.T) {
	rules := []Rule{{Word: "GIF", Replacement: "JIF"}}
	got := Apply("I love GIF and GIFT", rules)
	if got != "I love JIF and JIFT" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestApplyTreatsWordLiterally(t *testing.T) {
	cases := []struct {
		word, text, want string
	}{
		{"a.b+", "a.b+ axb+ aab", "X axb+ aab"},
		{"C++", "I write C++ and C", "I write X and C"},
		{"$1", "costs $1 or $10", "costs X or X0"},
		{"(x)", "f(x) = x", "fX = x"},
	}
	for _, tc := range cases {
		got := Apply(tc.text, []Rule{{Word: tc.word, Replacement: "X"}})
		if got != tc.want {
			t.Fatalf("word %q: got %q want %q", tc.word, got, tc.want)
		}
	}
}

func TestApplyReplacementIsLiteral(t *testing.T) {
	got := Apply("cat", []Rule{{Word: "cat", Replacement: "$& and $1"}})
	if got != "$& and $1" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestApplyRuleOrder(t *testing.T) {
	rules := []Rule{{Word: "a", Replacement: "b"}, {Word: "b", Replacement: "c"}}
	if got := Apply("a", rules); got != "c" {
		t.Fatalf("expected chained rewrite, got %q", got)
	}
}

func TestApplySkipsBlankWords(t *testing.T) {
	rules := []Rule{{Word: "", Replacement: "x"}, {Word: "  \t", Replacement: "y"}}
	if got := Apply("abc", rules); got != "abc" {
		t.Fatalf("blank rules must be skipped, got %q", got)
	}
}

func TestApplyNonOverlapping(t *testing.T) {
	if got := Apply("aaa", []Rule{{Word: "aa", Replacement: "b"}}); got != "ba" {
		t.Fatalf("expected left-to-right non-overlapping match, got %q", got)
	}
}

func TestApplyDoesNotMutateRules(t *testing.T) {
	rules := []Rule{{Word: "x", Replacement: "y"}, {Word: "", Replacement: "z"}}
	snapshot := append([]Rule(nil), rules...)
	Apply("xxx", rules)
	for i := range rules {
		if rules[i] != snapshot[i] {
			t.Fatalf("rule %d mutated: %+v", i, rules[i])
		}
	}
}

func TestApplyWholeWord(t *testing.T) {
	cases := []struct {
		word, text, want string
	}{
		{"GIF", "I love GIF and GIFT", "I love X and GIFT"},
		{"GIF", "GIF", "X"},
		{"GIF", "GIF,GIF.", "X,X."},
		{"GIF", "MYGIF GIF_1 GIF", "MYGIF GIF_1 X"},
		{"C++", "C++ and C++x", "X and C++x"},
		{"café", "le café cafés", "le X cafés"},
		{"aa", "aaa aa", "aaa X"},
	}
	for _, tc := range cases {
		got := Apply(tc.text, []Rule{{Word: tc.word, Replacement: "X", WholeWord: true}})
		if got != tc.want {
			t.Fatalf("word %q in %q: got %q want %q", tc.word, tc.text, got, tc.want)
		}
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := []byte(`rules:
  - word: GIF
    replacement: JIF
  - word: SQL
    replacement: sequel
    whole_word: true
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}
	if rules[1] != (Rule{Word: "SQL", Replacement: "sequel", WholeWord: true}) {
		t.Fatalf("unexpected rule %+v", rules[1])
	}
	if err := ValidateRules(rules); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRulesReportsProblems(t *testing.T) {
	rules := []Rule{
		{Word: "GIF", Replacement: "JIF"},
		{Word: " ", Replacement: "x"},
		{Word: "GIF", Replacement: "GHIF"},
		{Word: "GIF", Replacement: "JIF", WholeWord: true},
	}
	err := ValidateRules(rules)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "rules[1]") || !strings.Contains(msg, "rules[2]") {
		t.Fatalf("unexpected error %q", msg)
	}
	if strings.Contains(msg, "rules[3]") {
		t.Fatalf("whole-word variant should not count as duplicate: %q", msg)
	}
}

func TestLoadAndValidate(t *testing.T) {
	if rules, err := LoadAndValidate(""); err != nil || rules != nil {
		t.Fatalf("expected no rules for empty path, got %v %v", rules, err)
	}

	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte("rules:\n  - word: GIF\n    replacement: JIF\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rules, err := LoadAndValidate(good)
	if err != nil || len(rules) != 1 {
		t.Fatalf("expected one rule, got %v %v", rules, err)
	}

	dup := filepath.Join(dir, "dup.yaml")
	data := []byte("rules:\n  - word: GIF\n    replacement: JIF\n  - word: GIF\n    replacement: GHIF\n")
	if err := os.WriteFile(dup, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAndValidate(dup); err == nil || !strings.Contains(err.Error(), "invalid pronunciation rules") {
		t.Fatalf("expected validation failure, got %v", err)
	}

	if _, err := LoadAndValidate(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
