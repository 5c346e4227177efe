package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Rule rewrites every occurrence of Word into Replacement before synthesis.
// Word is matched literally. Without WholeWord a rule for "GIF" also rewrites
// the start of "GIFT".
type Rule struct {
	Word        string `yaml:"word" json:"word"`
	Replacement string `yaml:"replacement" json:"replacement"`
	WholeWord   bool   `yaml:"whole_word,omitempty" json:"whole_word,omitempty"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Apply runs rules over text in order. Each rule sees the output of the
// previous one. Rules with a blank Word are skipped.
func Apply(text string, rules []Rule) string {
	for _, r := range rules {
		if strings.TrimSpace(r.Word) == "" {
			continue
		}
		if r.WholeWord {
			text = replaceWholeWord(text, r.Word, r.Replacement)
			continue
		}
		text = strings.ReplaceAll(text, r.Word, r.Replacement)
	}
	return text
}

// replaceWholeWord replaces non-overlapping occurrences of word whose
// neighbouring runes in the source text are not word characters.
func replaceWholeWord(text, word, replacement string) string {
	var b strings.Builder
	rest := text
	prev := rune(-1)
	for {
		i := strings.Index(rest, word)
		if i < 0 {
			b.WriteString(rest)
			return b.String()
		}
		before := prev
		if i > 0 {
			before, _ = utf8.DecodeLastRuneInString(rest[:i])
		}
		end := i + len(word)
		after := rune(-1)
		if end < len(rest) {
			after, _ = utf8.DecodeRuneInString(rest[end:])
		}
		if !isWordRune(before) && !isWordRune(after) {
			b.WriteString(rest[:i])
			b.WriteString(replacement)
			prev, _ = utf8.DecodeLastRuneInString(rest[:end])
			rest = rest[end:]
			continue
		}
		_, size := utf8.DecodeRuneInString(rest[i:])
		b.WriteString(rest[:i+size])
		prev, _ = utf8.DecodeLastRuneInString(rest[:i+size])
		rest = rest[i+size:]
	}
}

func isWordRune(r rune) bool {
	return r >= 0 && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

// LoadRules reads a YAML rules file of the form
//
//	rules:
//	  - word: GIF
//	    replacement: JIF
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return f.Rules, nil
}

// ValidateRules reports rules that Apply would skip and duplicated words.
// Apply itself accepts both.
func ValidateRules(rules []Rule) error {
	var errs []error
	seen := make(map[Rule]int)
	for i, r := range rules {
		if strings.TrimSpace(r.Word) == "" {
			errs = append(errs, fmt.Errorf("rules[%d]: word is empty", i))
			continue
		}
		key := Rule{Word: r.Word, WholeWord: r.WholeWord}
		if first, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("rules[%d]: word %q already defined at rules[%d]", i, r.Word, first))
			continue
		}
		seen[key] = i
	}
	return errors.Join(errs...)
}

// LoadAndValidate loads a rules file and rejects it if ValidateRules reports
// problems. An empty path yields no rules.
func LoadAndValidate(path string) ([]Rule, error) {
	if path == "" {
		return nil, nil
	}
	rules, err := LoadRules(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load pronunciation rules: %w", err)
	}
	if err := ValidateRules(rules); err != nil {
		return nil, fmt.Errorf("invalid pronunciation rules in %s: %w", path, err)
	}
	return rules, nil
}
