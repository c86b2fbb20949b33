package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// CheckResult reports which word lists matched a piece of text.
type CheckResult struct {
	HasProfanity bool
	HasSlurs     bool
}

// Filter matches profanity and slur word lists on word boundaries,
// case-insensitively. Censoring preserves the length of every masked token
// so downstream offsets stay stable.
type Filter struct {
	profanity *regexp.Regexp
	slurs     *regexp.Regexp
}

// New builds a filter from explicit word lists. Empty lists are allowed;
// the corresponding check then never matches.
func New(profanity, slurs []string) (*Filter, error) {
	p, err := CompileWords(profanity)
	if err != nil {
		return nil, fmt.Errorf("failed to compile profanity list: %w", err)
	}
	s, err := CompileWords(slurs)
	if err != nil {
		return nil, fmt.Errorf("failed to compile slur list: %w", err)
	}
	return &Filter{profanity: p, slurs: s}, nil
}

// NewDefault builds a filter from the built-in word lists.
func NewDefault() *Filter {
	f, err := New(defaultProfanity, defaultSlurs)
	if err != nil {
		// Built-in lists are static; a compile failure is a programming error.
		panic(err)
	}
	return f
}

// CompileWords turns a word list into a case-insensitive, word-boundary
// matching expression. Returns nil for an empty list.
func CompileWords(words []string) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	if len(quoted) == 0 {
		return nil, nil
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Check reports whether the text contains profanity or slurs. Empty input
// is always clean.
func (f *Filter) Check(text string) CheckResult {
	if text == "" {
		return CheckResult{}
	}
	return CheckResult{
		HasProfanity: f.profanity != nil && f.profanity.MatchString(text),
		HasSlurs:     f.slurs != nil && f.slurs.MatchString(text),
	}
}

// Censor masks every matched token with the symbol repeated to the token's
// original length. Text without matches is returned unchanged.
func (f *Filter) Censor(text string, symbol rune) string {
	if text == "" {
		return text
	}
	mask := func(match string) string {
		return strings.Repeat(string(symbol), len([]rune(match)))
	}
	if f.profanity != nil {
		text = f.profanity.ReplaceAllStringFunc(text, mask)
	}
	if f.slurs != nil {
		text = f.slurs.ReplaceAllStringFunc(text, mask)
	}
	return text
}
