// Package forbidden substitutes words a blog platform penalises. It runs as
// the last pass over a converged document, with keyword text protected.
package forbidden

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"
)

// Substituter rewrites forbidden words in text.
type Substituter interface {
	Substitute(ctx context.Context, text string) (string, error)
}

// Entry maps one forbidden word to its replacement. An empty replacement
// deletes the word.
type Entry struct {
	Word        string `yaml:"word"`
	Replacement string `yaml:"replacement"`
}

// Table is an immutable substitution table. At every position the longest
// matching word wins, and replaced text is never scanned again.
type Table struct {
	entries []Entry
}

// NewTable builds a table. Later duplicates of a word are ignored.
func NewTable(entries []Entry) *Table {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		e.Word = strings.TrimSpace(e.Word)
		e.Replacement = strings.TrimSpace(e.Replacement)
		if e.Word == "" {
			continue
		}
		if _, ok := seen[e.Word]; ok {
			continue
		}
		seen[e.Word] = struct{}{}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].Word) != len(out[j].Word) {
			return len(out[i].Word) > len(out[j].Word)
		}
		return out[i].Word < out[j].Word
	})
	return &Table{entries: out}
}

// Entries returns a copy of the table, longest word first.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Replace substitutes every forbidden word in one left-to-right pass and
// reports how many replacements were made.
func (t *Table) Replace(text string) (string, int) {
	if len(t.entries) == 0 || text == "" {
		return text, 0
	}
	var b strings.Builder
	b.Grow(len(text))
	n := 0
	for i := 0; i < len(text); {
		if e, ok := t.match(text[i:]); ok {
			b.WriteString(e.Replacement)
			i += len(e.Word)
			n++
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		b.WriteString(text[i : i+size])
		i += size
	}
	if n == 0 {
		return text, 0
	}
	return b.String(), n
}

func (t *Table) match(s string) (Entry, bool) {
	for _, e := range t.entries {
		if strings.HasPrefix(s, e.Word) {
			return e, true
		}
	}
	return Entry{}, false
}

// Find lists the distinct forbidden words present in text, in table order.
func (t *Table) Find(text string) []string {
	var out []string
	for _, e := range t.entries {
		if strings.Contains(text, e.Word) {
			out = append(out, e.Word)
		}
	}
	return out
}

// Substitute implements Substituter.
func (t *Table) Substitute(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	out, _ := t.Replace(text)
	return out, nil
}

// defaultReplacements is the built-in table; each word maps to its first
// listed alternative.
var defaultReplacements = [][2]string{
	{"네요", "어요"},
	{"가격", "경비"},
	{"광고", "소개"},
	{"구매", "선택"},
	{"병원", "병의원"},
	{"진단", "확인"},
	{"효과", "도움"},
	{"약효", "효능"},
	{"상담", "문의"},
	{"시술", "관리"},
	{"의사", "전문의"},
	{"환자", "분"},
	{"판매", "제공"},
	{"투자", "지출"},
	{"후회", "아쉬움"},
	{"보험", "보장"},
	{"재발", "다시"},
	{"대출", "금융"},
	{"비용", "경비"},
	{"의문", "궁금"},
	{"의심", "궁금"},
	{"산부인과", "병원"},
	{"부작용", "안 좋은 반응"},
	{"홍보성", "소개"},
	{"의구심", "궁금"},
	{"증상", "증세"},
}

// DefaultTable returns the built-in table.
func DefaultTable() *Table {
	entries := make([]Entry, len(defaultReplacements))
	for i, r := range defaultReplacements {
		entries[i] = Entry{Word: r[0], Replacement: r[1]}
	}
	return NewTable(entries)
}
