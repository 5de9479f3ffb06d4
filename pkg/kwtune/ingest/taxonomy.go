package ingest

import "strings"

// Taxonomy is the keyword hierarchy of one document run: the whole keyword
// and, when it has several words, its piece keywords.
type Taxonomy struct {
	Whole  string
	Words  []string
	Pieces []string
}

// NewTaxonomy derives pieces from the whole keyword. A single-word keyword
// has no pieces.
func NewTaxonomy(whole string) Taxonomy {
	words := strings.Fields(whole)
	t := Taxonomy{
		Whole: strings.Join(words, " "),
		Words: words,
	}
	if len(words) < 2 {
		return t
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		t.Pieces = append(t.Pieces, w)
	}
	return t
}

// IsPiece reports whether word is one of the piece keywords.
func (t Taxonomy) IsPiece(word string) bool {
	for _, p := range t.Pieces {
		if p == word {
			return true
		}
	}
	return false
}

// Excluded returns the texts left out of sub-keyword counting.
func (t Taxonomy) Excluded() map[string]struct{} {
	ex := make(map[string]struct{}, len(t.Pieces)+1)
	if t.Whole != "" {
		ex[t.Whole] = struct{}{}
	}
	for _, p := range t.Pieces {
		ex[p] = struct{}{}
	}
	return ex
}

// Keywords returns the whole keyword followed by its pieces.
func (t Taxonomy) Keywords() []string {
	out := make([]string, 0, len(t.Pieces)+1)
	out = append(out, t.Whole)
	return append(out, t.Pieces...)
}

// MatchPhrase reports whether the phrase words begin at tokens[i]. All but
// the last word must equal their token exactly; the last token only has to
// start with the last word, so the caller can classify what follows it.
// It returns the index of the last token of the match.
func MatchPhrase(tokens []string, i int, words []string) (int, bool) {
	n := len(words)
	if n == 0 || i < 0 || i+n > len(tokens) {
		return 0, false
	}
	for j := 0; j < n-1; j++ {
		if tokens[i+j] != words[j] {
			return 0, false
		}
	}
	last := i + n - 1
	if !strings.HasPrefix(tokens[last], words[n-1]) {
		return 0, false
	}
	return last, true
}
