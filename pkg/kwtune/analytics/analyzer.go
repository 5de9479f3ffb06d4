package analytics

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
)

// Occurrence is one place where a token starts with a keyword.
type Occurrence struct {
	Paragraph int          `json:"paragraph"`
	Sentence  int          `json:"sentence"`
	Token     int          `json:"token"`
	Keyword   string       `json:"keyword"`
	Class     ingest.Class `json:"class"`
	Suffix    string       `json:"suffix,omitempty"`
}

// Position returns the sentence holding the occurrence.
func (o Occurrence) Position() ingest.Position {
	return ingest.Position{Paragraph: o.Paragraph, Sentence: o.Sentence}
}

// Counted reports whether the occurrence contributes to keyword counts.
func (o Occurrence) Counted() bool {
	return o.Class == ingest.Exact
}

// Report is the full set of measurements for one document. It is always
// derived fresh from a document and never updated incrementally.
type Report struct {
	WholeCount           int            `json:"whole_count"`
	PieceCounts          map[string]int `json:"piece_counts,omitempty"`
	CharCount            int            `json:"char_count"`
	SubKeywordCount      int            `json:"sub_keyword_count"`
	LeadingSentenceCount int            `json:"leading_sentence_count"`
	FirstParaWholeCount  int            `json:"first_para_whole_count"`
	// FirstParaGap is the number of sentences strictly between the first and
	// second counted mention in the first paragraph, or -1 when there are
	// fewer than two.
	FirstParaGap int  `json:"first_para_gap"`
	FirstParaOK  bool `json:"first_para_ok"`

	// Ambiguous holds occurrences followed by an unrecognised suffix.
	Ambiguous []Occurrence `json:"ambiguous,omitempty"`
	// Blockers holds occurrences a particle repair could turn into counts.
	Blockers []Occurrence `json:"blockers,omitempty"`
}

// Clone returns a deep copy.
func (r Report) Clone() Report {
	out := r
	if r.PieceCounts != nil {
		out.PieceCounts = make(map[string]int, len(r.PieceCounts))
		for k, v := range r.PieceCounts {
			out.PieceCounts[k] = v
		}
	}
	out.Ambiguous = append([]Occurrence(nil), r.Ambiguous...)
	out.Blockers = append([]Occurrence(nil), r.Blockers...)
	return out
}

// BlockersFor filters Blockers down to one keyword.
func (r Report) BlockersFor(keyword string) []Occurrence {
	var out []Occurrence
	for _, o := range r.Blockers {
		if o.Keyword == keyword {
			out = append(out, o)
		}
	}
	return out
}

// Unit is a repeated sub-keyword candidate.
type Unit struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Analyzer measures keyword density. It only reads its inputs and may be
// shared between goroutines.
type Analyzer struct {
	classifier *ingest.Classifier
}

// NewAnalyzer creates an analyzer. A nil classifier uses the default
// particle lists.
func NewAnalyzer(classifier *ingest.Classifier) *Analyzer {
	if classifier == nil {
		classifier = ingest.NewClassifier(ingest.DefaultParticles())
	}
	return &Analyzer{classifier: classifier}
}

// Classifier exposes the classifier the analyzer counts with.
func (a *Analyzer) Classifier() *ingest.Classifier {
	return a.classifier
}

// Analyze measures doc against the keyword taxonomy.
func (a *Analyzer) Analyze(doc ingest.Document, tax ingest.Taxonomy) Report {
	r := Report{FirstParaGap: -1}

	whole := a.Occurrences(doc, tax.Whole)
	firstSentences := make([]int, 0, 2)
	for _, o := range whole {
		a.note(&r, o)
		if !o.Counted() {
			continue
		}
		r.WholeCount++
		if o.Token == 0 {
			r.LeadingSentenceCount++
		}
		if o.Paragraph == 0 {
			r.FirstParaWholeCount++
			if len(firstSentences) < 2 {
				firstSentences = append(firstSentences, o.Sentence)
			}
		}
	}
	if len(firstSentences) == 2 {
		r.FirstParaGap = firstSentences[1] - firstSentences[0] - 1
		if r.FirstParaGap < 0 {
			r.FirstParaGap = 0
		}
	}
	r.FirstParaOK = r.FirstParaWholeCount == 2 && r.FirstParaGap >= 2

	if len(tax.Pieces) > 0 {
		r.PieceCounts = make(map[string]int, len(tax.Pieces))
		for _, piece := range tax.Pieces {
			n := 0
			for _, o := range a.Occurrences(doc, piece) {
				a.note(&r, o)
				if o.Counted() {
					n++
				}
			}
			r.PieceCounts[piece] = n
		}
	}

	r.SubKeywordCount = len(a.SubKeywords(doc, tax))
	r.CharCount = utf8.RuneCountInString(doc.Render())
	return r
}

func (a *Analyzer) note(r *Report, o Occurrence) {
	switch o.Class {
	case ingest.Other:
		// A keyword closing its sentence stays uncounted but is not unusual
		// enough to flag.
		if !ingest.Terminal(o.Suffix) {
			r.Ambiguous = append(r.Ambiguous, o)
		}
	case ingest.Single, ingest.Multi:
		r.Blockers = append(r.Blockers, o)
	}
}

// Occurrences lists every place keyword appears at the start of a token run,
// in document order, whatever its class. Multi-word keywords must appear as
// consecutive tokens of one sentence.
func (a *Analyzer) Occurrences(doc ingest.Document, keyword string) []Occurrence {
	words := strings.Fields(keyword)
	if len(words) == 0 {
		return nil
	}
	var out []Occurrence
	for pi, para := range doc.Paragraphs {
		for si, sent := range para.Sentences {
			out = append(out, a.sentenceOccurrences(sent.Tokens, words, pi, si)...)
		}
	}
	return out
}

// CountIn counts the occurrences of keyword in one sentence that are counted.
func (a *Analyzer) CountIn(sent ingest.Sentence, keyword string) int {
	words := strings.Fields(keyword)
	if len(words) == 0 {
		return 0
	}
	n := 0
	for _, o := range a.sentenceOccurrences(sent.Tokens, words, 0, 0) {
		if o.Counted() {
			n++
		}
	}
	return n
}

// Count counts the occurrences of keyword in doc that are counted.
func (a *Analyzer) Count(doc ingest.Document, keyword string) int {
	n := 0
	for _, o := range a.Occurrences(doc, keyword) {
		if o.Counted() {
			n++
		}
	}
	return n
}

func (a *Analyzer) sentenceOccurrences(tokens, words []string, pi, si int) []Occurrence {
	var out []Occurrence
	lastWord := words[len(words)-1]
	keyword := strings.Join(words, " ")
	for i := 0; i < len(tokens); i++ {
		last, ok := ingest.MatchPhrase(tokens, i, words)
		if !ok {
			continue
		}
		out = append(out, Occurrence{
			Paragraph: pi,
			Sentence:  si,
			Token:     i,
			Keyword:   keyword,
			Class:     a.classifier.Classify(tokens[last], lastWord),
			Suffix:    ingest.Suffix(tokens[last], lastWord),
		})
		i = last
	}
	return out
}

// SubKeywords returns the repeated units of doc, most frequent first. Units
// are runs of two or more Hangul syllables or Latin letters, digit runs,
// and runs of two or more punctuation marks; "??" and "???" are distinct.
// The whole keyword and its pieces are excluded.
func (a *Analyzer) SubKeywords(doc ingest.Document, tax ingest.Taxonomy) []Unit {
	excluded := tax.Excluded()
	counts := make(map[string]int)
	for _, sent := range doc.Sentences() {
		for _, tok := range sent.Tokens {
			for _, u := range Units(tok) {
				if _, skip := excluded[u]; skip {
					continue
				}
				counts[u]++
			}
		}
	}

	var out []Unit
	for text, n := range counts {
		if n >= 2 {
			out = append(out, Unit{Text: text, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Text < out[j].Text
	})
	return out
}
