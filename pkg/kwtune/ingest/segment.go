package ingest

import (
	"strings"
	"unicode/utf8"
)

// Sentence is an ordered run of whitespace-delimited tokens. Tokens keep
// whatever is glued to them (particles, punctuation) for later inspection.
type Sentence struct {
	Tokens []string
	// LineBreak renders a newline rather than a space after the sentence.
	LineBreak bool
}

// Text joins the tokens with single spaces.
func (s Sentence) Text() string {
	return strings.Join(s.Tokens, " ")
}

// Terminated reports whether the sentence ends with . ! or ?.
func (s Sentence) Terminated() bool {
	if len(s.Tokens) == 0 {
		return false
	}
	return endsSentence(s.Tokens[len(s.Tokens)-1])
}

// Paragraph is an ordered run of sentences.
type Paragraph struct {
	Sentences []Sentence
}

// Document is the paragraph/sentence/token view of a text.
type Document struct {
	Paragraphs []Paragraph
}

// Position addresses one sentence in a document.
type Position struct {
	Paragraph int
	Sentence  int
}

// Parse segments text. Paragraphs are separated by blank lines, sentences
// end at a token ending in . ! or ?, and a line break always ends a sentence.
func Parse(text string) Document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var doc Document
	var lines []string

	flush := func() {
		if len(lines) == 0 {
			return
		}
		var para Paragraph
		for i, line := range lines {
			sents := splitSentences(strings.Fields(line))
			if len(sents) == 0 {
				continue
			}
			if i < len(lines)-1 {
				sents[len(sents)-1].LineBreak = true
			}
			para.Sentences = append(para.Sentences, sents...)
		}
		if len(para.Sentences) > 0 {
			para.Sentences[len(para.Sentences)-1].LineBreak = false
			doc.Paragraphs = append(doc.Paragraphs, para)
		}
		lines = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	flush()
	return doc
}

func splitSentences(tokens []string) []Sentence {
	var out []Sentence
	var current []string
	for _, tok := range tokens {
		current = append(current, tok)
		if endsSentence(tok) {
			out = append(out, Sentence{Tokens: current})
			current = nil
		}
	}
	if len(current) > 0 {
		out = append(out, Sentence{Tokens: current})
	}
	return out
}

// endsSentence reports whether tok ends with a sentence terminator, ignoring
// closing quotes and brackets.
func endsSentence(tok string) bool {
	tok = strings.TrimRight(tok, `"')]}”’`)
	if tok == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(tok)
	return r == '.' || r == '!' || r == '?'
}

// Render writes the document back to text. Parse(d.Render()).Render() equals
// d.Render().
func (d Document) Render() string {
	var b strings.Builder
	for pi, para := range d.Paragraphs {
		if pi > 0 {
			b.WriteString("\n\n")
		}
		for si, sent := range para.Sentences {
			b.WriteString(sent.Text())
			if si == len(para.Sentences)-1 {
				continue
			}
			if sent.LineBreak || !sent.Terminated() {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

// Canonical re-segments the rendered text, dropping empty sentences and
// paragraphs left behind by edits.
func (d Document) Canonical() Document {
	return Parse(d.Render())
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := Document{Paragraphs: make([]Paragraph, len(d.Paragraphs))}
	for i, p := range d.Paragraphs {
		sents := make([]Sentence, len(p.Sentences))
		for j, s := range p.Sentences {
			sents[j] = Sentence{
				Tokens:    append([]string(nil), s.Tokens...),
				LineBreak: s.LineBreak,
			}
		}
		out.Paragraphs[i] = Paragraph{Sentences: sents}
	}
	return out
}

// Empty reports whether the document holds no tokens.
func (d Document) Empty() bool {
	return d.SentenceCount() == 0
}

// SentenceCount counts sentences across all paragraphs.
func (d Document) SentenceCount() int {
	n := 0
	for _, p := range d.Paragraphs {
		n += len(p.Sentences)
	}
	return n
}

// Positions lists every sentence position in document order.
func (d Document) Positions() []Position {
	out := make([]Position, 0, d.SentenceCount())
	for pi, p := range d.Paragraphs {
		for si := range p.Sentences {
			out = append(out, Position{Paragraph: pi, Sentence: si})
		}
	}
	return out
}

// At returns the sentence at pos.
func (d Document) At(pos Position) Sentence {
	return d.Paragraphs[pos.Paragraph].Sentences[pos.Sentence]
}

// Valid reports whether pos addresses an existing sentence.
func (d Document) Valid(pos Position) bool {
	if pos.Paragraph < 0 || pos.Paragraph >= len(d.Paragraphs) {
		return false
	}
	return pos.Sentence >= 0 && pos.Sentence < len(d.Paragraphs[pos.Paragraph].Sentences)
}

// SetTokens replaces the tokens of the sentence at pos.
func (d *Document) SetTokens(pos Position, tokens []string) {
	d.Paragraphs[pos.Paragraph].Sentences[pos.Sentence].Tokens = tokens
}

// InsertSentence inserts sent before index idx of paragraph p. A preceding
// sentence without a terminator gets a line break so the two do not merge
// when the text is parsed again.
func (d *Document) InsertSentence(p, idx int, sent Sentence) {
	para := &d.Paragraphs[p]
	if idx < 0 {
		idx = 0
	}
	if idx > len(para.Sentences) {
		idx = len(para.Sentences)
	}
	para.Sentences = append(para.Sentences, Sentence{})
	copy(para.Sentences[idx+1:], para.Sentences[idx:])
	para.Sentences[idx] = sent
	if idx > 0 && !para.Sentences[idx-1].Terminated() {
		para.Sentences[idx-1].LineBreak = true
	}
}

// RemoveSentence deletes the sentence at pos, and its paragraph when it
// becomes empty.
func (d *Document) RemoveSentence(pos Position) {
	para := &d.Paragraphs[pos.Paragraph]
	para.Sentences = append(para.Sentences[:pos.Sentence], para.Sentences[pos.Sentence+1:]...)
	if len(para.Sentences) == 0 {
		d.Paragraphs = append(d.Paragraphs[:pos.Paragraph], d.Paragraphs[pos.Paragraph+1:]...)
	}
}

// ReplaceSentence swaps the sentence at pos for sents, keeping them inside
// the same paragraph.
func (d *Document) ReplaceSentence(pos Position, sents []Sentence) {
	para := &d.Paragraphs[pos.Paragraph]
	rest := append([]Sentence(nil), para.Sentences[pos.Sentence+1:]...)
	para.Sentences = append(para.Sentences[:pos.Sentence], sents...)
	para.Sentences = append(para.Sentences, rest...)
	if len(para.Sentences) == 0 {
		d.Paragraphs = append(d.Paragraphs[:pos.Paragraph], d.Paragraphs[pos.Paragraph+1:]...)
	}
}

// InsertParagraph inserts para before index idx.
func (d *Document) InsertParagraph(idx int, para Paragraph) {
	if idx < 0 {
		idx = 0
	}
	if idx > len(d.Paragraphs) {
		idx = len(d.Paragraphs)
	}
	d.Paragraphs = append(d.Paragraphs, Paragraph{})
	copy(d.Paragraphs[idx+1:], d.Paragraphs[idx:])
	d.Paragraphs[idx] = para
}

// Sentences flattens the document into one sentence slice.
func (d Document) Sentences() []Sentence {
	out := make([]Sentence, 0, d.SentenceCount())
	for _, p := range d.Paragraphs {
		out = append(out, p.Sentences...)
	}
	return out
}

// NewSentence segments a single line of text into one sentence. Any internal
// terminators are kept inside the sentence.
func NewSentence(text string) Sentence {
	return Sentence{Tokens: strings.Fields(text)}
}
