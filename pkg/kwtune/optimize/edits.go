package optimize

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/config"
	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
)

// candidate is one proposed edit. Candidates are plain documents; the loop
// trusts none of them until a fresh recount confirms the effect.
type candidate struct {
	doc  ingest.Document
	desc string
}

// punctRuns are the repeated terminators tried when sub-keywords run short.
var punctRuns = []string{"!!", "...", "!!!", "....", "!!!!", "....."}

// editor proposes edits for one document state.
type editor struct {
	doc      ingest.Document
	report   analytics.Report
	tax      ingest.Taxonomy
	cfg      *config.SEOConfig
	book     Phrasebook
	analyzer *analytics.Analyzer
	limit    int

	out []candidate
}

func (e *editor) full() bool {
	return len(e.out) >= e.limit
}

func (e *editor) add(doc ingest.Document, desc string) {
	if e.full() {
		return
	}
	e.out = append(e.out, candidate{doc: doc, desc: desc})
}

// propose returns candidate edits for g, most targeted first.
func (e *editor) propose(g gap) []candidate {
	e.out = nil
	switch g.Kind {
	case WholeKeyword:
		if g.diff < 0 {
			e.wholeDeficit()
		} else {
			e.wholeSurplus()
		}
	case PieceKeyword:
		if g.diff < 0 {
			e.pieceDeficit(g.Piece)
		} else {
			e.pieceSurplus(g.Piece)
		}
	case LeadingSentences:
		if g.diff < 0 {
			e.leadingDeficit()
		} else {
			e.leadingSurplus()
		}
	case FirstParaDouble:
		if g.diff < 0 {
			e.firstParaDeficit()
		} else {
			e.firstParaSurplus()
		}
	case FirstParaGap:
		if e.report.FirstParaWholeCount < 2 {
			e.firstParaDeficit()
		} else {
			e.firstParaSpread()
		}
	case SubKeywords:
		if g.diff < 0 {
			e.subDeficit()
		} else {
			e.subSurplus()
		}
	case CharCount:
		if g.diff < 0 {
			e.charDeficit(-g.diff)
		} else {
			e.charSurplus(g.diff)
		}
	}
	return e.out
}

// insertionPoints lists where a new sentence may go: paragraph ends from
// the last paragraph backwards, then gaps between sentences from the end.
func (e *editor) insertionPoints() []ingest.Position {
	if len(e.doc.Paragraphs) == 0 {
		return []ingest.Position{{}}
	}
	var pts []ingest.Position
	for p := len(e.doc.Paragraphs) - 1; p >= 0; p-- {
		pts = append(pts, ingest.Position{Paragraph: p, Sentence: len(e.doc.Paragraphs[p].Sentences)})
	}
	for p := len(e.doc.Paragraphs) - 1; p >= 0; p-- {
		for s := len(e.doc.Paragraphs[p].Sentences) - 1; s >= 0; s-- {
			pts = append(pts, ingest.Position{Paragraph: p, Sentence: s})
		}
	}
	return pts
}

func insert(doc ingest.Document, at ingest.Position, sents ...ingest.Sentence) ingest.Document {
	out := doc.Clone()
	if len(out.Paragraphs) == 0 {
		out.InsertParagraph(0, ingest.Paragraph{Sentences: sents})
		return out.Canonical()
	}
	for i, s := range sents {
		out.InsertSentence(at.Paragraph, at.Sentence+i, s)
	}
	return out.Canonical()
}

func remove(doc ingest.Document, at ingest.Position) ingest.Document {
	out := doc.Clone()
	out.RemoveSentence(at)
	return out.Canonical()
}

func replace(doc ingest.Document, at ingest.Position, sents ...ingest.Sentence) ingest.Document {
	out := doc.Clone()
	out.ReplaceSentence(at, sents)
	return out.Canonical()
}

// move takes the sentence at from and inserts it before index idx of
// paragraph p, where p and idx address the document before the move. A p
// equal to the paragraph count opens a new last paragraph.
func move(doc ingest.Document, from ingest.Position, p, idx int) ingest.Document {
	out := doc.Clone()
	sent := out.At(from)
	paras := len(out.Paragraphs)
	out.RemoveSentence(from)
	if p == from.Paragraph && from.Sentence < idx {
		idx--
	}
	if len(out.Paragraphs) < paras && p > from.Paragraph {
		p--
	}
	if p >= len(out.Paragraphs) {
		out.InsertParagraph(len(out.Paragraphs), ingest.Paragraph{Sentences: []ingest.Sentence{sent}})
		return out.Canonical()
	}
	out.InsertSentence(p, idx, sent)
	return out.Canonical()
}

// counted maps each sentence to the occurrences of keyword that count.
func (e *editor) counted(keyword string) map[ingest.Position][]analytics.Occurrence {
	out := make(map[ingest.Position][]analytics.Occurrence)
	for _, o := range e.analyzer.Occurrences(e.doc, keyword) {
		if o.Counted() {
			out[o.Position()] = append(out[o.Position()], o)
		}
	}
	return out
}

// keywordFree reports whether no token of sent starts with any keyword word.
func (e *editor) keywordFree(sent ingest.Sentence) bool {
	for _, tok := range sent.Tokens {
		for _, w := range e.tax.Words {
			if strings.HasPrefix(tok, w) {
				return false
			}
		}
	}
	return true
}

func reversed(pts []ingest.Position) []ingest.Position {
	out := make([]ingest.Position, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

// insertTemplates proposes every template at every point. Templates whose
// words are already in the document go last, so repeated insertions do not
// pile up sub-keywords.
func (e *editor) insertTemplates(templates []string, keyword, desc string, points []ingest.Position) {
	templates = freshFirst(templates, keyword, e.units(nil))
	for _, at := range points {
		for _, t := range templates {
			if e.full() {
				return
			}
			e.add(insert(e.doc, at, fill(t, keyword)), desc)
		}
	}
}

// units counts the non-keyword units of every sentence except skip.
func (e *editor) units(skip *ingest.Position) map[string]int {
	excluded := e.tax.Excluded()
	counts := make(map[string]int)
	for _, pos := range e.doc.Positions() {
		if skip != nil && pos == *skip {
			continue
		}
		for _, tok := range e.doc.At(pos).Tokens {
			for _, u := range analytics.Units(tok) {
				if _, ok := excluded[u]; !ok {
					counts[u]++
				}
			}
		}
	}
	return counts
}

// freshFirst orders templates by how many of their units already appear in
// counts, keeping declaration order among equals.
func freshFirst(templates []string, keyword string, counts map[string]int) []string {
	overlap := make(map[string]int, len(templates))
	for _, t := range templates {
		for _, tok := range fill(t, keyword).Tokens {
			for _, u := range analytics.Units(tok) {
				if counts[u] > 0 {
					overlap[t]++
				}
			}
		}
	}
	out := append([]string(nil), templates...)
	sort.SliceStable(out, func(i, j int) bool { return overlap[out[i]] < overlap[out[j]] })
	return out
}

func (e *editor) wholeDeficit() {
	first, second := e.book.Mid, e.book.Leading
	if e.report.LeadingSentenceCount < e.cfg.LeadingSentenceCount {
		first, second = second, first
	}
	pts := e.insertionPoints()
	e.insertTemplates(first, e.tax.Whole, "insert keyword sentence", pts)
	e.insertTemplates(second, e.tax.Whole, "insert keyword sentence", pts)
}

func (e *editor) wholeSurplus() {
	occ := e.counted(e.tax.Whole)
	positions := reversed(e.doc.Positions())

	for _, pos := range positions {
		if len(occ[pos]) == 1 {
			e.add(remove(e.doc, pos), "delete keyword sentence")
		}
	}
	for _, pos := range positions {
		for i := len(occ[pos]) - 1; i >= 0; i-- {
			e.add(e.pronoun(pos, occ[pos][i], len(e.tax.Words)), "replace keyword with pronoun")
		}
	}
	for _, pos := range positions {
		if len(occ[pos]) > 1 {
			e.add(remove(e.doc, pos), "delete keyword sentence")
		}
	}
}

// pronoun replaces the n tokens of occurrence o with the pronoun.
func (e *editor) pronoun(pos ingest.Position, o analytics.Occurrence, n int) ingest.Document {
	tokens := e.doc.At(pos).Tokens
	next := make([]string, 0, len(tokens))
	next = append(next, tokens[:o.Token]...)
	next = append(next, e.book.Pronoun)
	next = append(next, tokens[o.Token+n:]...)
	out := e.doc.Clone()
	out.SetTokens(pos, next)
	return out.Canonical()
}

func (e *editor) pieceDeficit(piece string) {
	pts := e.insertionPoints()
	e.insertTemplates(e.book.Mid, piece, "insert piece sentence", pts)
	e.insertTemplates(e.book.Leading, piece, "insert piece sentence", pts)
}

func (e *editor) pieceSurplus(piece string) {
	whole := e.counted(e.tax.Whole)
	pieces := e.counted(piece)
	positions := reversed(e.doc.Positions())

	for _, pos := range positions {
		if len(pieces[pos]) > 0 && len(whole[pos]) == 0 {
			e.add(remove(e.doc, pos), "delete piece sentence")
		}
	}
	for _, pos := range positions {
		for i := len(pieces[pos]) - 1; i >= 0; i-- {
			o := pieces[pos][i]
			if insideWhole(o, whole[pos], len(e.tax.Words)) {
				continue
			}
			e.add(e.pronoun(pos, o, 1), "replace piece with pronoun")
		}
	}
	for _, pos := range positions {
		if len(pieces[pos]) > 0 && len(whole[pos]) > 0 {
			e.add(remove(e.doc, pos), "delete keyword sentence")
		}
	}
}

func insideWhole(o analytics.Occurrence, whole []analytics.Occurrence, n int) bool {
	for _, w := range whole {
		if o.Token >= w.Token && o.Token < w.Token+n {
			return true
		}
	}
	return false
}

func (e *editor) leadingDeficit() {
	occ := e.counted(e.tax.Whole)
	positions := e.doc.Positions()

	// "요즘 강남 맛집 ..." -> "강남 맛집 ..."
	for _, pos := range positions {
		for _, o := range occ[pos] {
			if o.Token == 1 {
				out := e.doc.Clone()
				out.SetTokens(pos, append([]string(nil), e.doc.At(pos).Tokens[1:]...))
				e.add(out.Canonical(), "drop lead-in word")
			}
		}
	}
	for _, pos := range reversed(positions) {
		if len(occ[pos]) != 1 || occ[pos][0].Token == 0 {
			continue
		}
		for _, t := range e.book.Leading {
			e.add(replace(e.doc, pos, fill(t, e.tax.Whole)), "swap for leading sentence")
		}
	}
	e.insertTemplates(e.book.Leading, e.tax.Whole, "insert leading sentence", e.insertionPoints())
}

func (e *editor) leadingSurplus() {
	occ := e.counted(e.tax.Whole)
	var leading []ingest.Position
	for _, pos := range reversed(e.doc.Positions()) {
		for _, o := range occ[pos] {
			if o.Token == 0 {
				leading = append(leading, pos)
				break
			}
		}
	}

	for _, pos := range leading {
		for _, w := range e.book.LeadIns {
			out := e.doc.Clone()
			out.SetTokens(pos, append([]string{w}, e.doc.At(pos).Tokens...))
			e.add(out.Canonical(), "add lead-in word")
		}
	}
	for _, pos := range leading {
		if len(occ[pos]) != 1 {
			continue
		}
		for _, t := range e.book.Mid {
			e.add(replace(e.doc, pos, fill(t, e.tax.Whole)), "swap for mid sentence")
		}
	}
	for _, pos := range leading {
		e.add(remove(e.doc, pos), "delete leading sentence")
	}
}

func (e *editor) firstParaDeficit() {
	occ := e.counted(e.tax.Whole)
	if len(e.doc.Paragraphs) == 0 {
		e.insertTemplates(e.book.Leading, e.tax.Whole, "insert first paragraph", []ingest.Position{{}})
		return
	}
	end := len(e.doc.Paragraphs[0].Sentences)

	for _, pos := range e.doc.Positions() {
		if pos.Paragraph > 0 && len(occ[pos]) > 0 {
			e.add(move(e.doc, pos, 0, end), "move keyword sentence into first paragraph")
		}
	}
	var pts []ingest.Position
	for s := end; s >= 1; s-- {
		pts = append(pts, ingest.Position{Paragraph: 0, Sentence: s})
	}
	e.insertTemplates(e.book.Mid, e.tax.Whole, "insert keyword sentence into first paragraph", pts)
	e.insertTemplates(e.book.Leading, e.tax.Whole, "insert keyword sentence into first paragraph", pts)
}

func (e *editor) firstParaSurplus() {
	occ := e.counted(e.tax.Whole)
	var inFirst []ingest.Position
	for _, pos := range reversed(e.doc.Positions()) {
		if pos.Paragraph == 0 && len(occ[pos]) > 0 {
			inFirst = append(inFirst, pos)
		}
	}

	for _, pos := range inFirst {
		e.add(move(e.doc, pos, 1, 0), "move keyword sentence out of first paragraph")
	}
	for _, pos := range inFirst {
		e.add(remove(e.doc, pos), "delete keyword sentence")
	}
	for _, pos := range inFirst {
		for i := len(occ[pos]) - 1; i >= 0; i-- {
			e.add(e.pronoun(pos, occ[pos][i], len(e.tax.Words)), "replace keyword with pronoun")
		}
	}
}

// firstParaSpread widens the gap between the first two mentions in the
// first paragraph.
func (e *editor) firstParaSpread() {
	occ := e.counted(e.tax.Whole)
	var mentions []int
	for s := range e.doc.Paragraphs[0].Sentences {
		for range occ[ingest.Position{Paragraph: 0, Sentence: s}] {
			mentions = append(mentions, s)
		}
	}
	if len(mentions) < 2 {
		return
	}
	first, second := mentions[0], mentions[1]
	need := 2 - max(0, second-first-1)
	end := len(e.doc.Paragraphs[0].Sentences)

	// Mentions sharing a sentence cannot be separated by insertion alone.
	if first != second {
		for i := 0; i+need <= len(e.book.Fillers); i++ {
			sents := make([]ingest.Sentence, need)
			for j := range sents {
				sents[j] = ingest.NewSentence(e.book.Fillers[i+j])
			}
			e.add(insert(e.doc, ingest.Position{Paragraph: 0, Sentence: first + 1}, sents...), "insert filler between mentions")
		}
	}
	if second < end-1 {
		e.add(move(e.doc, ingest.Position{Paragraph: 0, Sentence: second}, 0, end), "move second mention later")
	}
	for s := end - 1; s > second; s-- {
		pos := ingest.Position{Paragraph: 0, Sentence: s}
		if e.keywordFree(e.doc.At(pos)) {
			e.add(move(e.doc, pos, 0, first+1), "move sentence between mentions")
		}
	}
}

// punctCounts counts repeated-punctuation units across the document.
func (e *editor) punctCounts() map[string]int {
	counts := make(map[string]int)
	for _, sent := range e.doc.Sentences() {
		for _, tok := range sent.Tokens {
			for _, u := range analytics.Units(tok) {
				if isPunctRun(u) {
					counts[u]++
				}
			}
		}
	}
	return counts
}

func isPunctRun(u string) bool {
	return strings.Trim(u, ".,!?;:^-~") == ""
}

// plainEnding reports whether the sentence ends in a single . or ! right
// after a letter.
func plainEnding(sent ingest.Sentence) bool {
	if len(sent.Tokens) == 0 {
		return false
	}
	tok := sent.Tokens[len(sent.Tokens)-1]
	r, size := utf8.DecodeLastRuneInString(tok)
	if r != '.' && r != '!' {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(tok[:len(tok)-size])
	return prev != utf8.RuneError && !strings.ContainsRune(".,!?;:^-~", prev)
}

func (e *editor) withEnding(doc ingest.Document, pos ingest.Position, run string) {
	tokens := append([]string(nil), doc.At(pos).Tokens...)
	last := tokens[len(tokens)-1]
	tokens[len(tokens)-1] = last[:len(last)-1] + run
	doc.SetTokens(pos, tokens)
}

func (e *editor) subDeficit() {
	counts := e.punctCounts()
	var eligible []ingest.Position
	for _, pos := range reversed(e.doc.Positions()) {
		if plainEnding(e.doc.At(pos)) {
			eligible = append(eligible, pos)
		}
	}

	for _, run := range punctRuns {
		have := counts[run]
		if have >= 2 {
			continue
		}
		need := 2 - have
		for i := 0; i+need <= len(eligible); i++ {
			out := e.doc.Clone()
			for _, pos := range eligible[i : i+need] {
				e.withEnding(out, pos, run)
			}
			e.add(out.Canonical(), "repeat sentence ending")
		}
	}

	for _, f := range e.book.Fillers {
		e.insertTemplates([]string{f}, "", "insert filler", e.insertionPoints())
	}
}

func (e *editor) subSurplus() {
	counts := e.punctCounts()
	runs := make([]string, 0, len(counts))
	for run, n := range counts {
		if n >= 2 {
			runs = append(runs, run)
		}
	}
	sort.Strings(runs)

	for _, run := range runs {
		out := e.doc.Clone()
		seen := 0
		for _, pos := range out.Positions() {
			tokens := append([]string(nil), out.At(pos).Tokens...)
			for i, tok := range tokens {
				if !endsWithRun(tok, run) {
					continue
				}
				seen++
				if seen > 1 {
					tokens[i] = strings.TrimSuffix(tok, run) + run[:1]
				}
			}
			out.SetTokens(pos, tokens)
		}
		e.add(out.Canonical(), "shorten repeated punctuation")
	}

	for _, pos := range reversed(e.doc.Positions()) {
		if e.keywordFree(e.doc.At(pos)) {
			e.add(remove(e.doc, pos), "delete filler sentence")
		}
	}

	// Deleting a keyword sentence costs a mention, so one sharing repeated
	// words is swapped for a template whose words are new to the document.
	occ := e.counted(e.tax.Whole)
	templates := append(append([]string(nil), e.book.Mid...), e.book.Leading...)
	for _, pos := range reversed(e.doc.Positions()) {
		if len(occ[pos]) != 1 {
			continue
		}
		others := e.units(&pos)
		if !repeats(e.doc.At(pos), others) {
			continue
		}
		for _, t := range freshFirst(templates, e.tax.Whole, others) {
			sent := fill(t, e.tax.Whole)
			if sent.Text() == e.doc.At(pos).Text() {
				continue
			}
			sent.LineBreak = e.doc.At(pos).LineBreak
			e.add(replace(e.doc, pos, sent), "swap for fresh keyword sentence")
		}
	}
}

// repeats reports whether a non-keyword unit of sent also appears in others.
func repeats(sent ingest.Sentence, others map[string]int) bool {
	for _, tok := range sent.Tokens {
		for _, u := range analytics.Units(tok) {
			if others[u] > 0 {
				return true
			}
		}
	}
	return false
}

// endsWithRun reports whether tok ends with exactly run, not a longer run of
// the same marks.
func endsWithRun(tok, run string) bool {
	rest := strings.TrimSuffix(tok, run)
	if rest == tok {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(rest)
	return rest == "" || !strings.ContainsRune(".,!?;:^-~", r)
}

func (e *editor) charDeficit(deficit int) {
	fillers := append([]string(nil), e.book.Fillers...)
	sort.SliceStable(fillers, func(i, j int) bool {
		return abs(deficit-utf8.RuneCountInString(fillers[i])-1) < abs(deficit-utf8.RuneCountInString(fillers[j])-1)
	})
	pts := e.insertionPoints()
	for _, at := range pts {
		for _, f := range fillers {
			e.add(insert(e.doc, at, ingest.NewSentence(f)), "insert filler")
		}
	}
}

func (e *editor) charSurplus(surplus int) {
	var free []ingest.Position
	for _, pos := range reversed(e.doc.Positions()) {
		if e.keywordFree(e.doc.At(pos)) {
			free = append(free, pos)
		}
	}
	size := func(pos ingest.Position) int {
		return utf8.RuneCountInString(e.doc.At(pos).Text()) + 1
	}
	sort.SliceStable(free, func(i, j int) bool {
		return abs(surplus-size(free[i])) < abs(surplus-size(free[j]))
	})
	for _, pos := range free {
		e.add(remove(e.doc, pos), "delete filler sentence")
	}
}
