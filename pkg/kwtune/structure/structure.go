// Package structure checks the three-part post template: an opening that
// states a problem or curiosity, a sentence that raises the keyword as a
// question, and a request for comments near the start or the end.
package structure

import (
	"strings"

	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
)

// Section is one part of the template.
type Section int

const (
	Intro Section = iota
	KeywordQuestion
	CommentRequest
)

func (s Section) String() string {
	switch s {
	case Intro:
		return "intro"
	case KeywordQuestion:
		return "keyword_question"
	case CommentRequest:
		return "comment_request"
	default:
		return "unknown"
	}
}

// MarshalText renders the section name in reports.
func (s Section) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Markers are the substrings each section is recognised by.
type Markers struct {
	Problem     []string
	Promotional []string
	Uncertainty []string
	Comment     []string
	Request     []string
	// Window is how many sentences from either end a comment request may
	// sit in.
	Window int
	// Boilerplate holds the comment requests appended when none is found.
	Boilerplate []string
}

// DefaultMarkers returns the built-in markers.
func DefaultMarkers() Markers {
	return Markers{
		Problem:     []string{"고민", "궁금", "걱정", "어떻게", "혹시", "불편", "문제", "찾고", "알아보", "힘들", "막막"},
		Promotional: []string{"최고", "강추", "할인", "구매", "이벤트", "특가", "광고", "협찬", "무조건"},
		Uncertainty: []string{"궁금", "모르겠", "어떨까", "할까", "일까", "인가요", "나요", "까요", "헷갈"},
		Comment:     []string{"댓글"},
		Request:     []string{"알려", "부탁", "공유", "남겨", "들려", "추천해"},
		Window:      3,
		Boilerplate: []string{
			"경험해 보신 분들은 댓글로 꼭 공유 부탁드려요.",
			"아시는 정보가 있다면 댓글 남겨주시면 감사하겠습니다.",
		},
	}
}

// Result is the outcome of a structure check.
type Result struct {
	OK      bool      `json:"ok"`
	Missing []Section `json:"missing,omitempty"`
	// Pins are the sentences that satisfy a section, in section order.
	Pins []ingest.Position `json:"pins,omitempty"`
}

// Has reports whether s was found.
func (r Result) Has(s Section) bool {
	for _, m := range r.Missing {
		if m == s {
			return false
		}
	}
	return true
}

// Validate checks doc against the template without changing it.
func (c *Checker) Validate(doc ingest.Document, tax ingest.Taxonomy) Result {
	var res Result
	positions := doc.Positions()

	if pos, ok := c.findIntro(doc, positions); ok {
		res.Pins = append(res.Pins, pos)
	} else {
		res.Missing = append(res.Missing, Intro)
	}

	if pos, ok := c.findQuestion(doc, tax); ok {
		res.Pins = append(res.Pins, pos)
	} else {
		res.Missing = append(res.Missing, KeywordQuestion)
	}

	if pos, ok := c.findCommentRequest(doc, positions); ok {
		res.Pins = append(res.Pins, pos)
	} else {
		res.Missing = append(res.Missing, CommentRequest)
	}

	res.OK = len(res.Missing) == 0
	return res
}

// Preserves returns a predicate that rejects an edit removing a section the
// document had before it.
func (c *Checker) Preserves(tax ingest.Taxonomy) func(before, after ingest.Document) bool {
	return func(before, after ingest.Document) bool {
		was := c.Validate(before, tax)
		now := c.Validate(after, tax)
		for _, s := range []Section{Intro, KeywordQuestion, CommentRequest} {
			if was.Has(s) && !now.Has(s) {
				return false
			}
		}
		return true
	}
}

func (c *Checker) findIntro(doc ingest.Document, positions []ingest.Position) (ingest.Position, bool) {
	if len(positions) == 0 {
		return ingest.Position{}, false
	}
	first := positions[0]
	if c.isIntro(doc.At(first).Text()) {
		return first, true
	}
	return ingest.Position{}, false
}

func (c *Checker) isIntro(text string) bool {
	return containsAny(text, c.markers.Problem) && !containsAny(text, c.markers.Promotional)
}

func (c *Checker) findQuestion(doc ingest.Document, tax ingest.Taxonomy) (ingest.Position, bool) {
	for _, o := range c.analyzer.Occurrences(doc, tax.Whole) {
		if c.isQuestion(doc.At(o.Position())) {
			return o.Position(), true
		}
	}
	return ingest.Position{}, false
}

func (c *Checker) isQuestion(sent ingest.Sentence) bool {
	if len(sent.Tokens) == 0 {
		return false
	}
	last := strings.TrimRight(sent.Tokens[len(sent.Tokens)-1], `"')]}”’`)
	return strings.HasSuffix(last, "?") || containsAny(sent.Text(), c.markers.Uncertainty)
}

func (c *Checker) findCommentRequest(doc ingest.Document, positions []ingest.Position) (ingest.Position, bool) {
	window := c.markers.Window
	if window <= 0 {
		window = len(positions)
	}
	for i, pos := range positions {
		if i >= window && i < len(positions)-window {
			continue
		}
		if c.isCommentRequest(doc.At(pos).Text()) {
			return pos, true
		}
	}
	return ingest.Position{}, false
}

func (c *Checker) isCommentRequest(text string) bool {
	return containsAny(text, c.markers.Comment) && containsAny(text, c.markers.Request)
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(text, m) {
			return true
		}
	}
	return false
}
