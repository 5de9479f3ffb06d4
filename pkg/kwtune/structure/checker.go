package structure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
	"github.com/cognicore/kwtune/pkg/kwtune/rewrite"
)

// DefaultAttempts bounds rewritten candidates per missing section.
const DefaultAttempts = 3

// Checker validates and enforces the template.
type Checker struct {
	markers  Markers
	analyzer *analytics.Analyzer
	rewriter rewrite.Rewriter
	attempts int
	logger   *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithRewriter enables generated intros and keyword questions.
func WithRewriter(r rewrite.Rewriter) Option {
	return func(c *Checker) {
		c.rewriter = r
	}
}

// WithAttempts bounds candidate validation per section.
func WithAttempts(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChecker creates a checker. A nil analyzer counts with the default
// particles.
func NewChecker(markers Markers, analyzer *analytics.Analyzer, opts ...Option) *Checker {
	if analyzer == nil {
		analyzer = analytics.NewAnalyzer(nil)
	}
	if len(markers.Boilerplate) == 0 {
		markers.Boilerplate = DefaultMarkers().Boilerplate
	}
	c := &Checker{
		markers:  markers,
		analyzer: analyzer,
		attempts: DefaultAttempts,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enforce fills missing sections. A comment request is appended from the
// boilerplate and always succeeds. A missing intro or keyword question is
// requested from the rewriter and inserted only after the candidate passes
// the same check Validate applies; without a rewriter, or when every
// candidate is rejected, the section stays missing in the result.
// Collaborator errors are returned.
func (c *Checker) Enforce(ctx context.Context, doc ingest.Document, tax ingest.Taxonomy) (ingest.Document, Result, error) {
	out := doc.Clone()
	res := c.Validate(out, tax)

	if !res.Has(Intro) && c.rewriter != nil {
		next, err := c.generate(ctx, out, tax, Intro)
		if err != nil {
			return doc, res, err
		}
		out = next
	}

	res = c.Validate(out, tax)
	if !res.Has(KeywordQuestion) && c.rewriter != nil {
		next, err := c.generate(ctx, out, tax, KeywordQuestion)
		if err != nil {
			return doc, res, err
		}
		out = next
	}

	res = c.Validate(out, tax)
	if !res.Has(CommentRequest) {
		out = c.appendCommentRequest(out, tax)
	}

	out = out.Canonical()
	return out, c.Validate(out, tax), nil
}

func (c *Checker) appendCommentRequest(doc ingest.Document, tax ingest.Taxonomy) ingest.Document {
	for _, text := range c.markers.Boilerplate {
		next := doc.Clone()
		sent := ingest.NewSentence(text)
		if len(next.Paragraphs) == 0 {
			next.InsertParagraph(0, ingest.Paragraph{Sentences: []ingest.Sentence{sent}})
		} else {
			last := len(next.Paragraphs) - 1
			next.InsertSentence(last, len(next.Paragraphs[last].Sentences), sent)
		}
		if c.Validate(next.Canonical(), tax).Has(CommentRequest) {
			return next
		}
	}
	return doc
}

func (c *Checker) generate(ctx context.Context, doc ingest.Document, tax ingest.Taxonomy, section Section) (ingest.Document, error) {
	passage, constraint := c.prompt(doc, tax, section)

	for attempt := 1; attempt <= c.attempts; attempt++ {
		candidate, err := c.rewriter.Rewrite(ctx, passage, constraint)
		if err != nil {
			return doc, fmt.Errorf("generate %s: %w", section, err)
		}
		sents := ingest.Parse(strings.Join(strings.Fields(candidate), " ")).Sentences()
		if len(sents) == 0 {
			continue
		}

		next := doc.Clone()
		switch section {
		case Intro:
			if !c.isIntro(sents[0].Text()) {
				break
			}
			if len(next.Paragraphs) == 0 {
				next.InsertParagraph(0, ingest.Paragraph{})
			}
			for i := len(sents) - 1; i >= 0; i-- {
				next.InsertSentence(0, 0, sents[i])
			}
			return next.Canonical(), nil
		case KeywordQuestion:
			ok := false
			for _, s := range sents {
				if c.analyzer.CountIn(s, tax.Whole) > 0 && c.isQuestion(s) {
					ok = true
					break
				}
			}
			if !ok {
				break
			}
			if len(next.Paragraphs) == 0 {
				next.InsertParagraph(0, ingest.Paragraph{})
			}
			last := len(next.Paragraphs) - 1
			for _, s := range sents {
				next.InsertSentence(last, len(next.Paragraphs[last].Sentences), s)
			}
			return next.Canonical(), nil
		}

		c.logger.Debug("rejected section candidate",
			"section", section.String(),
			"attempt", attempt,
			"candidate", candidate)
	}

	c.logger.Warn("section still missing after rewrite attempts",
		"section", section.String(),
		"attempts", c.attempts)
	return doc, nil
}

func (c *Checker) prompt(doc ingest.Document, tax ingest.Taxonomy, section Section) (string, string) {
	var passage string
	if len(doc.Paragraphs) > 0 {
		sents := doc.Paragraphs[0].Sentences
		parts := make([]string, len(sents))
		for i, s := range sents {
			parts[i] = s.Text()
		}
		passage = strings.Join(parts, " ")
	}

	switch section {
	case Intro:
		return passage, fmt.Sprintf(
			"이 글의 맨 앞에 놓을 첫 문장을 한 문장으로 써 주세요. %q에 대한 고민이나 궁금증을 담고, "+
				"홍보나 광고처럼 들리는 표현은 쓰지 마세요. 문장만 출력하세요.", tax.Whole)
	default:
		return passage, fmt.Sprintf(
			"%q를 띄어쓰기 그대로, 뒤에 조사를 붙이지 않고 포함한 질문 문장 하나를 써 주세요. "+
				"물음표로 끝내고 문장만 출력하세요.", tax.Whole)
	}
}
