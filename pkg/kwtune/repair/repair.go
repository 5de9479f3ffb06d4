// Package repair turns keyword occurrences blocked by a glued particle into
// counted ones. Multi-syllable particles are split off mechanically; single
// particles need a sentence rewrite from the collaborator.
package repair

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
	"github.com/cognicore/kwtune/pkg/kwtune/rewrite"
)

// DefaultMaxAttempts bounds candidate validation per blocked sentence.
const DefaultMaxAttempts = 3

// Repairer fixes particle blockers in documents.
type Repairer struct {
	analyzer    *analytics.Analyzer
	rewriter    rewrite.Rewriter
	maxAttempts int
	logger      *slog.Logger
}

// Option configures a Repairer.
type Option func(*Repairer)

// WithMaxAttempts sets how many rejected candidates are tolerated per
// sentence before giving up.
func WithMaxAttempts(n int) Option {
	return func(r *Repairer) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repairer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a repairer. rewriter may be nil, in which case single-particle
// repair is a no-op.
func New(analyzer *analytics.Analyzer, rewriter rewrite.Rewriter, opts ...Option) *Repairer {
	if analyzer == nil {
		analyzer = analytics.NewAnalyzer(nil)
	}
	r := &Repairer{
		analyzer:    analyzer,
		rewriter:    rewriter,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CanRewrite reports whether single-particle repair is available.
func (r *Repairer) CanRewrite() bool {
	return r.rewriter != nil
}

// RepairMulti splits multi-syllable particles off keyword into their own
// token, fixing at most limit occurrences in document order (limit <= 0
// fixes all). "강남 맛집으로" becomes "강남 맛집 으로". Running it again on
// its own output changes nothing. The input document is not modified.
func (r *Repairer) RepairMulti(doc ingest.Document, keyword string, limit int) (ingest.Document, int) {
	words := strings.Fields(keyword)
	if len(words) == 0 {
		return doc, 0
	}
	last := words[len(words)-1]
	classifier := r.analyzer.Classifier()

	out := doc.Clone()
	fixed := 0
	for _, pos := range out.Positions() {
		if limit > 0 && fixed >= limit {
			break
		}
		tokens := out.At(pos).Tokens
		var next []string
		changed := false
		for i := 0; i < len(tokens); i++ {
			end, ok := ingest.MatchPhrase(tokens, i, words)
			if !ok || (limit > 0 && fixed >= limit) || classifier.Classify(tokens[end], last) != ingest.Multi {
				next = append(next, tokens[i])
				continue
			}
			next = append(next, tokens[i:end]...)
			next = append(next, last, ingest.Suffix(tokens[end], last))
			fixed++
			changed = true
			i = end
		}
		if changed {
			out.SetTokens(pos, next)
		}
	}
	if fixed > 0 {
		r.logger.Debug("split multi particles", "keyword", keyword, "count", fixed)
	}
	return out, fixed
}

// RepairSingle asks the rewriter to restructure sentences where keyword is
// followed by a single-syllable particle. A candidate is accepted only when
// it holds more counted occurrences of keyword than the sentence it
// replaces; after the attempt budget a *internalerr.RepairError is returned
// together with the repairs made so far. At most limit sentences are
// rewritten (limit <= 0 rewrites all).
func (r *Repairer) RepairSingle(ctx context.Context, doc ingest.Document, keyword string, limit int) (ingest.Document, int, error) {
	if r.rewriter == nil {
		return doc, 0, nil
	}
	keyword = strings.Join(strings.Fields(keyword), " ")

	var targets []ingest.Position
	var particles []string
	seen := make(map[ingest.Position]struct{})
	for _, o := range r.analyzer.Occurrences(doc, keyword) {
		if o.Class != ingest.Single {
			continue
		}
		pos := o.Position()
		if _, ok := seen[pos]; ok {
			continue
		}
		if limit > 0 && len(targets) >= limit {
			break
		}
		seen[pos] = struct{}{}
		targets = append(targets, pos)
		particles = append(particles, strings.TrimRight(o.Suffix, ".,!?;:~^\"')]}"))
	}

	out := doc.Clone()
	fixed := 0
	// Back to front so a sentence that grows into several keeps earlier
	// positions valid.
	for i := len(targets) - 1; i >= 0; i-- {
		pos := targets[i]
		repl, err := r.rewriteSentence(ctx, out.At(pos), keyword, particles[i])
		if err != nil {
			return out, fixed, err
		}
		repl[len(repl)-1].LineBreak = out.At(pos).LineBreak
		out.ReplaceSentence(pos, repl)
		fixed++
	}
	return out, fixed, nil
}

func (r *Repairer) rewriteSentence(ctx context.Context, sent ingest.Sentence, keyword, particle string) ([]ingest.Sentence, error) {
	before := r.analyzer.CountIn(sent, keyword)
	text := sent.Text()
	constraint := SingleParticleConstraint(keyword, particle)

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		candidate, err := r.rewriter.Rewrite(ctx, text, constraint)
		if err != nil {
			return nil, fmt.Errorf("repair %q: %w", keyword, err)
		}

		sents := ingest.Parse(strings.Join(strings.Fields(candidate), " ")).Sentences()
		after := 0
		for _, s := range sents {
			after += r.analyzer.CountIn(s, keyword)
		}
		if len(sents) > 0 && after > before {
			r.logger.Debug("single particle repaired", "keyword", keyword, "attempt", attempt)
			return sents, nil
		}
		r.logger.Debug("rejected repair candidate",
			"keyword", keyword,
			"attempt", attempt,
			"candidate", candidate)
	}
	return nil, &internalerr.RepairError{Keyword: keyword, Sentence: text, Attempts: r.maxAttempts}
}

// Repair splits every multi particle and then, when a rewriter is
// configured, rewrites every single-particle sentence.
func (r *Repairer) Repair(ctx context.Context, doc ingest.Document, keyword string) (ingest.Document, int, error) {
	doc, n := r.RepairMulti(doc, keyword, 0)
	doc, m, err := r.RepairSingle(ctx, doc, keyword, 0)
	return doc, n + m, err
}

// SingleParticleConstraint is the instruction sent with a blocked sentence.
func SingleParticleConstraint(keyword, particle string) string {
	return fmt.Sprintf(
		"문장 안의 %q 뒤에 조사 %q가 붙어 있어 키워드로 집계되지 않습니다. "+
			"%q 바로 뒤에 명사 하나를 덧붙이고 조사는 그 명사 뒤로 옮기세요. "+
			"예: \"강남 맛집을 찾아요\" -> \"강남 맛집 리스트를 찾아요\". "+
			"문장의 뜻과 말투는 유지하고, 수정된 문장 하나만 출력하세요.",
		keyword, particle, keyword)
}
