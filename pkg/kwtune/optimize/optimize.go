// Package optimize edits a document until its keyword statistics meet a
// set of targets. Every step recounts from scratch; no count is ever
// patched incrementally.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/config"
	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
	"github.com/cognicore/kwtune/pkg/kwtune/repair"
)

const (
	// DefaultMaxIterations bounds the edit loop.
	DefaultMaxIterations = 300
	// DefaultMaxCandidates bounds the edits tried per constraint and step.
	DefaultMaxCandidates = 60
)

// Guard vets an edit. Returning false rejects after as a successor of
// before.
type Guard func(before, after ingest.Document) bool

// Options configures an Optimizer. Zero values take defaults.
type Options struct {
	MaxIterations        int
	NaturalSentenceRunes int
	MaxCandidates        int
	Phrasebook           *Phrasebook
	// Repairer resolves particle blockers. Nil gets a repairer without a
	// rewriter, which only splits multi particles.
	Repairer *repair.Repairer
	Logger   *slog.Logger
}

// Outcome is the result of a run. On a timeout it holds the best document
// reached.
type Outcome struct {
	Doc        ingest.Document
	Report     analytics.Report
	Iterations int
	Edits      []string
	// RepairFailures lists single-particle repairs that ran out of
	// attempts. The run goes on without them; a converged outcome may
	// still carry failures.
	RepairFailures []*internalerr.RepairError
}

// Optimizer runs the constraint loop.
type Optimizer struct {
	analyzer *analytics.Analyzer
	repairer *repair.Repairer
	book     Phrasebook
	opts     Options
	logger   *slog.Logger
}

// New creates an optimizer. analyzer may be nil for default particles.
func New(analyzer *analytics.Analyzer, opts Options) *Optimizer {
	if analyzer == nil {
		analyzer = analytics.NewAnalyzer(nil)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.NaturalSentenceRunes <= 0 {
		opts.NaturalSentenceRunes = DefaultNaturalSentenceRunes
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	book := DefaultPhrasebook()
	if opts.Phrasebook != nil {
		book = opts.Phrasebook.merge()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rep := opts.Repairer
	if rep == nil {
		rep = repair.New(analyzer, nil, repair.WithLogger(logger))
	}
	return &Optimizer{
		analyzer: analyzer,
		repairer: rep,
		book:     book,
		opts:     opts,
		logger:   logger,
	}
}

// Analyzer returns the analyzer the optimizer counts with.
func (o *Optimizer) Analyzer() *analytics.Analyzer {
	return o.analyzer
}

// run is the state of one Optimize call.
type run struct {
	cfg     *config.SEOConfig
	tax     ingest.Taxonomy
	guards  []Guard
	visited map[string]struct{}
	// noRewrite holds keywords whose single-particle repair gave up.
	noRewrite map[string]struct{}

	doc    ingest.Document
	report analytics.Report
	gaps   []gap

	best     ingest.Document
	bestRep  analytics.Report
	bestDist float64

	edits    []string
	failures []*internalerr.RepairError
}

func (r *run) allowed(before, after ingest.Document) bool {
	if _, seen := r.visited[after.Render()]; seen {
		return false
	}
	for _, g := range r.guards {
		if !g(before, after) {
			return false
		}
	}
	return true
}

// Optimize edits doc until every target in cfg holds. Contradictory
// targets fail with *UnattainableError before any edit. When the loop
// stalls or hits the iteration bound, the best document reached is
// returned with a *TimeoutError.
func (o *Optimizer) Optimize(ctx context.Context, doc ingest.Document, cfg config.SEOConfig, guards ...Guard) (Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return Outcome{}, err
	}
	if err := CheckFeasible(cfg, o.opts.NaturalSentenceRunes); err != nil {
		return Outcome{}, err
	}

	r := &run{
		cfg:       &cfg,
		tax:       cfg.Taxonomy(),
		guards:    guards,
		visited:   make(map[string]struct{}),
		noRewrite: make(map[string]struct{}),
	}
	o.enter(r, doc.Canonical(), "")
	r.best, r.bestRep, r.bestDist = r.doc, r.report, distance(r.gaps)

	for iter := 0; iter < o.opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return o.outcome(r, iter), err
		}
		pending := priority(r.gaps)
		if len(pending) == 0 {
			return o.outcome(r, iter), nil
		}

		moved, err := o.resolveBlockers(ctx, r)
		if err != nil {
			return o.outcome(r, iter), err
		}
		if moved {
			continue
		}

		if o.step(r, pending) {
			continue
		}

		out := o.outcome(r, iter)
		out.Doc, out.Report = r.best, r.bestRep
		return out, &TimeoutError{
			Iterations:     iter,
			Constraint:     pending[0].Constraint,
			Report:         r.bestRep,
			Stalled:        true,
			RepairFailures: r.failures,
		}
	}

	pending := priority(r.gaps)
	if len(pending) == 0 {
		return o.outcome(r, o.opts.MaxIterations), nil
	}
	out := o.outcome(r, o.opts.MaxIterations)
	out.Doc, out.Report = r.best, r.bestRep
	return out, &TimeoutError{
		Iterations:     o.opts.MaxIterations,
		Constraint:     pending[0].Constraint,
		Report:         r.bestRep,
		RepairFailures: r.failures,
	}
}

// enter makes doc the current state.
func (o *Optimizer) enter(r *run, doc ingest.Document, desc string) {
	r.doc = doc
	r.report = o.analyzer.Analyze(doc, r.tax)
	r.gaps = measure(r.report, r.cfg)
	r.visited[doc.Render()] = struct{}{}
	if desc != "" {
		r.edits = append(r.edits, desc)
		o.logger.Debug("edit applied", "edit", desc, "distance", distance(r.gaps))
	}
	if d := distance(r.gaps); d < r.bestDist {
		r.best, r.bestRep, r.bestDist = r.doc, r.report, d
	}
}

func (o *Optimizer) outcome(r *run, iterations int) Outcome {
	return Outcome{
		Doc:            r.doc,
		Report:         r.report,
		Iterations:     iterations,
		Edits:          r.edits,
		RepairFailures: r.failures,
	}
}

// resolveBlockers tries one particle repair for a keyword in deficit. It
// reports whether a repair was accepted.
func (o *Optimizer) resolveBlockers(ctx context.Context, r *run) (bool, error) {
	for _, g := range r.gaps {
		if g.Kind != WholeKeyword && g.Kind != PieceKeyword || g.diff >= 0 {
			continue
		}
		keyword := r.tax.Whole
		if g.Kind == PieceKeyword {
			keyword = g.Piece
		}
		var multi, single bool
		for _, b := range r.report.BlockersFor(keyword) {
			switch b.Class {
			case ingest.Multi:
				multi = true
			case ingest.Single:
				single = true
			}
		}

		if multi {
			next, n := o.repairer.RepairMulti(r.doc, keyword, 1)
			if n > 0 && o.tryEnter(r, g.Constraint, next.Canonical(), fmt.Sprintf("split particle after %q", keyword)) {
				return true, nil
			}
		}

		if _, off := r.noRewrite[keyword]; !single || off || !o.repairer.CanRewrite() {
			continue
		}
		next, n, err := o.repairer.RepairSingle(ctx, r.doc, keyword, 1)
		var rerr *internalerr.RepairError
		if errors.As(err, &rerr) {
			o.logger.Warn("single particle repair gave up", "keyword", keyword, "sentence", rerr.Sentence, "attempts", rerr.Attempts)
			r.noRewrite[keyword] = struct{}{}
			r.failures = append(r.failures, rerr)
			continue
		}
		if err != nil {
			return false, err
		}
		if n > 0 && o.tryEnter(r, g.Constraint, next.Canonical(), fmt.Sprintf("rewrite particle after %q", keyword)) {
			return true, nil
		}
	}
	return false, nil
}

// tryEnter accepts a blocker repair that passes the guards and brings c
// closer overall. Side effects on other constraints are left to later
// iterations.
func (o *Optimizer) tryEnter(r *run, c Constraint, next ingest.Document, desc string) bool {
	if !r.allowed(r.doc, next) {
		return false
	}
	gaps := measure(o.analyzer.Analyze(next, r.tax), r.cfg)
	if !improves(c, r.gaps, gaps) && !closer(c, r.gaps, gaps) {
		return false
	}
	o.enter(r, next, desc)
	return true
}

// step applies one edit. The first candidate that improves the
// highest-priority constraint wins; failing that, the candidate with the
// lowest total distance below the current one. It reports whether any
// edit was applied.
func (o *Optimizer) step(r *run, pending []gap) bool {
	current := distance(r.gaps)
	var fallback *candidate
	fallbackDist := current

	for _, g := range pending {
		ed := &editor{
			doc:      r.doc,
			report:   r.report,
			tax:      r.tax,
			cfg:      r.cfg,
			book:     o.book,
			analyzer: o.analyzer,
			limit:    o.opts.MaxCandidates,
		}
		for _, c := range ed.propose(g) {
			if !r.allowed(r.doc, c.doc) {
				continue
			}
			gaps := measure(o.analyzer.Analyze(c.doc, r.tax), r.cfg)
			if improves(g.Constraint, r.gaps, gaps) {
				o.enter(r, c.doc, fmt.Sprintf("%s: %s", g.Constraint, c.desc))
				return true
			}
			if d := distance(gaps); d < fallbackDist {
				c.desc = fmt.Sprintf("%s: %s", g.Constraint, c.desc)
				fallback, fallbackDist = &c, d
			}
		}
	}

	if fallback != nil {
		o.enter(r, fallback.doc, fallback.desc)
		return true
	}
	return false
}
