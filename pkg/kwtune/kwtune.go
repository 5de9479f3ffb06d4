// Package kwtune is the keyword-density engine facade: it measures a
// manuscript against its keyword targets, edits it until they hold, applies
// forbidden-word substitution and records the run.
package kwtune

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/cards"
	"github.com/cognicore/kwtune/pkg/kwtune/config"
	"github.com/cognicore/kwtune/pkg/kwtune/forbidden"
	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
	"github.com/cognicore/kwtune/pkg/kwtune/metrics"
	"github.com/cognicore/kwtune/pkg/kwtune/optimize"
	"github.com/cognicore/kwtune/pkg/kwtune/repair"
	"github.com/cognicore/kwtune/pkg/kwtune/rewrite"
	"github.com/cognicore/kwtune/pkg/kwtune/store"
	"github.com/cognicore/kwtune/pkg/kwtune/structure"
)

// MaxHashtags caps Hashtags.
const MaxHashtags = 10

// Engine is the main facade
type Engine struct {
	analyzer  *analytics.Analyzer
	optimizer *optimize.Optimizer
	checker   *structure.Checker
	sub       forbidden.Substituter
	table     *forbidden.Table
	store     store.Store
	metrics   *metrics.Recorder
	cards     *cards.Builder
	logger    *slog.Logger
	enforce   bool
}

// Options configures an Engine. Every field is optional.
type Options struct {
	Classifier *ingest.Classifier
	// Rewriter is the raw collaborator. The engine adds rate limiting and
	// retries from Settings.
	Rewriter rewrite.Rewriter
	// Substituter defaults to the built-in forbidden-word table.
	Substituter forbidden.Substituter
	Markers     *structure.Markers
	// Settings zero value selects config.DefaultSettings.
	Settings   config.Settings
	Phrasebook *optimize.Phrasebook
	Store      store.Store
	Metrics    *metrics.Recorder
	Logger     *slog.Logger
	// EnforceStructure fills missing template sections before optimizing
	// and keeps them through every edit.
	EnforceStructure bool
}

// New creates an Engine with the given dependencies
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	settings := opts.Settings
	if settings == (config.Settings{}) {
		settings = config.DefaultSettings()
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = ingest.NewClassifier(ingest.DefaultParticles())
	}
	analyzer := analytics.NewAnalyzer(classifier)

	var rw rewrite.Rewriter
	if opts.Rewriter != nil {
		rw = opts.Rewriter
		if settings.RequestsPerSecond > 0 {
			rw = rewrite.NewLimited(rw, settings.RequestsPerSecond, 1)
		}
		rw = rewrite.NewRetrying(rw, rewrite.RetryConfig{
			MaxAttempts:       settings.RetryAttempts,
			Timeout:           settings.CallTimeout,
			BackoffBase:       settings.BackoffBase,
			BackoffMultiplier: 2.0,
			MaxBackoff:        settings.MaxBackoff,
		}, rewrite.WithLogger(logger), rewrite.WithObserver(opts.Metrics.CallObserver("rewrite")))
	}

	markers := structure.DefaultMarkers()
	if opts.Markers != nil {
		markers = *opts.Markers
	}
	checkerOpts := []structure.Option{
		structure.WithAttempts(settings.RepairAttempts),
		structure.WithLogger(logger),
	}
	repairOpts := []repair.Option{
		repair.WithMaxAttempts(settings.RepairAttempts),
		repair.WithLogger(logger),
	}
	if rw != nil {
		checkerOpts = append(checkerOpts, structure.WithRewriter(rw))
	}

	sub := opts.Substituter
	if sub == nil {
		sub = forbidden.DefaultTable()
	}
	table, _ := sub.(*forbidden.Table)

	return &Engine{
		analyzer: analyzer,
		optimizer: optimize.New(analyzer, optimize.Options{
			MaxIterations:        settings.MaxIterations,
			NaturalSentenceRunes: settings.NaturalSentenceRunes,
			Phrasebook:           opts.Phrasebook,
			Repairer:             repair.New(analyzer, rw, repairOpts...),
			Logger:               logger,
		}),
		checker: structure.NewChecker(markers, analyzer, checkerOpts...),
		sub:     sub,
		table:   table,
		store:   opts.Store,
		metrics: opts.Metrics,
		cards:   cards.New(),
		logger:  logger,
		enforce: opts.EnforceStructure,
	}
}

// Close cleanly shuts down the engine and its store
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Store returns the run store, or nil.
func (e *Engine) Store() store.Store {
	return e.store
}

// Request is one manuscript with its targets.
type Request struct {
	DocID  string
	Title  string
	Text   string
	Config config.SEOConfig
}

// Result is the outcome of an optimization.
type Result struct {
	RunID      string           `json:"run_id"`
	Text       string           `json:"text"`
	Report     analytics.Report `json:"report"`
	Converged  bool             `json:"converged"`
	Checks     []optimize.Check `json:"checks"`
	Structure  structure.Result `json:"structure"`
	Hashtags   []string         `json:"hashtags,omitempty"`
	Iterations int              `json:"iterations"`
	Edits      []string         `json:"edits,omitempty"`
	Card       cards.Card       `json:"card"`
	// RepairFailures lists particle repairs that gave up during the run.
	RepairFailures []*internalerr.RepairError `json:"repair_failures,omitempty"`
}

// Analyze measures text against the keyword without changing it.
func (e *Engine) Analyze(text, keyword string) analytics.Report {
	return e.analyzer.Analyze(ingest.Parse(text), ingest.NewTaxonomy(keyword))
}

// Check measures text against cfg and lists the state of every target.
func (e *Engine) Check(text string, cfg config.SEOConfig) (analytics.Report, []optimize.Check, error) {
	if err := cfg.Validate(); err != nil {
		return analytics.Report{}, nil, err
	}
	r := e.analyzer.Analyze(ingest.Parse(text), cfg.Taxonomy())
	return r, optimize.Status(r, cfg), nil
}

// Structure validates text against the post template.
func (e *Engine) Structure(text, keyword string) structure.Result {
	return e.checker.Validate(ingest.Parse(text), ingest.NewTaxonomy(keyword))
}

// Optimize edits the request text until every target holds. When the edit
// loop does not converge, the best text reached is returned with
// Converged false together with a timeout error.
func (e *Engine) Optimize(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res, err := e.optimize(ctx, req)

	outcome := metrics.RunConverged
	switch {
	case errors.Is(err, internalerr.ErrOptimizationTimeout):
		outcome = metrics.RunTimeout
	case errors.Is(err, internalerr.ErrUnattainable):
		outcome = metrics.RunUnattainable
	case err != nil:
		outcome = metrics.RunError
	}
	e.metrics.ObserveRun(outcome, res.Iterations, time.Since(start))
	e.save(ctx, req, res, err)

	e.logger.Info("optimization finished",
		"run", res.RunID,
		"keyword", req.Config.WholeKeyword,
		"outcome", outcome,
		"iterations", res.Iterations,
		"duration", time.Since(start))
	return res, err
}

func (e *Engine) optimize(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Text) == "" {
		return e.result(req, Result{}), fmt.Errorf("%w: empty text", internalerr.ErrInvalidInput)
	}
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return e.result(req, Result{}), err
	}
	tax := cfg.Taxonomy()
	doc := ingest.Parse(req.Text)

	var guards []optimize.Guard
	if e.enforce {
		next, sres, err := e.checker.Enforce(ctx, doc, tax)
		if err != nil {
			return e.result(req, Result{}), fmt.Errorf("enforce structure: %w", err)
		}
		if !sres.OK {
			e.logger.Warn("template sections missing", "missing", sres.Missing)
		}
		doc = next
		guards = append(guards, e.checker.Preserves(tax))
	}

	out, err := e.optimizer.Optimize(ctx, doc, cfg, guards...)
	var timeout *optimize.TimeoutError
	if err != nil && !errors.As(err, &timeout) {
		return e.result(req, Result{}), err
	}
	res := Result{Iterations: out.Iterations, Edits: out.Edits, RepairFailures: out.RepairFailures}
	doc = out.Doc

	if cfg.ApplyForbiddenWords {
		sub := forbidden.Protected(e.sub, tax.Keywords()...)
		before := doc.Render()
		text, serr := sub.Substitute(ctx, before)
		if serr != nil {
			return e.result(req, res), fmt.Errorf("substitute forbidden words: %w", serr)
		}
		if e.table != nil {
			e.metrics.AddSubstitutions(len(e.table.Find(before)) - len(e.table.Find(text)))
		}
		doc = ingest.Parse(text)

		// Substitution can shift counts; one more pass restores them.
		if timeout == nil && !optimize.Satisfied(e.analyzer.Analyze(doc, tax), cfg) {
			e.logger.Debug("forbidden-word pass perturbed the counts, re-validating")
			again, aerr := e.optimizer.Optimize(ctx, doc, cfg, guards...)
			if aerr != nil && !errors.As(aerr, &timeout) {
				return e.result(req, res), aerr
			}
			doc = again.Doc
			res.Iterations += again.Iterations
			res.Edits = append(res.Edits, again.Edits...)
			res.RepairFailures = append(res.RepairFailures, again.RepairFailures...)
		}
	}

	res.Text = doc.Render()
	res.Report = e.analyzer.Analyze(doc, tax)
	res.Checks = optimize.Status(res.Report, cfg)
	res.Converged = optimize.Satisfied(res.Report, cfg)
	res.Structure = e.checker.Validate(doc, tax)
	res.Hashtags = Hashtags(tax, e.analyzer.SubKeywords(doc, tax))
	res = e.result(req, res)

	if timeout != nil {
		if res.Converged {
			// The substitution pass happened to meet the remaining targets.
			return res, nil
		}
		timeout.Report = res.Report
		timeout.RepairFailures = res.RepairFailures
		return res, timeout
	}
	return res, nil
}

// result stamps res with a run ID and its card.
func (e *Engine) result(req Request, res Result) Result {
	var missing []string
	for _, s := range res.Structure.Missing {
		missing = append(missing, s.String())
	}
	res.Card = e.cards.Build(cards.Input{
		Title:      req.Title,
		Keyword:    req.Config.WholeKeyword,
		Report:     res.Report,
		Checks:     res.Checks,
		Iterations: res.Iterations,
		Edits:      res.Edits,
		Hashtags:   res.Hashtags,
		Missing:    missing,
	})
	res.RunID = res.Card.ID
	return res
}

func (e *Engine) save(ctx context.Context, req Request, res Result, runErr error) {
	if e.store == nil {
		return
	}
	run := store.Run{
		ID:         res.RunID,
		DocID:      req.DocID,
		Title:      req.Title,
		Keyword:    req.Config.WholeKeyword,
		CreatedAt:  res.Card.CreatedAt,
		Converged:  res.Converged && runErr == nil,
		Iterations: res.Iterations,
		Input:      req.Text,
		Output:     res.Text,
		Report:     res.Report,
		Edits:      res.Edits,
		Hashtags:   res.Hashtags,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := e.store.SaveRun(ctx, run); err != nil {
		e.logger.Warn("failed to save run", "run", run.ID, "error", err)
	}
}

// Hashtags suggests tags for a post: the whole keyword without spaces, its
// pieces, then word sub-keywords by frequency. Duplicates are dropped and
// the list is capped at MaxHashtags.
func Hashtags(tax ingest.Taxonomy, subs []analytics.Unit) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		if tag == "" || len(out) >= MaxHashtags {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	add(strings.Join(tax.Words, ""))
	for _, p := range tax.Pieces {
		add(p)
	}
	for _, u := range subs {
		if isWord(u.Text) {
			add(u.Text)
		}
	}
	return out
}

func isWord(s string) bool {
	for _, r := range s {
		if !(r >= '가' && r <= '힣') && !(r >= 'a' && r <= 'z') && !(r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return s != ""
}
