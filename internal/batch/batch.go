// Package batch optimizes many manuscripts in parallel from JSONL input.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/kwtune/pkg/kwtune"
	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/config"
	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
)

// Item is one manuscript line of a batch file.
type Item struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Keyword string `json:"keyword,omitempty"`
	Text    string `json:"text"`
	// Config overrides the batch-wide targets for this item.
	Config *config.SEOConfig `json:"config,omitempty"`
}

// Output is one result line.
type Output struct {
	ID         string           `json:"id"`
	RunID      string           `json:"run_id,omitempty"`
	Keyword    string           `json:"keyword"`
	Text       string           `json:"text,omitempty"`
	Converged  bool             `json:"converged"`
	Iterations int              `json:"iterations"`
	Report     analytics.Report `json:"report"`
	Hashtags   []string         `json:"hashtags,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Request builds the engine request for the item. An item config replaces
// the batch targets; otherwise the item keyword, or failing that a "# title"
// line in the text, replaces the batch keyword. Piece targets of the batch
// config only apply while its keyword is kept. Title lines are removed from
// the text before counting.
func (it Item) Request(base config.SEOConfig) (kwtune.Request, error) {
	cfg := base
	if it.Config != nil {
		cfg = *it.Config
	} else {
		kw := strings.Join(strings.Fields(it.Keyword), " ")
		if kw == "" {
			kw, _ = ingest.KeywordFromTitle(it.Text)
		}
		if kw != "" && kw != base.WholeKeyword {
			cfg.WholeKeyword = kw
			cfg.PieceTargets = nil
		}
	}
	if strings.TrimSpace(cfg.WholeKeyword) == "" {
		return kwtune.Request{}, fmt.Errorf("%w: item %q has no keyword", internalerr.ErrInvalidInput, it.ID)
	}
	cfg.WholeKeyword = strings.Join(strings.Fields(cfg.WholeKeyword), " ")
	return kwtune.Request{
		DocID:  it.ID,
		Title:  it.Title,
		Text:   ingest.StripTitle(it.Text),
		Config: cfg,
	}, nil
}

// LoadFromJSONL loads items from a JSONL file
func LoadFromJSONL(path string, logger *slog.Logger) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	defer f.Close()

	items, err := ReadJSONL(f, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// ReadJSONL decodes one item per line. Malformed lines are logged and
// skipped; an input without any valid item is an error.
func ReadJSONL(r io.Reader, logger *slog.Logger) ([]Item, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var items []Item
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var item Item
		if err := json.Unmarshal([]byte(text), &item); err != nil {
			logger.Warn("skipping malformed batch line", "line", line, "error", err)
			continue
		}
		if item.ID == "" {
			item.ID = fmt.Sprintf("line-%d", line)
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no valid items", internalerr.ErrInvalidInput)
	}
	return items, nil
}

// WriteJSONL writes one output per line.
func WriteJSONL(w io.Writer, outputs []Output) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, o := range outputs {
		if err := enc.Encode(o); err != nil {
			return err
		}
	}
	return nil
}

// Optimizer is the part of the engine a batch needs.
type Optimizer interface {
	Optimize(ctx context.Context, req kwtune.Request) (kwtune.Result, error)
}

// Runner fans items out to a bounded number of workers.
type Runner struct {
	Engine  Optimizer
	Base    config.SEOConfig
	Workers int
	Logger  *slog.Logger
}

// Run optimizes every item and returns outputs in input order. A failing
// item is reported in its output; only cancellation stops the batch.
func (r *Runner) Run(ctx context.Context, items []Item) ([]Output, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}

	outputs := make([]Output, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outputs[i] = r.one(gctx, item, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outputs, err
	}
	return outputs, ctx.Err()
}

func (r *Runner) one(ctx context.Context, item Item, logger *slog.Logger) Output {
	out := Output{ID: item.ID, Keyword: item.Keyword}
	req, err := item.Request(r.Base)
	if err != nil {
		out.Error = err.Error()
		logger.Warn("skipping batch item", "id", item.ID, "error", err)
		return out
	}
	out.Keyword = req.Config.WholeKeyword

	res, err := r.Engine.Optimize(ctx, req)
	out.RunID = res.RunID
	out.Text = res.Text
	out.Converged = res.Converged && err == nil
	out.Iterations = res.Iterations
	out.Report = res.Report
	out.Hashtags = res.Hashtags
	if err != nil {
		out.Error = err.Error()
		logger.Info("batch item did not converge", "id", item.ID, "error", err)
	}
	return out
}
