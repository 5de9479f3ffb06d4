// Package cards builds explainable summaries of optimization runs.
package cards

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/optimize"
)

// Builder constructs run cards. It is safe for concurrent use.
type Builder struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates a new card builder
func New() *Builder {
	return &Builder{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Card summarizes one run: which targets hold and how the text got there.
type Card struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Keyword   string           `json:"keyword"`
	CreatedAt time.Time        `json:"created_at"`
	Converged bool             `json:"converged"`
	Bullets   []string         `json:"bullets"`
	Checks    []optimize.Check `json:"checks"`
	Hashtags  []string         `json:"hashtags,omitempty"`
	Explain   Explain          `json:"explain"`
}

// Explain records what the engine did and what it could not resolve.
type Explain struct {
	Iterations int                    `json:"iterations"`
	Edits      []string               `json:"edits,omitempty"`
	Ambiguous  []analytics.Occurrence `json:"ambiguous,omitempty"`
	Missing    []string               `json:"missing_sections,omitempty"`
}

// Input is what a card is built from.
type Input struct {
	Title      string
	Keyword    string
	Report     analytics.Report
	Checks     []optimize.Check
	Iterations int
	Edits      []string
	Hashtags   []string
	Missing    []string
}

// NewID returns a fresh, time-ordered run identifier.
func (b *Builder) NewID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(b.now()), b.entropy).String()
}

// Build creates a card. The run converged when every check holds.
func (b *Builder) Build(in Input) Card {
	title := in.Title
	if title == "" {
		title = in.Keyword
	}
	card := Card{
		ID:        b.NewID(),
		Title:     title,
		Keyword:   in.Keyword,
		CreatedAt: b.now().UTC(),
		Converged: true,
		Bullets:   make([]string, 0, len(in.Checks)),
		Checks:    append([]optimize.Check(nil), in.Checks...),
		Hashtags:  in.Hashtags,
		Explain: Explain{
			Iterations: in.Iterations,
			Edits:      in.Edits,
			Ambiguous:  in.Report.Ambiguous,
			Missing:    in.Missing,
		},
	}

	for _, c := range in.Checks {
		mark := "ok"
		if !c.OK {
			mark = "unmet"
			card.Converged = false
		}
		card.Bullets = append(card.Bullets, fmt.Sprintf("%s %d/%d %s", c.Constraint, c.Current, c.Target, mark))
	}
	return card
}
