package optimize

import (
	"fmt"
	"sort"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/config"
)

// Kind names one of the eight document targets.
type Kind int

const (
	WholeKeyword Kind = iota
	PieceKeyword
	CharCount
	ForbiddenWords
	FirstParaDouble
	FirstParaGap
	SubKeywords
	LeadingSentences
)

func (k Kind) String() string {
	switch k {
	case WholeKeyword:
		return "whole_keyword"
	case PieceKeyword:
		return "piece_keyword"
	case CharCount:
		return "char_count"
	case ForbiddenWords:
		return "forbidden_words"
	case FirstParaDouble:
		return "first_para_double"
	case FirstParaGap:
		return "first_para_gap"
	case SubKeywords:
		return "sub_keywords"
	case LeadingSentences:
		return "leading_sentences"
	default:
		return "unknown"
	}
}

// tier orders constraint families: keyword counts first, then placement,
// then the side-effect targets.
func (k Kind) tier() int {
	switch k {
	case WholeKeyword, PieceKeyword:
		return 0
	case FirstParaDouble, FirstParaGap, LeadingSentences:
		return 1
	default:
		return 2
	}
}

// Constraint identifies a target; Piece is set for piece keywords.
type Constraint struct {
	Kind  Kind
	Piece string
}

func (c Constraint) String() string {
	if c.Piece != "" {
		return fmt.Sprintf("%s[%s]", c.Kind, c.Piece)
	}
	return c.Kind.String()
}

// MarshalText renders the constraint name in reports.
func (c Constraint) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// gap is the distance of one constraint from its target.
type gap struct {
	Constraint
	current int
	target  int
	// diff is positive for a surplus and negative for a deficit.
	diff      int
	magnitude int
	relative  float64
	order     int
}

func (g gap) satisfied() bool {
	return g.magnitude == 0
}

// measure returns the gap of every active constraint in declaration order.
// The forbidden-word pass runs after convergence and has no gap here.
func measure(r analytics.Report, cfg *config.SEOConfig) []gap {
	var gaps []gap
	add := func(c Constraint, current, target, diff, magnitude, denom int) {
		if denom < 1 {
			denom = 1
		}
		gaps = append(gaps, gap{
			Constraint: c,
			current:    current,
			target:     target,
			diff:       diff,
			magnitude:  magnitude,
			relative:   float64(magnitude) / float64(denom),
			order:      len(gaps),
		})
	}

	d := r.WholeCount - cfg.WholeCount
	add(Constraint{Kind: WholeKeyword}, r.WholeCount, cfg.WholeCount, d, abs(d), cfg.WholeCount)

	for _, p := range cfg.PieceKeys() {
		cur, tgt := r.PieceCounts[p], cfg.PieceTargets[p]
		add(Constraint{Kind: PieceKeyword, Piece: p}, cur, tgt, cur-tgt, abs(cur-tgt), tgt)
	}

	if cfg.CharCount > 0 {
		d := r.CharCount - cfg.CharCount
		add(Constraint{Kind: CharCount}, r.CharCount, cfg.CharCount, d, max(0, abs(d)-cfg.Tolerance()), cfg.CharCount)
	}

	if cfg.FirstParaDoubleKeyword {
		d := r.FirstParaWholeCount - 2
		add(Constraint{Kind: FirstParaDouble}, r.FirstParaWholeCount, 2, d, abs(d), 2)
	}

	if cfg.FirstParaTwoSentenceGap {
		var m int
		if n := r.FirstParaWholeCount; n < 2 {
			m = 2 + (2 - n)
		} else {
			m = max(0, 2-r.FirstParaGap)
		}
		add(Constraint{Kind: FirstParaGap}, r.FirstParaGap, 2, -m, m, 2)
	}

	d = r.SubKeywordCount - cfg.SubKeywordCount
	add(Constraint{Kind: SubKeywords}, r.SubKeywordCount, cfg.SubKeywordCount, d, abs(d), cfg.SubKeywordCount)

	d = r.LeadingSentenceCount - cfg.LeadingSentenceCount
	add(Constraint{Kind: LeadingSentences}, r.LeadingSentenceCount, cfg.LeadingSentenceCount, d, abs(d), cfg.LeadingSentenceCount)

	return gaps
}

// priority lists unsatisfied gaps by tier, then largest relative gap, then
// declaration order.
func priority(gaps []gap) []gap {
	var out []gap
	for _, g := range gaps {
		if !g.satisfied() {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Kind.tier(), out[j].Kind.tier()
		if ti != tj {
			return ti < tj
		}
		if out[i].relative != out[j].relative {
			return out[i].relative > out[j].relative
		}
		return out[i].order < out[j].order
	})
	return out
}

func distance(gaps []gap) float64 {
	total := 0.0
	for _, g := range gaps {
		total += g.relative
	}
	return total
}

// improves reports whether after moved constraint c closer to its target
// without pushing any satisfied constraint off target.
func improves(c Constraint, before, after []gap) bool {
	better := false
	for i, b := range before {
		a := after[i]
		if b.satisfied() && !a.satisfied() {
			return false
		}
		if b.Constraint == c && a.magnitude < b.magnitude {
			better = true
		}
	}
	return better
}

// closer reports whether after moved c toward its target and lowered the
// total distance, whatever happened to the other constraints.
func closer(c Constraint, before, after []gap) bool {
	for i, b := range before {
		if b.Constraint == c && after[i].magnitude < b.magnitude {
			return distance(after) < distance(before)
		}
	}
	return false
}

// Satisfied reports whether r meets every target of cfg.
func Satisfied(r analytics.Report, cfg config.SEOConfig) bool {
	return len(Unmet(r, cfg)) == 0
}

// Unmet lists the constraints r misses, in priority order.
func Unmet(r analytics.Report, cfg config.SEOConfig) []Constraint {
	var out []Constraint
	for _, g := range priority(measure(r, &cfg)) {
		out = append(out, g.Constraint)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Check is the state of one active constraint.
type Check struct {
	Constraint Constraint `json:"constraint"`
	Current    int        `json:"current"`
	Target     int        `json:"target"`
	OK         bool       `json:"ok"`
}

// Status lists every active constraint of cfg in declaration order.
func Status(r analytics.Report, cfg config.SEOConfig) []Check {
	gaps := measure(r, &cfg)
	out := make([]Check, len(gaps))
	for i, g := range gaps {
		out[i] = Check{Constraint: g.Constraint, Current: g.current, Target: g.target, OK: g.satisfied()}
	}
	return out
}
