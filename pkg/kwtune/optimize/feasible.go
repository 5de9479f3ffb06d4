package optimize

import (
	"fmt"

	"github.com/cognicore/kwtune/pkg/kwtune/config"
)

// DefaultNaturalSentenceRunes is the assumed length of the shortest natural
// sentence that carries one keyword mention.
const DefaultNaturalSentenceRunes = 30

// minSubKeywordRunes is the least text one sub-keyword costs: two
// occurrences of a two-rune unit.
const minSubKeywordRunes = 4

// CheckFeasible rejects targets that contradict each other or cannot fit in
// the character budget at natural sentence density.
func CheckFeasible(cfg config.SEOConfig, naturalRunes int) error {
	if naturalRunes <= 0 {
		naturalRunes = DefaultNaturalSentenceRunes
	}

	for _, p := range cfg.PieceKeys() {
		if cfg.PieceTargets[p] < cfg.WholeCount {
			return &UnattainableError{
				Constraint: Constraint{Kind: PieceKeyword, Piece: p},
				Reason: fmt.Sprintf("every whole keyword mention also counts as %q, so %d is below the whole target %d",
					p, cfg.PieceTargets[p], cfg.WholeCount),
			}
		}
	}

	if cfg.LeadingSentenceCount > cfg.WholeCount {
		return &UnattainableError{
			Constraint: Constraint{Kind: LeadingSentences},
			Reason:     fmt.Sprintf("%d leading sentences need more than %d whole keyword mentions", cfg.LeadingSentenceCount, cfg.WholeCount),
		}
	}

	if cfg.FirstParaDoubleKeyword && cfg.WholeCount < 2 {
		return &UnattainableError{
			Constraint: Constraint{Kind: FirstParaDouble},
			Reason:     fmt.Sprintf("two first-paragraph mentions need a whole target of at least 2, got %d", cfg.WholeCount),
		}
	}
	if cfg.FirstParaTwoSentenceGap && cfg.WholeCount < 2 {
		return &UnattainableError{
			Constraint: Constraint{Kind: FirstParaGap},
			Reason:     fmt.Sprintf("a gap between two mentions needs a whole target of at least 2, got %d", cfg.WholeCount),
		}
	}

	if cfg.CharCount == 0 {
		return nil
	}
	budget := cfg.CharCount + cfg.Tolerance()

	sentences := cfg.WholeCount
	for _, p := range cfg.PieceKeys() {
		sentences += max(0, cfg.PieceTargets[p]-cfg.WholeCount)
	}
	if cfg.FirstParaTwoSentenceGap {
		sentences += 2
	}
	if need := sentences * naturalRunes; need > budget {
		return &UnattainableError{
			Constraint: Constraint{Kind: CharCount},
			Reason: fmt.Sprintf("%d keyword sentences need about %d characters, more than the %d available",
				sentences, need, budget),
		}
	}

	if need := cfg.SubKeywordCount * minSubKeywordRunes; need > budget {
		return &UnattainableError{
			Constraint: Constraint{Kind: SubKeywords},
			Reason:     fmt.Sprintf("%d sub-keywords need at least %d characters, more than the %d available", cfg.SubKeywordCount, need, budget),
		}
	}
	return nil
}
