package ingest

import (
	"sort"
	"strings"
)

// Class is the boundary classification of a token that starts with a keyword.
type Class int

const (
	// NoMatch means the token does not start with the keyword at all.
	NoMatch Class = iota
	// Exact means the keyword ends at the token boundary and counts.
	Exact
	// Single means a one-syllable particle is glued to the keyword.
	Single
	// Multi means a longer particle is glued to the keyword.
	Multi
	// Other means an unrecognised suffix follows the keyword.
	Other
)

func (c Class) String() string {
	switch c {
	case Exact:
		return "exact"
	case Single:
		return "single"
	case Multi:
		return "multi"
	case Other:
		return "other"
	default:
		return "none"
	}
}

// trailingPunct is stripped from a suffix before the single-particle lookup,
// so "추천을." still reads as a single particle.
const trailingPunct = `.,!?;:~^"')]}”’`

var (
	defaultSingle = []string{"를", "을", "가", "이", "는", "은", "에", "의", "도", "만", "와", "과", "로"}
	defaultMulti  = []string{
		"으로", "에서", "부터", "까지", "에게", "한테", "보다", "마저", "조차",
		"이나", "이며", "이라", "처럼", "같이", "마다", "라는", "이란",
		"이든", "라도", "라고", "라면",
	}
)

// ParticleSet is an immutable pair of particle lists.
type ParticleSet struct {
	single map[string]struct{}
	multi  []string // longest first
}

// NewParticleSet builds a particle set. Blank entries are ignored.
func NewParticleSet(single, multi []string) ParticleSet {
	set := ParticleSet{single: make(map[string]struct{}, len(single))}
	for _, p := range single {
		if p = strings.TrimSpace(p); p != "" {
			set.single[p] = struct{}{}
		}
	}
	seen := make(map[string]struct{}, len(multi))
	for _, p := range multi {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		set.multi = append(set.multi, p)
	}
	sort.SliceStable(set.multi, func(i, j int) bool {
		return len(set.multi[i]) > len(set.multi[j])
	})
	return set
}

// DefaultParticles returns the built-in Korean particle lists.
func DefaultParticles() ParticleSet {
	return NewParticleSet(defaultSingle, defaultMulti)
}

// Single returns the single particles in sorted order.
func (p ParticleSet) Single() []string {
	out := make([]string, 0, len(p.single))
	for s := range p.single {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Multi returns the multi particles, longest first.
func (p ParticleSet) Multi() []string {
	return append([]string(nil), p.multi...)
}

// Classifier decides whether a keyword occurrence counts. It holds no
// mutable state and is safe to share between pipelines.
type Classifier struct {
	particles ParticleSet
}

// NewClassifier creates a classifier over the given particle set.
func NewClassifier(particles ParticleSet) *Classifier {
	return &Classifier{particles: particles}
}

// Classify inspects what follows keyword inside token.
func (c *Classifier) Classify(token, keyword string) Class {
	if keyword == "" || !strings.HasPrefix(token, keyword) {
		return NoMatch
	}
	suffix := token[len(keyword):]
	if suffix == "" {
		return Exact
	}
	if trimmed := strings.TrimRight(suffix, trailingPunct); trimmed != "" {
		if _, ok := c.particles.single[trimmed]; ok {
			return Single
		}
	}
	for _, m := range c.particles.multi {
		if strings.HasPrefix(suffix, m) {
			return Multi
		}
	}
	return Other
}

// Terminal reports whether suffix is nothing but sentence-closing
// punctuation, as in "추천." at the end of a sentence.
func Terminal(suffix string) bool {
	return suffix != "" && strings.TrimRight(suffix, trailingPunct) == ""
}

// Suffix returns the part of token after keyword, or "" if token does not
// start with keyword.
func Suffix(token, keyword string) string {
	if !strings.HasPrefix(token, keyword) {
		return ""
	}
	return token[len(keyword):]
}
