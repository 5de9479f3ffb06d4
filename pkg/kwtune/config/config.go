package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
	"github.com/cognicore/kwtune/pkg/kwtune/internalerr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SEOConfig holds the eight targets for one document. Field names on the
// wire follow the spreadsheet columns the targets are usually exported from.
type SEOConfig struct {
	WholeKeyword string         `yaml:"whole_keyword" json:"whole_keyword" validate:"required"`
	WholeCount   int            `yaml:"whole_keyword_count" json:"whole_keyword_count" validate:"gte=0"`
	PieceTargets map[string]int `yaml:"piece_keywords" json:"piece_keywords,omitempty" validate:"omitempty,dive,keys,required,endkeys,gte=0"`

	// CharCount is the target length in runes; 0 leaves length free.
	CharCount int `yaml:"char_count" json:"char_count" validate:"gte=0"`
	// CharTolerance is the accepted distance from CharCount. Nil means 10%
	// of CharCount, 0 means exact.
	CharTolerance *int `yaml:"char_tolerance,omitempty" json:"char_tolerance,omitempty" validate:"omitempty,gte=0"`

	ApplyForbiddenWords     bool `yaml:"apply_forbidden_words" json:"apply_forbidden_words"`
	FirstParaDoubleKeyword  bool `yaml:"first_para_keyword_twice" json:"first_para_keyword_twice"`
	FirstParaTwoSentenceGap bool `yaml:"first_para_two_sentences_between" json:"first_para_two_sentences_between"`

	SubKeywordCount      int `yaml:"sub_keyword_count" json:"sub_keyword_count" validate:"gte=0"`
	LeadingSentenceCount int `yaml:"sentences_start_with_keyword" json:"sentences_start_with_keyword" validate:"gte=0"`
}

// Validate checks field ranges and that every piece target names a piece of
// the whole keyword.
func (c *SEOConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	tax := c.Taxonomy()
	if len(tax.Words) == 0 {
		return fmt.Errorf("%w: whole keyword is blank", internalerr.ErrInvalidConfig)
	}
	if len(c.PieceTargets) > 0 && len(tax.Pieces) == 0 {
		return fmt.Errorf("%w: %q is a single word and has no piece keywords", internalerr.ErrInvalidConfig, tax.Whole)
	}
	for _, piece := range c.PieceKeys() {
		if !tax.IsPiece(piece) {
			return fmt.Errorf("%w: %q is not a word of %q", internalerr.ErrInvalidConfig, piece, tax.Whole)
		}
	}
	return nil
}

// Taxonomy derives the keyword taxonomy.
func (c *SEOConfig) Taxonomy() ingest.Taxonomy {
	return ingest.NewTaxonomy(c.WholeKeyword)
}

// PieceKeys returns the constrained pieces in keyword order; keys that are
// not pieces follow, sorted.
func (c *SEOConfig) PieceKeys() []string {
	if len(c.PieceTargets) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.PieceTargets))
	seen := make(map[string]struct{}, len(c.PieceTargets))
	for _, p := range c.Taxonomy().Pieces {
		if _, ok := c.PieceTargets[p]; ok {
			out = append(out, p)
			seen[p] = struct{}{}
		}
	}
	var rest []string
	for k := range c.PieceTargets {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// Tolerance returns the accepted character-count distance.
func (c *SEOConfig) Tolerance() int {
	if c.CharTolerance != nil {
		return *c.CharTolerance
	}
	return c.CharCount / 10
}

// LoadSEOConfig loads a document configuration from a YAML (or JSON) file.
func LoadSEOConfig(path string) (*SEOConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg SEOConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.WholeKeyword = strings.Join(strings.Fields(cfg.WholeKeyword), " ")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Particles represents the particle list configuration
type Particles struct {
	Single []string `yaml:"single"`
	Multi  []string `yaml:"multi"`
}

// LoadParticles loads particle lists from a YAML file. An empty list keeps
// the built-in default for that class.
func LoadParticles(path string) (ingest.ParticleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ingest.ParticleSet{}, err
	}

	var p Particles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return ingest.ParticleSet{}, err
	}

	defaults := ingest.DefaultParticles()
	if len(p.Single) == 0 {
		p.Single = defaults.Single()
	}
	if len(p.Multi) == 0 {
		p.Multi = defaults.Multi()
	}
	return ingest.NewParticleSet(p.Single, p.Multi), nil
}

// Template represents the structure marker configuration
type Template struct {
	Problem         []string `yaml:"problem"`
	Promotional     []string `yaml:"promotional"`
	Uncertainty     []string `yaml:"uncertainty"`
	Comment         []string `yaml:"comment"`
	Request         []string `yaml:"request"`
	Window          int      `yaml:"window" validate:"gte=0"`
	CommentRequests []string `yaml:"comment_requests"`
}

// LoadTemplate loads structure markers from a YAML file
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if err := validate.Struct(&t); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}

	return &t, nil
}

// Settings are the engine-wide policy knobs.
type Settings struct {
	// MaxIterations bounds the optimizer loop.
	MaxIterations int `yaml:"max_iterations" validate:"gte=1"`
	// RepairAttempts bounds candidate validation per rewritten sentence.
	RepairAttempts int `yaml:"repair_attempts" validate:"gte=1"`
	// RetryAttempts bounds collaborator calls per request.
	RetryAttempts int           `yaml:"retry_attempts" validate:"gte=1"`
	CallTimeout   time.Duration `yaml:"call_timeout" validate:"gte=0"`
	BackoffBase   time.Duration `yaml:"backoff_base" validate:"gte=0"`
	MaxBackoff    time.Duration `yaml:"max_backoff" validate:"gte=0"`
	// NaturalSentenceRunes is the shortest length a natural sentence
	// carrying one keyword mention is assumed to have.
	NaturalSentenceRunes int     `yaml:"natural_sentence_runes" validate:"gte=1"`
	RequestsPerSecond    float64 `yaml:"requests_per_second" validate:"gte=0"`
	Workers              int     `yaml:"workers" validate:"gte=1"`
}

// DefaultSettings returns the built-in policy.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:        300,
		RepairAttempts:       3,
		RetryAttempts:        3,
		CallTimeout:          30 * time.Second,
		BackoffBase:          500 * time.Millisecond,
		MaxBackoff:           10 * time.Second,
		NaturalSentenceRunes: 30,
		RequestsPerSecond:    0,
		Workers:              4,
	}
}

// Validate checks ranges.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return nil
}

// LoadSettings loads settings from a YAML file. Missing keys keep their
// defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, err
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
