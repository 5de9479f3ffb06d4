package config

import (
	"fmt"

	"github.com/cognicore/kwtune/pkg/kwtune/forbidden"
	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
	"github.com/cognicore/kwtune/pkg/kwtune/structure"
)

// Loader loads all configuration files and constructs components
type Loader struct {
	SEOPath       string
	ParticlesPath string
	TemplatePath  string
	ForbiddenPath string
	SettingsPath  string
}

// Components holds all loaded configuration components
type Components struct {
	SEO        *SEOConfig
	Particles  ingest.ParticleSet
	Classifier *ingest.Classifier
	Markers    structure.Markers
	Forbidden  *forbidden.Table
	Settings   Settings
}

// Load reads all configuration files and returns initialized components.
// Every path is optional; a missing path selects the built-in default.
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	// Load document targets
	if l.SEOPath != "" {
		seo, err := LoadSEOConfig(l.SEOPath)
		if err != nil {
			return nil, fmt.Errorf("load seo config: %w", err)
		}
		comp.SEO = seo
	}

	// Load particles
	if l.ParticlesPath != "" {
		set, err := LoadParticles(l.ParticlesPath)
		if err != nil {
			return nil, fmt.Errorf("load particles: %w", err)
		}
		comp.Particles = set
	} else {
		comp.Particles = ingest.DefaultParticles()
	}
	comp.Classifier = ingest.NewClassifier(comp.Particles)

	// Load structure markers
	comp.Markers = structure.DefaultMarkers()
	if l.TemplatePath != "" {
		tmpl, err := LoadTemplate(l.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("load template: %w", err)
		}
		comp.Markers = tmpl.Markers()
	}

	// Load forbidden-word table
	if l.ForbiddenPath != "" {
		table, err := forbidden.Load(l.ForbiddenPath)
		if err != nil {
			return nil, fmt.Errorf("load forbidden words: %w", err)
		}
		comp.Forbidden = table
	} else {
		comp.Forbidden = forbidden.DefaultTable()
	}

	// Load settings
	comp.Settings = DefaultSettings()
	if l.SettingsPath != "" {
		s, err := LoadSettings(l.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("load settings: %w", err)
		}
		comp.Settings = s
	}

	return comp, nil
}

// Markers converts the template file into structure markers, keeping the
// defaults for any list left empty.
func (t *Template) Markers() structure.Markers {
	m := structure.DefaultMarkers()
	if len(t.Problem) > 0 {
		m.Problem = t.Problem
	}
	if len(t.Promotional) > 0 {
		m.Promotional = t.Promotional
	}
	if len(t.Uncertainty) > 0 {
		m.Uncertainty = t.Uncertainty
	}
	if len(t.Comment) > 0 {
		m.Comment = t.Comment
	}
	if len(t.Request) > 0 {
		m.Request = t.Request
	}
	if t.Window > 0 {
		m.Window = t.Window
	}
	if len(t.CommentRequests) > 0 {
		m.Boilerplate = t.CommentRequests
	}
	return m
}
