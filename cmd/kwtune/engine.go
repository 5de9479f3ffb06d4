package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cognicore/kwtune/internal/batch"
	"github.com/cognicore/kwtune/internal/llm"
	"github.com/cognicore/kwtune/pkg/kwtune"
	"github.com/cognicore/kwtune/pkg/kwtune/config"
	"github.com/cognicore/kwtune/pkg/kwtune/ingest"
	"github.com/cognicore/kwtune/pkg/kwtune/metrics"
	"github.com/cognicore/kwtune/pkg/kwtune/store"
	"github.com/cognicore/kwtune/pkg/kwtune/store/sqlite"
)

// engineSetup carries what buildEngine assembled besides the engine itself.
type engineSetup struct {
	comp     *config.Components
	registry *prometheus.Registry
}

func buildEngine(ctx context.Context, f *cliFlags, logger *slog.Logger, enforce bool) (*kwtune.Engine, *engineSetup, func(), error) {
	loader := config.Loader{
		SEOPath:       f.configPath,
		ParticlesPath: f.particlesPath,
		TemplatePath:  f.templatePath,
		ForbiddenPath: f.forbiddenPath,
		SettingsPath:  f.settingsPath,
	}
	comp, err := loader.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	settings := comp.Settings
	if f.rps > 0 {
		settings.RequestsPerSecond = f.rps
	}

	opts := kwtune.Options{
		Classifier:       comp.Classifier,
		Markers:          &comp.Markers,
		Settings:         settings,
		Logger:           logger,
		EnforceStructure: enforce,
	}
	if comp.Forbidden != nil {
		opts.Substituter = comp.Forbidden
	}

	if f.llmModel != "" {
		client, err := llm.New(llm.Config{
			BaseURL: f.llmBase,
			APIKey:  f.llmKey,
			Model:   f.llmModel,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("llm client: %w", err)
		}
		opts.Rewriter = client
	}

	var st store.Store
	if f.dbPath != "" {
		st, err = sqlite.OpenSQLite(ctx, f.dbPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open db: %w", err)
		}
		opts.Store = st
	}

	reg := prometheus.NewRegistry()
	opts.Metrics = metrics.NewRecorder(reg)

	engine := kwtune.New(opts)
	cleanup := func() {
		if err := engine.Close(); err != nil {
			logger.Warn("close engine", "error", err)
		}
	}
	return engine, &engineSetup{comp: comp, registry: reg}, cleanup, nil
}

// baseConfig is the target file, or an empty config when none was given so
// that per-document keywords can still be analyzed.
func (s *engineSetup) baseConfig() config.SEOConfig {
	if s.comp.SEO == nil {
		return config.SEOConfig{}
	}
	return *s.comp.SEO
}

// request resolves the keyword of a single manuscript the same way batch
// items are resolved.
func (s *engineSetup) request(id, keyword, text string) (kwtune.Request, error) {
	return batch.Item{ID: id, Keyword: keyword, Text: text}.Request(s.baseConfig())
}

// readInput reads a manuscript from path, or stdin for "" and "-". Saved
// HTML pages are reduced to their text.
func readInput(path string, stdin io.Reader) (string, error) {
	var r io.Reader = stdin
	if path != "" && path != "-" {
		fh, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer fh.Close()
		r = fh
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		return ingest.ExtractText(r, "text/html")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// writeOutput writes text to path, or to w for "" and "-".
func writeOutput(path string, w io.Writer, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if path == "" || path == "-" {
		_, err := io.WriteString(w, text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}
