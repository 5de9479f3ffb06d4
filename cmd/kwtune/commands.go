package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// cliFlags holds the flags shared by every subcommand.
type cliFlags struct {
	configPath    string
	particlesPath string
	templatePath  string
	forbiddenPath string
	settingsPath  string
	dbPath        string

	llmBase  string
	llmModel string
	llmKey   string

	rps       float64
	logFormat string
	verbose   bool
}

func newRootCmd() *cobra.Command {
	f := &cliFlags{}
	root := &cobra.Command{
		Use:   "kwtune",
		Short: "Tune keyword density in Korean blog manuscripts",
		Long: `kwtune counts how often a keyword appears in a Korean manuscript,
taking attached particles into account, and edits the text until the
configured keyword targets are met.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Keyword target file (YAML)")
	pf.StringVar(&f.particlesPath, "particles", "", "Particle list file (optional)")
	pf.StringVar(&f.templatePath, "template", "", "Structure template file (optional)")
	pf.StringVar(&f.forbiddenPath, "forbidden", "", "Forbidden word table, YAML or text (optional)")
	pf.StringVar(&f.settingsPath, "settings", "", "Engine settings file (optional)")
	pf.StringVar(&f.dbPath, "db", "", "SQLite run history path (optional)")
	pf.StringVar(&f.llmBase, "llm-base", os.Getenv("KWTUNE_LLM_BASE"), "OpenAI-compatible API base URL")
	pf.StringVar(&f.llmModel, "llm-model", os.Getenv("KWTUNE_LLM_MODEL"), "Rewrite model; empty disables sentence rewriting")
	pf.StringVar(&f.llmKey, "llm-key", os.Getenv("KWTUNE_LLM_KEY"), "API key for the rewrite model")
	pf.Float64Var(&f.rps, "rps", 0, "Rewrite requests per second, overrides settings (0 keeps settings)")
	pf.StringVar(&f.logFormat, "log-format", "text", "Log format: text or json")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Log every optimizer edit")

	root.AddCommand(
		newAnalyzeCmd(f),
		newCheckCmd(f),
		newOptimizeCmd(f),
		newBatchCmd(f),
		newHistoryCmd(f),
	)
	return root
}

func (f *cliFlags) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(f.logFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
