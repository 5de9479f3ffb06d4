package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/kwtune/pkg/kwtune/analytics"
	"github.com/cognicore/kwtune/pkg/kwtune/optimize"
	"github.com/cognicore/kwtune/pkg/kwtune/structure"
)

var errUnmet = errors.New("targets not met")

type analyzeOutput struct {
	Keyword   string            `json:"keyword"`
	Report    analytics.Report  `json:"report"`
	Structure *structure.Result `json:"structure,omitempty"`
	Checks    []optimize.Check  `json:"checks,omitempty"`
}

func newAnalyzeCmd(f *cliFlags) *cobra.Command {
	var (
		input   string
		keyword string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Count keyword occurrences and check the post structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := f.logger(cmd.ErrOrStderr())
			engine, setup, cleanup, err := buildEngine(ctx, f, logger, false)
			if err != nil {
				return err
			}
			defer cleanup()

			text, err := readInput(input, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			req, err := setup.request("", keyword, text)
			if err != nil {
				return err
			}
			kw := req.Config.WholeKeyword
			st := engine.Structure(req.Text, kw)
			out := analyzeOutput{
				Keyword:   kw,
				Report:    engine.Analyze(req.Text, kw),
				Structure: &st,
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printAnalysis(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Manuscript file, .txt or saved .html (default stdin)")
	cmd.Flags().StringVar(&keyword, "keyword", "", "Whole keyword (default: config, then the # title line)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func newCheckCmd(f *cliFlags) *cobra.Command {
	var (
		input  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare a manuscript against the keyword targets",
		Long:  "check exits with an error when any target in --config is not met.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.configPath == "" {
				return errors.New("--config required")
			}
			ctx := cmd.Context()
			logger := f.logger(cmd.ErrOrStderr())
			engine, setup, cleanup, err := buildEngine(ctx, f, logger, false)
			if err != nil {
				return err
			}
			defer cleanup()

			text, err := readInput(input, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			req, err := setup.request("", "", text)
			if err != nil {
				return err
			}
			report, checks, err := engine.Check(req.Text, req.Config)
			if err != nil {
				return err
			}
			out := analyzeOutput{Keyword: req.Config.WholeKeyword, Report: report, Checks: checks}
			if asJSON {
				err = writeJSON(cmd.OutOrStdout(), out)
			} else {
				printChecks(cmd.OutOrStdout(), checks)
			}
			if err != nil {
				return err
			}
			for _, c := range checks {
				if !c.OK {
					return errUnmet
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Manuscript file, .txt or saved .html (default stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the checks as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAnalysis(w io.Writer, out analyzeOutput) {
	r := out.Report
	fmt.Fprintf(w, "Keyword: %s\n", out.Keyword)
	fmt.Fprintf(w, "  Whole keyword: %d\n", r.WholeCount)
	pieces := make([]string, 0, len(r.PieceCounts))
	for p := range r.PieceCounts {
		pieces = append(pieces, p)
	}
	sort.Strings(pieces)
	for _, p := range pieces {
		fmt.Fprintf(w, "  Piece %s: %d\n", p, r.PieceCounts[p])
	}
	fmt.Fprintf(w, "  Characters: %d\n", r.CharCount)
	fmt.Fprintf(w, "  Sub keywords: %d\n", r.SubKeywordCount)
	fmt.Fprintf(w, "  Sentences starting with keyword: %d\n", r.LeadingSentenceCount)
	fmt.Fprintf(w, "  First paragraph: %d mentions, gap %d\n", r.FirstParaWholeCount, r.FirstParaGap)

	if len(r.Blockers) > 0 {
		fmt.Fprintln(w, "\nBlocked by particles:")
		for _, o := range r.Blockers {
			fmt.Fprintf(w, "  - %s+%s (%s) at %d:%d\n", o.Keyword, o.Suffix, o.Class, o.Paragraph, o.Sentence)
		}
	}
	if len(r.Ambiguous) > 0 {
		fmt.Fprintln(w, "\nAmbiguous:")
		for _, o := range r.Ambiguous {
			fmt.Fprintf(w, "  - %s+%s at %d:%d\n", o.Keyword, o.Suffix, o.Paragraph, o.Sentence)
		}
	}
	if out.Structure != nil {
		if out.Structure.OK {
			fmt.Fprintln(w, "\nStructure: ok")
		} else {
			missing := make([]string, len(out.Structure.Missing))
			for i, s := range out.Structure.Missing {
				missing[i] = s.String()
			}
			fmt.Fprintf(w, "\nStructure: missing %s\n", strings.Join(missing, ", "))
		}
	}
}

func printChecks(w io.Writer, checks []optimize.Check) {
	for _, c := range checks {
		state := "ok"
		if !c.OK {
			state = "unmet"
		}
		fmt.Fprintf(w, "%-32s %5d / %-5d %s\n", c.Constraint, c.Current, c.Target, state)
	}
}
