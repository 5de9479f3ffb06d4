package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cognicore/kwtune/pkg/kwtune"
)

func newOptimizeCmd(f *cliFlags) *cobra.Command {
	var (
		input   string
		output  string
		keyword string
		docID   string
		title   string
		enforce bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Edit a manuscript until the keyword targets are met",
		Long: `optimize writes the edited manuscript to --output (default stdout) and
a summary to stderr. When the targets cannot all be met the best text
found is still written and the command fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.configPath == "" {
				return errors.New("--config required")
			}
			ctx := cmd.Context()
			logger := f.logger(cmd.ErrOrStderr())
			engine, setup, cleanup, err := buildEngine(ctx, f, logger, enforce)
			if err != nil {
				return err
			}
			defer cleanup()

			text, err := readInput(input, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			req, err := setup.request(docID, keyword, text)
			if err != nil {
				return err
			}
			req.Title = title

			res, runErr := engine.Optimize(ctx, req)
			if runErr != nil && res.Text == "" {
				return runErr
			}
			if asJSON {
				err = writeJSON(cmd.OutOrStdout(), res)
			} else {
				err = writeOutput(output, cmd.OutOrStdout(), res.Text)
			}
			if err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			printSummary(cmd.ErrOrStderr(), res)
			return runErr
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Manuscript file, .txt or saved .html (default stdin)")
	cmd.Flags().StringVar(&output, "output", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&keyword, "keyword", "", "Whole keyword, overrides the config")
	cmd.Flags().StringVar(&docID, "doc-id", "", "Document id recorded in the run history")
	cmd.Flags().StringVar(&title, "title", "", "Post title recorded in the run history")
	cmd.Flags().BoolVar(&enforce, "enforce-structure", false, "Insert missing template sections before tuning")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON instead of the text")
	return cmd
}

func printSummary(w io.Writer, res kwtune.Result) {
	state := "converged"
	if !res.Converged {
		state = "not converged"
	}
	fmt.Fprintf(w, "\n--- %s: %s after %d iterations ---\n", res.Card.Title, state, res.Iterations)
	for _, b := range res.Card.Bullets {
		fmt.Fprintln(w, "  •", b)
	}
	if len(res.Hashtags) > 0 {
		tags := make([]string, len(res.Hashtags))
		for i, h := range res.Hashtags {
			tags[i] = "#" + h
		}
		fmt.Fprintln(w, "\nHashtags:", strings.Join(tags, " "))
	}
	if res.RunID != "" {
		fmt.Fprintln(w, "Run:", res.RunID)
	}
}
