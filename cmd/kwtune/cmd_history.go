package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cognicore/kwtune/pkg/kwtune/store"
	"github.com/cognicore/kwtune/pkg/kwtune/store/sqlite"
)

func newHistoryCmd(f *cliFlags) *cobra.Command {
	var (
		filter store.Filter
		show   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded optimization runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.dbPath == "" {
				return errors.New("--db required")
			}
			ctx := cmd.Context()
			st, err := sqlite.OpenSQLite(ctx, f.dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer st.Close()

			if show != "" {
				run, err := st.GetRun(ctx, show)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), run)
				}
				return writeOutput("", cmd.OutOrStdout(), run.Output)
			}

			runs, err := st.ListRuns(ctx, filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tKEYWORD\tDOC\tITER\tSTATE")
			for _, r := range runs {
				state := "converged"
				switch {
				case r.Error != "":
					state = r.Error
				case !r.Converged:
					state = "not converged"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Keyword, r.DocID, r.Iterations, state)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Keyword, "keyword", "", "Only runs for this whole keyword")
	cmd.Flags().StringVar(&filter.DocID, "doc-id", "", "Only runs for this document")
	cmd.Flags().BoolVar(&filter.OnlyFailed, "failed", false, "Only runs that did not converge")
	cmd.Flags().IntVar(&filter.Limit, "limit", store.DefaultListLimit, "Maximum runs to list")
	cmd.Flags().StringVar(&show, "show", "", "Print the output text of one run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}
