package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/torosent/apicontract/internal/history"
)

func newHistoryCommand(stdout io.Writer) *cobra.Command {
	var (
		dbPath string
		limit  int
		flaky  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if flaky {
				rows, err := store.Flaky(cmd.Context(), limit)
				if err != nil {
					return err
				}
				return printFlaky(stdout, rows)
			}
			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRuns(stdout, runs)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "apicontract.db", "SQLite history database")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to inspect")
	cmd.Flags().BoolVar(&flaky, "flaky", false, "List cases whose outcome changed within the inspected runs")
	return cmd
}

func printRuns(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tBASE URL\tTOTAL\tPASSED\tFAILED\tSETUP\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.0fms\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.BaseURL,
			r.Total, r.Passed, r.Failed, r.SetupErrors, r.DurationMs)
	}
	return tw.Flush()
}

func printFlaky(w io.Writer, rows []history.FlakyCase) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No flaky cases.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CASE\tPASSED\tFAILED")
	for _, f := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", f.Name, f.Passed, f.Failed)
	}
	return tw.Flush()
}
