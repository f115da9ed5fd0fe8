package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/varoOP/crimedb/internal/app"
	"github.com/varoOP/crimedb/internal/backfill"
	"github.com/varoOP/crimedb/internal/format"
)

const shutdownTimeout = 30 * time.Second

var queryCmd = &cobra.Command{
	Use:   "query <location>",
	Short: "Show crimes near a location for one month",
	Long: `Query prints street-level crimes within the search radius of a postcode
for one month, from the local cache when the month has been fetched before and
from the police API otherwise. Per-month counts over every cached month follow.

Unless --skip-backfill is given, query then fetches every other published month
for the location so later queries are served locally. Interrupting the backfill
keeps the months already fetched; the next run resumes from the rest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFlag(cmd)
		if err != nil {
			return err
		}
		skip, _ := cmd.Flags().GetBool("skip-backfill")

		application, _, log, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(log, application)

		month, _ := cmd.Flags().GetString("month")
		if month == "" {
			month = application.DefaultMonth().String()
		}

		result, err := application.Query(cmd.Context(), args[0], month, app.QueryOptions{SkipBackfill: skip})
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}

		if err := printResult(out, result); err != nil {
			return err
		}

		if result.Backfill == nil {
			return nil
		}

		return followBackfill(cmd.Context(), log, result.Backfill)
	},
}

func printResult(out format.Output, result *app.QueryResult) error {
	if result.Warning != "" {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", result.Warning)
	}

	if out != format.OutputTable {
		return format.Value(os.Stdout, out, result)
	}

	fmt.Printf("%s (%.6f, %.6f) %s, source: %s\n", result.LocationKey, result.Lat, result.Lng, result.Month, result.Source)
	if err := format.Incidents(os.Stdout, out, result.Records); err != nil {
		return err
	}
	fmt.Println()
	return format.Counts(os.Stdout, out, result.Counts)
}

// followBackfill prints job progress until the job ends or ctx is cancelled.
func followBackfill(ctx context.Context, log zerolog.Logger, job *backfill.Job) error {
	for {
		select {
		case p, ok := <-job.Progress():
			if !ok {
				report, err := job.Wait(context.Background())
				if err != nil && !report.Cancelled {
					return fmt.Errorf("backfill failed: %w", err)
				}
				printReport(report)
				return nil
			}
			fmt.Fprintf(os.Stderr, "Backfill %d/%d: %s fetched %d, added %d\n", p.Index, p.Total, p.Month, p.Fetched, p.Added)
		case <-ctx.Done():
			log.Info().Str("job", job.ID).Msg("Interrupted, stopping backfill")
			job.Cancel()
			report, _ := job.Wait(context.Background())
			printReport(report)
			return nil
		}
	}
}

func printReport(report backfill.Report) {
	switch {
	case report.AlreadyComplete:
		fmt.Fprintln(os.Stderr, "Backfill: every published month is already cached.")
	case report.Cancelled:
		fmt.Fprintf(os.Stderr, "Backfill cancelled after %d of %d months (%d records added).\n", report.MonthsFetched, report.Pending, report.RecordsAdded)
	default:
		fmt.Fprintf(os.Stderr, "Backfill complete: %d months, %d records added.\n", report.MonthsFetched, report.RecordsAdded)
	}
}

func outputFlag(cmd *cobra.Command) (format.Output, error) {
	raw, _ := cmd.Flags().GetString("output")
	return format.ParseOutput(raw)
}

func init() {
	queryCmd.Flags().String("month", "", "month to query as YYYY-MM (default is the previous calendar month)")
	queryCmd.Flags().Bool("skip-backfill", false, "do not fetch the remaining months for the location")
	queryCmd.Flags().StringP("output", "o", "table", "output format: 'table', 'yaml' or 'json'")
	rootCmd.AddCommand(queryCmd)
}
