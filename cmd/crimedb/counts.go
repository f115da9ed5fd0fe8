package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/varoOP/crimedb/internal/domain"
	"github.com/varoOP/crimedb/internal/format"
)

var countsCmd = &cobra.Command{
	Use:   "counts <location>",
	Short: "Show stored crime counts per cached month",
	Long: `Counts prints the number of stored crimes near a location for every month
in its fetch cache, including months with no crimes. Nothing is fetched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFlag(cmd)
		if err != nil {
			return err
		}

		var current domain.Month
		if raw, _ := cmd.Flags().GetString("month"); raw != "" {
			if current, err = domain.ParseMonth(raw); err != nil {
				return err
			}
		}

		application, _, log, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(log, application)

		result, err := application.Counts(cmd.Context(), args[0], current)
		if err != nil {
			return fmt.Errorf("counts failed: %w", err)
		}

		if out != format.OutputTable {
			return format.Value(os.Stdout, out, result)
		}
		return format.Counts(os.Stdout, out, result.Counts)
	},
}

func init() {
	countsCmd.Flags().String("month", "", "month to mark as current, as YYYY-MM")
	countsCmd.Flags().StringP("output", "o", "table", "output format: 'table', 'yaml' or 'json'")
	rootCmd.AddCommand(countsCmd)
}
