package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refetchCmd = &cobra.Command{
	Use:   "refetch <location>",
	Short: "Fetch one month again, replacing its cache entry",
	Long: `Refetch ignores the fetch cache for one location and month and asks the
police API again. Use it to repair a month that was cached as empty while the
API was failing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFlag(cmd)
		if err != nil {
			return err
		}

		month, _ := cmd.Flags().GetString("month")
		if month == "" {
			return fmt.Errorf("--month is required")
		}

		application, _, log, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(log, application)

		result, err := application.Refetch(cmd.Context(), args[0], month)
		if err != nil {
			return fmt.Errorf("refetch failed: %w", err)
		}

		return printResult(out, result)
	},
}

func init() {
	refetchCmd.Flags().String("month", "", "month to fetch again as YYYY-MM")
	refetchCmd.Flags().StringP("output", "o", "table", "output format: 'table', 'yaml' or 'json'")
	rootCmd.AddCommand(refetchCmd)
}
