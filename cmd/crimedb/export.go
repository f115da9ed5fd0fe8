package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <location>",
	Short: "Write one month of crimes near a location to a file",
	Long: `Export queries a location and month like query does, without starting a
backfill, and writes the records to --out. Files ending in .yaml or .yml are
written as YAML, anything else as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("out")
		if path == "" {
			return fmt.Errorf("--out is required")
		}

		application, _, log, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(log, application)

		month, _ := cmd.Flags().GetString("month")
		if month == "" {
			month = application.DefaultMonth().String()
		}

		result, err := application.Export(cmd.Context(), args[0], month, path)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		log.Info().
			Str("path", path).
			Int("records", len(result.Records)).
			Str("source", string(result.Source)).
			Msg("Exported crimes")

		return nil
	},
}

func init() {
	exportCmd.Flags().String("month", "", "month to export as YYYY-MM (default is the previous calendar month)")
	exportCmd.Flags().String("out", "", "file to write")
	rootCmd.AddCommand(exportCmd)
}
