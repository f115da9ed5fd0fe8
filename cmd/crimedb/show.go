package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/varoOP/crimedb/internal/format"
)

var showCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print crimes from a file written by export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := outputFlag(cmd)
		if err != nil {
			return err
		}

		application, _, log, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(log, application)

		records, err := application.ReadExport(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("show failed: %w", err)
		}

		return format.Incidents(os.Stdout, out, records)
	},
}

func init() {
	showCmd.Flags().StringP("output", "o", "table", "output format: 'table', 'yaml' or 'json'")
	rootCmd.AddCommand(showCmd)
}
