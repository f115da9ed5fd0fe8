package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/varoOP/crimedb/internal/format"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the local store",
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

		stats, err := application.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}

		return format.Stats(os.Stdout, out, stats)
	},
}

func init() {
	statsCmd.Flags().StringP("output", "o", "table", "output format: 'table', 'yaml' or 'json'")
	rootCmd.AddCommand(statsCmd)
}
