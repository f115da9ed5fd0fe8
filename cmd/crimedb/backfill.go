package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill <location>",
	Short: "Fetch every published month not yet cached for a location",
	Long: `Backfill walks from the oldest month the police API publishes up to the
most recent one and fetches each month not already in the fetch cache for the
location. Each month is committed on its own, so an interrupted backfill can be
resumed by running the command again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, _, log, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(log, application)

		job, err := application.Backfill(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}

		return followBackfill(cmd.Context(), log, job)
	},
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}
