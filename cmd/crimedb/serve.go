package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/varoOP/crimedb/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query API over HTTP",
	Long: `Serve exposes crime queries, per-month counts and backfill jobs as a JSON
API, with /healthz, /readyz and /metrics for operation. It stops on SIGINT or
SIGTERM, draining requests and cancelling running backfills.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, cfg, log, err := openApp()
		if err != nil {
			return err
		}
		defer closeApp(log, application)

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = cfg.HTTPAddr
		}

		srv := server.New(log, addr, application)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-cmd.Context().Done():
		}

		log.Info().Msg("Shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from http_addr)")
	rootCmd.AddCommand(serveCmd)
}
