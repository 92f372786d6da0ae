package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vaguilera/MiniTorrent/logging"
	"github.com/vaguilera/MiniTorrent/tracker"
)

var (
	trackerListen    string
	trackerRateLimit float64

	trackerCmd = &cobra.Command{
		Use:   "tracker",
		Short: "run the tracker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				cfg.Tracker.Listen = trackerListen
			}
			if cmd.Flags().Changed("rate-limit") {
				cfg.Tracker.RateLimit = trackerRateLimit
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTracker(ctx)
		},
	}
)

func init() {
	trackerCmd.Flags().StringVar(&trackerListen, "listen", "", "listen address (default from config, 0.0.0.0:5001)")
	trackerCmd.Flags().Float64Var(&trackerRateLimit, "rate-limit", 0, "requests per second per client, 0 disables")
}

func runTracker(ctx context.Context) error {
	registry := tracker.NewRegistry()
	srv := &http.Server{
		Addr:              cfg.Tracker.Listen,
		Handler:           tracker.NewServer(registry, tracker.WithRateLimit(cfg.Tracker.RateLimit, cfg.Tracker.RateBurst)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logging.Logger.Info("tracker listening", "addr", cfg.Tracker.Listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Logger.Info("shutting down tracker", "torrents", registry.Stats().Torrents)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
