package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DTBbuilds/smartduka-payments/internal/bootstrap"
	"github.com/DTBbuilds/smartduka-payments/internal/relay"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "pushpay-relay", "pushpay_relay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Config.Webhook.Endpoint == "" {
		app.Logger.Fatal().Msg("webhook.endpoint must be configured for the relay")
	}

	worker := relay.NewWorker(
		app.Redis,
		&app.Config.Webhook,
		app.Config.InstanceID,
		app.Metrics,
		app.Logger,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gCtx)
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down relay...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Relay error")
	}
	app.Logger.Info().Msg("Relay exited")
}
