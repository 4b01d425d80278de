package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/DTBbuilds/smartduka-payments/internal/bootstrap"
	"github.com/DTBbuilds/smartduka-payments/internal/classify"
	"github.com/DTBbuilds/smartduka-payments/internal/controller"
	"github.com/DTBbuilds/smartduka-payments/internal/events"
	"github.com/DTBbuilds/smartduka-payments/internal/gateway"
	"github.com/DTBbuilds/smartduka-payments/internal/infrastructure/config"
	infraRedis "github.com/DTBbuilds/smartduka-payments/internal/infrastructure/redis"
	"github.com/DTBbuilds/smartduka-payments/internal/orchestrator"
	"github.com/DTBbuilds/smartduka-payments/internal/relay"
	"github.com/DTBbuilds/smartduka-payments/internal/repository/postgres"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "pushpay-api", "pushpay")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Stores and gateway ---
	store := postgres.NewAttemptStore(app.Pool)
	gw := gateway.NewBreakerClient(buildGateway(&app.Config.Gateway))
	classifier := buildClassifier(&app.Config.Push)

	// --- Event fan-out ---
	bus := events.NewBus()
	bus.SubscribeAll(events.AuditLogger(app.Logger))
	bridge := relay.NewBridge(infraRedis.NewStreamProducer(app.Redis), app.Logger)
	bus.SubscribeAll(bridge.Handler())

	// --- Orchestrator ---
	clock := orchestrator.SystemClock()
	sched := orchestrator.NewTimerScheduler()
	orch := orchestrator.New(
		store,
		gw,
		classifier,
		bus,
		sched,
		clock,
		orchestrator.Config{
			PollInterval:       app.Config.Push.PollInterval,
			PollMaxAttempts:    app.Config.Push.PollMaxAttempts,
			PollRetryDelay:     app.Config.Push.PollRetryDelay,
			GlobalTimeout:      app.Config.Push.GlobalTimeout,
			GatewayCallTimeout: app.Config.Push.GatewayCallTimeout,
			SweepInterval:      app.Config.Push.SweepInterval,
			SweepBatchSize:     app.Config.Push.SweepBatchSize,
			StageMap:           app.Config.Push.StageMap,
		},
		app.Metrics,
		app.Logger,
	)
	defer orch.Shutdown()

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:         app.Pool,
		RedisClient:  app.Redis,
		Orchestrator: orch,
		Clock:        clock,
		Metrics:      app.Metrics,
		CORSConfig:   app.Config.Server.CORS,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. HTTP server.
	g.Go(func() error {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// 2. Expiry sweeper.
	g.Go(func() error {
		return orch.RunSweeper(gCtx)
	})

	// 3. Terminal-event bridge to Redis Streams.
	g.Go(func() error {
		return bridge.Run(gCtx)
	})

	// 4. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down server...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				app.Logger.Error().Err(err).Msg("Server forced to shutdown")
			}
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Server error")
	}
	app.Logger.Info().Msg("Server exited")
}

func buildGateway(cfg *config.GatewayConfig) gateway.Client {
	// Only the mock provider ships in-tree; real providers register here.
	return gateway.NewMockClient(
		cfg.Provider,
		gateway.WithLatency(cfg.MockLatency),
		gateway.WithPushFailureRate(cfg.MockFailureRate),
	)
}

func buildClassifier(cfg *config.PushConfig) *classify.Classifier {
	if len(cfg.ResultCodes) > 0 {
		return classify.New(cfg.ResultCodes)
	}
	return classify.Default()
}
