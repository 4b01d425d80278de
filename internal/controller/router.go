package controller

import (
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/infrastructure/config"
	"github.com/DTBbuilds/smartduka-payments/internal/infrastructure/observability"
	customMW "github.com/DTBbuilds/smartduka-payments/internal/middleware"
	"github.com/DTBbuilds/smartduka-payments/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type RouterDeps struct {
	Pool         *pgxpool.Pool
	RedisClient  *redis.Client
	Orchestrator *orchestrator.Orchestrator
	Clock        orchestrator.Clock
	Metrics      *observability.Metrics
	CORSConfig   config.CORSConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	pushH := NewPushController(deps.Orchestrator, deps.Clock)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Push payments
		r.Post("/push-payments", pushH.Create)
		r.Get("/push-payments/{id}", pushH.Get)
		r.Post("/push-payments/{id}/cancel", pushH.Cancel)

		// Per-order history and retry
		r.Get("/orders/{orderID}/push-payments", pushH.ListForOrder)
		r.Post("/orders/{orderID}/push-payments/retry", pushH.Retry)
	})

	return r
}
