package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/infrastructure/config"
	"github.com/DTBbuilds/smartduka-payments/internal/infrastructure/observability"
	redisx "github.com/DTBbuilds/smartduka-payments/internal/infrastructure/redis"
	"github.com/DTBbuilds/smartduka-payments/pkg/retry"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// webhookPayload is the body POSTed to the merchant endpoint.
type webhookPayload struct {
	AttemptID string          `json:"attempt_id"`
	Phase     string          `json:"phase"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Worker consumes the phase-event stream and delivers webhooks to the
// configured merchant endpoint. A per-message distributed lock keeps
// multiple relay instances from double-delivering; undeliverable messages
// are parked on the DLQ stream and acked so the group keeps moving.
type Worker struct {
	consumer *redisx.StreamConsumer
	producer *redisx.StreamProducer
	rdb      *redis.Client
	cfg      *config.WebhookConfig
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[int]
	metrics  *observability.Metrics
	log      zerolog.Logger
}

func NewWorker(
	rdb *redis.Client,
	cfg *config.WebhookConfig,
	instanceID string,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	consumer := redisx.NewStreamConsumer(
		rdb,
		redisx.PhaseEventStream,
		cfg.ConsumerGroup,
		instanceID,
		cfg.BatchSize,
		cfg.BlockDuration,
	)
	breaker := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "webhook-endpoint",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.6
		},
	})
	return &Worker{
		consumer: consumer,
		producer: redisx.NewStreamProducer(rdb),
		rdb:      rdb,
		cfg:      cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		breaker:  breaker,
		metrics:  metrics,
		log:      log.With().Str("component", "webhook-relay").Logger(),
	}
}

// Run consumes the stream until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.consumer.CreateGroup(ctx); err != nil {
		return err
	}
	w.log.Info().Str("endpoint", w.cfg.Endpoint).Msg("webhook relay started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := w.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error().Err(err).Msg("stream read failed")
			time.Sleep(time.Second)
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				w.process(ctx, msg)
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, msg redis.XMessage) {
	lock := redisx.NewDistributedLock(w.rdb, "webhook:"+msg.ID, w.cfg.LockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		w.log.Error().Err(err).Str("message_id", msg.ID).Msg("lock acquisition failed")
		return
	}
	if !acquired {
		// Another relay instance owns this message.
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			w.log.Debug().Err(err).Str("message_id", msg.ID).Msg("lock release failed")
		}
	}()

	attemptID, _ := msg.Values["attempt_id"].(string)
	phase, _ := msg.Values["phase"].(string)
	rawData, _ := msg.Values["payload"].(string)

	start := time.Now()
	err = retry.Do(ctx, retry.Config{
		MaxAttempts:  w.cfg.MaxAttempts,
		InitialDelay: w.cfg.RetryDelay,
		MaxDelay:     w.cfg.LockTTL / 2,
		OnRetry: func(n uint, err error) {
			w.log.Warn().Err(err).
				Str("attempt_id", attemptID).
				Uint("delivery_retry", n).
				Msg("webhook delivery failed, retrying")
		},
	}, func() error {
		return w.deliver(ctx, attemptID, phase, rawData)
	})
	if w.metrics != nil {
		w.metrics.RelayDeliveryDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", attemptID).
			Str("message_id", msg.ID).
			Msg("webhook delivery exhausted retries, parking on DLQ")
		if w.metrics != nil {
			w.metrics.RelayDeliveries.WithLabelValues("dead_lettered").Inc()
		}
		dlqErr := w.producer.PublishToDLQ(ctx, attemptID, err.Error(), map[string]any{
			"phase":   phase,
			"payload": rawData,
		})
		if dlqErr != nil {
			w.log.Error().Err(dlqErr).Str("message_id", msg.ID).Msg("DLQ publish failed, leaving message pending")
			return
		}
	} else if w.metrics != nil {
		w.metrics.RelayDeliveries.WithLabelValues("delivered").Inc()
	}

	if err := w.consumer.Ack(ctx, msg.ID); err != nil {
		w.log.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
	}
}

func (w *Worker) deliver(ctx context.Context, attemptID, phase, rawData string) error {
	body, err := json.Marshal(webhookPayload{
		AttemptID: attemptID,
		Phase:     phase,
		Data:      json.RawMessage(rawData),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	status, err := w.breaker.Execute(func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		if resp.StatusCode >= 500 {
			return resp.StatusCode, fmt.Errorf("endpoint returned %d", resp.StatusCode)
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return err
	}
	if status >= 400 {
		// 4xx means the endpoint rejected the payload; retrying won't help.
		return retry.Unrecoverable(fmt.Errorf("endpoint rejected webhook with %d", status))
	}
	return nil
}
