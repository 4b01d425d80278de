// Package relay moves terminal attempt outcomes out of the process: a bridge
// copies them from the in-process event bus onto a Redis stream, and a worker
// consumes the stream to deliver merchant webhooks.
package relay

import (
	"context"
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/events"
	redisx "github.com/DTBbuilds/smartduka-payments/internal/infrastructure/redis"
	"github.com/rs/zerolog"
)

// Bridge forwards terminal phase changes to the Redis phase-event stream.
// Bus handlers must not block, so the handler only enqueues; Run drains the
// queue and does the actual stream writes.
type Bridge struct {
	producer *redisx.StreamProducer
	log      zerolog.Logger
	queue    chan events.PhaseChange
}

func NewBridge(producer *redisx.StreamProducer, log zerolog.Logger) *Bridge {
	return &Bridge{
		producer: producer,
		log:      log.With().Str("component", "event-bridge").Logger(),
		queue:    make(chan events.PhaseChange, 256),
	}
}

// Handler returns the bus handler. Non-terminal changes stay in-process;
// only final outcomes are worth a webhook.
func (b *Bridge) Handler() events.Handler {
	return func(change events.PhaseChange) {
		if !change.Terminal {
			return
		}
		select {
		case b.queue <- change:
		default:
			b.log.Warn().
				Str("attempt_id", change.AttemptID.String()).
				Msg("event bridge queue full, dropping terminal event")
		}
	}
}

// Run publishes queued changes until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change := <-b.queue:
			data := map[string]any{
				"order_id":        change.OrderID,
				"status":          string(change.Status),
				"result_category": change.ResultCategory,
				"occurred_at":     change.OccurredAt.Format(time.RFC3339),
			}
			err := b.producer.PublishPhaseEvent(ctx, change.AttemptID.String(), string(change.Phase), data)
			if err != nil {
				b.log.Error().Err(err).
					Str("attempt_id", change.AttemptID.String()).
					Msg("failed to publish terminal event to stream")
			}
		}
	}
}
