package events

import (
	"github.com/rs/zerolog"
)

// AuditLogger returns a global handler that records every phase change, so
// the log alone can reconstruct an attempt's full history.
func AuditLogger(log zerolog.Logger) Handler {
	audit := log.With().Str("component", "audit").Logger()
	return func(change PhaseChange) {
		audit.Info().
			Str("attempt_id", change.AttemptID.String()).
			Str("order_id", change.OrderID).
			Str("phase", string(change.Phase)).
			Str("status", string(change.Status)).
			Int("progress_percent", change.ProgressPercent).
			Bool("terminal", change.Terminal).
			Str("result_category", change.ResultCategory).
			Time("occurred_at", change.OccurredAt).
			Msg("phase change")
	}
}
