package controller

import (
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/classify"
	"github.com/DTBbuilds/smartduka-payments/internal/domain/attempt"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (float64 for money, string for IDs,
// validation tags). Controllers convert them before calling the orchestrator.

// CreatePushPaymentRequest holds the input for initiating a push payment.
type CreatePushPaymentRequest struct {
	OrderID     string  `json:"order_id" validate:"required,max=64"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Currency    string  `json:"currency" validate:"required,len=3"`
	PayerPhone  string  `json:"payer_phone" validate:"required,min=9,max=15"`
	Description string  `json:"description" validate:"omitempty,max=200"`
}

// RetryPushPaymentRequest holds the input for retrying an order. The payer
// phone must be resubmitted because only a masked form is ever stored.
type RetryPushPaymentRequest struct {
	PayerPhone string `json:"payer_phone" validate:"required,min=9,max=15"`
}

// --- Response DTOs ---

// AttemptResponse represents a payment attempt in API responses.
type AttemptResponse struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"order_id"`
	AttemptNumber    int        `json:"attempt_number"`
	Amount           float64    `json:"amount"`
	Currency         string     `json:"currency"`
	PayerPhone       string     `json:"payer_phone"`
	Phase            string     `json:"phase"`
	Status           string     `json:"status"`
	ProgressPercent  int        `json:"progress_percent"`
	EtaSeconds       int        `json:"eta_seconds"`
	GatewayReference *string    `json:"gateway_reference,omitempty"`
	ResultCode       *string    `json:"result_code,omitempty"`
	ResultCategory   *string    `json:"result_category,omitempty"`
	UserMessage      *string    `json:"user_message,omitempty"`
	SuggestedAction  *string    `json:"suggested_action,omitempty"`
	Retryable        *bool      `json:"retryable,omitempty"`
	Version          int        `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	TerminalAt       *time.Time `json:"terminal_at,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromAttempt converts a domain attempt to an API response. The user-facing
// message and suggested action come from the result category's profile; the
// gateway's raw message never leaves the server.
func FromAttempt(a *attempt.Attempt, now time.Time) *AttemptResponse {
	resp := &AttemptResponse{
		ID:               a.ID.String(),
		OrderID:          a.OrderID,
		AttemptNumber:    a.AttemptNumber,
		Amount:           centsToFloat(a.Amount.ValueCents),
		Currency:         a.Amount.Currency,
		PayerPhone:       a.PayerPhoneMasked,
		Phase:            string(a.Phase),
		Status:           string(a.Status),
		ProgressPercent:  a.Phase.Progress(),
		GatewayReference: a.GatewayReference,
		ResultCode:       a.ResultCode,
		ResultCategory:   a.ResultCategory,
		Version:          a.Version,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
		ExpiresAt:        a.ExpiresAt,
		TerminalAt:       a.TerminalAt,
	}
	if !a.IsTerminal() {
		if remaining := a.ExpiresAt.Sub(now); remaining > 0 {
			resp.EtaSeconds = int(remaining.Seconds())
		}
	}
	if a.ResultCategory != nil {
		profile := classify.Profile(*a.ResultCategory)
		msg := profile.UserMessage
		action := profile.SuggestedAction
		retryable := profile.Retryable
		resp.UserMessage = &msg
		resp.SuggestedAction = &action
		resp.Retryable = &retryable
	}
	return resp
}

// floatToCents converts a float currency amount to cents.
func floatToCents(f float64) int64 {
	return int64(f*100 + 0.5)
}

// centsToFloat converts cents to a float currency amount.
func centsToFloat(cents int64) float64 {
	return float64(cents) / 100.0
}
