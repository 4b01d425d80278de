package controller

import (
	"net/http"

	"github.com/DTBbuilds/smartduka-payments/internal/orchestrator"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PushController handles push-payment HTTP requests.
type PushController struct {
	orch  *orchestrator.Orchestrator
	clock orchestrator.Clock
}

// NewPushController creates a new PushController.
func NewPushController(orch *orchestrator.Orchestrator, clock orchestrator.Clock) *PushController {
	return &PushController{orch: orch, clock: clock}
}

// Create handles POST /api/v1/push-payments
func (h *PushController) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePushPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.orch.Initiate(r.Context(), orchestrator.InitiateRequest{
		OrderID:     req.OrderID,
		AmountCents: floatToCents(req.Amount),
		Currency:    req.Currency,
		PayerPhone:  req.PayerPhone,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromAttempt(a, h.clock.Now()))
}

// Get handles GET /api/v1/push-payments/{id}
func (h *PushController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid attempt id", Code: "invalid_id"})
		return
	}

	a, err := h.orch.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromAttempt(a, h.clock.Now()))
}

// Cancel handles POST /api/v1/push-payments/{id}/cancel
func (h *PushController) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid attempt id", Code: "invalid_id"})
		return
	}

	a, err := h.orch.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromAttempt(a, h.clock.Now()))
}

// ListForOrder handles GET /api/v1/orders/{orderID}/push-payments
func (h *PushController) ListForOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing order id", Code: "invalid_id"})
		return
	}

	attempts, err := h.orch.ListForOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.clock.Now()
	resp := make([]*AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, FromAttempt(a, now))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Retry handles POST /api/v1/orders/{orderID}/push-payments/retry
func (h *PushController) Retry(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing order id", Code: "invalid_id"})
		return
	}

	var req RetryPushPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	a, err := h.orch.Retry(r.Context(), orderID, req.PayerPhone)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, FromAttempt(a, h.clock.Now()))
}
