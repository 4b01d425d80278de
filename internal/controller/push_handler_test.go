package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DTBbuilds/smartduka-payments/internal/classify"
	"github.com/DTBbuilds/smartduka-payments/internal/events"
	"github.com/DTBbuilds/smartduka-payments/internal/gateway"
	"github.com/DTBbuilds/smartduka-payments/internal/orchestrator"
	"github.com/DTBbuilds/smartduka-payments/internal/repository/memory"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestController(t *testing.T) *PushController {
	t.Helper()
	clock := orchestrator.SystemClock()
	sched := orchestrator.NewTimerScheduler()
	t.Cleanup(sched.Stop)

	orch := orchestrator.New(
		memory.NewAttemptStore(),
		gateway.NewMockClient("mock", gateway.WithLatency(0), gateway.WithPollsBeforeFinal(5)),
		classify.Default(),
		events.NewBus(),
		sched,
		clock,
		orchestrator.Config{
			// Polls far enough out that none fire during the test.
			PollInterval:       time.Hour,
			GlobalTimeout:      2 * time.Hour,
			GatewayCallTimeout: time.Second,
		},
		nil,
		zerolog.Nop(),
	)
	return NewPushController(orch, clock)
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body any, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req = withURLParams(req, params)
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func withURLParams(req *http.Request, params map[string]string) *http.Request {
	if len(params) == 0 {
		return req
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func createRequest() CreatePushPaymentRequest {
	return CreatePushPaymentRequest{
		OrderID:    "order-1",
		Amount:     1500.00,
		Currency:   "KES",
		PayerPhone: "0712345678",
	}
}

func decodeAttempt(t *testing.T, rec *httptest.ResponseRecorder) AttemptResponse {
	t.Helper()
	var resp AttemptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v: %s", err, rec.Body.String())
	}
	return resp
}

func TestPushController_Create(t *testing.T) {
	h := newTestController(t)

	rec := postJSON(t, h.Create, "/api/v1/push-payments", createRequest(), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	resp := decodeAttempt(t, rec)
	if resp.Phase != "awaiting_authorization" {
		t.Errorf("expected phase awaiting_authorization, got %s", resp.Phase)
	}
	if resp.Status != "pending" {
		t.Errorf("expected status pending, got %s", resp.Status)
	}
	if resp.PayerPhone != "07******78" {
		t.Errorf("payer phone must be masked, got %s", resp.PayerPhone)
	}
	if resp.EtaSeconds <= 0 {
		t.Errorf("expected positive eta, got %d", resp.EtaSeconds)
	}
}

func TestPushController_Create_InvalidBody(t *testing.T) {
	h := newTestController(t)

	req := createRequest()
	req.Currency = "KENYA"
	rec := postJSON(t, h.Create, "/api/v1/push-payments", req, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestPushController_Create_Conflict(t *testing.T) {
	h := newTestController(t)

	if rec := postJSON(t, h.Create, "/api/v1/push-payments", createRequest(), nil); rec.Code != http.StatusCreated {
		t.Fatalf("first create failed: %d", rec.Code)
	}
	rec := postJSON(t, h.Create, "/api/v1/push-payments", createRequest(), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}
}

func TestPushController_Get(t *testing.T) {
	h := newTestController(t)

	created := decodeAttempt(t, postJSON(t, h.Create, "/api/v1/push-payments", createRequest(), nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/push-payments/"+created.ID, nil)
	req = withURLParams(req, map[string]string{"id": created.ID})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if got := decodeAttempt(t, rec); got.ID != created.ID {
		t.Errorf("expected attempt %s, got %s", created.ID, got.ID)
	}
}

func TestPushController_Get_NotFound(t *testing.T) {
	h := newTestController(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/push-payments/"+uuid.NewString(), nil)
	req = withURLParams(req, map[string]string{"id": uuid.NewString()})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestPushController_Get_InvalidID(t *testing.T) {
	h := newTestController(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/push-payments/nope", nil)
	req = withURLParams(req, map[string]string{"id": "nope"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestPushController_Cancel(t *testing.T) {
	h := newTestController(t)

	created := decodeAttempt(t, postJSON(t, h.Create, "/api/v1/push-payments", createRequest(), nil))

	rec := postJSON(t, h.Cancel, "/api/v1/push-payments/"+created.ID+"/cancel", nil, map[string]string{"id": created.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	resp := decodeAttempt(t, rec)
	if resp.Status != "cancelled" {
		t.Errorf("expected status cancelled, got %s", resp.Status)
	}

	// Cancelling again hits the terminal guard.
	rec = postJSON(t, h.Cancel, "/api/v1/push-payments/"+created.ID+"/cancel", nil, map[string]string{"id": created.ID})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestPushController_ListForOrder(t *testing.T) {
	h := newTestController(t)

	created := decodeAttempt(t, postJSON(t, h.Create, "/api/v1/push-payments", createRequest(), nil))
	_ = created

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1/push-payments", nil)
	req = withURLParams(req, map[string]string{"orderID": "order-1"})
	rec := httptest.NewRecorder()
	h.ListForOrder(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var list []AttemptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 attempt, got %d", len(list))
	}
}

func TestPushController_Retry_ActiveAttempt(t *testing.T) {
	h := newTestController(t)

	_ = decodeAttempt(t, postJSON(t, h.Create, "/api/v1/push-payments", createRequest(), nil))

	rec := postJSON(t, h.Retry, "/api/v1/orders/order-1/push-payments/retry",
		RetryPushPaymentRequest{PayerPhone: "0712345678"},
		map[string]string{"orderID": "order-1"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}
}

func TestPushController_Retry_AfterCancel(t *testing.T) {
	h := newTestController(t)

	created := decodeAttempt(t, postJSON(t, h.Create, "/api/v1/push-payments", createRequest(), nil))
	if rec := postJSON(t, h.Cancel, "/cancel", nil, map[string]string{"id": created.ID}); rec.Code != http.StatusOK {
		t.Fatalf("cancel failed: %d", rec.Code)
	}

	rec := postJSON(t, h.Retry, "/api/v1/orders/order-1/push-payments/retry",
		RetryPushPaymentRequest{PayerPhone: "0712345678"},
		map[string]string{"orderID": "order-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	resp := decodeAttempt(t, rec)
	if resp.AttemptNumber != 2 {
		t.Errorf("expected attempt number 2, got %d", resp.AttemptNumber)
	}
}
