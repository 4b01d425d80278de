package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	domainErrors "github.com/DTBbuilds/smartduka-payments/internal/domain/errors"
	"github.com/google/uuid"
)

// MockClient simulates an STK-style provider for local development and
// tests: each push opens a session that walks through the intermediate
// stages before settling on a configured terminal code.
type MockClient struct {
	name             string
	latency          time.Duration
	pushFailureRate  float64 // 0.0 to 1.0
	pollsBeforeFinal int
	finalCode        string
	finalMessage     string
	cancelSupported  bool

	mu       sync.Mutex
	sessions map[string]*mockSession
}

type mockSession struct {
	polls     int
	cancelled bool
}

type MockClientOption func(*MockClient)

func WithLatency(d time.Duration) MockClientOption {
	return func(c *MockClient) { c.latency = d }
}

func WithPushFailureRate(rate float64) MockClientOption {
	return func(c *MockClient) { c.pushFailureRate = rate }
}

// WithOutcome sets the terminal code a session resolves to.
func WithOutcome(code, message string) MockClientOption {
	return func(c *MockClient) { c.finalCode = code; c.finalMessage = message }
}

// WithPollsBeforeFinal sets how many non-terminal answers precede the outcome.
func WithPollsBeforeFinal(n int) MockClientOption {
	return func(c *MockClient) { c.pollsBeforeFinal = n }
}

func WithCancelSupported(supported bool) MockClientOption {
	return func(c *MockClient) { c.cancelSupported = supported }
}

func NewMockClient(name string, opts ...MockClientOption) *MockClient {
	c := &MockClient{
		name:             name,
		latency:          100 * time.Millisecond,
		pollsBeforeFinal: 2,
		finalCode:        "0",
		finalMessage:     "The service request is processed successfully.",
		cancelSupported:  true,
		sessions:         make(map[string]*mockSession),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *MockClient) Name() string { return c.name }

func (c *MockClient) Push(ctx context.Context, req PushRequest) (*PushResult, error) {
	if err := c.sleep(ctx); err != nil {
		return nil, err
	}
	if rand.Float64() < c.pushFailureRate {
		return nil, fmt.Errorf("%s: push for order %s: %w", c.name, req.OrderID, domainErrors.ErrPushRejected)
	}

	ref := fmt.Sprintf("%s_ref_%s", c.name, uuid.New().String()[:8])
	c.mu.Lock()
	c.sessions[ref] = &mockSession{}
	c.mu.Unlock()
	return &PushResult{GatewayReference: ref}, nil
}

func (c *MockClient) QueryStatus(ctx context.Context, gatewayRef string) (*StatusResult, error) {
	if err := c.sleep(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[gatewayRef]
	if !ok {
		return nil, fmt.Errorf("%s: unknown reference %s: %w", c.name, gatewayRef, domainErrors.ErrGatewayUnavailable)
	}

	if s.cancelled {
		return &StatusResult{
			RawCode:    "1032",
			RawMessage: "Request cancelled by user.",
			Terminal:   true,
		}, nil
	}

	s.polls++
	if s.polls <= c.pollsBeforeFinal {
		return &StatusResult{Terminal: false, Stage: c.stageFor(s.polls)}, nil
	}
	return &StatusResult{
		RawCode:    c.finalCode,
		RawMessage: c.finalMessage,
		Terminal:   true,
	}, nil
}

func (c *MockClient) Cancel(ctx context.Context, gatewayRef string) (bool, error) {
	if err := c.sleep(ctx); err != nil {
		return false, err
	}
	if !c.cancelSupported {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[gatewayRef]
	if !ok {
		return false, nil
	}
	// A session that already resolved cannot be withdrawn.
	if s.polls > c.pollsBeforeFinal {
		return false, nil
	}
	s.cancelled = true
	return true, nil
}

// stageFor spreads the configured polls over the provider stages.
func (c *MockClient) stageFor(poll int) string {
	switch {
	case poll == 1:
		return "awaiting_authorization"
	case poll < c.pollsBeforeFinal:
		return "processing"
	default:
		return "verifying"
	}
}

func (c *MockClient) sleep(ctx context.Context) error {
	select {
	case <-time.After(c.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
