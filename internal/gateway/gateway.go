// Package gateway defines the boundary to the external push-payment
// provider. The provider's wire protocol is not implemented here; callers
// get a small interface plus a circuit-breaker wrapper and a mock.
package gateway

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// PushRequest asks the provider to prompt the payer's device.
type PushRequest struct {
	OrderID     string
	AmountCents int64
	Currency    string
	PayerPhone  string
	Description string
}

// PushResult is the provider's synchronous acknowledgement of a push.
type PushResult struct {
	GatewayReference string
}

// StatusResult is one answer to a status query. Terminal=false means the
// provider is still waiting on the payer; Stage then names the provider-side
// step ("awaiting_authorization", "processing", "verifying"). Terminal=true
// means RawCode carries the final outcome.
type StatusResult struct {
	RawCode    string
	RawMessage string
	Terminal   bool
	Stage      string
}

// Client is implemented per provider.
type Client interface {
	// Name returns the provider name.
	Name() string
	// Push asks the provider to prompt the payer and returns the opaque
	// reference used for later status queries.
	Push(ctx context.Context, req PushRequest) (*PushResult, error)
	// QueryStatus fetches the current state of a pushed payment.
	QueryStatus(ctx context.Context, gatewayRef string) (*StatusResult, error)
	// Cancel asks the provider to withdraw the prompt. Best effort: the
	// returned bool says whether the provider accepted the request, not
	// whether the payment ended cancelled.
	Cancel(ctx context.Context, gatewayRef string) (bool, error)
}

// BreakerClient wraps a Client with circuit breakers so a melting provider
// fails fast instead of tying up poll workers.
type BreakerClient struct {
	inner   Client
	pushCB  *gobreaker.CircuitBreaker[*PushResult]
	queryCB *gobreaker.CircuitBreaker[*StatusResult]
}

// NewBreakerClient wraps the client. Push and query get separate breakers:
// a flaky query API should not block new pushes.
func NewBreakerClient(inner Client) *BreakerClient {
	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 10,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 10 && failureRatio >= 0.6
			},
		}
	}
	return &BreakerClient{
		inner:   inner,
		pushCB:  gobreaker.NewCircuitBreaker[*PushResult](settings(inner.Name() + "-push")),
		queryCB: gobreaker.NewCircuitBreaker[*StatusResult](settings(inner.Name() + "-query")),
	}
}

func (c *BreakerClient) Name() string { return c.inner.Name() }

func (c *BreakerClient) Push(ctx context.Context, req PushRequest) (*PushResult, error) {
	return c.pushCB.Execute(func() (*PushResult, error) {
		return c.inner.Push(ctx, req)
	})
}

func (c *BreakerClient) QueryStatus(ctx context.Context, gatewayRef string) (*StatusResult, error) {
	return c.queryCB.Execute(func() (*StatusResult, error) {
		return c.inner.QueryStatus(ctx, gatewayRef)
	})
}

// Cancel goes straight through; it is best effort and already followed by a
// final status query.
func (c *BreakerClient) Cancel(ctx context.Context, gatewayRef string) (bool, error) {
	return c.inner.Cancel(ctx, gatewayRef)
}
