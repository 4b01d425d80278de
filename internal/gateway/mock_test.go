package gateway_test

import (
	"context"
	"testing"

	domainErrors "github.com/DTBbuilds/smartduka-payments/internal/domain/errors"
	"github.com/DTBbuilds/smartduka-payments/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushRequest() gateway.PushRequest {
	return gateway.PushRequest{
		OrderID:     "order-1",
		AmountCents: 5000,
		Currency:    "KES",
		PayerPhone:  "0712345678",
		Description: "till 12345",
	}
}

func TestMockClient_SessionWalksStagesToSuccess(t *testing.T) {
	c := gateway.NewMockClient("mock", gateway.WithLatency(0), gateway.WithPollsBeforeFinal(2))
	ctx := context.Background()

	res, err := c.Push(ctx, pushRequest())
	require.NoError(t, err)
	require.NotEmpty(t, res.GatewayReference)

	s1, err := c.QueryStatus(ctx, res.GatewayReference)
	require.NoError(t, err)
	assert.False(t, s1.Terminal)
	assert.Equal(t, "awaiting_authorization", s1.Stage)

	s2, err := c.QueryStatus(ctx, res.GatewayReference)
	require.NoError(t, err)
	assert.False(t, s2.Terminal)

	s3, err := c.QueryStatus(ctx, res.GatewayReference)
	require.NoError(t, err)
	assert.True(t, s3.Terminal)
	assert.Equal(t, "0", s3.RawCode)
}

func TestMockClient_ConfiguredOutcome(t *testing.T) {
	c := gateway.NewMockClient("mock",
		gateway.WithLatency(0),
		gateway.WithPollsBeforeFinal(0),
		gateway.WithOutcome("1032", "Request cancelled by user."),
	)
	ctx := context.Background()

	res, err := c.Push(ctx, pushRequest())
	require.NoError(t, err)

	s, err := c.QueryStatus(ctx, res.GatewayReference)
	require.NoError(t, err)
	assert.True(t, s.Terminal)
	assert.Equal(t, "1032", s.RawCode)
}

func TestMockClient_PushFailure(t *testing.T) {
	c := gateway.NewMockClient("mock", gateway.WithLatency(0), gateway.WithPushFailureRate(1.0))
	_, err := c.Push(context.Background(), pushRequest())
	assert.ErrorIs(t, err, domainErrors.ErrPushRejected)
}

func TestMockClient_CancelTurnsSessionTerminal(t *testing.T) {
	c := gateway.NewMockClient("mock", gateway.WithLatency(0), gateway.WithPollsBeforeFinal(5))
	ctx := context.Background()

	res, err := c.Push(ctx, pushRequest())
	require.NoError(t, err)

	accepted, err := c.Cancel(ctx, res.GatewayReference)
	require.NoError(t, err)
	assert.True(t, accepted)

	s, err := c.QueryStatus(ctx, res.GatewayReference)
	require.NoError(t, err)
	assert.True(t, s.Terminal)
	assert.Equal(t, "1032", s.RawCode)
}

func TestMockClient_CancelUnsupported(t *testing.T) {
	c := gateway.NewMockClient("mock", gateway.WithLatency(0), gateway.WithCancelSupported(false))
	ctx := context.Background()

	res, err := c.Push(ctx, pushRequest())
	require.NoError(t, err)

	accepted, err := c.Cancel(ctx, res.GatewayReference)
	require.NoError(t, err)
	assert.False(t, accepted)
}

func TestMockClient_UnknownReference(t *testing.T) {
	c := gateway.NewMockClient("mock", gateway.WithLatency(0))
	_, err := c.QueryStatus(context.Background(), "no_such_ref")
	assert.ErrorIs(t, err, domainErrors.ErrGatewayUnavailable)
}

func TestBreakerClient_PassesThrough(t *testing.T) {
	c := gateway.NewBreakerClient(gateway.NewMockClient("mock", gateway.WithLatency(0), gateway.WithPollsBeforeFinal(0)))
	ctx := context.Background()

	res, err := c.Push(ctx, pushRequest())
	require.NoError(t, err)

	s, err := c.QueryStatus(ctx, res.GatewayReference)
	require.NoError(t, err)
	assert.True(t, s.Terminal)
	assert.Equal(t, "mock", c.Name())
}
