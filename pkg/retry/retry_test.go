package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DTBbuilds/smartduka-payments/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(), func() error {
		calls++
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	// Last error only, not a joined list.
	assert.Equal(t, "still down", err.Error())
}

func TestDo_UnrecoverableStopsEarly(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(), func() error {
		calls++
		return retry.Unrecoverable(errors.New("rejected"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retry.Do(ctx, fastConfig(), func() error {
		return errors.New("transient")
	})
	require.Error(t, err)
}

func TestDo_OnRetryCallback(t *testing.T) {
	var notified []uint
	cfg := fastConfig()
	cfg.OnRetry = func(n uint, err error) { notified = append(notified, n) }

	_ = retry.Do(context.Background(), cfg, func() error {
		return errors.New("transient")
	})
	assert.NotEmpty(t, notified)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	v, err := retry.DoWithResult(context.Background(), fastConfig(), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}
