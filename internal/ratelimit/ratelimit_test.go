package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroDelayNeverBlocks(t *testing.T) {
	r := NewSimpleRateLimiter(0, 0)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitSpacesActions(t *testing.T) {
	r := NewSimpleRateLimiter(30*time.Millisecond, 30*time.Millisecond)

	require.NoError(t, r.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestWaitHonoursCancellation(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, time.Hour)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestCalculateDelayWithinBounds(t *testing.T) {
	r := NewSimpleRateLimiter(10*time.Millisecond, 20*time.Millisecond)

	for i := 0; i < 50; i++ {
		d := r.calculateDelay()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}

	r.SetDelay(5*time.Millisecond, time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, r.calculateDelay())
}
