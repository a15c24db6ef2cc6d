package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.t = c.t.Add(d)
	return nil
}

func newTestLimiter(perMinute, perDay int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)}
	l := New(perMinute, perDay)
	l.now = clock.now
	l.sleep = clock.sleep
	return l, clock
}

func TestLimiter_Unlimited(t *testing.T) {
	l, _ := newTestLimiter(0, 0)
	for i := 0; i < 100; i++ {
		ok, err := l.WaitAndReserve(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestLimiter_SpacesCallsPerMinute(t *testing.T) {
	l, clock := newTestLimiter(2, 0)
	start := clock.t

	for i := 0; i < 3; i++ {
		ok, err := l.WaitAndReserve(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Equal(t, time.Minute, clock.t.Sub(start))
}

func TestLimiter_DailyLimitResetsAtUTCDay(t *testing.T) {
	l, clock := newTestLimiter(0, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.WaitAndReserve(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := l.WaitAndReserve(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	clock.t = clock.t.Add(2 * time.Minute)
	ok, err = l.WaitAndReserve(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_ContextCanceled(t *testing.T) {
	l := New(1, 0)
	ctx, cancel := context.WithCancel(context.Background())

	ok, err := l.WaitAndReserve(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	cancel()
	ok, err = l.WaitAndReserve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
