package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestLimiterBurstAndRefill(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(2, 3)
	l.now = clk.now

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "burst token %d", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))
	// other keys have their own bucket
	assert.True(t, l.Allow("10.0.0.2"))

	clk.advance(500 * time.Millisecond)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// refill caps at burst
	clk.advance(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestLimiterPrune(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(1, 1)
	l.now = clk.now

	l.Allow("a")
	clk.advance(10 * time.Minute)
	l.Allow("b")

	assert.Equal(t, 1, l.Prune(5*time.Minute))
	assert.True(t, l.Allow("a"))
}

func TestLimiterBackgroundPruning(t *testing.T) {
	l := New(1, 1)
	l.Allow("a")
	require.Equal(t, 1, l.Len())

	l.StartPruning(10*time.Millisecond, 0)
	defer l.Close()
	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 10*time.Millisecond)

	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}
