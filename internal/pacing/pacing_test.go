package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitter_Between(t *testing.T) {
	j := NewJitter(42)
	for i := 0; i < 200; i++ {
		d := j.Between(1500*time.Millisecond, 3*time.Second)
		require.GreaterOrEqual(t, d, 1500*time.Millisecond)
		require.LessOrEqual(t, d, 3*time.Second)
	}
	assert.Equal(t, 2*time.Second, j.Between(2*time.Second, time.Second))
}

func TestTimerSleeper_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := TimerSleeper{}.Sleep(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
