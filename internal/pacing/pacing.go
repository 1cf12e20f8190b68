package pacing

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Sleeper suspends the caller. Tests substitute a recorder so no real time passes.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a timer and wakes early if ctx is cancelled.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jitter draws random durations. Safe for concurrent use.
type Jitter struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewJitter seeds a Jitter. A zero seed uses the current time.
func NewJitter(seed int64) *Jitter {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Jitter{r: rand.New(rand.NewSource(seed))}
}

// Between returns a duration in [min, max]. If max <= min it returns min.
func (j *Jitter) Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return min + time.Duration(j.r.Int63n(int64(max-min)+1))
}

// Intn returns a random int in [0, n).
func (j *Jitter) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.r.Intn(n)
}
