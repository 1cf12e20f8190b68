package fetcher

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/pacing"
)

type scriptedFetcher struct {
	mu       sync.Mutex
	statuses []int
	errs     []error
	calls    int
	requests []Request
}

func (s *scriptedFetcher) Fetch(_ context.Context, req Request) (*domain.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	status := s.statuses[len(s.statuses)-1]
	if i < len(s.statuses) {
		status = s.statuses[i]
	}
	return &domain.Page{Link: domain.Link(req.URL), StatusCode: status, Body: []byte("ok")}, nil
}

type recordingSleeper struct {
	slept []time.Duration
	err   error
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return r.err
}

func (r *recordingSleeper) total() time.Duration {
	var sum time.Duration
	for _, d := range r.slept {
		sum += d
	}
	return sum
}

func newTestRetrying(f PageFetcher, s pacing.Sleeper) *RetryingFetcher {
	j := pacing.NewJitter(42)
	return NewRetryingFetcher(f, DefaultRetryPolicy(j), s, j, time.Second, 3*time.Second, nil, zap.NewNop())
}

func TestRetryingFetcher_SucceedsAfterRateLimits(t *testing.T) {
	f := &scriptedFetcher{statuses: []int{429, 429, 200}}
	s := &recordingSleeper{}

	page, err := newTestRetrying(f, s).Fetch(context.Background(), "https://example.test/anime/1")
	require.NoError(t, err)
	require.NotNil(t, page)

	assert.Equal(t, 3, f.calls)
	require.Len(t, s.slept, 2)
	assert.Equal(t, 2*time.Second, s.slept[0])
	assert.GreaterOrEqual(t, s.slept[1], 4*time.Second+10*time.Second)
	assert.LessOrEqual(t, s.slept[1], 4*time.Second+15*time.Second)
	assert.GreaterOrEqual(t, s.total(), 6*time.Second)
}

func TestRetryingFetcher_NotFoundFailsImmediately(t *testing.T) {
	f := &scriptedFetcher{statuses: []int{404}}
	s := &recordingSleeper{}

	_, err := newTestRetrying(f, s).Fetch(context.Background(), "https://example.test/anime/2")
	require.Error(t, err)

	var terminal *domain.TerminalFetchError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, 1, terminal.Attempts)
	assert.Equal(t, http.StatusNotFound, terminal.StatusCode)
	assert.Equal(t, 1, f.calls)
	assert.Empty(t, s.slept)
}

func TestRetryingFetcher_Exhausted(t *testing.T) {
	f := &scriptedFetcher{statuses: []int{503}}
	s := &recordingSleeper{}

	_, err := newTestRetrying(f, s).Fetch(context.Background(), "https://example.test/anime/3")

	var terminal *domain.TerminalFetchError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, 3, terminal.Attempts)
	assert.Equal(t, http.StatusServiceUnavailable, terminal.StatusCode)
	assert.Len(t, s.slept, 2)
}

func TestRetryingFetcher_TransportErrorsAreRetried(t *testing.T) {
	transient := &domain.TransientFetchError{Link: "x", Err: errors.New("connection reset")}
	f := &scriptedFetcher{errs: []error{transient}, statuses: []int{0, 200}}
	s := &recordingSleeper{}

	page, err := newTestRetrying(f, s).Fetch(context.Background(), "https://example.test/anime/4")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, 2, f.calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, s.slept)
}

func TestRetryingFetcher_TimeoutWithinProfile(t *testing.T) {
	f := &scriptedFetcher{statuses: []int{200}}
	r := newTestRetrying(f, &recordingSleeper{}).WithProfile("image", 500*time.Millisecond, 1500*time.Millisecond)

	_, err := r.Fetch(context.Background(), "https://example.test/img.jpg")
	require.NoError(t, err)

	require.Len(t, f.requests, 1)
	assert.Equal(t, "image", f.requests[0].Kind)
	assert.GreaterOrEqual(t, f.requests[0].Timeout, 500*time.Millisecond)
	assert.LessOrEqual(t, f.requests[0].Timeout, 1500*time.Millisecond)
}

func TestRetryingFetcher_CancelledDuringBackoff(t *testing.T) {
	f := &scriptedFetcher{statuses: []int{429}}
	s := &recordingSleeper{err: context.Canceled}

	_, err := newTestRetrying(f, s).Fetch(context.Background(), "https://example.test/anime/5")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.calls)
}

func TestRetryingFetcher_InnerCancellationWithLiveContext(t *testing.T) {
	// A dead browser reports context.Canceled while the run itself goes on.
	f := &scriptedFetcher{errs: []error{
		&domain.TransientFetchError{Link: "https://example.test/anime/6", Err: context.Canceled},
	}}
	s := &recordingSleeper{}

	page, err := newTestRetrying(f, s).Fetch(context.Background(), "https://example.test/anime/6")
	require.Error(t, err)
	assert.Nil(t, page)

	var terminal *domain.TerminalFetchError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, domain.Link("https://example.test/anime/6"), terminal.Link)
	assert.Equal(t, 1, terminal.Attempts)
	assert.Equal(t, 1, f.calls)
	assert.Empty(t, s.slept)
}

func TestRetryingFetcher_CallerCancelledReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &scriptedFetcher{errs: []error{context.Canceled}}

	page, err := newTestRetrying(f, &recordingSleeper{}).Fetch(ctx, "https://example.test/anime/7")
	assert.Nil(t, page)
	assert.ErrorIs(t, err, context.Canceled)

	var terminal *domain.TerminalFetchError
	assert.False(t, errors.As(err, &terminal))
}

func TestRetryPolicy_Next(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
	transient := &domain.TransientFetchError{Err: errors.New("timeout")}

	tests := []struct {
		name    string
		attempt int
		status  int
		err     error
		action  Action
		delay   time.Duration
	}{
		{"ok", 1, 200, nil, ActionSucceed, 0},
		{"blocked first", 1, 403, nil, ActionRetry, 2 * time.Second},
		{"blocked second", 2, 429, nil, ActionRetry, 4 * time.Second},
		{"blocked last", 3, 429, nil, ActionFail, 0},
		{"server error", 1, 500, nil, ActionFail, 0},
		{"transport", 1, 0, transient, ActionRetry, 2 * time.Second},
		{"cancelled", 1, 0, context.Canceled, ActionFail, 0},
		{"plain error", 1, 0, errors.New("bad url"), ActionFail, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Next(tt.attempt, tt.status, tt.err)
			assert.Equal(t, tt.action, d.Action, d.Reason)
			assert.Equal(t, tt.delay, d.Delay)
		})
	}
}
