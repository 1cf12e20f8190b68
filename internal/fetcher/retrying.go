package fetcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/monitoring"
	"github.com/user/animerank-crawler/internal/pacing"
)

// RetryingFetcher wraps a PageFetcher with a RetryPolicy for detail pages and images.
type RetryingFetcher struct {
	fetcher    PageFetcher
	policy     RetryPolicy
	sleeper    pacing.Sleeper
	jitter     *pacing.Jitter
	timeoutMin time.Duration
	timeoutMax time.Duration
	kind       string
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// NewRetryingFetcher wraps f. Each attempt gets a timeout drawn from [timeoutMin, timeoutMax].
func NewRetryingFetcher(
	f PageFetcher,
	policy RetryPolicy,
	sleeper pacing.Sleeper,
	jitter *pacing.Jitter,
	timeoutMin, timeoutMax time.Duration,
	m *monitoring.Metrics,
	logger *zap.Logger,
) *RetryingFetcher {
	if sleeper == nil {
		sleeper = pacing.TimerSleeper{}
	}
	if jitter == nil {
		jitter = pacing.NewJitter(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingFetcher{
		fetcher:    f,
		policy:     policy,
		sleeper:    sleeper,
		jitter:     jitter,
		timeoutMin: timeoutMin,
		timeoutMax: timeoutMax,
		kind:       "detail",
		metrics:    m,
		logger:     logger,
	}
}

// WithProfile returns a copy using another timeout range and metrics label,
// e.g. the shorter range used for cover images.
func (r *RetryingFetcher) WithProfile(kind string, timeoutMin, timeoutMax time.Duration) *RetryingFetcher {
	cp := *r
	cp.kind = kind
	cp.timeoutMin = timeoutMin
	cp.timeoutMax = timeoutMax
	return &cp
}

// Fetch GETs link until it succeeds, hits a non-retriable outcome or runs out of
// attempts. Failures are returned as *domain.TerminalFetchError.
func (r *RetryingFetcher) Fetch(ctx context.Context, link domain.Link) (*domain.Page, error) {
	var (
		lastStatus int
		lastErr    error
	)
	for attempt := 1; ; attempt++ {
		var timeout time.Duration
		if r.timeoutMax > 0 {
			timeout = r.jitter.Between(r.timeoutMin, r.timeoutMax)
		}
		page, err := r.fetcher.Fetch(ctx, Request{URL: string(link), Timeout: timeout, Kind: r.kind})

		status := 0
		if page != nil {
			status = page.StatusCode
		}
		lastStatus, lastErr = status, err

		decision := r.policy.Next(attempt, status, err)
		switch decision.Action {
		case ActionSucceed:
			r.metrics.IncFetchAttempt("ok")
			return page, nil
		case ActionFail:
			r.metrics.IncFetchAttempt("fail")
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.logger.Warn("fetch failed",
				zap.String("url", string(link)),
				zap.Int("attempt", attempt),
				zap.Int("status", lastStatus),
				zap.String("reason", decision.Reason),
				zap.Error(lastErr),
			)
			return nil, &domain.TerminalFetchError{Link: link, StatusCode: lastStatus, Attempts: attempt, Err: lastErr}
		}

		r.metrics.IncFetchAttempt("retry")
		r.logger.Info("retrying fetch",
			zap.String("url", string(link)),
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Duration("backoff", decision.Delay),
			zap.String("reason", decision.Reason),
		)
		if err := r.sleeper.Sleep(ctx, decision.Delay); err != nil {
			return nil, err
		}
	}
}
