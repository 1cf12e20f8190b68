package fetcher

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/pacing"
)

// Action is what the retry loop should do after an attempt.
type Action int

const (
	ActionSucceed Action = iota
	ActionRetry
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionSucceed:
		return "succeed"
	case ActionRetry:
		return "retry"
	default:
		return "fail"
	}
}

// Decision describes the next step. Delay is only meaningful for ActionRetry.
type Decision struct {
	Action Action
	Delay  time.Duration
	Reason string
}

// RetryPolicy decides between retrying and giving up. It never sleeps itself.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// CooldownBefore is the attempt number that is preceded by an extra
	// randomized cooldown in [CooldownMin, CooldownMax]. Zero disables it.
	CooldownBefore int
	CooldownMin    time.Duration
	CooldownMax    time.Duration
	Retriable      func(status int) bool
	Jitter         *pacing.Jitter
}

// RetriableStatus reports the statuses that mean "rate limited or blocked".
func RetriableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusForbidden, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}

// DefaultRetryPolicy is three attempts with 2s, 4s backoff and a 10-15s
// cooldown before the third attempt.
func DefaultRetryPolicy(j *pacing.Jitter) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      2 * time.Second,
		CooldownBefore: 3,
		CooldownMin:    10 * time.Second,
		CooldownMax:    15 * time.Second,
		Retriable:      RetriableStatus,
		Jitter:         j,
	}
}

// Next decides what follows attempt number attempt (1-based), given the
// status it returned (0 if none) and its error.
func (p RetryPolicy) Next(attempt int, status int, err error) Decision {
	if err == nil && status == http.StatusOK {
		return Decision{Action: ActionSucceed}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Decision{Action: ActionFail, Reason: "cancelled"}
		}
		var transient *domain.TransientFetchError
		if !errors.As(err, &transient) {
			return Decision{Action: ActionFail, Reason: "error"}
		}
	} else {
		retriable := p.Retriable
		if retriable == nil {
			retriable = RetriableStatus
		}
		if !retriable(status) {
			return Decision{Action: ActionFail, Reason: "status"}
		}
	}

	if attempt >= p.MaxAttempts {
		return Decision{Action: ActionFail, Reason: "exhausted"}
	}

	delay := p.BaseDelay << (attempt - 1)
	if p.CooldownBefore > 0 && attempt+1 == p.CooldownBefore {
		delay += p.cooldown()
	}
	reason := "transport"
	if err == nil {
		reason = "blocked"
	}
	return Decision{Action: ActionRetry, Delay: delay, Reason: reason}
}

func (p RetryPolicy) cooldown() time.Duration {
	if p.Jitter == nil {
		return p.CooldownMin
	}
	return p.Jitter.Between(p.CooldownMin, p.CooldownMax)
}
