package crawler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/collector"
	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/monitoring"
)

// Runner executes one crawl run.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (*Report, error)
}

// Status is a snapshot of the coordinator.
type Status struct {
	Running   bool        `json:"running"`
	Current   *RunRequest `json:"current,omitempty"`
	Last      *Report     `json:"last,omitempty"`
	LastError string      `json:"last_error,omitempty"`
}

// Coordinator runs crawls in the background, at most one at a time.
type Coordinator struct {
	runner  Runner
	metrics *monitoring.Metrics
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *RunRequest
	last    *Report
	lastErr string
}

// NewCoordinator ties background runs to ctx; Stop cancels them.
func NewCoordinator(ctx context.Context, runner Runner, m *monitoring.Metrics, l *zap.Logger) *Coordinator {
	if l == nil {
		l = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Coordinator{runner: runner, metrics: m, logger: l, ctx: ctx, cancel: cancel}
}

// Submit validates req and starts it in the background.
func (c *Coordinator) Submit(req RunRequest) error {
	if err := collector.ValidateRange(req.Start, req.Total); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return domain.ErrRunInProgress
	}
	if err := c.ctx.Err(); err != nil {
		return err
	}
	r := req
	c.current = &r
	c.metrics.SetRunInProgress(true)

	c.wg.Add(1)
	go c.run(req)
	return nil
}

func (c *Coordinator) run(req RunRequest) {
	defer c.wg.Done()

	report, err := c.runner.Run(c.ctx, req)
	if err != nil {
		c.logger.Error("crawl run ended with error", zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.metrics.SetRunInProgress(false)
	if report != nil {
		c.last = report
	}
	c.lastErr = ""
	if err != nil {
		c.lastErr = err.Error()
	}
}

// Status returns the current state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{Running: c.current != nil, Last: c.last, LastError: c.lastErr}
	if c.current != nil {
		r := *c.current
		st.Current = &r
	}
	return st
}

// Stop cancels a running crawl and waits for it to return.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until the background run, if any, returns.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
