package crawler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/collector"
	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/monitoring"
	"github.com/user/animerank-crawler/internal/pacing"
)

type LinkSource interface {
	Collect(ctx context.Context, start, total int) ([]domain.Link, error)
}

type PageSource interface {
	Fetch(ctx context.Context, link domain.Link) (*domain.Page, error)
}

type RecordExtractor interface {
	Extract(ctx context.Context, content []byte, link domain.Link) (domain.RawRecord, error)
}

type RecordStore interface {
	Save(ctx context.Context, rec domain.RawRecord) (string, error)
}

// Deduper remembers links crawled recently. Optional.
type Deduper interface {
	IsRecentlyCrawled(ctx context.Context, link domain.Link) (bool, error)
	MarkAsCrawled(ctx context.Context, link domain.Link, ttl time.Duration) error
}

// FailureLog keeps the last failure per link across runs. Optional.
type FailureLog interface {
	RecordFailure(ctx context.Context, f domain.FailedLink) error
	ClearFailure(ctx context.Context, link domain.Link) error
}

// Options controls pacing between links.
type Options struct {
	PaceMin     time.Duration
	PaceMax     time.Duration
	CooldownMin time.Duration
	CooldownMax time.Duration
	DedupTTL    time.Duration
}

// DefaultOptions waits 1.5-3s between links and 15-30s after a failed fetch.
func DefaultOptions() Options {
	return Options{
		PaceMin:     1500 * time.Millisecond,
		PaceMax:     3 * time.Second,
		CooldownMin: 15 * time.Second,
		CooldownMax: 30 * time.Second,
		DedupTTL:    7 * 24 * time.Hour,
	}
}

// RunRequest selects the listing range to crawl.
type RunRequest struct {
	Start int  `json:"start"`
	Total int  `json:"total"`
	Force bool `json:"force"`
}

// Failure records why a link produced no record.
type Failure struct {
	Link   domain.Link `json:"link"`
	Stage  string      `json:"stage"`
	Status int         `json:"status,omitempty"`
	Error  string      `json:"error"`
}

// Report summarizes a run.
type Report struct {
	Start      int       `json:"start"`
	Total      int       `json:"total"`
	Links      int       `json:"links"`
	Persisted  int       `json:"persisted"`
	Skipped    int       `json:"skipped"`
	Duplicates int       `json:"duplicates"`
	Failures   []Failure `json:"failures,omitempty"`
	Cancelled  bool      `json:"cancelled"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Crawler walks the listing and persists one record per detail page,
// strictly one link at a time.
type Crawler struct {
	links   LinkSource
	pages   PageSource
	extract RecordExtractor
	store   RecordStore
	dedup   Deduper
	fails   FailureLog
	sleeper pacing.Sleeper
	jitter  *pacing.Jitter
	opts    Options
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func NewCrawler(
	links LinkSource,
	pages PageSource,
	extract RecordExtractor,
	store RecordStore,
	dedup Deduper,
	sleeper pacing.Sleeper,
	jitter *pacing.Jitter,
	opts Options,
	m *monitoring.Metrics,
	l *zap.Logger,
) *Crawler {
	if sleeper == nil {
		sleeper = pacing.TimerSleeper{}
	}
	if jitter == nil {
		jitter = pacing.NewJitter(0)
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Crawler{
		links:   links,
		pages:   pages,
		extract: extract,
		store:   store,
		dedup:   dedup,
		sleeper: sleeper,
		jitter:  jitter,
		opts:    opts,
		metrics: m,
		logger:  l,
		now:     time.Now,
	}
}

// WithFailureLog makes the crawler record skipped links in fl and clear them
// once they are persisted.
func (c *Crawler) WithFailureLog(fl FailureLog) *Crawler {
	c.fails = fl
	return c
}

// Run collects the links for the range and processes each of them. A failing
// link never ends the run; an invalid range or cancellation does. The report
// is returned in every case except an invalid range.
func (c *Crawler) Run(ctx context.Context, req RunRequest) (*Report, error) {
	if err := collector.ValidateRange(req.Start, req.Total); err != nil {
		return nil, err
	}

	report := &Report{Start: req.Start, Total: req.Total, StartedAt: c.now()}
	defer func() { report.FinishedAt = c.now() }()

	c.logger.Info("collecting links", zap.Int("start", req.Start), zap.Int("total", req.Total))
	links, err := c.links.Collect(ctx, req.Start, req.Total)
	report.Links = len(links)
	if err != nil {
		report.Cancelled = ctx.Err() != nil
		return report, err
	}
	c.logger.Info("links collected", zap.Int("count", len(links)))

	for i, link := range links {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			return report, err
		}

		if !req.Force && c.recentlyCrawled(ctx, link) {
			c.logger.Info("skipping recently crawled link", zap.String("url", string(link)))
			report.Duplicates++
			continue
		}

		wait, err := c.process(ctx, link, report)
		if err != nil {
			report.Cancelled = true
			return report, err
		}
		c.metrics.IncLinksProcessed()

		if i == len(links)-1 {
			break
		}
		if err := c.sleeper.Sleep(ctx, wait); err != nil {
			report.Cancelled = true
			return report, err
		}
	}

	c.logger.Info("crawl finished",
		zap.Int("persisted", report.Persisted),
		zap.Int("skipped", report.Skipped),
		zap.Int("duplicates", report.Duplicates),
	)
	return report, nil
}

// process handles one link and returns how long to wait before the next one.
// Only cancellation is returned as an error.
func (c *Crawler) process(ctx context.Context, link domain.Link, report *Report) (time.Duration, error) {
	page, err := c.pages.Fetch(ctx, link)
	if err == nil && page == nil {
		err = &domain.TerminalFetchError{Link: link, Err: errors.New("no page returned")}
	}
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		status := 0
		var terminal *domain.TerminalFetchError
		if errors.As(err, &terminal) {
			status = terminal.StatusCode
		}
		c.fail(ctx, report, link, "fetch", status, err)
		c.metrics.IncErrorsTotal("fetch_failed")
		return c.jitter.Between(c.opts.CooldownMin, c.opts.CooldownMax), nil
	}

	rec, err := c.extract.Extract(ctx, page.Body, link)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		c.fail(ctx, report, link, "extract", page.StatusCode, err)
		c.metrics.IncErrorsTotal("extract_failed")
		return c.pace(), nil
	}

	path, err := c.store.Save(ctx, rec)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		c.fail(ctx, report, link, "save", 0, err)
		c.metrics.IncErrorsTotal("save_failed")
		return c.pace(), nil
	}

	report.Persisted++
	c.metrics.IncRecordsSaved()
	c.logger.Info("record saved", zap.String("url", string(link)), zap.String("path", path))

	if c.fails != nil {
		if err := c.fails.ClearFailure(ctx, link); err != nil {
			c.logger.Warn("failed to clear link failure", zap.String("url", string(link)), zap.Error(err))
		}
	}
	if c.dedup != nil {
		if err := c.dedup.MarkAsCrawled(ctx, link, c.opts.DedupTTL); err != nil {
			c.logger.Warn("failed to mark link as crawled", zap.String("url", string(link)), zap.Error(err))
		}
	}
	return c.pace(), nil
}

func (c *Crawler) recentlyCrawled(ctx context.Context, link domain.Link) bool {
	if c.dedup == nil {
		return false
	}
	seen, err := c.dedup.IsRecentlyCrawled(ctx, link)
	if err != nil {
		c.logger.Error("failed to check crawled status", zap.String("url", string(link)), zap.Error(err))
		return false
	}
	return seen
}

func (c *Crawler) fail(ctx context.Context, report *Report, link domain.Link, stage string, status int, err error) {
	c.logger.Warn("link skipped",
		zap.String("url", string(link)),
		zap.String("stage", stage),
		zap.Error(err),
	)
	report.Skipped++
	report.Failures = append(report.Failures, Failure{Link: link, Stage: stage, Status: status, Error: err.Error()})
	c.metrics.IncRecordsSkipped()

	if c.fails == nil {
		return
	}
	f := domain.FailedLink{Link: link, Stage: stage, StatusCode: status, Reason: err.Error(), LastAttemptAt: c.now()}
	if err := c.fails.RecordFailure(ctx, f); err != nil {
		c.logger.Warn("failed to record link failure", zap.String("url", string(link)), zap.Error(err))
	}
}

func (c *Crawler) pace() time.Duration {
	return c.jitter.Between(c.opts.PaceMin, c.opts.PaceMax)
}
