package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/collector"
	"github.com/user/animerank-crawler/internal/config"
	"github.com/user/animerank-crawler/internal/crawler"
	"github.com/user/animerank-crawler/internal/extractor"
	"github.com/user/animerank-crawler/internal/fetcher"
	"github.com/user/animerank-crawler/internal/monitoring"
	"github.com/user/animerank-crawler/internal/pacing"
	"github.com/user/animerank-crawler/internal/proxy"
	"github.com/user/animerank-crawler/internal/storage"
)

// pipeline is a fully wired crawler plus the resources to release after it.
type pipeline struct {
	crawler  *crawler.Crawler
	redis    *storage.RedisStore
	postgres *storage.PostgresStore
	closers  []func()
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

func buildPipeline(ctx context.Context, cfg *config.Config, m *monitoring.Metrics, logger *zap.Logger) (*pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	disclaimer, err := cfg.Disclaimer()
	if err != nil {
		return nil, err
	}

	p := &pipeline{}
	jitter := pacing.NewJitter(0)
	sleeper := pacing.TimerSleeper{}

	proxies, err := proxy.NewManager(cfg.ProxyList(), nil, jitter)
	if err != nil {
		return nil, err
	}

	detailMin, detailMax := cfg.DetailTimeout()
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.Options{
		TimeoutMin:        detailMin,
		TimeoutMax:        detailMax,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Proxies:           proxies,
		Jitter:            jitter,
	}, m, logger.Named("http"))

	var detailSource fetcher.PageFetcher = httpFetcher
	if cfg.RenderMode == config.RenderBrowser {
		browser := fetcher.NewBrowserFetcher(cfg.BrowserTimeout(), proxies, m, logger.Named("browser"))
		p.closers = append(p.closers, browser.Close)
		detailSource = browser
	}

	cooldownMin, cooldownMax := cfg.RetryCooldown()
	policy := fetcher.RetryPolicy{
		MaxAttempts:    cfg.MaxRetries,
		BaseDelay:      cfg.BaseBackoff(),
		CooldownBefore: 3,
		CooldownMin:    cooldownMin,
		CooldownMax:    cooldownMax,
		Retriable:      fetcher.RetriableStatus,
		Jitter:         jitter,
	}

	details := fetcher.NewRetryingFetcher(detailSource, policy, sleeper, jitter, detailMin, detailMax, m, logger.Named("detail"))
	imageMin, imageMax := cfg.ImageTimeout()
	images := fetcher.NewRetryingFetcher(httpFetcher, policy, sleeper, jitter, detailMin, detailMax, m, logger.Named("image")).
		WithProfile("image", imageMin, imageMax)

	links := collector.New(cfg.BaseURL, httpFetcher, jitter, m, logger.Named("collector"))
	extract := extractor.New(images, disclaimer, logger.Named("extractor"))
	files := storage.NewFileStore(cfg.DataDir)

	var dedup crawler.Deduper
	if cfg.RedisAddr != "" {
		redis := storage.NewRedisStore(cfg.RedisAddr)
		if err := redis.Ping(ctx); err != nil {
			p.Close()
			_ = redis.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		p.redis = redis
		p.closers = append(p.closers, func() { _ = redis.Close() })
		dedup = redis
		logger.Info("redis deduplication enabled", zap.Duration("ttl", cfg.DedupTTL()))
	}

	paceMin, paceMax := cfg.Pace()
	failMin, failMax := cfg.FailureCooldown()
	opts := crawler.Options{
		PaceMin:     paceMin,
		PaceMax:     paceMax,
		CooldownMin: failMin,
		CooldownMax: failMax,
		DedupTTL:    cfg.DedupTTL(),
	}

	p.crawler = crawler.NewCrawler(links, details, extract, files, dedup, sleeper, jitter, opts, m, logger.Named("crawler"))

	if cfg.PostgresURL != "" {
		pg, err := openPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.postgres = pg
		p.closers = append(p.closers, pg.Close)
		p.crawler.WithFailureLog(pg)
	}
	return p, nil
}

// openPostgres connects and makes sure both tables exist.
func openPostgres(ctx context.Context, connStr string) (*storage.PostgresStore, error) {
	pg, err := storage.NewPostgresStore(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}
