package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/monitoring"
	"github.com/user/animerank-crawler/internal/proxy"
)

// BrowserFetcher renders pages in headless Chrome. It satisfies PageFetcher for
// GET requests of HTML documents; binary resources should go through HTTPFetcher.
type BrowserFetcher struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	headers     map[string]string
	timeout     time.Duration
	mu          sync.Mutex
	metrics     *monitoring.Metrics
	logger      *zap.Logger
}

// NewBrowserFetcher starts a Chrome allocator shared by all requests.
func NewBrowserFetcher(timeout time.Duration, proxies *proxy.Manager, m *monitoring.Metrics, logger *zap.Logger) *BrowserFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ua := proxy.DefaultUserAgent
	if proxies != nil {
		ua = proxies.GetUserAgent()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(ua),
	)
	if proxies != nil {
		if p := proxies.GetProxy(); p != nil {
			opts = append(opts, chromedp.ProxyServer(p.String()))
		}
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	headers := make(map[string]string, len(DefaultHeaders))
	for k, v := range DefaultHeaders {
		// Chrome negotiates encoding and fetch metadata itself.
		if k == "Accept-Encoding" || strings.HasPrefix(k, "Sec-") {
			continue
		}
		headers[k] = v
	}

	return &BrowserFetcher{
		allocCtx:    allocCtx,
		allocCancel: cancel,
		headers:     headers,
		timeout:     timeout,
		metrics:     m,
		logger:      logger,
	}
}

// Fetch navigates to the URL and returns the rendered document.
func (b *BrowserFetcher) Fetch(ctx context.Context, req Request) (*domain.Page, error) {
	target := req.URL
	if len(req.Query) > 0 {
		u, err := url.Parse(req.URL)
		if err != nil {
			return nil, err
		}
		u.RawQuery = req.Query.Encode()
		target = u.String()
	}

	timeout := req.Timeout
	if timeout <= 0 || timeout < b.timeout {
		// Rendering is slower than a plain GET; never go below the browser budget.
		timeout = b.timeout
	}

	// One tab at a time keeps request pacing identical to the HTTP path.
	b.mu.Lock()
	defer b.mu.Unlock()

	taskCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var (
		statusMu sync.Mutex
		status   int
	)
	chromedp.ListenTarget(taskCtx, func(ev interface{}) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument {
			return
		}
		statusMu.Lock()
		if status == 0 {
			status = int(resp.Response.Status)
		}
		statusMu.Unlock()
	})

	extra := make(network.Headers, len(b.headers))
	for k, v := range b.headers {
		extra[k] = v
	}

	var html string
	start := time.Now()
	err := chromedp.Run(taskCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(extra),
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	b.metrics.ObserveFetch(kindOrDefault(req.Kind), time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.Canceled) || b.allocCtx.Err() != nil {
			// The browser itself went away; retrying the same tab cannot help.
			b.logger.Error("browser unavailable", zap.String("url", target), zap.Error(err))
			return nil, fmt.Errorf("browser unavailable for %s: %w", target, err)
		}
		b.logger.Warn("browser navigation failed", zap.String("url", target), zap.Error(err))
		return nil, &domain.TransientFetchError{Link: domain.Link(req.URL), Err: err}
	}

	statusMu.Lock()
	code := status
	statusMu.Unlock()
	if code == 0 {
		code = http.StatusOK
	}

	return &domain.Page{
		Link:        domain.Link(req.URL),
		StatusCode:  code,
		Body:        []byte(html),
		ContentType: "text/html",
		FetchedAt:   time.Now(),
	}, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	b.allocCancel()
}
