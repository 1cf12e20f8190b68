package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/monitoring"
	"github.com/user/animerank-crawler/internal/pacing"
	"github.com/user/animerank-crawler/internal/proxy"
)

var errBodyTooLarge = errors.New("response body too large")

// PageFetcher issues a single request and returns the page whatever its status.
// Transport failures are reported as *domain.TransientFetchError.
type PageFetcher interface {
	Fetch(ctx context.Context, req Request) (*domain.Page, error)
}

// Request describes one outbound request.
type Request struct {
	URL    string
	Method string
	Query  url.Values
	// Timeout overrides the fetcher's randomized timeout range when positive.
	Timeout time.Duration
	// Kind labels the request in metrics: "listing", "detail", "image".
	Kind string
}

// DefaultHeaders is the browser-like header set sent with every request.
var DefaultHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language":           "en,en-GB;q=0.9,en-US;q=0.8",
	"Accept-Encoding":           "gzip, deflate, br",
	"Cache-Control":             "max-age=0",
	"Priority":                  "u=0, i",
	"Sec-Ch-Ua":                 `"Google Chrome";v="137", "Chromium";v="137", "Not/A)Brand";v="24"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"Windows"`,
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Upgrade-Insecure-Requests": "1",
}

// Options is built once per run from the configuration.
type Options struct {
	Headers           map[string]string
	TimeoutMin        time.Duration
	TimeoutMax        time.Duration
	MaxBodyBytes      int64
	RequestsPerSecond float64
	Proxies           *proxy.Manager
	Jitter            *pacing.Jitter
}

// HTTPFetcher implements PageFetcher via the Go http.Client.
type HTTPFetcher struct {
	client       *http.Client
	headers      map[string]string
	timeoutMin   time.Duration
	timeoutMax   time.Duration
	maxBodyBytes int64
	limiter      *rate.Limiter
	proxies      *proxy.Manager
	jitter       *pacing.Jitter
	metrics      *monitoring.Metrics
	logger       *zap.Logger
}

// NewHTTPFetcher constructs an HTTP fetcher using the provided options.
func NewHTTPFetcher(opts Options, m *monitoring.Metrics, logger *zap.Logger) *HTTPFetcher {
	if opts.TimeoutMin <= 0 {
		opts.TimeoutMin = 2 * time.Second
	}
	if opts.TimeoutMax < opts.TimeoutMin {
		opts.TimeoutMax = opts.TimeoutMin
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 * 1024 * 1024 // 10MB cap, covers cover images
	}
	if opts.Jitter == nil {
		opts.Jitter = pacing.NewJitter(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Proxies != nil {
		transport.Proxy = opts.Proxies.ProxyFunc()
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	headers := make(map[string]string, len(DefaultHeaders)+len(opts.Headers))
	for k, v := range DefaultHeaders {
		headers[k] = v
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &HTTPFetcher{
		client:       &http.Client{Transport: transport},
		headers:      headers,
		timeoutMin:   opts.TimeoutMin,
		timeoutMax:   opts.TimeoutMax,
		maxBodyBytes: opts.MaxBodyBytes,
		limiter:      rate.NewLimiter(limit, 1),
		proxies:      opts.Proxies,
		jitter:       opts.Jitter,
		metrics:      m,
		logger:       logger,
	}
}

// Fetch performs one request under the shared rate limit and a randomized timeout.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (*domain.Page, error) {
	link := domain.Link(req.URL)
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.jitter.Between(f.timeoutMin, f.timeoutMax)
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := req.URL
	if len(req.Query) > 0 {
		u, err := url.Parse(req.URL)
		if err != nil {
			return nil, fmt.Errorf("parse url %q: %w", req.URL, err)
		}
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range f.headers {
		httpReq.Header.Set(k, v)
	}
	if f.proxies != nil {
		httpReq.Header.Set("User-Agent", f.proxies.GetUserAgent())
	} else if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", proxy.DefaultUserAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(httpReq)
	f.metrics.ObserveFetch(kindOrDefault(req.Kind), time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			// The caller gave up; this is not the site's fault.
			return nil, ctx.Err()
		}
		return nil, &domain.TransientFetchError{Link: link, Err: err}
	}

	body, err := f.readBody(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, errBodyTooLarge) {
			return nil, err
		}
		return nil, &domain.TransientFetchError{Link: link, StatusCode: resp.StatusCode, Err: err}
	}

	f.logger.Debug("fetched",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	return &domain.Page{
		Link:        link,
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FetchedAt:   time.Now(),
	}, nil
}

func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, f.maxBodyBytes)
	}
	return body, nil
}

func kindOrDefault(kind string) string {
	if kind == "" {
		return "page"
	}
	return kind
}
