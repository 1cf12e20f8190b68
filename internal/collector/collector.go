package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/fetcher"
	"github.com/user/animerank-crawler/internal/monitoring"
	"github.com/user/animerank-crawler/internal/pacing"
)

// PageSize is the number of items on one listing page.
const PageSize = 50

const cellSelector = "td.title.al.va-t.word-break"

// Collector discovers detail-page links from the ranked listing.
type Collector struct {
	baseURL    string
	fetcher    fetcher.PageFetcher
	jitter     *pacing.Jitter
	timeoutMin time.Duration
	timeoutMax time.Duration
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func New(baseURL string, f fetcher.PageFetcher, jitter *pacing.Jitter, m *monitoring.Metrics, logger *zap.Logger) *Collector {
	if jitter == nil {
		jitter = pacing.NewJitter(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		baseURL:    baseURL,
		fetcher:    f,
		jitter:     jitter,
		timeoutMin: 2 * time.Second,
		timeoutMax: 5 * time.Second,
		metrics:    m,
		logger:     logger,
	}
}

// ValidateRange checks that start and total line up with listing pages.
func ValidateRange(start, total int) error {
	if total <= 0 || total%PageSize != 0 {
		return fmt.Errorf("%w: total %d is not a positive multiple of %d", domain.ErrInvalidArgument, total, PageSize)
	}
	if start < 0 || start%PageSize != 0 {
		return fmt.Errorf("%w: start %d is not a non-negative multiple of %d", domain.ErrInvalidArgument, start, PageSize)
	}
	return nil
}

// Pages returns the listing offsets visited for a range, start through
// start+total inclusive.
func Pages(start, total int) []int {
	offsets := make([]int, 0, total/PageSize+1)
	for off := start; off <= start+total; off += PageSize {
		offsets = append(offsets, off)
	}
	return offsets
}

// Collect fetches every listing page in the range and returns the links found,
// in listing order without duplicates. A page that fails to load contributes
// nothing; only an invalid range or cancellation is returned as an error.
func (c *Collector) Collect(ctx context.Context, start, total int) ([]domain.Link, error) {
	if err := ValidateRange(start, total); err != nil {
		return nil, err
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %v", domain.ErrInvalidArgument, err)
	}

	seen := make(map[domain.Link]struct{})
	var links []domain.Link
	for _, offset := range Pages(start, total) {
		if err := ctx.Err(); err != nil {
			return links, err
		}

		page, err := c.fetcher.Fetch(ctx, fetcher.Request{
			URL:     c.baseURL,
			Method:  http.MethodPost,
			Query:   url.Values{"limit": {strconv.Itoa(offset)}},
			Timeout: c.jitter.Between(c.timeoutMin, c.timeoutMax),
			Kind:    "listing",
		})
		if err != nil {
			if ctx.Err() != nil {
				return links, ctx.Err()
			}
			c.logger.Warn("listing page failed", zap.Int("offset", offset), zap.Error(err))
			c.metrics.IncErrorsTotal("listing_failed")
			continue
		}
		if page.StatusCode != http.StatusOK {
			c.logger.Warn("listing page failed", zap.Int("offset", offset), zap.Int("status", page.StatusCode))
			c.metrics.IncErrorsTotal("listing_failed")
			continue
		}

		found, err := ParseListing(base, page.Body)
		if err != nil {
			c.logger.Warn("listing page unparsable", zap.Int("offset", offset), zap.Error(err))
			c.metrics.IncErrorsTotal("listing_failed")
			continue
		}
		c.logger.Info("listing page collected", zap.Int("offset", offset), zap.Int("links", len(found)))

		for _, l := range found {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			links = append(links, l)
		}
	}
	return links, nil
}

// ParseListing extracts the detail links of one listing page, resolved against base.
func ParseListing(base *url.URL, body []byte) ([]domain.Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var links []domain.Link
	doc.Find(cellSelector).Each(func(_ int, cell *goquery.Selection) {
		href, ok := cell.Find("a").First().Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			u = base.ResolveReference(u)
		}
		links = append(links, domain.Link(u.String()))
	})
	return links, nil
}
