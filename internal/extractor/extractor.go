package extractor

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/domain"
)

// ImageFetcher downloads the cover image bytes.
type ImageFetcher interface {
	Fetch(ctx context.Context, link domain.Link) (*domain.Page, error)
}

// Extractor turns a detail page into a RawRecord.
type Extractor struct {
	images     ImageFetcher
	disclaimer *regexp.Regexp
	logger     *zap.Logger
}

// New creates an Extractor. images may be nil, in which case records carry no image.
func New(images ImageFetcher, disclaimer *regexp.Regexp, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{images: images, disclaimer: disclaimer, logger: logger}
}

// Extract parses content and fills a record. Missing elements become absent
// values; only unparsable markup is an error.
func (e *Extractor) Extract(ctx context.Context, content []byte, link domain.Link) (domain.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", link, err)
	}

	rec := domain.NewRawRecord()

	title, english := ExtractTitles(doc, link)
	rec[domain.FieldTitle] = domain.TextValue(title)
	rec[domain.FieldTitleEnglish] = domain.TextValue(english)
	rec[domain.FieldSynopsis] = ExtractSynopsis(doc)

	for label, v := range ExtractMetadata(doc, e.disclaimer) {
		rec[label] = v
	}

	for _, f := range []string{domain.FieldSynopsis, domain.FieldGenres, domain.FieldScore, domain.FieldDemographic, domain.FieldRanked} {
		if rec.Get(f).IsAbsent() {
			e.logger.Debug("field not found", zap.String("url", string(link)), zap.String("field", f))
		}
	}

	rec[domain.FieldImage] = e.image(ctx, doc, link)
	return rec, nil
}

func (e *Extractor) image(ctx context.Context, doc *goquery.Document, link domain.Link) domain.Value {
	src, ok := ImageURL(doc, link)
	if !ok {
		e.logger.Debug("no image reference", zap.String("url", string(link)))
		return domain.NotFound
	}
	if e.images == nil {
		return domain.NotFound
	}

	page, err := e.images.Fetch(ctx, domain.Link(src))
	if err != nil {
		e.logger.Warn("image fetch failed",
			zap.String("url", string(link)),
			zap.String("image", src),
			zap.Error(err),
		)
		return domain.NotFound
	}
	if len(page.Body) == 0 {
		return domain.NotFound
	}
	return domain.BytesValue(page.Body)
}
