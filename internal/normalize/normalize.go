// Package normalize turns the aggregated table into typed records.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/textutil"
)

// schemaColumns are mapped onto NormalizedRecord fields; everything else is
// carried in Extra. Alternate spellings are folded in and dropped.
var schemaColumns = map[string]bool{
	domain.FieldTitle:        true,
	domain.FieldTitleEnglish: true,
	domain.FieldSynopsis:     true,
	domain.FieldGenres:       true,
	domain.FieldGenre:        true,
	domain.FieldThemes:       true,
	domain.FieldTheme:        true,
	domain.FieldDemographic:  true,
	domain.FieldDemographics: true,
	domain.FieldScore:        true,
	domain.FieldScoreCount:   true,
	domain.FieldRanked:       true,
	domain.FieldPopularity:   true,
	domain.FieldMembers:      true,
	domain.FieldFavorites:    true,
	domain.FieldAired:        true,
	domain.FieldImage:        true,
}

type Normalizer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize cleans every row of table. Values that fail to parse become
// absent and are logged; they never fail the whole table.
func (n *Normalizer) Normalize(table *domain.Table) ([]domain.NormalizedRecord, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, domain.ErrEmptyInput
	}
	out := make([]domain.NormalizedRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		out = append(out, n.Row(row))
	}
	return out, nil
}

// Row normalizes a single aggregated row.
func (n *Normalizer) Row(row domain.RawRecord) domain.NormalizedRecord {
	var rec domain.NormalizedRecord
	rec.Title, _ = row.Get(domain.FieldTitle).Text()
	rec.TitleEnglish, _ = row.Get(domain.FieldTitleEnglish).Text()
	rec.Synopsis = textPtr(row.Get(domain.FieldSynopsis))
	if img, ok := row.Get(domain.FieldImage).Bytes(); ok && len(img) > 0 {
		rec.Image = img
	}
	log := n.logger.With(zap.String("title", rec.Title))

	rec.Ranked = n.parseInt(log, row, domain.FieldRanked)
	rec.Popularity = n.parseInt(log, row, domain.FieldPopularity)
	rec.Favorites = n.parseInt(log, row, domain.FieldFavorites)
	rec.Members = n.parseInt(log, row, domain.FieldMembers)
	rec.ScoreCount = n.parseInt(log, row, domain.FieldScoreCount)
	rec.Score = n.parseFloat(log, row, domain.FieldScore)

	genres := unify(row, domain.FieldGenres, domain.FieldGenre)
	themes := unify(row, domain.FieldThemes, domain.FieldTheme)
	demographic := unify(row, domain.FieldDemographic, domain.FieldDemographics)

	rec.Genres = tags(genres)
	rec.Themes = tags(themes)
	if d := tags(demographic); len(d) > 0 {
		s := strings.Join(d, ", ")
		rec.Demographic = &s
	}

	if aired, ok := row.Get(domain.FieldAired).Text(); ok {
		rec.Aired = ParseAired(aired)
		if rec.Aired.Start == nil || (rec.Aired.Points > 1 && rec.Aired.End == nil) {
			log.Debug("unresolved aired date", zap.String("aired", aired))
		}
	}
	rec.RunLengthDays = RunLengthDays(rec.Aired)

	for col, v := range row {
		if schemaColumns[col] {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]*string)
		}
		rec.Extra[col] = textPtr(v)
	}
	return rec
}

func (n *Normalizer) parseInt(log *zap.Logger, row domain.RawRecord, col string) *int {
	s, ok := row.Get(col).Text()
	if !ok {
		return nil
	}
	v, err := ParseInt(s)
	if err != nil {
		log.Debug("numeric parse failed", zap.String("column", col), zap.String("value", s), zap.Error(err))
		return nil
	}
	return &v
}

func (n *Normalizer) parseFloat(log *zap.Logger, row domain.RawRecord, col string) *float64 {
	s, ok := row.Get(col).Text()
	if !ok {
		return nil
	}
	v, err := ParseFloat(s)
	if err != nil {
		log.Debug("numeric parse failed", zap.String("column", col), zap.String("value", s), zap.Error(err))
		return nil
	}
	return &v
}

// ParseInt accepts "#22", "1,234,567" and plain integers.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "#")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse int %q: %w", s, err)
	}
	return v, nil
}

// ParseFloat accepts "8.45" and the decimal-comma form "8,45".
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float %q: %w", s, err)
	}
	return v, nil
}

// unify prefers the primary column and falls back to its alternate spelling.
func unify(row domain.RawRecord, primary, alternate string) domain.Value {
	if v := row.Get(primary); !v.IsEmpty() {
		return v
	}
	return row.Get(alternate)
}

// tags repairs a tag cell. Text is split on commas first.
func tags(v domain.Value) []string {
	if items, ok := v.List(); ok {
		return textutil.RepairList(items)
	}
	if s, ok := v.Text(); ok {
		return textutil.SplitTags(s)
	}
	return nil
}

func textPtr(v domain.Value) *string {
	switch v.Kind() {
	case domain.KindText:
		s, _ := v.Text()
		return &s
	case domain.KindList:
		items, _ := v.List()
		s := strings.Join(items, ", ")
		return &s
	default:
		return nil
	}
}
