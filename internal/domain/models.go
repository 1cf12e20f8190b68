package domain

import (
	"sort"
	"time"
)

// Link identifies a detail page. It is only ever dereferenced through a fetcher.
type Link string

// Field names written by the extractor and read by the normalizer.
const (
	FieldTitle        = "title"
	FieldTitleEnglish = "title_english"
	FieldSynopsis     = "synopsis"
	FieldGenres       = "genres"
	FieldGenre        = "genre"
	FieldThemes       = "themes"
	FieldTheme        = "theme"
	FieldDemographic  = "demographic"
	FieldDemographics = "demographics"
	FieldScore        = "score"
	FieldScoreCount   = "score_count"
	FieldRanked       = "ranked"
	FieldPopularity   = "popularity"
	FieldMembers      = "members"
	FieldFavorites    = "favorites"
	FieldAired        = "aired"
	FieldImage        = "image"
)

// RequiredFields are present on every RawRecord, absent or not.
var RequiredFields = []string{
	FieldTitle,
	FieldTitleEnglish,
	FieldSynopsis,
	FieldGenres,
	FieldDemographic,
	FieldScore,
	FieldScoreCount,
	FieldRanked,
	FieldImage,
}

// Page is the raw result of a single request.
type Page struct {
	Link        Link
	StatusCode  int
	Body        []byte
	ContentType string
	FetchedAt   time.Time
}

// RawRecord holds the fields extracted from one detail page.
type RawRecord map[string]Value

// NewRawRecord returns a record with every required field set to NotFound.
func NewRawRecord() RawRecord {
	rec := make(RawRecord, len(RequiredFields))
	for _, f := range RequiredFields {
		rec[f] = NotFound
	}
	return rec
}

// Get returns the value stored under key, or NotFound.
func (r RawRecord) Get(key string) Value {
	if v, ok := r[key]; ok {
		return v
	}
	return NotFound
}

// Keys returns the record's field names in sorted order.
func (r RawRecord) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Title returns the record title, or an empty string if it is absent.
func (r RawRecord) Title() string {
	s, _ := r.Get(FieldTitle).Text()
	return s
}

// Table is the aggregated set of records. Every row carries every column.
type Table struct {
	Columns []string
	Rows    []RawRecord
}

// DateRange is the parsed form of the "aired" field. Points counts the
// sides present in the source text, resolved or not.
type DateRange struct {
	Start  *time.Time
	End    *time.Time
	Points int
}

// NormalizedRecord is one cleaned table row. Nil pointers mark absent values.
type NormalizedRecord struct {
	Title         string
	TitleEnglish  string
	Synopsis      *string
	Genres        []string
	Themes        []string
	Demographic   *string
	Score         *float64
	ScoreCount    *int
	Ranked        *int
	Popularity    *int
	Members       *int
	Favorites     *int
	Aired         DateRange
	RunLengthDays *int
	Image         []byte
	Extra         map[string]*string
}

// FailedLink is the last recorded failure of a detail link.
type FailedLink struct {
	Link          Link      `json:"link"`
	Stage         string    `json:"stage"`
	StatusCode    int       `json:"status_code,omitempty"`
	Reason        string    `json:"reason"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
	RetryCount    int       `json:"retry_count"`
}
