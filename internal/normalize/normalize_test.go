package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/aggregate"
	"github.com/user/animerank-crawler/internal/domain"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestParseAired(t *testing.T) {
	tests := []struct {
		in     string
		start  *time.Time
		end    *time.Time
		points int
		days   *int
	}{
		{in: "Apr 5, 2020 to Jun 28, 2020", start: date(2020, 4, 5), end: date(2020, 6, 28), points: 2, days: intp(84)},
		{in: "2020", start: date(2020, 1, 1), points: 1},
		{in: "Unknown to ?", points: 2},
		{in: "Oct 2006 to Jul 2007", start: date(2006, 10, 1), end: date(2007, 7, 1), points: 2, days: intp(273)},
		{in: "apr 3, 2009 to ?", start: date(2009, 4, 3), points: 2},
		{in: "Foo 3, 2009 to Jul 4, 2010", end: date(2010, 7, 4), points: 2},
		{in: "Feb 30, 2020 to Mar 1, 2020", end: date(2020, 3, 1), points: 2},
		{in: "Sep 1, 2001 to Sep 1, 2001", start: date(2001, 9, 1), end: date(2001, 9, 1), points: 2, days: intp(0)},
		{in: "", points: 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r := ParseAired(tt.in)
			assert.Equal(t, tt.start, r.Start)
			assert.Equal(t, tt.end, r.End)
			assert.Equal(t, tt.points, r.Points)
			assert.Equal(t, tt.days, RunLengthDays(r))
		})
	}
}

func intp(v int) *int { return &v }

func TestParseNumbers(t *testing.T) {
	v, err := ParseInt("123,456")
	require.NoError(t, err)
	assert.Equal(t, 123456, v)

	v, err = ParseInt("#22")
	require.NoError(t, err)
	assert.Equal(t, 22, v)

	_, err = ParseInt("N/A")
	assert.Error(t, err)

	f, err := ParseFloat("8.45")
	require.NoError(t, err)
	assert.InDelta(t, 8.45, f, 1e-9)

	f, err = ParseFloat("8,45")
	require.NoError(t, err)
	assert.InDelta(t, 8.45, f, 1e-9)
}

func TestNormalize_Empty(t *testing.T) {
	_, err := New(zap.NewNop()).Normalize(&domain.Table{})
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestNormalize_Pipeline(t *testing.T) {
	full := domain.RawRecord{
		domain.FieldTitle:        domain.TextValue("Fullmetal Alchemist: Brotherhood"),
		domain.FieldTitleEnglish: domain.TextValue("Fullmetal Alchemist: Brotherhood"),
		domain.FieldSynopsis:     domain.TextValue("Two brothers..."),
		domain.FieldGenres:       domain.ListValue([]string{"Action Action", "Adventure"}),
		domain.FieldTheme:        domain.TextValue("MilitaryMilitary"),
		domain.FieldDemographic:  domain.TextValue("ShounenShounen"),
		domain.FieldScore:        domain.TextValue("8.45"),
		domain.FieldScoreCount:   domain.TextValue("123,456"),
		domain.FieldRanked:       domain.TextValue("#22"),
		domain.FieldPopularity:   domain.TextValue("#3"),
		domain.FieldMembers:      domain.TextValue("3,450,123"),
		domain.FieldFavorites:    domain.TextValue("228,456"),
		domain.FieldAired:        domain.TextValue("Apr 5, 2020 to Jun 28, 2020"),
		domain.FieldImage:        domain.BytesValue([]byte{1}),
		"type":                   domain.TextValue("TV"),
	}
	sparse := domain.RawRecord{
		domain.FieldTitle:        domain.TextValue("Sparse"),
		domain.FieldTitleEnglish: domain.TextValue("Sparse"),
		domain.FieldGenre:        domain.ListValue([]string{"Drama"}),
		domain.FieldDemographics: domain.TextValue("Seinen"),
		domain.FieldThemes:       domain.TextValue("Music, School School"),
		domain.FieldRanked:       domain.TextValue("N/A"),
		domain.FieldAired:        domain.TextValue("2020"),
	}

	table, err := aggregate.Aggregate([]domain.RawRecord{full, sparse})
	require.NoError(t, err)

	recs, err := New(zap.NewNop()).Normalize(table)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	a := recs[0]
	assert.Equal(t, "Fullmetal Alchemist: Brotherhood", a.Title)
	require.NotNil(t, a.Synopsis)
	assert.Equal(t, []string{"Action", "Adventure"}, a.Genres)
	assert.Equal(t, []string{"Military"}, a.Themes)
	require.NotNil(t, a.Demographic)
	assert.Equal(t, "Shounen", *a.Demographic)
	require.NotNil(t, a.Score)
	assert.InDelta(t, 8.45, *a.Score, 1e-9)
	assert.Equal(t, intp(123456), a.ScoreCount)
	assert.Equal(t, intp(22), a.Ranked)
	assert.Equal(t, intp(3), a.Popularity)
	assert.Equal(t, intp(3450123), a.Members)
	assert.Equal(t, intp(228456), a.Favorites)
	assert.Equal(t, intp(84), a.RunLengthDays)
	assert.Equal(t, []byte{1}, a.Image)
	require.Contains(t, a.Extra, "type")
	assert.Equal(t, "TV", *a.Extra["type"])
	assert.NotContains(t, a.Extra, domain.FieldGenre)
	assert.NotContains(t, a.Extra, domain.FieldTheme)
	assert.NotContains(t, a.Extra, domain.FieldDemographics)

	b := recs[1]
	assert.Nil(t, b.Synopsis)
	assert.Equal(t, []string{"Drama"}, b.Genres)
	assert.Equal(t, []string{"Music", "School"}, b.Themes)
	require.NotNil(t, b.Demographic)
	assert.Equal(t, "Seinen", *b.Demographic)
	assert.Nil(t, b.Ranked, "unparsable rank is absent")
	assert.Nil(t, b.Score)
	assert.Nil(t, b.Members)
	assert.Nil(t, b.Image)
	assert.Equal(t, date(2020, 1, 1), b.Aired.Start)
	assert.Nil(t, b.Aired.End)
	assert.Nil(t, b.RunLengthDays)
	assert.Nil(t, b.Extra["type"])
}
