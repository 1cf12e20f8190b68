package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/storage"
)

func TestAggregate_Empty(t *testing.T) {
	_, err := Aggregate(nil)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestAggregate_UnionAndFill(t *testing.T) {
	a := domain.RawRecord{
		"title":   domain.TextValue("A"),
		"members": domain.TextValue("1,000"),
		"genres":  domain.ListValue(nil),
	}
	b := domain.RawRecord{
		"title": domain.TextValue("B"),
		"theme": domain.ListValue([]string{"Gore"}),
		"aired": domain.TextValue(""),
	}

	table, err := Aggregate([]domain.RawRecord{a, b})
	require.NoError(t, err)

	assert.Equal(t, []string{"aired", "genres", "members", "theme", "title"}, table.Columns)
	require.Len(t, table.Rows, 2)
	for _, row := range table.Rows {
		assert.Equal(t, table.Columns, row.Keys())
	}

	assert.True(t, table.Rows[0]["theme"].IsAbsent())
	assert.True(t, table.Rows[0]["aired"].IsAbsent())
	assert.True(t, table.Rows[0]["genres"].IsAbsent(), "empty list counts as missing")
	assert.True(t, table.Rows[1]["members"].IsAbsent())
	assert.True(t, table.Rows[1]["aired"].IsAbsent(), "empty text counts as missing")

	members, _ := table.Rows[0]["members"].Text()
	assert.Equal(t, "1,000", members)

	// Inputs are left alone.
	assert.NotContains(t, a, "theme")
	assert.Len(t, b, 3)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFileStore(dir)

	first := domain.NewRawRecord()
	first[domain.FieldTitle] = domain.TextValue("One")
	first["popularity"] = domain.TextValue("#10")
	second := domain.NewRawRecord()
	second[domain.FieldTitle] = domain.TextValue("Two")

	_, err := store.Save(context.Background(), first)
	require.NoError(t, err)
	_, err = store.Save(context.Background(), second)
	require.NoError(t, err)

	table, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Contains(t, table.Columns, "popularity")
	for _, row := range table.Rows {
		assert.Len(t, row, len(table.Columns))
	}
}

func TestLoadDir_EmptyDir(t *testing.T) {
	_, err := LoadDir(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}
