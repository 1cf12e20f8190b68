package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/animerank-crawler/internal/domain"
)

func TestFileName(t *testing.T) {
	day := time.Date(2025, 7, 4, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, "Steins;Gate20250704.json", FileName("Steins;Gate", day))
	assert.Equal(t, "Fate Zero20250704.json", FileName("Fate/ Zero", day))
	assert.Equal(t, "ab20250704.json", FileName(`a\b`, day))
	assert.Equal(t, "untitled20250704.json", FileName("//", day))
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	s.now = func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) }

	rec := domain.NewRawRecord()
	rec[domain.FieldTitle] = domain.TextValue("Cowboy/Bebop")
	rec[domain.FieldGenres] = domain.ListValue([]string{"Action", "Sci-Fi"})
	rec[domain.FieldImage] = domain.BytesValue([]byte{1, 2, 3})

	path, err := s.Save(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "CowboyBebop20250102.json"), path)

	// Stray files are ignored on load.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.json"), []byte("{"), 0o644))

	loaded, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got := loaded[0]
	assert.Equal(t, "Cowboy/Bebop", got.Title())
	genres, ok := got[domain.FieldGenres].List()
	require.True(t, ok)
	assert.Equal(t, []string{"Action", "Sci-Fi"}, genres)
	img, ok := got[domain.FieldImage].Bytes()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, img)
	assert.True(t, got[domain.FieldScore].IsAbsent())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestFileStore_LoadAllReportsBadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	_, err := NewFileStore(dir).LoadAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")
}

func TestFileStore_SaveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileStore(t.TempDir()).Save(ctx, domain.NewRawRecord())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrawledKey(t *testing.T) {
	a := crawledKey("https://myanimelist.net/anime/1/x")
	b := crawledKey("https://myanimelist.net/anime/2/y")

	assert.NotEqual(t, a, b)
	assert.Equal(t, a, crawledKey("https://myanimelist.net/anime/1/x"))
	assert.Len(t, a, len("crawled:")+64)
}
