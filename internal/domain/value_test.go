package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/animerank-crawler/internal/domain"
)

func TestValue_JSON(t *testing.T) {
	t.Parallel()

	t.Run("absent values are written as the sentinel", func(t *testing.T) {
		t.Parallel()

		rec := domain.NewRawRecord()
		data, err := json.Marshal(rec)
		require.NoError(t, err)

		var generic map[string]any
		require.NoError(t, json.Unmarshal(data, &generic))
		assert.Equal(t, domain.Sentinel, generic[domain.FieldTitle])
		assert.Len(t, generic, len(domain.RequiredFields))
	})

	t.Run("sentinel text decodes to absent, not to text", func(t *testing.T) {
		t.Parallel()

		var rec domain.RawRecord
		require.NoError(t, json.Unmarshal([]byte(`{"ranked":"Not found","title":"Not found anymore","image":false}`), &rec))

		assert.True(t, rec.Get(domain.FieldRanked).IsAbsent())
		assert.True(t, rec.Get(domain.FieldImage).IsAbsent())
		title, ok := rec.Get(domain.FieldTitle).Text()
		require.True(t, ok)
		assert.Equal(t, "Not found anymore", title)
	})

	t.Run("bytes and lists keep their kind", func(t *testing.T) {
		t.Parallel()

		rec := domain.RawRecord{
			domain.FieldImage:  domain.BytesValue([]byte{0xff, 0xd8, 0x00}),
			domain.FieldGenres: domain.ListValue([]string{"Action", "Drama"}),
		}
		data, err := json.Marshal(rec)
		require.NoError(t, err)

		var back domain.RawRecord
		require.NoError(t, json.Unmarshal(data, &back))

		img, ok := back.Get(domain.FieldImage).Bytes()
		require.True(t, ok)
		assert.Equal(t, []byte{0xff, 0xd8, 0x00}, img)

		genres, ok := back.Get(domain.FieldGenres).List()
		require.True(t, ok)
		assert.Equal(t, []string{"Action", "Drama"}, genres)
	})
}

func TestValue_IsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.NotFound.IsEmpty())
	assert.True(t, domain.TextValue("").IsEmpty())
	assert.True(t, domain.ListValue(nil).IsEmpty())
	assert.True(t, domain.BytesValue(nil).IsEmpty())
	assert.False(t, domain.TextValue("x").IsEmpty())
}
