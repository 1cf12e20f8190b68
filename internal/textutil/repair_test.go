package textutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/animerank-crawler/internal/textutil"
)

func TestRepairDuplicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "spaced repetition", in: "Action Action", want: "Action"},
		{name: "glued repetition", in: "ActionAction", want: "Action"},
		{name: "case insensitive", in: "Drama drama", want: "Drama"},
		{name: "phrase", in: "Award Winning Award Winning", want: "Award Winning"},
		{name: "triple", in: "Comedy Comedy Comedy", want: "Comedy"},
		{name: "untouched", in: "Shounen", want: "Shounen"},
		{name: "multi word untouched", in: "Slice of Life", want: "Slice of Life"},
		{name: "surrounding space", in: "  Sci-Fi  ", want: "Sci-Fi"},
		{name: "repeat after a word", in: "Gag Humor Humor", want: "Gag Humor"},
		{name: "repeat after two words", in: "Slice of Life Life", want: "Slice of Life"},
		{name: "short repeat after a word", in: "Shoujo Ai Ai", want: "Shoujo Ai"},
		{name: "phrase tail repeat", in: "Award Winning Winning", want: "Award Winning"},
		{name: "hyphenated glued", in: "Sci-FiSci-Fi", want: "Sci-Fi"},
		{name: "hyphenated spaced", in: "Sci-Fi Sci-Fi", want: "Sci-Fi"},
		{name: "equal halves collapse", in: "Bebe", want: "Be"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, textutil.RepairDuplicates(tt.in))
		})
	}
}

func TestRepairDuplicates_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Action Action",
		"AdventureAdventure",
		"Gourmet",
		"Mecha Mecha Mecha",
		"Mythology Mythology, Historical",
		"x xy xy",
		"Boys Love",
		"Gag Humor Humor",
		"Sci-FiSci-Fi",
	}
	for _, in := range inputs {
		once := textutil.RepairDuplicates(in)
		assert.Equal(t, once, textutil.RepairDuplicates(once), "input %q", in)
	}

	list := []string{"ActionAction", " Drama Drama", "Fantasy"}
	once := textutil.RepairList(list)
	assert.Equal(t, []string{"Action", "Drama", "Fantasy"}, once)
	assert.Equal(t, once, textutil.RepairList(once))
}

func TestRepairList_Absent(t *testing.T) {
	t.Parallel()

	assert.Nil(t, textutil.RepairList(nil))
	assert.Nil(t, textutil.RepairList([]string{}))
	assert.Nil(t, textutil.RepairList([]string{" ", ""}))
	assert.Nil(t, textutil.SplitTags(""))
}

func TestSplitTags(t *testing.T) {
	t.Parallel()

	got := textutil.SplitTags("GoreGore, Military Military,Survival")
	assert.Equal(t, []string{"Gore", "Military", "Survival"}, got)

	got = textutil.SplitTags("Comedy, Gag Humor Humor, Sci-FiSci-Fi")
	assert.Equal(t, []string{"Comedy", "Gag Humor", "Sci-Fi"}, got)
}

func TestRepair_Optional(t *testing.T) {
	assert.Nil(t, textutil.Repair(nil))

	blank := "  "
	assert.Nil(t, textutil.Repair(&blank))

	s := "Romance Romance"
	assert.Equal(t, []string{"Romance"}, textutil.Repair(&s))
}
