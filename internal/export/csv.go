// Package export writes normalized records as a CSV table.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/animerank-crawler/internal/domain"
)

const dateLayout = "2006-01-02"

// Columns is the fixed part of the header; extra columns follow in sorted order.
var Columns = []string{
	"title", "title_english", "synopsis", "genres", "themes", "demographic",
	"score", "score_count", "ranked", "popularity", "members", "favorites",
	"aired_start", "aired_end", "run_length_days", "has_image",
}

// WriteCSV writes records to w. Lists are joined with "|", dates use
// YYYY-MM-DD and absent values are empty cells.
func WriteCSV(w io.Writer, records []domain.NormalizedRecord) error {
	extra := extraColumns(records)

	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, Columns...), extra...)); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Title,
			r.TitleEnglish,
			str(r.Synopsis),
			strings.Join(r.Genres, "|"),
			strings.Join(r.Themes, "|"),
			str(r.Demographic),
			float(r.Score),
			integer(r.ScoreCount),
			integer(r.Ranked),
			integer(r.Popularity),
			integer(r.Members),
			integer(r.Favorites),
			day(r.Aired.Start),
			day(r.Aired.End),
			integer(r.RunLengthDays),
			strconv.FormatBool(len(r.Image) > 0),
		}
		for _, col := range extra {
			row = append(row, str(r.Extra[col]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the CSV to path, creating parent directories.
func WriteFile(path string, records []domain.NormalizedRecord) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func extraColumns(records []domain.NormalizedRecord) []string {
	set := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Extra {
			set[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for k := range set {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func integer(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func float(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func day(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
