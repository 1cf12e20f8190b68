// Package aggregate merges per-item records into a single table.
package aggregate

import (
	"context"
	"sort"

	"github.com/user/animerank-crawler/internal/domain"
	"github.com/user/animerank-crawler/internal/storage"
)

// Aggregate builds a table whose columns are the union of all record keys.
// Cells missing from a record, or holding an empty value, become absent.
// The input records are not modified.
func Aggregate(records []domain.RawRecord) (*domain.Table, error) {
	if len(records) == 0 {
		return nil, domain.ErrEmptyInput
	}

	set := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			set[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(set))
	for k := range set {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	rows := make([]domain.RawRecord, len(records))
	for i, rec := range records {
		row := make(domain.RawRecord, len(columns))
		for _, col := range columns {
			v, ok := rec[col]
			if !ok || v.IsEmpty() {
				v = domain.NotFound
			}
			row[col] = v
		}
		rows[i] = row
	}
	return &domain.Table{Columns: columns, Rows: rows}, nil
}

// LoadDir reads every record file in dir and aggregates them.
func LoadDir(ctx context.Context, dir string) (*domain.Table, error) {
	records, err := storage.NewFileStore(dir).LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return Aggregate(records)
}
