package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/user/animerank-crawler/internal/domain"
)

const recordExt = ".json"

// FileStore persists one JSON file per record in a directory.
type FileStore struct {
	dir string
	now func() time.Time
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// Dir returns the directory records are written to.
func (s *FileStore) Dir() string { return s.dir }

// FileName builds "<title without path separators><YYYYMMDD>.json".
func FileName(title string, day time.Time) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return -1
		}
		return r
	}, title)
	clean = strings.TrimSpace(clean)
	if clean == "" || clean == "." || clean == ".." {
		clean = "untitled"
	}
	return clean + day.Format("20060102") + recordExt
}

// Save writes rec to its dated file and returns the path. The file appears
// under its final name only once fully written.
func (s *FileStore) Save(ctx context.Context, rec domain.RawRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}

	path := filepath.Join(s.dir, FileName(rec.Title(), s.now()))
	tmp, err := os.CreateTemp(s.dir, ".record-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return path, nil
}

// LoadAll decodes every record file in the directory, in file name order.
// Hidden files and files without the record extension are ignored.
func (s *FileStore) LoadAll(ctx context.Context) ([]domain.RawRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var records []domain.RawRecord
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != recordExt {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var rec domain.RawRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
