package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/animerank-crawler/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS anime_records (
	title           TEXT PRIMARY KEY,
	title_english   TEXT NOT NULL,
	synopsis        TEXT,
	genres          TEXT[],
	themes          TEXT[],
	demographic     TEXT,
	score           DOUBLE PRECISION,
	score_count     INTEGER,
	ranked          INTEGER,
	popularity      INTEGER,
	members         INTEGER,
	favorites       INTEGER,
	aired_start     DATE,
	aired_end       DATE,
	run_length_days INTEGER,
	image           BYTEA,
	extra           JSONB,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const upsertRecord = `INSERT INTO anime_records (
	title, title_english, synopsis, genres, themes, demographic, score, score_count,
	ranked, popularity, members, favorites, aired_start, aired_end, run_length_days, image, extra
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
ON CONFLICT (title) DO UPDATE SET
	title_english = EXCLUDED.title_english, synopsis = EXCLUDED.synopsis,
	genres = EXCLUDED.genres, themes = EXCLUDED.themes, demographic = EXCLUDED.demographic,
	score = EXCLUDED.score, score_count = EXCLUDED.score_count, ranked = EXCLUDED.ranked,
	popularity = EXCLUDED.popularity, members = EXCLUDED.members, favorites = EXCLUDED.favorites,
	aired_start = EXCLUDED.aired_start, aired_end = EXCLUDED.aired_end,
	run_length_days = EXCLUDED.run_length_days, image = EXCLUDED.image, extra = EXCLUDED.extra,
	updated_at = NOW()`

// PostgresStore upserts normalized records into PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// EnsureSchema creates the records and failure tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{schema, failuresSchema} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// SaveRecords upserts records keyed by title within a single transaction.
func (s *PostgresStore) SaveRecords(ctx context.Context, records []domain.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(upsertRecord,
			r.Title, r.TitleEnglish, r.Synopsis, r.Genres, r.Themes, r.Demographic,
			r.Score, r.ScoreCount, r.Ranked, r.Popularity, r.Members, r.Favorites,
			r.Aired.Start, r.Aired.End, r.RunLengthDays, r.Image, extraOrNil(r.Extra),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert records: %w", err)
	}

	return tx.Commit(ctx)
}

func extraOrNil(extra map[string]*string) map[string]*string {
	if len(extra) == 0 {
		return nil
	}
	return extra
}
