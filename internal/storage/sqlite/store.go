package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chris8332558/chris-metac-bot-template/internal/extract"
	"github.com/chris8332558/chris-metac-bot-template/internal/forecast"
)

const (
	defaultPath = "data/forecasts.db"
)

// Store wraps a SQLite DB connection holding forecast history.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables ensures the forecasts table exists.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, forecastSchemaSQL)
	return err
}

const forecastSchemaSQL = `
CREATE TABLE IF NOT EXISTS forecasts (
	run_id TEXT PRIMARY KEY,
	question_id INTEGER NOT NULL,
	post_id INTEGER,
	title TEXT,
	question_type TEXT,
	probability REAL,
	distribution_json TEXT,
	research_degraded INTEGER NOT NULL DEFAULT 0,
	submitted INTEGER NOT NULL DEFAULT 0,
	reasoning TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS forecasts_question_idx ON forecasts(question_id);
`

// SaveForecast records one completed forecast.
func (s *Store) SaveForecast(ctx context.Context, rec forecast.Record) error {
	return s.SaveForecasts(ctx, rec)
}

// SaveForecasts upserts a batch of forecast records in one transaction.
func (s *Store) SaveForecasts(ctx context.Context, recs ...forecast.Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, upsertForecastSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		if err := execUpsert(ctx, stmt, rec); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

const upsertForecastSQL = `
INSERT INTO forecasts (
	run_id, question_id, post_id, title, question_type, probability,
	distribution_json, research_degraded, submitted, reasoning, created_at
) VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(run_id) DO UPDATE SET
	question_id=excluded.question_id,
	post_id=excluded.post_id,
	title=excluded.title,
	question_type=excluded.question_type,
	probability=excluded.probability,
	distribution_json=excluded.distribution_json,
	research_degraded=excluded.research_degraded,
	submitted=excluded.submitted,
	reasoning=excluded.reasoning,
	created_at=excluded.created_at;
`

func execUpsert(ctx context.Context, stmt *sql.Stmt, rec forecast.Record) error {
	dist, err := rec.Outcome.DistributionJSON()
	if err != nil {
		return err
	}
	var prob any
	if rec.Outcome.Probability != nil {
		prob = *rec.Outcome.Probability
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = stmt.ExecContext(
		ctx,
		rec.RunID,
		rec.QuestionID,
		rec.PostID,
		rec.Title,
		rec.QuestionType,
		prob,
		dist,
		rec.ResearchDegraded,
		rec.Submitted,
		rec.Reasoning,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// HasForecast reports whether any run exists for the question.
func (s *Store) HasForecast(ctx context.Context, questionID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM forecasts WHERE question_id = ?);`, questionID).Scan(&exists)
	return exists, err
}

// RecentForecasts returns up to limit records, newest first.
func (s *Store) RecentForecasts(ctx context.Context, limit int) ([]forecast.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, question_id, post_id, title, question_type, probability,
	distribution_json, research_degraded, submitted, reasoning, created_at
FROM forecasts
ORDER BY created_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []forecast.Record
	for rows.Next() {
		var (
			rec       forecast.Record
			prob      sql.NullFloat64
			dist      string
			createdAt string
		)
		if err := rows.Scan(
			&rec.RunID, &rec.QuestionID, &rec.PostID, &rec.Title, &rec.QuestionType,
			&prob, &dist, &rec.ResearchDegraded, &rec.Submitted, &rec.Reasoning, &createdAt,
		); err != nil {
			return nil, err
		}
		if prob.Valid {
			p := prob.Float64
			rec.Outcome.Probability = &p
		}
		if dist != "" {
			var d struct {
				Percentiles []extract.Percentile `json:"percentiles"`
				Options     map[string]float64   `json:"options"`
				Rescaled    bool                 `json:"rescaled"`
			}
			if err := json.Unmarshal([]byte(dist), &d); err != nil {
				return nil, fmt.Errorf("decode distribution for run %s: %w", rec.RunID, err)
			}
			rec.Outcome.Percentiles = d.Percentiles
			rec.Outcome.Options = d.Options
			rec.Outcome.Rescaled = d.Rescaled
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
