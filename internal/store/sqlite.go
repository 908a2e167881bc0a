package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The pool holds one connection so the pragmas cover every statement and
// concurrent score-cache writes queue instead of failing with SQLITE_BUSY.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	state       TEXT NOT NULL,
	inputs      INTEGER NOT NULL DEFAULT 0,
	records     INTEGER NOT NULL DEFAULT 0,
	merges      INTEGER NOT NULL DEFAULT 0,
	dry_run     INTEGER NOT NULL DEFAULT 0,
	report      TEXT
);

CREATE TABLE IF NOT EXISTS pair_decisions (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	uid_a          TEXT NOT NULL,
	uid_b          TEXT NOT NULL,
	score          REAL NOT NULL,
	classification TEXT NOT NULL,
	outcome        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS score_cache (
	backend    TEXT NOT NULL,
	pair_key   TEXT NOT NULL,
	score      REAL NOT NULL,
	scored_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	PRIMARY KEY (backend, pair_key)
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_pair_decisions_run_id ON pair_decisions(run_id);
CREATE INDEX IF NOT EXISTS idx_score_cache_expires_at ON score_cache(expires_at);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, decisions []PairDecision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save run")
	}
	defer tx.Rollback() //nolint:errcheck

	var report sql.NullString
	if len(run.Report) > 0 {
		report = sql.NullString{String: string(run.Report), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, state, inputs, records, merges, dry_run, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.State,
		run.Inputs, run.Records, run.Merges, run.DryRun, report,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pair_decisions (run_id, uid_a, uid_b, score, classification, outcome) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare pair decision")
	}
	defer stmt.Close() //nolint:errcheck

	for _, d := range decisions {
		if _, err := stmt.ExecContext(ctx, run.ID, d.UIDA, d.UIDB, d.Score, d.Classification, d.Outcome); err != nil {
			return eris.Wrapf(err, "sqlite: insert pair decision %s/%s", d.UIDA, d.UIDB)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, state, inputs, records, merges, dry_run, report FROM runs WHERE id = ?`,
		id,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, started_at, finished_at, state, inputs, records, merges, dry_run, NULL FROM runs WHERE 1=1`
	var args []any

	if !filter.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, runID string) ([]PairDecision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, uid_a, uid_b, score, classification, outcome FROM pair_decisions
		 WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list decisions %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var out []PairDecision
	for rows.Next() {
		var d PairDecision
		if err := rows.Scan(&d.RunID, &d.UIDA, &d.UIDB, &d.Score, &d.Classification, &d.Outcome); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan decision")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list decisions iterate")
}

func (s *SQLiteStore) GetCachedScore(ctx context.Context, backend, key string) (float64, bool, error) {
	var score float64
	err := s.db.QueryRowContext(ctx,
		`SELECT score FROM score_cache WHERE backend = ? AND pair_key = ? AND expires_at > ?`,
		backend, key, time.Now().UTC(),
	).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: get cached score")
	}
	return score, true, nil
}

func (s *SQLiteStore) SetCachedScore(ctx context.Context, backend, key string, score float64, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO score_cache (backend, pair_key, score, scored_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (backend, pair_key) DO UPDATE SET
		   score = excluded.score, scored_at = excluded.scored_at, expires_at = excluded.expires_at`,
		backend, key, score, now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached score")
}

func (s *SQLiteStore) DeleteExpiredScores(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM score_cache WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired scores")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var report sql.NullString
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.State, &r.Inputs, &r.Records, &r.Merges, &r.DryRun, &report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if report.Valid {
		r.Report = []byte(report.String)
	}
	return &r, nil
}
