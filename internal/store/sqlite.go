package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/interlink-cli/internal/resilience"
)

// SQLiteStore implements LinkStore using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	retry resilience.RetryConfig
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, retry: resilience.DefaultRetryConfig()}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS link_runs (
	id                     TEXT PRIMARY KEY,
	method                 TEXT NOT NULL,
	weighting_scheme       TEXT NOT NULL,
	source_path            TEXT NOT NULL,
	target_path            TEXT NOT NULL,
	budget                 INTEGER NOT NULL,
	verified_pairs         INTEGER NOT NULL DEFAULT 0,
	interlinked_geometries INTEGER NOT NULL DEFAULT 0,
	report                 TEXT NOT NULL,
	created_at             DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS links (
	run_id    TEXT NOT NULL REFERENCES link_runs(id) ON DELETE CASCADE,
	relation  TEXT NOT NULL,
	source_id INTEGER NOT NULL,
	target_id INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_link_runs_created_at ON link_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_links_run_relation ON links(run_id, relation);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun writes the run and its links in one transaction, retrying while
// another writer holds the database lock.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, links []Link) error {
	prepare(run)

	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger("sqlite", "save run")
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		return s.saveRun(ctx, run, links)
	})
}

func (s *SQLiteStore) saveRun(ctx context.Context, run *Run, links []Link) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO link_runs (id, method, weighting_scheme, source_path, target_path, budget, verified_pairs, interlinked_geometries, report, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Method, run.Scheme, run.SourcePath, run.TargetPath, run.Budget,
		run.VerifiedPairs, run.InterlinkedGeometries, string(run.Report), run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO links (run_id, relation, source_id, target_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare link insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, l := range links {
		if _, err := stmt.ExecContext(ctx, run.ID, l.Relation, l.SourceID, l.TargetID); err != nil {
			return eris.Wrapf(err, "sqlite: insert link %s %d-%d", l.Relation, l.SourceID, l.TargetID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, method, weighting_scheme, source_path, target_path, budget, verified_pairs, interlinked_geometries, report, created_at
		 FROM link_runs WHERE id = ?`,
		id,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: run not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, weighting_scheme, source_path, target_path, budget, verified_pairs, interlinked_geometries, report, created_at
		 FROM link_runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CountLinks(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT relation, COUNT(*) FROM links WHERE run_id = ? GROUP BY relation`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count links")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			relation string
			n        int
		)
		if err := rows.Scan(&relation, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan link count")
		}
		counts[relation] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count links iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var (
		r      Run
		report string
	)
	err := row.Scan(&r.ID, &r.Method, &r.Scheme, &r.SourcePath, &r.TargetPath, &r.Budget,
		&r.VerifiedPairs, &r.InterlinkedGeometries, &report, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Report = []byte(report)
	return &r, nil
}
