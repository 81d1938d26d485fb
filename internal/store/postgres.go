package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/interlink-cli/internal/db"
	"github.com/sells-group/interlink-cli/internal/resilience"
)

// PostgresStore implements LinkStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
	// ConnectAttempts bounds how often pool creation and the first ping are
	// tried. 0 uses the retry default.
	ConnectAttempts int `yaml:"connect_attempts" mapstructure:"connect_attempts"`
}

var linkColumns = []string{"run_id", "relation", "source_id", "target_id"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	retry := resilience.DefaultRetryConfig()
	if poolCfg != nil {
		retry = retry.WithAttempts(poolCfg.ConnectAttempts)
	}
	retry.OnRetry = resilience.RetryLogger("postgres", "connect")

	pool, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: create pool")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, eris.Wrap(err, "postgres: ping")
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS link_runs (
	id                     TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	method                 TEXT NOT NULL,
	weighting_scheme       TEXT NOT NULL,
	source_path            TEXT NOT NULL,
	target_path            TEXT NOT NULL,
	budget                 INTEGER NOT NULL,
	verified_pairs         INTEGER NOT NULL DEFAULT 0,
	interlinked_geometries INTEGER NOT NULL DEFAULT 0,
	report                 JSONB NOT NULL,
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun inserts the run row and bulk-copies its links in one
// transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, run *Run, links []Link) error {
	prepare(run)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: save run: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO link_runs (id, method, weighting_scheme, source_path, target_path, budget, verified_pairs, interlinked_geometries, report, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Method, run.Scheme, run.SourcePath, run.TargetPath, run.Budget,
		run.VerifiedPairs, run.InterlinkedGeometries, []byte(run.Report), run.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert run %s", run.ID)
	}

	_, err = db.CopySlice(ctx, tx, "links", linkColumns, len(links), func(i int) ([]any, error) {
		l := links[i]
		return []any{run.ID, l.Relation, l.SourceID, l.TargetID}, nil
	})
	if err != nil {
		return eris.Wrapf(err, "postgres: save run %s", run.ID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: save run: commit")
}

const selectRun = `SELECT id, method, weighting_scheme, source_path, target_path, budget, verified_pairs, interlinked_geometries, report, created_at FROM link_runs`

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanPostgresRun(s.pool.QueryRow(ctx, selectRun+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: run not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, selectRun+` ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) CountLinks(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT relation, COUNT(*) FROM links WHERE run_id = $1 GROUP BY relation`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count links")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			relation string
			n        int64
		)
		if err := rows.Scan(&relation, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan link count")
		}
		counts[relation] = int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count links iterate")
}

func scanPostgresRun(row pgx.Row) (*Run, error) {
	var (
		r      Run
		report []byte
	)
	err := row.Scan(&r.ID, &r.Method, &r.Scheme, &r.SourcePath, &r.TargetPath, &r.Budget,
		&r.VerifiedPairs, &r.InterlinkedGeometries, &report, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Report = report
	return &r, nil
}
