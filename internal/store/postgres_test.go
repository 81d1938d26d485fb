package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS link_runs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO link_runs`).
		WithArgs(anyArgs(10)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"links"}, linkColumns).WillReturnResult(2)
	mock.ExpectCommit()

	run := sampleRun()
	err := s.SaveRun(context.Background(), run, []Link{
		{Relation: "equals", SourceID: 0, TargetID: 0},
		{Relation: "within", SourceID: 0, TargetID: 0},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRunWithoutLinks(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO link_runs`).
		WithArgs(anyArgs(10)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), sampleRun(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRunCopyFailureRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := sampleRun()
	run.ID = "run-1"

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO link_runs`).
		WithArgs(anyArgs(10)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"links"}, linkColumns).WillReturnError(fmt.Errorf("copy failed"))
	mock.ExpectRollback()

	err := s.SaveRun(context.Background(), run, []Link{{Relation: "touches", SourceID: 1, TargetID: 2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save run run-1")
	assert.Contains(t, err.Error(), "COPY INTO links")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRunBeginFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(fmt.Errorf("db error"))

	err := s.SaveRun(context.Background(), sampleRun(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, method, weighting_scheme, .* FROM link_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := mock.NewRows([]string{"id", "method", "weighting_scheme", "source_path", "target_path", "budget",
		"verified_pairs", "interlinked_geometries", "report", "created_at"}).
		AddRow("r2", "progressive GIA.nt", "CF", "s", "t", 5, 5, 3, []byte(`{}`), now).
		AddRow("r1", "progressive GIA.nt", "MBR", "s", "t", 10, 8, 2, []byte(`{}`), now.Add(-time.Hour))

	mock.ExpectQuery(`FROM link_runs ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, "CF", runs[0].Scheme)
	assert.Equal(t, 3, runs[0].InterlinkedGeometries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountLinks(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := mock.NewRows([]string{"relation", "count"}).
		AddRow("intersects", int64(4)).
		AddRow("touches", int64(1))
	mock.ExpectQuery(`SELECT relation, COUNT\(\*\) FROM links`).
		WithArgs("r1").
		WillReturnRows(rows)

	counts, err := s.CountLinks(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"intersects": 4, "touches": 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
