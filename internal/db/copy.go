package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Copier is satisfied by pools and transactions alike.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// CopySlice bulk-inserts n rows produced on demand by row using the
// PostgreSQL COPY protocol, so large link sets need not be materialized as
// [][]any first. table may be schema-qualified ("interlink.links").
func CopySlice(ctx context.Context, c Copier, table string, columns []string, n int, row func(i int) ([]any, error)) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	copied, err := c.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromSlice(n, row))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return copied, nil
}

// Identifier splits a dotted table name into a pgx identifier.
func Identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}
