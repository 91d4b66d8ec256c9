package db

import (
	"context"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ParseIdentifier splits "table" or "schema.table" into a pgx identifier.
// Only lowercase SQL identifiers are accepted so names can be interpolated
// into DDL safely.
func ParseIdentifier(name string) (pgx.Identifier, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return nil, eris.Errorf("db: invalid table name %q", name)
	}
	for _, p := range parts {
		if !identPattern.MatchString(p) {
			return nil, eris.Errorf("db: invalid table name %q", name)
		}
	}
	return pgx.Identifier(parts), nil
}

// CopyFrom bulk-inserts rows into a table, optionally schema-qualified, using
// the PostgreSQL COPY protocol.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	ident, err := ParseIdentifier(table)
	if err != nil {
		return 0, err
	}

	n, err := pool.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}
