package store

import (
	"context"
	_ "embed"
	"strings"

	"github.com/roach88/jsondb/internal/events"
	"github.com/roach88/jsondb/internal/querysql"
	"github.com/roach88/jsondb/internal/record"
)

//go:embed schema_sqlite.sql
var schemaSQLite string

//go:embed schema_postgres.sql
var schemaPostgres string

//go:embed schema_cockroach.sql
var schemaCockroach string

func (e *Engine) schema() string {
	switch e.kind {
	case PostgreSQL:
		return schemaPostgres
	case CockroachDB:
		return schemaCockroach
	default:
		return schemaSQLite
	}
}

// statements splits a schema script on semicolons.
func statements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// CreateTables creates the records table and its lookup index using the
// DDL for the detected backend. It is idempotent.
func (e *Engine) CreateTables(ctx context.Context) error {
	return e.inTx(ctx, func(q querier, _ events.Bus) error {
		for _, stmt := range statements(e.schema()) {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return record.NewStorageError("create tables", err)
			}
		}
		e.logger.Debug("created tables", "kind", e.kind)
		return nil
	})
}

// DropTables drops the records table. It is idempotent.
func (e *Engine) DropTables(ctx context.Context) error {
	return e.inTx(ctx, func(q querier, _ events.Bus) error {
		if _, err := q.ExecContext(ctx, "DROP TABLE IF EXISTS "+querysql.Table); err != nil {
			return record.NewStorageError("drop tables", err)
		}
		return nil
	})
}
