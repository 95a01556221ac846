// Package querysql renders queryir statements as parameterized SQL for the
// supported backends and builds the statements the store needs: subtree
// range scans, subtree deletes, batched inserts and property lookups.
package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/jsondb/internal/queryir"
)

// Dialect selects placeholder style and operator spelling.
type Dialect int

const (
	// SQLite uses ? placeholders and the REGEXP operator.
	SQLite Dialect = iota
	// Postgres uses $n placeholders and the ~ operator. CockroachDB
	// speaks the same dialect.
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return "dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// SQLCompiler compiles queryir statements to SQL.
//
// Values are always parameterized, never interpolated. Select output is
// ordered only when OrderBy is set; the store always sets it for scans.
type SQLCompiler struct {
	Dialect Dialect
}

// NewSQLCompiler creates a compiler for d.
func NewSQLCompiler(d Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: d}
}

// Compile converts a query to SQL. Returns (sql, params, error). Insert
// statements return no params; the caller supplies row values in order.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if res := queryir.Validate(q); !res.OK() {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(res.Errors, "; "))
	}

	b := &builder{dialect: c.Dialect}
	switch query := q.(type) {
	case queryir.Select:
		b.compileSelect(query)
	case queryir.Delete:
		b.sql.WriteString("DELETE FROM ")
		b.sql.WriteString(query.From)
		b.sql.WriteString(" WHERE ")
		b.compilePredicate(query.Filter, true)
	case queryir.Insert:
		b.compileInsert(query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
	return b.sql.String(), b.params, nil
}

type builder struct {
	dialect Dialect
	sql     strings.Builder
	params  []any
	n       int
}

func (b *builder) placeholder() string {
	b.n++
	if b.dialect == Postgres {
		return "$" + strconv.Itoa(b.n)
	}
	return "?"
}

func (b *builder) bind(v any) {
	b.sql.WriteString(b.placeholder())
	b.params = append(b.params, v)
}

func (b *builder) compileSelect(q queryir.Select) {
	b.sql.WriteString("SELECT ")
	b.sql.WriteString(strings.Join(q.Columns, ", "))
	b.sql.WriteString(" FROM ")
	b.sql.WriteString(q.From)
	if q.Filter != nil {
		b.sql.WriteString(" WHERE ")
		b.compilePredicate(q.Filter, true)
	}
	if q.OrderBy != "" {
		b.sql.WriteString(" ORDER BY ")
		b.sql.WriteString(q.OrderBy)
		if q.Descending {
			b.sql.WriteString(" DESC")
		} else {
			b.sql.WriteString(" ASC")
		}
	}
	if q.Limit > 0 {
		b.sql.WriteString(" LIMIT ")
		b.sql.WriteString(strconv.Itoa(q.Limit))
	}
}

func (b *builder) compileInsert(q queryir.Insert) {
	b.sql.WriteString("INSERT INTO ")
	b.sql.WriteString(q.Into)
	b.sql.WriteString(" (")
	b.sql.WriteString(strings.Join(q.Columns, ", "))
	b.sql.WriteString(") VALUES ")
	for r := 0; r < q.Rows; r++ {
		if r > 0 {
			b.sql.WriteString(", ")
		}
		b.sql.WriteString("(")
		for i := range q.Columns {
			if i > 0 {
				b.sql.WriteString(", ")
			}
			b.sql.WriteString(b.placeholder())
		}
		b.sql.WriteString(")")
	}
}

// compilePredicate writes p. Compound predicates below the top level are
// parenthesized.
func (b *builder) compilePredicate(p queryir.Predicate, top bool) {
	switch pred := p.(type) {
	case queryir.Compare:
		b.sql.WriteString(pred.Field)
		b.sql.WriteString(" ")
		b.sql.WriteString(string(pred.Op))
		b.sql.WriteString(" ")
		b.bind(pred.Value)
	case queryir.In:
		b.sql.WriteString(pred.Field)
		b.sql.WriteString(" IN (")
		for i, v := range pred.Values {
			if i > 0 {
				b.sql.WriteString(", ")
			}
			b.bind(v)
		}
		b.sql.WriteString(")")
	case queryir.And:
		b.compileJunction(pred.Predicates, " AND ", "1 = 1", top)
	case queryir.Or:
		b.compileJunction(pred.Predicates, " OR ", "1 = 0", top)
	case queryir.Matches:
		b.sql.WriteString(pred.Field)
		if b.dialect == Postgres {
			b.sql.WriteString(" ~ ")
		} else {
			b.sql.WriteString(" REGEXP ")
		}
		b.bind(pred.Pattern)
	case queryir.IsNotNull:
		b.sql.WriteString(pred.Field)
		b.sql.WriteString(" IS NOT NULL")
	}
}

func (b *builder) compileJunction(preds []queryir.Predicate, sep, empty string, top bool) {
	switch len(preds) {
	case 0:
		b.sql.WriteString(empty)
		return
	case 1:
		b.compilePredicate(preds[0], top)
		return
	}
	if !top {
		b.sql.WriteString("(")
	}
	for i, sub := range preds {
		if i > 0 {
			b.sql.WriteString(sep)
		}
		b.compilePredicate(sub, false)
	}
	if !top {
		b.sql.WriteString(")")
	}
}
