package querysql

import (
	"regexp"

	"github.com/roach88/jsondb/internal/path"
	"github.com/roach88/jsondb/internal/queryir"
	"github.com/roach88/jsondb/internal/record"
)

// Table and column names of the records table.
const (
	Table     = "jsondb"
	IndexName = "jsondb_idx"

	ColPath  = "path"
	ColValue = "value"
	ColKind  = "kind"
	ColIdx   = "idx"
)

// Columns is the insert column order used by the store.
var Columns = []string{ColPath, ColValue, ColKind, ColIdx}

// Subtree matches every row whose path starts with base.
func Subtree(base string) queryir.Predicate {
	if base == path.Root {
		return queryir.And{}
	}
	return queryir.And{Predicates: []queryir.Predicate{
		queryir.Compare{Field: ColPath, Op: queryir.OpGe, Value: base},
		queryir.Compare{Field: ColPath, Op: queryir.OpLt, Value: IncrementKey(base)},
	}}
}

// Exists selects at most one path below base.
func Exists(base string) queryir.Select {
	return queryir.Select{
		From:    Table,
		Columns: []string{ColPath},
		Filter:  Subtree(base),
		Limit:   1,
	}
}

// Scan selects the rows below base in path order, narrowed by the bounds
// in opts. Bound keys are relative to base; purely numeric keys are array
// indexes.
//
// The rows of child k occupy [base+k+"/", IncrementKey(base+k+"/")). In
// ascending order startAt/startAfter cut below that interval and
// endAt/endBefore above it; descending order swaps the roles.
func Scan(base string, opts record.GetOptions) (queryir.Select, error) {
	preds := []queryir.Predicate{Subtree(base)}

	bounds := []struct {
		key       string
		lower     bool // cuts off rows before the key in scan order
		inclusive bool
	}{
		{opts.StartAt, true, true},
		{opts.StartAfter, true, false},
		{opts.EndAt, false, true},
		{opts.EndBefore, false, false},
	}
	for _, bnd := range bounds {
		if bnd.key == "" {
			continue
		}
		seg, err := path.ConvertKey(bnd.key)
		if err != nil {
			return queryir.Select{}, err
		}
		lo := path.Child(base, seg)
		hi := IncrementKey(lo)
		preds = append(preds, boundPredicate(lo, hi, bnd.lower, bnd.inclusive, opts.Order))
	}

	return queryir.Select{
		From:       Table,
		Columns:    []string{ColPath, ColValue, ColKind},
		Filter:     queryir.And{Predicates: flatten(preds)},
		OrderBy:    ColPath,
		Descending: opts.Order == record.Desc,
	}, nil
}

func boundPredicate(lo, hi string, lower, inclusive bool, order record.Order) queryir.Predicate {
	if order == record.Desc {
		// Scan runs high to low: a lower bound in scan order is an upper
		// bound on path.
		switch {
		case lower && inclusive:
			return queryir.Compare{Field: ColPath, Op: queryir.OpLt, Value: hi}
		case lower:
			return queryir.Compare{Field: ColPath, Op: queryir.OpLt, Value: lo}
		case inclusive:
			return queryir.Compare{Field: ColPath, Op: queryir.OpGe, Value: lo}
		default:
			return queryir.Compare{Field: ColPath, Op: queryir.OpGe, Value: hi}
		}
	}
	switch {
	case lower && inclusive:
		return queryir.Compare{Field: ColPath, Op: queryir.OpGe, Value: lo}
	case lower:
		return queryir.Compare{Field: ColPath, Op: queryir.OpGe, Value: hi}
	case inclusive:
		return queryir.Compare{Field: ColPath, Op: queryir.OpLt, Value: hi}
	default:
		return queryir.Compare{Field: ColPath, Op: queryir.OpLt, Value: lo}
	}
}

// flatten inlines nested And predicates so the rendered WHERE clause stays
// a flat conjunction.
func flatten(preds []queryir.Predicate) []queryir.Predicate {
	var out []queryir.Predicate
	for _, p := range preds {
		if and, ok := p.(queryir.And); ok {
			out = append(out, flatten(and.Predicates)...)
			continue
		}
		out = append(out, p)
	}
	return out
}

// DeleteSubtree removes every row below base and the rows stored exactly
// at each of its ancestors, which would otherwise be left as scalars
// shadowing the deleted subtree.
func DeleteSubtree(base string) queryir.Delete {
	var preds []queryir.Predicate
	if ancestors := path.Ancestors(base); len(ancestors) > 0 {
		values := make([]any, len(ancestors))
		for i, a := range ancestors {
			values[i] = a
		}
		preds = append(preds, queryir.In{Field: ColPath, Values: values})
	}
	preds = append(preds, Subtree(base))
	return queryir.Delete{From: Table, Filter: queryir.Or{Predicates: preds}}
}

// InsertRows is a multi-row insert of n records.
func InsertRows(n int) queryir.Insert {
	return queryir.Insert{Into: Table, Columns: Columns, Rows: n}
}

// IndexLookup selects the paths of string values equal to value under the
// index key idx.
func IndexLookup(idx, value string) queryir.Select {
	return queryir.Select{
		From:    Table,
		Columns: []string{ColPath},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals(ColIdx, idx),
			queryir.Equals(ColValue, value),
			queryir.Equals(ColKind, int(record.KindString)),
		}},
		OrderBy: ColPath,
	}
}

// ScanLookup selects the same rows as IndexLookup would for an index on
// (collection, property), by pattern matching every path. collection is a
// storage path. The result is not portable: it needs regex support.
func ScanLookup(collection, property, value string) queryir.Select {
	return queryir.Select{
		From:    Table,
		Columns: []string{ColPath},
		Filter: queryir.And{Predicates: flatten([]queryir.Predicate{
			Subtree(collection),
			queryir.Matches{Field: ColPath, Pattern: LookupPattern(collection, property)},
			queryir.Equals(ColValue, value),
			queryir.Equals(ColKind, int(record.KindString)),
		})},
		OrderBy: ColPath,
	}
}

// LookupPattern matches the paths collection/<id>/property/.
func LookupPattern(collection, property string) string {
	return "^" + regexp.QuoteMeta(collection) + "[^/]+/" + regexp.QuoteMeta(property) + "/$"
}
