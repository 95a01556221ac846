package queryir

import (
	"fmt"
	"regexp"
)

// ValidationResult reports structural errors and portability of a query.
type ValidationResult struct {
	// Errors lists problems that prevent compilation.
	Errors []string

	// IsPortable is true when the query avoids backend-specific features.
	IsPortable bool

	// Warnings names each non-portable feature used.
	Warnings []string
}

// OK reports whether the query has no structural errors.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks identifiers, operators and arity, and flags features
// that not every backend supports. It has no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{}
	v.validateQuery(query)
	return ValidationResult{
		Errors:     v.errors,
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

type validator struct {
	errors   []string
	warnings []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) ident(kind, name string) {
	if !identifier.MatchString(name) {
		v.addError("invalid %s name %q", kind, name)
	}
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.ident("table", query.From)
		if len(query.Columns) == 0 {
			v.addError("select from %s has no columns", query.From)
		}
		for _, c := range query.Columns {
			v.ident("column", c)
		}
		if query.OrderBy != "" {
			v.ident("column", query.OrderBy)
		}
		if query.Limit < 0 {
			v.addError("negative limit %d", query.Limit)
		}
		v.validatePredicate(query.Filter)
	case Delete:
		v.ident("table", query.From)
		if query.Filter == nil {
			v.addError("delete from %s without filter", query.From)
		}
		v.validatePredicate(query.Filter)
	case Insert:
		v.ident("table", query.Into)
		if len(query.Columns) == 0 {
			v.addError("insert into %s has no columns", query.Into)
		}
		for _, c := range query.Columns {
			v.ident("column", c)
		}
		if query.Rows < 1 {
			v.addError("insert into %s needs at least one row", query.Into)
		}
	default:
		v.addError("unknown query type %T", q)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Compare:
		v.ident("column", pred.Field)
		if !pred.Op.Valid() {
			v.addError("unknown operator %q", pred.Op)
		}
	case In:
		v.ident("column", pred.Field)
		if len(pred.Values) == 0 {
			v.addError("empty IN list for %s", pred.Field)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Matches:
		v.ident("column", pred.Field)
		if _, err := regexp.Compile(pred.Pattern); err != nil {
			v.addError("invalid pattern %q: %v", pred.Pattern, err)
		}
		v.addWarning("regular expression match on %s requires backend regex support", pred.Field)
	case IsNotNull:
		v.ident("column", pred.Field)
	default:
		v.addError("unknown predicate type %T", p)
	}
}
