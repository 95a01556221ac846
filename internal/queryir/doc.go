// Package queryir is the backend-neutral representation of every statement
// the store issues against the records table.
//
// The store never writes SQL text directly. It builds a Query out of the
// node types in this package and hands it to querysql, which renders it for
// the connected dialect (placeholder style, regex operator). Values are
// always carried as parameters, never interpolated.
//
// Query and Predicate are sealed interfaces using the marker method
// pattern, so compilers can switch over them exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	case Delete:
//	case Insert:
//	}
//
// PORTABILITY:
//
// Every node except Matches runs on every supported backend. Matches needs
// a regular expression operator, which SQLite only has when the REGEXP
// function is registered. Validate reports such queries as non-portable so
// callers can check backend capability first.
package queryir
