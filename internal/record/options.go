package record

import (
	"fmt"
	"regexp"
	"strings"
)

// Order is the sort direction of a get.
type Order int

const (
	// Asc returns children in ascending path order. It is the default.
	Asc Order = iota
	// Desc returns children in descending path order.
	Desc
)

// String returns the SQL keyword for the order.
func (o Order) String() string {
	if o == Desc {
		return "DESC"
	}
	return "ASC"
}

// ParseOrder parses "asc" or "desc" (case-insensitive). Empty means Asc.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	default:
		return Asc, NewInvalidOptionError(s, "order must be asc or desc")
	}
}

// GetOptions controls how a subtree is read back.
//
// The bounds (StartAt, StartAfter, EndAt, EndBefore) are keys relative to
// the base path; empty means unbounded. Depth and LimitToFirst of zero mean
// unlimited. Depth elides at the depth boundary: a subtree reaching below
// Depth levels under the base is written as true at the path where it is
// cut, so Depth 1 reduces each top-level field to true and Depth 2 keeps
// the first level of nesting. Callback wraps the output in a JSONP
// envelope.
type GetOptions struct {
	Order        Order
	StartAt      string
	StartAfter   string
	EndAt        string
	EndBefore    string
	Depth        int
	LimitToFirst int
	PrettyPrint  bool
	Callback     string
}

var callbackPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// Validate checks option values that cannot be caught by the type system.
func (o GetOptions) Validate() error {
	if o.Order != Asc && o.Order != Desc {
		return NewInvalidOptionError(fmt.Sprint(int(o.Order)), "unknown order")
	}
	if o.Depth < 0 {
		return NewInvalidOptionError(fmt.Sprint(o.Depth), "depth must not be negative")
	}
	if o.LimitToFirst < 0 {
		return NewInvalidOptionError(fmt.Sprint(o.LimitToFirst), "limitToFirst must not be negative")
	}
	if o.Callback != "" && !callbackPattern.MatchString(o.Callback) {
		return NewInvalidOptionError(o.Callback, "callback must be a JavaScript identifier path")
	}
	return nil
}
