package queryir

// Query is a statement against a single table.
type Query interface {
	queryNode()
}

// Predicate is a WHERE condition.
type Predicate interface {
	predicateNode()
}

// Select reads Columns from a table.
//
//	Select{
//	  From:    "jsondb",
//	  Columns: []string{"path", "value", "kind"},
//	  Filter:  And{Predicates: []Predicate{
//	    Compare{Field: "path", Op: OpGe, Value: "/users/"},
//	    Compare{Field: "path", Op: OpLt, Value: "/users0"},
//	  }},
//	  OrderBy: "path",
//	}
//
// renders as
//
//	SELECT path, value, kind FROM jsondb
//	WHERE path >= ? AND path < ? ORDER BY path ASC
type Select struct {
	From       string
	Columns    []string
	Filter     Predicate // nil selects every row
	OrderBy    string    // empty leaves order unspecified
	Descending bool
	Limit      int // 0 means no limit
}

func (Select) queryNode() {}

// Delete removes the rows matching Filter. A nil filter is rejected by the
// compiler; clearing a table must be explicit.
type Delete struct {
	From   string
	Filter Predicate
}

func (Delete) queryNode() {}

// Insert adds Rows rows of len(Columns) values each. Values are supplied
// at execution time, row-major.
type Insert struct {
	Into    string
	Columns []string
	Rows    int
}

func (Insert) queryNode() {}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	switch o {
	case OpEq, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Compare is field <op> value.
type Compare struct {
	Field string
	Op    Op
	Value any
}

func (Compare) predicateNode() {}

// Equals is shorthand for Compare with OpEq.
func Equals(field string, value any) Compare {
	return Compare{Field: field, Op: OpEq, Value: value}
}

// In is field IN (values...). Values must not be empty.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// And holds when every predicate holds. An empty And is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or holds when any predicate holds. An empty Or is false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Matches is a regular expression match of Field against Pattern.
// Not portable: see Validate.
type Matches struct {
	Field   string
	Pattern string
}

func (Matches) predicateNode() {}

// IsNotNull holds when Field is not NULL.
type IsNotNull struct {
	Field string
}

func (IsNotNull) predicateNode() {}
