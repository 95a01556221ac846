package record

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the JSON type of a stored value.
// The numeric values are persisted in the kind column and must not change.
type Kind int

const (
	KindString Kind = iota
	KindNull
	KindNumber
	KindTrue
	KindFalse
	// KindObject marks an empty object placeholder row.
	KindObject
	// KindArray marks an empty array placeholder row.
	KindArray
)

var kindNames = map[Kind]string{
	KindString: "string",
	KindNull:   "null",
	KindNumber: "number",
	KindTrue:   "true",
	KindFalse:  "false",
	KindObject: "object",
	KindArray:  "array",
}

// String returns the lowercase JSON type name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Record is one stored row.
//
// Value holds the textual form of the scalar: the raw string for KindString,
// the literal number text for KindNumber (original formatting preserved),
// and an empty string for the other kinds.
//
// Index is the canonical index key ("/users/#name") when the record's
// (container, field) pair is a declared index, and empty otherwise.
type Record struct {
	Path  string
	Value string
	Kind  Kind
	Index string
}

// JSON renders the value as a JSON token. Strings are not escaped here; use
// it for diagnostics only.
func (r Record) JSON() string {
	switch r.Kind {
	case KindString:
		return `"` + r.Value + `"`
	case KindNumber:
		return r.Value
	case KindTrue:
		return "true"
	case KindFalse:
		return "false"
	case KindObject:
		return "{}"
	case KindArray:
		return "[]"
	default:
		return "null"
	}
}

func (r Record) String() string {
	if r.Index != "" {
		return fmt.Sprintf("%s=%s [%s]", r.Path, r.JSON(), r.Index)
	}
	return fmt.Sprintf("%s=%s", r.Path, r.JSON())
}

// Index declares that the field Field of every direct child of the
// collection at Path is indexed for equality lookup.
//
// Index{Path: "/users", Field: "name"} covers /users/<id>/name.
type Index struct {
	Path  string `json:"path" yaml:"path"`
	Field string `json:"field" yaml:"field"`
}

// Key returns the canonical index key stored in the idx column.
func (i Index) Key() string {
	return IndexKey(i.Path, i.Field)
}

// IndexKey builds the canonical index key for a collection path and field.
// The collection path is normalised to have a single leading slash and no
// trailing slash.
func IndexKey(collection, field string) string {
	c := strings.Trim(collection, "/")
	if c == "" {
		return "/#" + field
	}
	return "/" + c + "/#" + field
}

// IndexSet is an immutable set of canonical index keys.
// The zero value is an empty set.
type IndexSet struct {
	keys map[string]struct{}
}

// NewIndexSet builds an IndexSet from index declarations.
func NewIndexSet(indexes ...Index) IndexSet {
	keys := make(map[string]struct{}, len(indexes))
	for _, idx := range indexes {
		keys[idx.Key()] = struct{}{}
	}
	return IndexSet{keys: keys}
}

// Contains reports whether key is a declared index key.
func (s IndexSet) Contains(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of declared indexes.
func (s IndexSet) Len() int {
	return len(s.keys)
}

// Keys returns the declared index keys in sorted order.
func (s IndexSet) Keys() []string {
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
