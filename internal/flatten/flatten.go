// Package flatten turns a JSON document into the ordered sequence of
// records the store persists.
//
// The walk is an explicit depth-first traversal of the decoder's token
// stream: each open object or array is a frame on a stack carrying its
// storage path and, for arrays, the index of the next element. Nothing is
// materialised beyond the current path, so arbitrarily wide or deep
// documents flatten in bounded memory (apart from per-object key sets used
// to reject duplicate keys).
//
// Records come out in document order, not storage order.
package flatten

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/jsondb/internal/path"
	"github.com/roach88/jsondb/internal/record"
)

// Emit receives each record as soon as it is produced. Returning an error
// aborts the walk and the error is returned unchanged.
type Emit func(record.Record) error

// Flattener walks JSON values from a single decoder.
// A Flattener is not safe for concurrent use.
type Flattener struct {
	dec     *json.Decoder
	indexes record.IndexSet
	emit    Emit
}

type frame struct {
	path  string
	array bool
	next  uint64 // next array position
	key   string // current field name, valid when keyed
	keyed bool
	empty bool
	seen  map[string]struct{}
}

// New creates a Flattener reading from r.
func New(r io.Reader, indexes record.IndexSet, emit Emit) *Flattener {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Flattener{dec: dec, indexes: indexes, emit: emit}
}

// Flatten reads exactly one JSON value from r, emitting its records under
// the storage path base, and fails if anything but whitespace follows.
func Flatten(r io.Reader, base string, indexes record.IndexSet, emit Emit) error {
	f := New(r, indexes, emit)
	if err := f.Value(base); err != nil {
		return err
	}
	return f.End()
}

// Collect flattens r and returns all records.
func Collect(r io.Reader, base string, indexes record.IndexSet) ([]record.Record, error) {
	var out []record.Record
	err := Flatten(r, base, indexes, func(rec record.Record) error {
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Token returns the next raw token of the stream. Decoder failures are
// reported as MALFORMED_DOCUMENT; io.EOF is returned as is.
func (f *Flattener) Token() (json.Token, error) {
	tok, err := f.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, record.NewMalformedDocumentError("invalid JSON", err)
	}
	return tok, nil
}

// End verifies that the stream holds no further tokens.
func (f *Flattener) End() error {
	tok, err := f.Token()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	return record.NewMalformedDocumentError(fmt.Sprintf("unexpected %v after document", tok), nil)
}

// Value consumes the next complete JSON value from the stream and emits its
// records under base.
func (f *Flattener) Value(base string) error {
	var stack []*frame

	for {
		tok, err := f.Token()
		if errors.Is(err, io.EOF) {
			return record.NewMalformedDocumentError("unexpected end of document", io.ErrUnexpectedEOF)
		}
		if err != nil {
			return err
		}

		var top *frame
		if n := len(stack); n > 0 {
			top = stack[n-1]
		}

		if top != nil && !top.array && !top.keyed {
			if name, ok := tok.(string); ok {
				if err := top.setKey(name); err != nil {
					return err
				}
				continue
			}
		}

		switch t := tok.(type) {
		case json.Delim:
			switch t {
			case '{', '[':
				child := &frame{path: f.childPath(base, top), array: t == '[', empty: true}
				if !child.array {
					child.seen = make(map[string]struct{})
				}
				stack = append(stack, child)

			case '}', ']':
				if top == nil {
					return record.NewMalformedDocumentError("unexpected "+t.String(), nil)
				}
				done := top
				stack = stack[:len(stack)-1]
				if done.empty {
					kind := record.KindObject
					if done.array {
						kind = record.KindArray
					}
					if err := f.emit(record.Record{Path: done.path, Kind: kind}); err != nil {
						return err
					}
				}
				if len(stack) == 0 {
					return nil
				}
				stack[len(stack)-1].advance()
			}

		default:
			rec, err := scalar(tok)
			if err != nil {
				return err
			}
			rec.Path = f.childPath(base, top)
			rec.Index = f.indexKey(rec.Path)
			if err := f.emit(rec); err != nil {
				return err
			}
			if top == nil {
				return nil
			}
			top.advance()
		}
	}
}

// childPath returns the path of the next value inside top, or base at the
// root, and marks top as non-empty.
func (f *Flattener) childPath(base string, top *frame) string {
	if top == nil {
		return base
	}
	top.empty = false
	if top.array {
		return path.Child(top.path, path.EncodeArrayIndex(top.next))
	}
	return path.Child(top.path, top.key)
}

// indexKey returns the canonical index key for a leaf at p, if declared.
// A leaf /users/u1/name/ belongs to index /users/#name.
func (f *Flattener) indexKey(p string) string {
	if f.indexes.Len() == 0 {
		return ""
	}
	trimmed := strings.TrimSuffix(p, path.Separator)
	i := strings.LastIndex(trimmed, path.Separator)
	if i <= 0 {
		return ""
	}
	field, parent := trimmed[i+1:], trimmed[:i]
	j := strings.LastIndex(parent, path.Separator)
	if j < 0 {
		return ""
	}
	key := parent[:j] + "/#" + field
	if !f.indexes.Contains(key) {
		return ""
	}
	return key
}

func (fr *frame) setKey(name string) error {
	key, err := path.ValidateKey(name)
	if err != nil {
		return err
	}
	if _, dup := fr.seen[key]; dup {
		return record.NewMalformedDocumentError("duplicate key "+key, nil)
	}
	fr.seen[key] = struct{}{}
	fr.key = key
	fr.keyed = true
	return nil
}

func (fr *frame) advance() {
	if fr.array {
		fr.next++
		return
	}
	fr.key = ""
	fr.keyed = false
}

func scalar(tok json.Token) (record.Record, error) {
	switch v := tok.(type) {
	case string:
		return record.Record{Value: v, Kind: record.KindString}, nil
	case json.Number:
		return record.Record{Value: v.String(), Kind: record.KindNumber}, nil
	case bool:
		if v {
			return record.Record{Kind: record.KindTrue}, nil
		}
		return record.Record{Kind: record.KindFalse}, nil
	case nil:
		return record.Record{Kind: record.KindNull}, nil
	default:
		return record.Record{}, record.NewMalformedDocumentError("unexpected token", nil)
	}
}
