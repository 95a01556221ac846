// Package assemble rebuilds JSON from records sorted by storage path.
//
// A Consumer receives records one at a time and writes JSON to a sink as it
// goes. It keeps a stack of the containers currently open; for each record
// it closes the containers the new path has left, opens the ones it enters,
// fills array gaps with null, and writes the value. Memory use is
// proportional to path depth, not document size.
//
// Depth limiting and limitToFirst truncate the output but always leave a
// well-formed document: elided subtrees are written as true, and the limit
// closes the stream early. Only a sink failure (or Abort) leaves output
// that is not valid JSON.
package assemble

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/jsondb/internal/path"
	"github.com/roach88/jsondb/internal/record"
)

// container is one open object or array. name is the path segment under
// which it sits in its parent ("" for the outermost container).
type container struct {
	array bool
	name  string
	last  int64 // last array index written, -1 before the first
}

// Consumer streams JSON for records below a common base path.
// A Consumer belongs to one stream and is not safe for concurrent use.
type Consumer struct {
	base string
	opts record.GetOptions
	w    io.Writer
	gen  *generator

	open        []*container
	rootWritten bool

	entries  int
	rootKey  string
	elided   bool
	elidedAt string

	closed bool
}

// New creates a Consumer writing to w. base is the storage path every
// record shares; opts controls order, depth, limit, pretty printing and the
// JSONP callback.
func New(w io.Writer, base string, opts record.GetOptions) (*Consumer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(base, path.Separator) {
		base += path.Separator
	}
	c := &Consumer{
		base: base,
		opts: opts,
		w:    w,
		gen:  newGenerator(w, opts.PrettyPrint),
	}
	if opts.Callback != "" {
		c.gen.write(opts.Callback + "(")
	}
	return c, c.gen.err
}

// Closed reports whether the stream has been closed, either explicitly or
// because the limit was reached.
func (c *Consumer) Closed() bool {
	return c.closed
}

// Accept writes one record. Records after the stream is closed are ignored.
func (c *Consumer) Accept(rec record.Record) error {
	if c.closed {
		return nil
	}
	if !strings.HasPrefix(rec.Path, c.base) {
		return fmt.Errorf("assemble: record %q outside base %q", rec.Path, c.base)
	}
	segs := path.Segments(rec.Path[len(c.base):])

	if limit := c.opts.LimitToFirst; limit > 0 && len(segs) > 0 {
		if c.entries == 0 || segs[0] != c.rootKey {
			c.entries++
			c.rootKey = segs[0]
		}
		if c.entries > limit {
			return c.Close()
		}
	}

	kind, value := rec.Kind, rec.Value
	if depth := c.opts.Depth; depth > 0 && len(segs) > depth {
		segs = segs[:depth]
		at := strings.Join(segs, path.Separator)
		if c.elided && at == c.elidedAt {
			return nil
		}
		c.elided, c.elidedAt = true, at
		kind, value = record.KindTrue, ""
	}

	if len(segs) == 0 {
		if len(c.open) == 0 && !c.rootWritten {
			c.writeValue(kind, value)
			c.rootWritten = true
		}
		return c.gen.err
	}
	if c.rootWritten {
		return nil
	}

	m := c.matching(segs)
	if err := c.closeTo(m); err != nil {
		return err
	}
	for k := m; k < len(segs); k++ {
		if k > 0 {
			ok, err := c.place(c.open[k-1], segs[k-1])
			if err != nil || !ok {
				return err
			}
		}
		array := path.IsArrayToken(segs[k])
		c.gen.start(array)
		name := ""
		if k > 0 {
			name = segs[k-1]
		}
		c.open = append(c.open, &container{array: array, name: name, last: -1})
	}

	ok, err := c.place(c.open[len(segs)-1], segs[len(segs)-1])
	if err != nil || !ok {
		return err
	}
	c.writeValue(kind, value)
	return c.gen.err
}

// matching returns how many open containers lie on the path to segs'
// parent container. The outermost container always matches; container k
// matches when its name equals segs[k-1] and all outer ones matched.
func (c *Consumer) matching(segs []string) int {
	m := 0
	for m < len(c.open) && m < len(segs) {
		if m > 0 && c.open[m].name != segs[m-1] {
			break
		}
		m++
	}
	return m
}

// closeTo closes open containers until only keep remain.
func (c *Consumer) closeTo(keep int) error {
	for len(c.open) > keep {
		c.closeInnermost()
	}
	return c.gen.err
}

func (c *Consumer) closeInnermost() {
	n := len(c.open)
	top := c.open[n-1]
	c.open = c.open[:n-1]
	if top.array && c.opts.Order == record.Desc {
		// Descending output ends with the lowest index; pad down to zero.
		for i := top.last; i > 0; i-- {
			c.gen.raw("null")
		}
	}
	c.gen.end(top.array)
}

// place positions the writer at segment seg inside parent: a field name for
// objects, gap-filling nulls for arrays. It returns false when seg cannot
// live in parent (a field name inside an array), in which case the record
// is skipped.
func (c *Consumer) place(parent *container, seg string) (bool, error) {
	if !parent.array {
		name := seg
		if path.IsArrayToken(seg) {
			idx, err := path.DecodeArrayIndex(seg)
			if err != nil {
				return false, err
			}
			name = strconv.FormatUint(idx, 10)
		}
		c.gen.fieldName(name)
		return true, nil
	}

	if !path.IsArrayToken(seg) {
		return false, nil
	}
	u, err := path.DecodeArrayIndex(seg)
	if err != nil {
		return false, err
	}
	idx := int64(u)
	if c.opts.Order == record.Desc {
		if parent.last >= 0 {
			for i := parent.last - 1; i > idx; i-- {
				c.gen.raw("null")
			}
		}
	} else {
		for i := parent.last + 1; i < idx; i++ {
			c.gen.raw("null")
		}
	}
	parent.last = idx
	return true, nil
}

func (c *Consumer) writeValue(kind record.Kind, value string) {
	switch kind {
	case record.KindString:
		c.gen.str(value)
	case record.KindNumber:
		if value == "" {
			c.gen.raw("null")
			return
		}
		c.gen.raw(value)
	case record.KindTrue:
		c.gen.raw("true")
	case record.KindFalse:
		c.gen.raw("false")
	case record.KindObject:
		c.gen.raw("{}")
	case record.KindArray:
		c.gen.raw("[]")
	default:
		c.gen.raw("null")
	}
}

// Close closes every open container, flushes, and ends the JSONP envelope.
// It is idempotent.
func (c *Consumer) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if len(c.open) == 0 && !c.rootWritten {
		c.gen.raw("null")
	}
	for len(c.open) > 0 {
		c.closeInnermost()
	}
	if c.opts.Callback != "" {
		c.gen.write(")")
	}
	return c.gen.flush()
}

// Abort marks the stream closed without finishing the document. Whatever
// was buffered is flushed so the caller sees the truncation.
func (c *Consumer) Abort() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.gen.flush()
}

// Write assembles a complete document from recs into w.
func Write(w io.Writer, base string, opts record.GetOptions, recs []record.Record) error {
	c, err := New(w, base, opts)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if c.Closed() {
			break
		}
		if err := c.Accept(rec); err != nil {
			_ = c.Abort()
			return err
		}
	}
	return c.Close()
}
