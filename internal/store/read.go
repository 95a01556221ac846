package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/roach88/jsondb/internal/assemble"
	"github.com/roach88/jsondb/internal/path"
	"github.com/roach88/jsondb/internal/querysql"
	"github.com/roach88/jsondb/internal/record"
)

// Exists reports whether any row is stored at or below p.
func (e *Engine) Exists(ctx context.Context, p string) (bool, error) {
	dbPath, err := path.ToStoragePath(p)
	if err != nil {
		return false, err
	}
	if err := e.checkConn(); err != nil {
		return false, err
	}
	text, params, err := e.compiler.Compile(querysql.Exists(dbPath))
	if err != nil {
		return false, err
	}

	var found string
	err = e.q.QueryRowContext(ctx, text, params...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, record.NewStorageError("exists", err)
	}
	return true, nil
}

// GetAsStream opens a cursor over the subtree at p. It returns nil when no
// row matches, so callers can tell "absent" from "empty" without reading.
//
// The returned Stream holds the cursor (and its connection) until WriteTo
// finishes or Close is called; callers must do one or the other. On a pool
// limited to one connection (":memory:" databases) every other operation
// outside a transaction fails with STORAGE_UNAVAILABLE wrapping
// ErrStreamOpen until then, rather than waiting forever.
func (e *Engine) GetAsStream(ctx context.Context, p string, opts record.GetOptions) (*Stream, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dbPath, err := path.ToStoragePath(p)
	if err != nil {
		return nil, err
	}
	sel, err := querysql.Scan(dbPath, opts)
	if err != nil {
		return nil, err
	}

	rows, err := e.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		err := rows.Err()
		rows.Close()
		if err != nil {
			return nil, record.NewStorageError("read rows", err)
		}
		return nil, nil
	}
	first, err := scanRecord(rows)
	if err != nil {
		rows.Close()
		return nil, err
	}
	s := &Stream{rows: rows, first: first, base: dbPath, opts: opts}
	if e.tx == nil && e.single {
		e.streams.Add(1)
		s.release = func() { e.streams.Add(-1) }
	}
	return s, nil
}

// Get reads the subtree at p into memory. ok is false when nothing is
// stored there.
func (e *Engine) Get(ctx context.Context, p string, opts record.GetOptions) (doc []byte, ok bool, err error) {
	s, err := e.GetAsStream(ctx, p, opts)
	if err != nil || s == nil {
		return nil, false, err
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

// Stream is a pending read of one subtree. It implements io.WriterTo.
// A Stream is single-use and not safe for concurrent use.
type Stream struct {
	rows    *sql.Rows
	first   record.Record
	base    string
	opts    record.GetOptions
	used    bool
	closed  bool
	release func()
}

var errStreamUsed = errors.New("store: stream already consumed")

// WriteTo assembles the subtree as JSON into w and releases the cursor.
// Truncation by depth or limitToFirst still produces well-formed JSON. If
// an error is returned the output must be discarded: it was cut off
// mid-document.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	if s.used || s.closed {
		return 0, errStreamUsed
	}
	s.used = true
	defer s.Close()

	cw := &countingWriter{w: w}
	c, err := assemble.New(cw, s.base, s.opts)
	if err != nil {
		return 0, err
	}

	if err := c.Accept(s.first); err != nil {
		_ = c.Abort()
		return cw.n, err
	}
	for !c.Closed() && s.rows.Next() {
		rec, err := scanRecord(s.rows)
		if err != nil {
			_ = c.Abort()
			return cw.n, err
		}
		if err := c.Accept(rec); err != nil {
			_ = c.Abort()
			return cw.n, err
		}
	}
	if err := s.rows.Err(); err != nil {
		_ = c.Abort()
		return cw.n, record.NewStorageError("read rows", err)
	}
	err = c.Close()
	return cw.n, err
}

// Close releases the cursor. It is idempotent and safe to call after
// WriteTo.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.release != nil {
		s.release()
	}
	return s.rows.Close()
}

func scanRecord(rows *sql.Rows) (record.Record, error) {
	var (
		p     string
		value sql.NullString
		kind  int
	)
	if err := rows.Scan(&p, &value, &kind); err != nil {
		return record.Record{}, record.NewStorageError("scan row", err)
	}
	return record.Record{Path: p, Value: value.String, Kind: record.Kind(kind)}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
