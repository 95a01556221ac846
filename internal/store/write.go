package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/roach88/jsondb/internal/events"
	"github.com/roach88/jsondb/internal/flatten"
	"github.com/roach88/jsondb/internal/path"
	"github.com/roach88/jsondb/internal/querysql"
	"github.com/roach88/jsondb/internal/record"
)

// Set replaces the subtree at p with the JSON document read from body.
// Rows stored at ancestors of p are removed too, so a scalar previously
// stored on the way to p is replaced by the new object.
func (e *Engine) Set(ctx context.Context, p string, body io.Reader) error {
	dbPath, err := path.ToStoragePath(p)
	if err != nil {
		return err
	}

	return e.inTx(ctx, func(q querier, bus events.Bus) error {
		if _, err := e.exec(ctx, q, querysql.DeleteSubtree(dbPath)); err != nil {
			return err
		}
		b := e.newBatcher(ctx, q)
		if err := flatten.Flatten(body, dbPath, e.indexes, b.add); err != nil {
			return err
		}
		if err := b.flush(); err != nil {
			return err
		}
		e.broadcast(ctx, bus, events.TopicUpdated, path.External(dbPath))
		return nil
	})
}

// Update applies each top-level field of the JSON object in body as an
// independent Set at p/field, leaving other fields of p untouched. Field
// names may themselves be paths: {"props/city": "Miami"} replaces only
// p/props/city. One event is broadcast per field.
func (e *Engine) Update(ctx context.Context, p string, body io.Reader) error {
	if _, err := path.ToStoragePath(p); err != nil {
		return err
	}

	return e.inTx(ctx, func(q querier, bus events.Bus) error {
		b := e.newBatcher(ctx, q)
		f := flatten.New(body, e.indexes, b.add)

		tok, err := f.Token()
		if errors.Is(err, io.EOF) {
			return record.NewMalformedDocumentError("empty document", io.ErrUnexpectedEOF)
		}
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return record.NewMalformedDocumentError("update requires a JSON object", nil)
		}

		seen := make(map[string]struct{})
		var changed []string
		for {
			tok, err := f.Token()
			if errors.Is(err, io.EOF) {
				return record.NewMalformedDocumentError("unexpected end of document", io.ErrUnexpectedEOF)
			}
			if err != nil {
				return err
			}
			if d, ok := tok.(json.Delim); ok && d == '}' {
				break
			}
			key, ok := tok.(string)
			if !ok {
				return record.NewMalformedDocumentError("expected field name", nil)
			}
			if strings.Trim(key, path.Separator) == "" {
				return record.NewInvalidKeyError(key, "update field must name a child path")
			}

			fieldPath, err := path.ToStoragePath(path.Join(p, key))
			if err != nil {
				return err
			}
			if _, dup := seen[fieldPath]; dup {
				return record.NewMalformedDocumentError("duplicate key "+key, nil)
			}
			seen[fieldPath] = struct{}{}

			// Pending rows may lie inside the subtree about to be cleared.
			if err := b.flush(); err != nil {
				return err
			}
			if _, err := e.exec(ctx, q, querysql.DeleteSubtree(fieldPath)); err != nil {
				return err
			}
			if err := f.Value(fieldPath); err != nil {
				return err
			}
			changed = append(changed, fieldPath)
		}
		if err := f.End(); err != nil {
			return err
		}
		if err := b.flush(); err != nil {
			return err
		}

		for _, fp := range changed {
			e.broadcast(ctx, bus, events.TopicUpdated, path.External(fp))
		}
		return nil
	})
}

// Push stores body under a freshly generated key below p and returns the
// key.
func (e *Engine) Push(ctx context.Context, p string, body io.Reader) (string, error) {
	key := e.keys.Generate()
	if err := e.Set(ctx, path.Join(p, key), body); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes the subtree at p and any rows stored at its ancestors.
// It reports whether anything was removed; the deletion event is broadcast
// only in that case.
func (e *Engine) Delete(ctx context.Context, p string) (bool, error) {
	dbPath, err := path.ToStoragePath(p)
	if err != nil {
		return false, err
	}

	var removed bool
	err = e.inTx(ctx, func(q querier, bus events.Bus) error {
		n, err := e.exec(ctx, q, querysql.DeleteSubtree(dbPath))
		if err != nil {
			return err
		}
		removed = n > 0
		if removed {
			e.broadcast(ctx, bus, events.TopicDeleted, path.External(dbPath))
		}
		return nil
	})
	return removed, err
}

// batcher accumulates rows into multi-row inserts.
type batcher struct {
	e    *Engine
	ctx  context.Context
	q    querier
	args []any
	rows int
	size int
}

func (e *Engine) newBatcher(ctx context.Context, q querier) *batcher {
	return &batcher{e: e, ctx: ctx, q: q}
}

func (b *batcher) add(rec record.Record) error {
	var idx any
	if rec.Index != "" {
		idx = rec.Index
	}
	b.args = append(b.args, rec.Path, rec.Value, int(rec.Kind), idx)
	b.rows++
	b.size += len(rec.Path) + len(rec.Value)
	if b.size >= b.e.batchBytes || b.rows >= b.e.batchRows {
		return b.flush()
	}
	return nil
}

func (b *batcher) flush() error {
	if b.rows == 0 {
		return nil
	}
	if _, err := b.e.exec(b.ctx, b.q, querysql.InsertRows(b.rows), b.args...); err != nil {
		return err
	}
	b.args = b.args[:0]
	b.rows = 0
	b.size = 0
	return nil
}
