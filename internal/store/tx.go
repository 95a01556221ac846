package store

import (
	"context"
	"database/sql"

	"github.com/roach88/jsondb/internal/events"
	"github.com/roach88/jsondb/internal/queryir"
	"github.com/roach88/jsondb/internal/record"
)

// inTx runs fn inside a transaction. fn broadcasts on the bus it is given;
// those events reach the Engine's bus only after commit. Inside
// WithTransaction the surrounding transaction and its buffer are reused.
func (e *Engine) inTx(ctx context.Context, fn func(q querier, bus events.Bus) error) error {
	if e.tx != nil {
		return fn(e.tx, e.bus)
	}
	if err := e.checkConn(); err != nil {
		return err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return record.NewStorageError("begin transaction", err)
	}
	defer tx.Rollback() // No-op if committed

	var pending events.Transacted
	if err := fn(tx, &pending); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return record.NewStorageError("commit transaction", err)
	}
	e.publish(ctx, &pending)
	return nil
}

// WithTransaction runs fn with an Engine whose operations all share one
// transaction. If fn returns an error everything is rolled back and no
// events fire; otherwise the transaction commits and the buffered events
// are broadcast. Nested calls join the outer transaction.
//
// Streams obtained inside fn must be consumed or closed before fn returns.
func (e *Engine) WithTransaction(ctx context.Context, fn func(tx *Engine) error) error {
	if e.tx != nil {
		return fn(e)
	}
	if err := e.checkConn(); err != nil {
		return err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return record.NewStorageError("begin transaction", err)
	}
	defer tx.Rollback()

	pending := &events.Transacted{}
	child := *e
	child.q = tx
	child.tx = tx
	child.bus = pending
	child.ownsDB = false

	if err := fn(&child); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return record.NewStorageError("commit transaction", err)
	}
	e.publish(ctx, pending)
	return nil
}

// publish forwards committed events. Notification failures never fail the
// write that produced them.
func (e *Engine) publish(ctx context.Context, pending *events.Transacted) {
	if err := pending.Publish(ctx, e.bus); err != nil {
		e.logger.Warn("change notification failed", "error", err)
	}
}

func (e *Engine) broadcast(ctx context.Context, bus events.Bus, topic, logical string) {
	if err := bus.Broadcast(ctx, topic, logical); err != nil {
		e.logger.Warn("change notification failed", "topic", topic, "path", logical, "error", err)
	}
}

// exec compiles and executes a statement, returning rows affected.
func (e *Engine) exec(ctx context.Context, q querier, stmt queryir.Query, args ...any) (int64, error) {
	text, params, err := e.compiler.Compile(stmt)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, text, append(params, args...)...)
	if err != nil {
		return 0, record.NewStorageError("execute statement", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, record.NewStorageError("rows affected", err)
	}
	return n, nil
}

// query compiles and runs a select. The caller closes the rows.
func (e *Engine) query(ctx context.Context, sel queryir.Select) (*sql.Rows, error) {
	if err := e.checkConn(); err != nil {
		return nil, err
	}
	text, params, err := e.compiler.Compile(sel)
	if err != nil {
		return nil, err
	}
	rows, err := e.q.QueryContext(ctx, text, params...)
	if err != nil {
		return nil, record.NewStorageError("query", err)
	}
	return rows, nil
}

// ExecuteNative runs a raw statement in a transaction and returns the
// number of rows affected. It is a maintenance hook; statements bypass
// path validation and raise no events.
func (e *Engine) ExecuteNative(ctx context.Context, statement string, args ...any) (int64, error) {
	var n int64
	err := e.inTx(ctx, func(q querier, _ events.Bus) error {
		res, err := q.ExecContext(ctx, statement, args...)
		if err != nil {
			return record.NewStorageError("execute native statement", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return record.NewStorageError("rows affected", err)
		}
		return nil
	})
	return n, err
}
