// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package catalogdb

import (
	"context"
	"database/sql"

	"github.com/zeebo/errs"

	"github.com/Geomatys/geotoolkit-sub012/private/dbutil"
)

// rebinder rewrites placeholders before passing queries on.
type rebinder struct {
	impl dbutil.Implementation
	q    dbutil.Queryer
}

func (r rebinder) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return r.q.ExecContext(ctx, dbutil.Rebind(r.impl, query), args...)
}

func (r rebinder) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, dbutil.Rebind(r.impl, query), args...)
}

func (r rebinder) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return r.q.QueryRowContext(ctx, dbutil.Rebind(r.impl, query), args...)
}

// Transaction is a connection reserved for one catalog operation. It reads in
// autocommit mode until WriteStart, after which every statement runs in one
// database transaction until WriteEnd. Closing a transaction that is still
// writing rolls it back.
type Transaction struct {
	db   *catalogDB
	conn *sql.Conn
	tx   *sql.Tx
}

// Begin reserves a connection for an operation.
func (db *catalogDB) Begin(ctx context.Context) (_ *Transaction, err error) {
	defer mon.Task()(&ctx)(&err)

	conn, err := db.db.Conn(ctx)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &Transaction{db: db, conn: conn}, nil
}

// Writing reports whether WriteStart was called without WriteEnd.
func (t *Transaction) Writing() bool { return t.tx != nil }

// WriteStart starts the write transaction.
func (t *Transaction) WriteStart(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if t.tx != nil {
		return Error.New("write already started")
	}
	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return Error.Wrap(err)
	}
	t.tx = tx
	return nil
}

// WriteEnd commits the write transaction.
func (t *Transaction) WriteEnd() error {
	if t.tx == nil {
		return Error.New("write not started")
	}
	tx := t.tx
	t.tx = nil
	return Error.Wrap(tx.Commit())
}

// Close rolls back pending writes and returns the connection to the pool.
func (t *Transaction) Close() error {
	var rollbackErr error
	if t.tx != nil {
		mon.Event("transaction_rollback")
		rollbackErr = t.tx.Rollback()
		t.tx = nil
	}
	return Error.Wrap(errs.Combine(rollbackErr, t.conn.Close()))
}

func (t *Transaction) queryer() dbutil.Queryer {
	if t.tx != nil {
		return rebinder{impl: t.db.impl, q: t.tx}
	}
	return rebinder{impl: t.db.impl, q: t.conn}
}

// ExecContext runs a statement with "?" placeholders.
func (t *Transaction) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.queryer().ExecContext(ctx, query, args...)
}

// QueryContext runs a query with "?" placeholders.
func (t *Transaction) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.queryer().QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single row query with "?" placeholders.
func (t *Transaction) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.queryer().QueryRowContext(ctx, query, args...)
}

// requireWrite fails unless the transaction is writing.
func (t *Transaction) requireWrite() error {
	if t.tx == nil {
		return Error.New("write not started")
	}
	return nil
}
