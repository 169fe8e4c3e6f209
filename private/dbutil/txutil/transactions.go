// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package txutil runs functions inside database transactions, retrying them
// when they lose against a concurrent transaction.
package txutil

import (
	"context"
	"database/sql"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"github.com/Geomatys/geotoolkit-sub012/private/dbutil"
)

var mon = monkit.Package()

const (
	maxAttempts  = 10
	maxRetryTime = time.Minute
	firstBackoff = 10 * time.Millisecond
)

// WithTx runs fn in a transaction on db, committing when fn returns nil and
// rolling back otherwise. fn is run again when the transaction fails with a
// retryable error, so anything it does outside of tx must be idempotent.
func WithTx(ctx context.Context, db *sql.DB, txOpts *sql.TxOptions, fn func(context.Context, *sql.Tx) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	start := time.Now()
	backoff := firstBackoff
	for attempt := 1; ; attempt++ {
		err = once(ctx, db, txOpts, fn)
		if err == nil || !dbutil.IsRetryable(err) || attempt >= maxAttempts || time.Since(start) > maxRetryTime {
			mon.IntVal("transaction_attempts").Observe(int64(attempt))
			return err
		}
		mon.Event("transaction_retry")

		select {
		case <-ctx.Done():
			return errs.Combine(err, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func once(ctx context.Context, db *sql.DB, txOpts *sql.TxOptions, fn func(context.Context, *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, txOpts)
	if err != nil {
		return errs.Wrap(err)
	}
	if err := fn(ctx, tx); err != nil {
		return errs.Combine(err, tx.Rollback())
	}
	return errs.Wrap(tx.Commit())
}
