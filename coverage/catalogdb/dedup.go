// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package catalogdb

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
)

// MaxCandidates bounds the names tried for new content. Name races are rare,
// a long run of taken names means the seed is misused.
const MaxCandidates = 100

// candidateName returns the name tried at the given attempt: seed, seed-2,
// seed-3 and so on.
func candidateName(seed string, attempt int) string {
	if attempt == 0 {
		return seed
	}
	return seed + "-" + strconv.Itoa(attempt+1)
}

// findOrInsertNamed returns the name of existing content returned by find, or
// inserts the content under the first free candidate name. insert must not
// fail on a name conflict, it reports whether a row was inserted instead.
// Every attempt looks the content up again, so content inserted concurrently under another
// name is found rather than duplicated.
func findOrInsertNamed(ctx context.Context, seed string,
	find func(ctx context.Context) (name string, found bool, err error),
	insert func(ctx context.Context, name string) (inserted bool, err error),
) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	if seed == "" {
		return "", Error.New("empty seed name")
	}

	for attempt := 0; attempt < MaxCandidates; attempt++ {
		name, found, err := find(ctx)
		if err != nil {
			return "", err
		}
		if found {
			mon.IntVal("find_or_insert_attempts").Observe(int64(attempt + 1))
			return name, nil
		}

		candidate := candidateName(seed, attempt)
		inserted, err := insert(ctx, candidate)
		if err != nil {
			return "", err
		}
		if inserted {
			mon.IntVal("find_or_insert_attempts").Observe(int64(attempt + 1))
			return candidate, nil
		}
	}

	mon.Event("namespace_exhausted")
	return "", coverage.ErrNamespaceExhausted.New("no free name for %q within %d candidates", seed, MaxCandidates)
}

// findOrInsertNumbered returns the identifier of existing content found by
// find, or of the row added by insert. insert reports false when a unique
// constraint on the content made it a no-op, which means a concurrent writer
// committed the same content and the next find returns it.
func findOrInsertNumbered(ctx context.Context,
	find func(ctx context.Context) (id int64, found bool, err error),
	insert func(ctx context.Context) (id int64, inserted bool, err error),
) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	for attempt := 0; attempt < MaxCandidates; attempt++ {
		id, found, err := find(ctx)
		if err != nil {
			return 0, err
		}
		if found {
			return id, nil
		}

		id, inserted, err := insert(ctx)
		if err != nil {
			return 0, err
		}
		if inserted {
			return id, nil
		}
	}
	return 0, Error.New("content neither found nor inserted after %d attempts", MaxCandidates)
}

// insertedRow reports whether an insert with ON CONFLICT DO NOTHING added a row.
func insertedRow(result sql.Result, err error) (bool, error) {
	if err != nil {
		return false, Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, Error.Wrap(err)
	}
	switch affected {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, coverage.ErrIllegalUpdate.New("insert affected %d rows", affected)
	}
}

// insertedID scans the identifier returned by an insert with
// ON CONFLICT DO NOTHING RETURNING. A conflict returns no row.
func insertedID(row *sql.Row) (int64, bool, error) {
	var id int64
	err := row.Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, Error.Wrap(err)
	}
	return id, true, nil
}

// collect scans every row.
func collect[E any](rows *sql.Rows, scan func(rows *sql.Rows) (E, error)) (_ []E, err error) {
	defer func() { err = errs.Combine(err, rows.Close()) }()

	var entries []E
	for rows.Next() {
		entry, err := scan(rows)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		entries = append(entries, entry)
	}
	return entries, Error.Wrap(rows.Err())
}

// single returns the entry a lookup by key found. Several equal rows are
// accepted, several different rows are reported as duplicated.
func single[E any](log *zap.Logger, table string, key interface{}, entries []E, equal func(a, b E) bool) (E, error) {
	var zero E
	if len(entries) == 0 {
		return zero, coverage.ErrNoSuchRecord.New("%s %v", table, key)
	}
	for _, entry := range entries[1:] {
		if !equal(entries[0], entry) {
			log.Warn("Duplicated catalog record",
				zap.String("table", table),
				zap.Any("key", key),
				zap.Int("rows", len(entries)))
			return zero, coverage.ErrDuplicatedRecord.New("%s %v", table, key)
		}
	}
	return entries[0], nil
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullTime(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64).UTC()
}
