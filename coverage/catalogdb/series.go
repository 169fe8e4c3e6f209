// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package catalogdb

import (
	"context"
	"database/sql"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
	"github.com/Geomatys/geotoolkit-sub012/private/dbutil"
	"github.com/Geomatys/geotoolkit-sub012/shared/lrucache"
)

var _ coverage.SeriesCatalog = (*seriesTable)(nil)

type seriesTable struct {
	db    *catalogDB
	cache *lrucache.Cache[int64, coverage.Series]
}

// Get returns the series with the given identifier.
func (series *seriesTable) Get(ctx context.Context, id int64) (entry coverage.Series, err error) {
	defer mon.Task()(&ctx)(&err)
	err = series.db.withShared(ctx, func() error {
		entry, err = series.get(ctx, id)
		return err
	})
	return entry, err
}

// FindOrInsert returns the identifier of a series with the same content,
// inserting it when there is none.
func (series *seriesTable) FindOrInsert(ctx context.Context, entry coverage.Series) (id int64, err error) {
	defer mon.Task()(&ctx)(&err)
	err = series.db.withWrite(ctx, func(tx *Transaction) error {
		id, err = series.findOrInsert(ctx, tx, entry)
		return err
	})
	return id, err
}

func (series *seriesTable) get(ctx context.Context, id int64) (coverage.Series, error) {
	return series.cache.Get(ctx, id, func() (coverage.Series, error) {
		return series.lookup(ctx, series.db.pool(), id)
	})
}

func (series *seriesTable) lookup(ctx context.Context, q dbutil.Queryer, id int64) (coverage.Series, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT identifier, product, directory, extension, format
		FROM series WHERE identifier = ?`, id)
	if err != nil {
		return coverage.Series{}, Error.Wrap(err)
	}
	entries, err := collect(rows, func(rows *sql.Rows) (entry coverage.Series, err error) {
		return entry, rows.Scan(&entry.ID, &entry.Product, &entry.Directory, &entry.Extension, &entry.Format)
	})
	if err != nil {
		return coverage.Series{}, err
	}
	return single(series.db.log, "series", id, entries, func(a, b coverage.Series) bool { return a == b })
}

func (series *seriesTable) findOrInsert(ctx context.Context, tx *Transaction, entry coverage.Series) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := tx.requireWrite(); err != nil {
		return 0, err
	}

	return findOrInsertNumbered(ctx,
		func(ctx context.Context) (int64, bool, error) {
			var id int64
			err := tx.QueryRowContext(ctx, `
				SELECT identifier FROM series
				WHERE product = ? AND directory = ? AND extension = ? AND format = ?`,
				entry.Product, entry.Directory, entry.Extension, entry.Format,
			).Scan(&id)
			if err == sql.ErrNoRows {
				return 0, false, nil
			}
			return id, err == nil, Error.Wrap(err)
		},
		func(ctx context.Context) (int64, bool, error) {
			return insertedID(tx.QueryRowContext(ctx, `
				INSERT INTO series (product, directory, extension, format)
				VALUES (?, ?, ?, ?)
				ON CONFLICT DO NOTHING
				RETURNING identifier`,
				entry.Product, entry.Directory, entry.Extension, entry.Format))
		},
	)
}

// deleteOrphans deletes the given series when they have no raster left and
// returns the deleted identifiers.
func (series *seriesTable) deleteOrphans(ctx context.Context, tx *Transaction, ids []int64) (_ []int64, err error) {
	defer mon.Task()(&ctx)(&err)

	var deleted []int64
	for _, id := range ids {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM series
			WHERE identifier = ?
			AND NOT EXISTS (SELECT 1 FROM rasters WHERE series = ?)`,
			id, id)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		if affected == 1 {
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}
