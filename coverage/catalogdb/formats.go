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

var _ coverage.Formats = (*formatsTable)(nil)

// formatsTable stores formats in two tables: the format and its bands.
// The content spans both, so the format row carries a unique digest of it
// that makes concurrent inserts of equal content conflict.
type formatsTable struct {
	db    *catalogDB
	cache *lrucache.Cache[string, coverage.Format]
}

// Get returns the format with the given name.
func (formats *formatsTable) Get(ctx context.Context, name string) (format coverage.Format, err error) {
	defer mon.Task()(&ctx)(&err)
	err = formats.db.withShared(ctx, func() error {
		format, err = formats.get(ctx, name)
		return err
	})
	return format, err
}

// FindOrInsert returns the name of a format with the same content, inserting
// it when there is none.
func (formats *formatsTable) FindOrInsert(ctx context.Context, format coverage.Format, seed string) (name string, err error) {
	defer mon.Task()(&ctx)(&err)
	err = formats.db.withWrite(ctx, func(tx *Transaction) error {
		name, err = formats.findOrInsert(ctx, tx, format, seed)
		return err
	})
	return name, err
}

func (formats *formatsTable) get(ctx context.Context, name string) (coverage.Format, error) {
	return formats.cache.Get(ctx, name, func() (coverage.Format, error) {
		return formats.lookup(ctx, formats.db.pool(), name)
	})
}

func (formats *formatsTable) lookup(ctx context.Context, q dbutil.Queryer, name string) (coverage.Format, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, driver FROM formats WHERE name = ?`, name)
	if err != nil {
		return coverage.Format{}, Error.Wrap(err)
	}
	entries, err := collect(rows, func(rows *sql.Rows) (format coverage.Format, err error) {
		return format, rows.Scan(&format.Name, &format.Driver)
	})
	if err != nil {
		return coverage.Format{}, err
	}
	format, err := single(formats.db.log, "formats", name, entries, func(a, b coverage.Format) bool {
		return a.Name == b.Name && a.Driver == b.Driver
	})
	if err != nil {
		return coverage.Format{}, err
	}
	format.Bands, err = formats.bands(ctx, q, name)
	return format, err
}

func (formats *formatsTable) bands(ctx context.Context, q dbutil.Queryer, name string) ([]coverage.Band, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, lower_sample, upper_sample, scale, offset_value, transfer, units
		FROM sample_dimensions WHERE format = ?
		ORDER BY band`, name)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return collect(rows, func(rows *sql.Rows) (band coverage.Band, err error) {
		return band, rows.Scan(&band.Name, &band.Lower, &band.Upper, &band.Scale, &band.Offset, &band.Transfer, &band.Units)
	})
}

func (formats *formatsTable) findOrInsert(ctx context.Context, tx *Transaction, format coverage.Format, seed string) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := tx.requireWrite(); err != nil {
		return "", err
	}

	content := format.ContentKey()
	return findOrInsertNamed(ctx, seed,
		func(ctx context.Context) (string, bool, error) {
			return formats.findContent(ctx, tx, format)
		},
		func(ctx context.Context, name string) (bool, error) {
			inserted, err := insertedRow(tx.ExecContext(ctx, `
				INSERT INTO formats (name, driver, content) VALUES (?, ?, ?)
				ON CONFLICT DO NOTHING`,
				name, format.Driver, content))
			if err != nil || !inserted {
				return false, err
			}
			for i, band := range format.Bands {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO sample_dimensions (format, band, name, lower_sample, upper_sample, scale, offset_value, transfer, units)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					name, i, band.Name, band.Lower, band.Upper, band.Scale, band.Offset, band.Transfer, band.Units)
				if err != nil {
					return false, Error.Wrap(err)
				}
			}
			return true, nil
		},
	)
}

// findContent finds a format with the same driver and bands.
func (formats *formatsTable) findContent(ctx context.Context, tx *Transaction, format coverage.Format) (string, bool, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT f.name FROM formats f
		WHERE f.driver = ?
		AND (SELECT COUNT(*) FROM sample_dimensions s WHERE s.format = f.name) = ?
		ORDER BY f.name`,
		format.Driver, len(format.Bands))
	if err != nil {
		return "", false, Error.Wrap(err)
	}
	names, err := collect(rows, func(rows *sql.Rows) (name string, err error) {
		return name, rows.Scan(&name)
	})
	if err != nil {
		return "", false, err
	}

	for _, name := range names {
		bands, err := formats.bands(ctx, tx, name)
		if err != nil {
			return "", false, err
		}
		candidate := coverage.Format{Driver: format.Driver, Bands: bands}
		if candidate.SameContent(format) {
			return name, true, nil
		}
	}
	return "", false, nil
}
