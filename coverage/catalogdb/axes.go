// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package catalogdb

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
	"github.com/Geomatys/geotoolkit-sub012/private/dbutil"
	"github.com/Geomatys/geotoolkit-sub012/shared/lrucache"
)

var _ coverage.Axes = (*axesTable)(nil)

type axesTable struct {
	db    *catalogDB
	cache *lrucache.Cache[string, coverage.Axis]
}

// Get returns the axis with the given name.
func (axes *axesTable) Get(ctx context.Context, name string) (axis coverage.Axis, err error) {
	defer mon.Task()(&ctx)(&err)
	err = axes.db.withShared(ctx, func() error {
		axis, err = axes.get(ctx, name)
		return err
	})
	return axis, err
}

// FindOrInsert returns the name of an axis with the same content, inserting
// it when there is none.
func (axes *axesTable) FindOrInsert(ctx context.Context, axis coverage.Axis, seed string) (name string, err error) {
	defer mon.Task()(&ctx)(&err)
	err = axes.db.withWrite(ctx, func(tx *Transaction) error {
		name, err = axes.findOrInsert(ctx, tx, axis, seed)
		return err
	})
	return name, err
}

func (axes *axesTable) get(ctx context.Context, name string) (coverage.Axis, error) {
	return axes.cache.Get(ctx, name, func() (coverage.Axis, error) {
		return axes.lookup(ctx, axes.db.pool(), name)
	})
}

func (axes *axesTable) lookup(ctx context.Context, q dbutil.Queryer, name string) (coverage.Axis, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, datum, direction, units, bounds
		FROM additional_axes WHERE name = ?`, name)
	if err != nil {
		return coverage.Axis{}, Error.Wrap(err)
	}
	entries, err := collect(rows, scanAxis)
	if err != nil {
		return coverage.Axis{}, err
	}
	return single(axes.db.log, "additional_axes", name, entries, func(a, b coverage.Axis) bool {
		return a.Name == b.Name && a.SameContent(b)
	})
}

func scanAxis(rows *sql.Rows) (axis coverage.Axis, err error) {
	var direction, bounds string
	if err := rows.Scan(&axis.Name, &axis.Datum, &direction, &axis.Units, &bounds); err != nil {
		return axis, err
	}
	axis.Direction = coverage.Direction(direction)
	axis.Bounds, err = coverage.DecodeBounds(bounds)
	return axis, err
}

func (axes *axesTable) findOrInsert(ctx context.Context, tx *Transaction, axis coverage.Axis, seed string) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := tx.requireWrite(); err != nil {
		return "", err
	}
	if strings.HasPrefix(seed, ",") {
		return "", Error.New("axis name %q starts with a comma", seed)
	}
	bounds := coverage.EncodeBounds(axis.Bounds)

	return findOrInsertNamed(ctx, seed,
		func(ctx context.Context) (string, bool, error) {
			var name string
			err := tx.QueryRowContext(ctx, `
				SELECT name FROM additional_axes
				WHERE datum = ? AND direction = ? AND units = ? AND bounds = ?`,
				axis.Datum, string(axis.Direction), axis.Units, bounds,
			).Scan(&name)
			if err == sql.ErrNoRows {
				return "", false, nil
			}
			return name, err == nil, Error.Wrap(err)
		},
		func(ctx context.Context, name string) (bool, error) {
			return insertedRow(tx.ExecContext(ctx, `
				INSERT INTO additional_axes (name, datum, direction, units, bounds)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT DO NOTHING`,
				name, axis.Datum, string(axis.Direction), axis.Units, bounds))
		},
	)
}
