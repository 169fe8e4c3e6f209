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

var _ coverage.GridGeometries = (*gridsTable)(nil)

type gridsTable struct {
	db    *catalogDB
	cache *lrucache.Cache[int64, coverage.GridGeometry]
}

const gridColumns = `identifier, width, height, scale_x, shear_y, shear_x, scale_y, translate_x, translate_y, crs, axes`

// Get returns the grid geometry with the given identifier.
func (grids *gridsTable) Get(ctx context.Context, id int64) (grid coverage.GridGeometry, err error) {
	defer mon.Task()(&ctx)(&err)
	err = grids.db.withShared(ctx, func() error {
		grid, err = grids.get(ctx, id)
		return err
	})
	return grid, err
}

// FindOrInsert returns the identifier of a grid geometry with the same
// content, inserting it when there is none.
func (grids *gridsTable) FindOrInsert(ctx context.Context, grid coverage.GridGeometry) (id int64, err error) {
	defer mon.Task()(&ctx)(&err)
	err = grids.db.withWrite(ctx, func(tx *Transaction) error {
		id, err = grids.findOrInsert(ctx, tx, grid)
		return err
	})
	return id, err
}

func (grids *gridsTable) get(ctx context.Context, id int64) (coverage.GridGeometry, error) {
	return grids.cache.Get(ctx, id, func() (coverage.GridGeometry, error) {
		return grids.lookup(ctx, grids.db.pool(), id)
	})
}

func (grids *gridsTable) lookup(ctx context.Context, q dbutil.Queryer, id int64) (coverage.GridGeometry, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+gridColumns+` FROM grid_geometries WHERE identifier = ?`, id)
	if err != nil {
		return coverage.GridGeometry{}, Error.Wrap(err)
	}
	entries, err := collect(rows, scanGrid)
	if err != nil {
		return coverage.GridGeometry{}, err
	}
	return single(grids.db.log, "grid_geometries", id, entries, coverage.GridGeometry.Equal)
}

func scanGrid(rows *sql.Rows) (grid coverage.GridGeometry, err error) {
	var axes string
	err = rows.Scan(&grid.ID, &grid.Width, &grid.Height,
		&grid.ScaleX, &grid.ShearY, &grid.ShearX, &grid.ScaleY, &grid.TranslateX, &grid.TranslateY,
		&grid.CRS, &axes)
	grid.Axes = dbutil.DecodeList(axes)
	return grid, err
}

func (grids *gridsTable) findOrInsert(ctx context.Context, tx *Transaction, grid coverage.GridGeometry) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := tx.requireWrite(); err != nil {
		return 0, err
	}
	if grid.Width <= 0 || grid.Height <= 0 {
		return 0, Error.New("invalid grid size %dx%d", grid.Width, grid.Height)
	}
	args := []interface{}{
		grid.Width, grid.Height,
		grid.ScaleX, grid.ShearY, grid.ShearX, grid.ScaleY, grid.TranslateX, grid.TranslateY,
		grid.CRS, dbutil.EncodeList(grid.Axes),
	}

	return findOrInsertNumbered(ctx,
		func(ctx context.Context) (int64, bool, error) {
			var id int64
			err := tx.QueryRowContext(ctx, `
				SELECT identifier FROM grid_geometries
				WHERE width = ? AND height = ?
				AND scale_x = ? AND shear_y = ? AND shear_x = ? AND scale_y = ?
				AND translate_x = ? AND translate_y = ?
				AND crs = ? AND axes = ?`, args...,
			).Scan(&id)
			if err == sql.ErrNoRows {
				return 0, false, nil
			}
			return id, err == nil, Error.Wrap(err)
		},
		func(ctx context.Context) (int64, bool, error) {
			return insertedID(tx.QueryRowContext(ctx, `
				INSERT INTO grid_geometries (width, height, scale_x, shear_y, shear_x, scale_y, translate_x, translate_y, crs, axes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT DO NOTHING
				RETURNING identifier`, args...))
		},
	)
}
