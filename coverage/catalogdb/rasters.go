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

// rasterKey identifies an image of a raster file by its root-relative path.
type rasterKey struct {
	Path  string
	Index int
}

type rastersTable struct {
	db    *catalogDB
	cache *lrucache.Cache[rasterKey, coverage.RasterEntry]
}

// rasterRow is a raster joined with its series.
type rasterRow struct {
	coverage.Raster
	Product   string
	Directory string
	Extension string
	Format    string
}

func (row rasterRow) key() rasterKey {
	return rasterKey{
		Path:  coverage.RelativePath(row.Directory, row.Filename, row.Extension),
		Index: row.Index,
	}
}

const rasterColumns = `r.series, r.filename, r.image_index, r.start_time, r.end_time, r.grid,
	s.product, s.directory, s.extension, s.format`

func scanRaster(rows *sql.Rows) (row rasterRow, err error) {
	var start, end sql.NullInt64
	err = rows.Scan(&row.Series, &row.Filename, &row.Index, &start, &end, &row.Grid,
		&row.Product, &row.Directory, &row.Extension, &row.Format)
	row.StartTime = fromNullTime(start)
	row.EndTime = fromNullTime(end)
	return row, err
}

// get returns a committed raster through the cache.
func (rasters *rastersTable) get(ctx context.Context, key rasterKey) (coverage.RasterEntry, error) {
	return rasters.cache.Get(ctx, key, func() (coverage.RasterEntry, error) {
		directory, filename, extension, err := coverage.Root("").Split(key.Path)
		if err != nil {
			return coverage.RasterEntry{}, err
		}
		rows, err := rasters.find(ctx, rasters.db.pool(), directory, filename, extension, &key.Index)
		if err != nil {
			return coverage.RasterEntry{}, err
		}
		row, err := single(rasters.db.log, "rasters", key, rows, func(a, b rasterRow) bool {
			return a.Product == b.Product && a.Series == b.Series && a.Grid == b.Grid &&
				a.StartTime.Equal(b.StartTime) && a.EndTime.Equal(b.EndTime)
		})
		if err != nil {
			return coverage.RasterEntry{}, err
		}
		return rasters.resolve(ctx, row)
	})
}

// find returns the rasters stored in a file, all images unless index is set.
func (rasters *rastersTable) find(ctx context.Context, q dbutil.Queryer, directory, filename, extension string, index *int) ([]rasterRow, error) {
	query := `SELECT ` + rasterColumns + `
		FROM rasters r JOIN series s ON s.identifier = r.series
		WHERE s.directory = ? AND r.filename = ? AND s.extension = ?`
	args := []interface{}{directory, filename, extension}
	if index != nil {
		query += ` AND r.image_index = ?`
		args = append(args, *index)
	}

	rows, err := q.QueryContext(ctx, query+` ORDER BY r.image_index, s.product`, args...)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return collect(rows, scanRaster)
}

// inProduct returns the rasters of a product.
func (rasters *rastersTable) inProduct(ctx context.Context, q dbutil.Queryer, product string) ([]rasterRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+rasterColumns+`
		FROM rasters r JOIN series s ON s.identifier = r.series
		WHERE s.product = ?
		ORDER BY s.directory, r.filename, s.extension, r.image_index`, product)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return collect(rows, scanRaster)
}

// resolve joins a raster with its format and grid geometry.
func (rasters *rastersTable) resolve(ctx context.Context, row rasterRow) (coverage.RasterEntry, error) {
	format, err := rasters.db.formats.get(ctx, row.Format)
	if err != nil {
		return coverage.RasterEntry{}, err
	}
	grid, err := rasters.db.grids.get(ctx, row.Grid)
	if err != nil {
		return coverage.RasterEntry{}, err
	}
	return coverage.RasterEntry{
		Raster:   row.Raster,
		Product:  row.Product,
		Path:     rasters.db.root.Resolve(row.Directory, row.Filename, row.Extension),
		Format:   format,
		Geometry: grid,
	}, nil
}

// insert adds one raster. Any conflict with an existing raster is an
// illegal update.
func (rasters *rastersTable) insert(ctx context.Context, tx *Transaction, raster coverage.Raster) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := tx.requireWrite(); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO rasters (series, filename, image_index, start_time, end_time, grid)
		VALUES (?, ?, ?, ?, ?, ?)`,
		raster.Series, raster.Filename, raster.Index, nullTime(raster.StartTime), nullTime(raster.EndTime), raster.Grid)
	if err != nil {
		if dbutil.IsConstraintError(err) {
			return coverage.ErrIllegalUpdate.New("raster %q image %d already exists: %v", raster.Filename, raster.Index, err)
		}
		return Error.Wrap(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Error.Wrap(err)
	}
	if affected != 1 {
		return coverage.ErrIllegalUpdate.New("inserting raster %q affected %d rows", raster.Filename, affected)
	}
	return nil
}

// delete removes the given rasters.
func (rasters *rastersTable) delete(ctx context.Context, tx *Transaction, rows []rasterRow) (removed int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := tx.requireWrite(); err != nil {
		return 0, err
	}
	for _, row := range rows {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM rasters
			WHERE series = ? AND filename = ? AND image_index = ?`,
			row.Series, row.Filename, row.Index)
		if err != nil {
			return 0, Error.Wrap(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, Error.Wrap(err)
		}
		if affected != 1 {
			return 0, coverage.ErrIllegalUpdate.New("deleting raster %q image %d affected %d rows", row.Filename, row.Index, affected)
		}
		removed++
	}
	return removed, nil
}
