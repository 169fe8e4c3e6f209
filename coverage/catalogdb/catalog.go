// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package catalogdb

import (
	"context"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
	"github.com/Geomatys/geotoolkit-sub012/private/sync2"
)

// AddRasters adds rasters to a product. Either every raster is added or none.
func (db *catalogDB) AddRasters(ctx context.Context, product string, hint *coverage.GridGeometry, policy coverage.AddPolicy, rasters ...coverage.NewRaster) (err error) {
	defer mon.Task()(&ctx)(&err)

	if product == "" {
		return Error.New("empty product name")
	}

	if err := db.ticket.Acquire(ctx, db.config.WriteSlotTimeout); err != nil {
		return err
	}
	defer db.ticket.Release()

	stamp, err := db.lock.Acquire(ctx, false, db.config.LockTimeout)
	if err != nil {
		return err
	}
	defer func() { db.lock.Release(stamp) }()

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, tx.Close()) }()

	if err := tx.WriteStart(ctx); err != nil {
		return err
	}

	if err := db.products.prepare(ctx, tx, product, policy); err != nil {
		return err
	}

	prepared := make([]coverage.Raster, 0, len(rasters))
	keys := make([]rasterKey, 0, len(rasters))
	listed := map[rasterKey]bool{}
	for _, raster := range rasters {
		entry, key, err := db.prepareRaster(ctx, tx, product, hint, raster)
		if err != nil {
			return err
		}
		if listed[key] {
			return coverage.ErrIllegalUpdate.New("raster %q image %d listed twice", key.Path, key.Index)
		}
		listed[key] = true
		prepared = append(prepared, entry)
		keys = append(keys, key)
	}

	stamp, err = db.upgrade(ctx, stamp, func() error {
		// another writer may have removed the product in between.
		_, err := db.products.lookup(ctx, tx, product)
		return err
	})
	if err != nil {
		return err
	}

	for _, raster := range prepared {
		if err := db.rasters.insert(ctx, tx, raster); err != nil {
			return err
		}
	}

	if err := tx.WriteEnd(); err != nil {
		return err
	}

	for _, key := range keys {
		db.rasters.cache.Delete(ctx, key)
	}
	db.products.cache.Delete(ctx, product)
	stamp = db.lock.TryDowngrade(stamp)

	db.log.Debug("Added rasters",
		zap.String("product", product),
		zap.Stringer("policy", policy),
		zap.Int("count", len(prepared)))
	return nil
}

// prepareRaster finds or inserts everything a raster refers to.
func (db *catalogDB) prepareRaster(ctx context.Context, tx *Transaction, product string, hint *coverage.GridGeometry, raster coverage.NewRaster) (_ coverage.Raster, _ rasterKey, err error) {
	directory, filename, extension, err := db.root.Split(raster.Path)
	if err != nil {
		return coverage.Raster{}, rasterKey{}, err
	}
	key := rasterKey{Path: coverage.RelativePath(directory, filename, extension), Index: raster.Index}

	// a path and index identify one raster whatever its product or format.
	existing, err := db.rasters.find(ctx, tx, directory, filename, extension, &raster.Index)
	if err != nil {
		return coverage.Raster{}, key, err
	}
	if len(existing) > 0 {
		return coverage.Raster{}, key, coverage.ErrIllegalUpdate.New("raster %q image %d already catalogued in product %q",
			key.Path, key.Index, existing[0].Product)
	}

	seed := raster.Format.Name
	if seed == "" {
		seed = raster.Format.Driver
	}
	format, err := db.formats.findOrInsert(ctx, tx, raster.Format, seed)
	if err != nil {
		return coverage.Raster{}, key, err
	}

	geometry := raster.Geometry
	if geometry == nil {
		geometry = hint
	}
	if geometry == nil {
		return coverage.Raster{}, key, Error.New("raster %q has no grid geometry", raster.Path)
	}
	grid := *geometry
	grid.ID = 0
	if len(raster.Axes) > 0 {
		grid.Axes = make([]string, 0, len(raster.Axes))
		for _, axis := range raster.Axes {
			seed := axis.Name
			if seed == "" {
				seed = string(axis.Direction)
			}
			name, err := db.axes.findOrInsert(ctx, tx, axis, seed)
			if err != nil {
				return coverage.Raster{}, key, err
			}
			grid.Axes = append(grid.Axes, name)
		}
	} else {
		for _, name := range grid.Axes {
			if _, err := db.axes.lookup(ctx, tx, name); err != nil {
				return coverage.Raster{}, key, err
			}
		}
	}
	gridID, err := db.grids.findOrInsert(ctx, tx, grid)
	if err != nil {
		return coverage.Raster{}, key, err
	}

	series, err := db.series.findOrInsert(ctx, tx, coverage.Series{
		Product:   product,
		Directory: directory,
		Extension: extension,
		Format:    format,
	})
	if err != nil {
		return coverage.Raster{}, key, err
	}

	return coverage.Raster{
		Series:    series,
		Filename:  filename,
		Index:     raster.Index,
		StartTime: raster.StartTime,
		EndTime:   raster.EndTime,
		Grid:      gridID,
	}, key, nil
}

// upgrade turns a shared stamp into an exclusive one. When other readers
// held the lock the upgrade is not atomic and revalidate is called, since
// anything read under the shared stamp may have changed.
func (db *catalogDB) upgrade(ctx context.Context, stamp sync2.Stamp, revalidate func() error) (sync2.Stamp, error) {
	if db.hooks.beforeUpgrade != nil {
		db.hooks.beforeUpgrade()
	}
	upgraded, atomic, err := db.lock.TryUpgrade(ctx, stamp, db.config.LockTimeout)
	if err != nil {
		return upgraded, err
	}
	if !atomic {
		db.log.Debug("Lock upgrade was not atomic, revalidating")
		err := revalidate()
		if db.hooks.revalidated != nil {
			db.hooks.revalidated(err)
		}
		if err != nil {
			return upgraded, err
		}
	}
	return upgraded, nil
}

// RemoveRasters removes the rasters stored at the given paths. Unknown paths
// are ignored.
func (db *catalogDB) RemoveRasters(ctx context.Context, paths ...string) (removed int64, err error) {
	defer mon.Task()(&ctx)(&err)

	type file struct{ directory, filename, extension string }
	files := make([]file, 0, len(paths))
	for _, path := range paths {
		directory, filename, extension, err := db.root.Split(path)
		if err != nil {
			return 0, err
		}
		files = append(files, file{directory, filename, extension})
	}

	return db.remove(ctx, func(tx *Transaction) ([]rasterRow, error) {
		var selected []rasterRow
		for _, f := range files {
			rows, err := db.rasters.find(ctx, tx, f.directory, f.filename, f.extension, nil)
			if err != nil {
				return nil, err
			}
			selected = append(selected, rows...)
		}
		return dedupRows(selected), nil
	})
}

// RemoveRastersIn removes the rasters of a product intersecting an area.
// An area without CRS selects by time only.
func (db *catalogDB) RemoveRastersIn(ctx context.Context, product string, area coverage.Area) (removed int64, err error) {
	defer mon.Task()(&ctx)(&err)

	return db.remove(ctx, func(tx *Transaction) ([]rasterRow, error) {
		if _, err := db.products.lookup(ctx, tx, product); err != nil {
			return nil, err
		}
		rows, err := db.rasters.inProduct(ctx, tx, product)
		if err != nil {
			return nil, err
		}

		var selected []rasterRow
		grids := map[int64]coverage.GridGeometry{}
		for _, row := range rows {
			if !row.Overlaps(area.StartTime, area.EndTime) {
				continue
			}
			if area.CRS != "" {
				grid, ok := grids[row.Grid]
				if !ok {
					grid, err = db.grids.lookup(ctx, tx, row.Grid)
					if err != nil {
						return nil, err
					}
					grids[row.Grid] = grid
				}
				if grid.CRS != area.CRS || !grid.Envelope().Intersects(area.Envelope) {
					continue
				}
			}
			selected = append(selected, row)
		}
		return selected, nil
	})
}

// remove deletes the rasters returned by selectRows together with the series
// they leave empty.
func (db *catalogDB) remove(ctx context.Context, selectRows func(tx *Transaction) ([]rasterRow, error)) (removed int64, err error) {
	if err := db.ticket.Acquire(ctx, db.config.WriteSlotTimeout); err != nil {
		return 0, err
	}
	defer db.ticket.Release()

	stamp, err := db.lock.Acquire(ctx, false, db.config.LockTimeout)
	if err != nil {
		return 0, err
	}
	defer func() { db.lock.Release(stamp) }()

	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { err = errs.Combine(err, tx.Close()) }()

	if err := tx.WriteStart(ctx); err != nil {
		return 0, err
	}

	rows, err := selectRows(tx)
	if err != nil {
		return 0, err
	}

	stamp, err = db.upgrade(ctx, stamp, func() (err error) {
		rows, err = selectRows(tx)
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	removed, err = db.rasters.delete(ctx, tx, rows)
	if err != nil {
		return 0, err
	}

	seen := map[int64]bool{}
	var candidates []int64
	for _, row := range rows {
		if !seen[row.Series] {
			seen[row.Series] = true
			candidates = append(candidates, row.Series)
		}
	}
	orphans, err := db.series.deleteOrphans(ctx, tx, candidates)
	if err != nil {
		return 0, err
	}

	if err := tx.WriteEnd(); err != nil {
		return 0, err
	}

	for _, row := range rows {
		db.rasters.cache.Delete(ctx, row.key())
	}
	for _, id := range orphans {
		db.series.cache.Delete(ctx, id)
	}
	stamp = db.lock.TryDowngrade(stamp)

	db.log.Debug("Removed rasters", zap.Int64("count", removed), zap.Int("series", len(orphans)))
	return removed, nil
}

// dedupRows drops rasters selected more than once.
func dedupRows(rows []rasterRow) []rasterRow {
	type id struct {
		series   int64
		filename string
		index    int
	}
	seen := map[id]bool{}
	unique := rows[:0]
	for _, row := range rows {
		k := id{row.Series, row.Filename, row.Index}
		if !seen[k] {
			seen[k] = true
			unique = append(unique, row)
		}
	}
	return unique
}

// ListProducts returns every product ordered by name.
func (db *catalogDB) ListProducts(ctx context.Context) (products []coverage.Product, err error) {
	defer mon.Task()(&ctx)(&err)
	err = db.withShared(ctx, func() error {
		products, err = db.products.list(ctx)
		return err
	})
	return products, err
}

// ListRasters returns the rasters of a product ordered by path and image.
func (db *catalogDB) ListRasters(ctx context.Context, product string) (entries []coverage.RasterEntry, err error) {
	defer mon.Task()(&ctx)(&err)
	err = db.withShared(ctx, func() error {
		if _, err := db.products.get(ctx, product); err != nil {
			return err
		}
		rows, err := db.rasters.inProduct(ctx, db.pool(), product)
		if err != nil {
			return err
		}
		entries = make([]coverage.RasterEntry, 0, len(rows))
		for _, row := range rows {
			entry, err := db.rasters.resolve(ctx, row)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries, err
}

// GetProduct returns a product by name.
func (db *catalogDB) GetProduct(ctx context.Context, name string) (product coverage.Product, err error) {
	defer mon.Task()(&ctx)(&err)
	err = db.withShared(ctx, func() error {
		product, err = db.products.get(ctx, name)
		return err
	})
	return product, err
}

// GetRaster returns an image of the raster file at path.
func (db *catalogDB) GetRaster(ctx context.Context, path string, index int) (entry coverage.RasterEntry, err error) {
	defer mon.Task()(&ctx)(&err)
	key, err := db.root.Key(path)
	if err != nil {
		return coverage.RasterEntry{}, err
	}
	err = db.withShared(ctx, func() error {
		entry, err = db.rasters.get(ctx, rasterKey{Path: key, Index: index})
		return err
	})
	return entry, err
}
