// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package catalogdb_test

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
	"github.com/Geomatys/geotoolkit-sub012/coverage/catalogdb"
	"github.com/Geomatys/geotoolkit-sub012/coverage/catalogdb/catalogdbtest"
	"github.com/Geomatys/geotoolkit-sub012/private/dbutil"
	"github.com/Geomatys/geotoolkit-sub012/private/testcontext"
)

func testFormat() coverage.Format {
	return coverage.Format{
		Driver: "GeoTIFF",
		Bands: []coverage.Band{{
			Name:     "sst",
			Lower:    1,
			Upper:    255,
			Scale:    0.15,
			Offset:   -3,
			Transfer: coverage.Linear,
			Units:    "°C",
		}},
	}
}

func testGrid() *coverage.GridGeometry {
	return &coverage.GridGeometry{
		Width:      360,
		Height:     180,
		ScaleX:     1,
		ScaleY:     -1,
		TranslateX: -180,
		TranslateY: 90,
		CRS:        "EPSG:4326",
	}
}

func depthAxis(bounds ...float64) coverage.Axis {
	return coverage.Axis{
		Datum:     "mean sea level",
		Direction: coverage.Down,
		Units:     "m",
		Bounds:    bounds,
	}
}

func countRows(ctx *testcontext.Context, t *testing.T, db coverage.DB, table string) (n int) {
	err := catalogdbtest.TestDBAccess(db).QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestAxes_FindOrInsert(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		name, err := db.Axes().FindOrInsert(ctx, depthAxis(0, 10, 20), "depth")
		require.NoError(t, err)
		require.Equal(t, "depth", name)

		name, err = db.Axes().FindOrInsert(ctx, depthAxis(0, 10, 20), "depth")
		require.NoError(t, err)
		require.Equal(t, "depth", name)

		name, err = db.Axes().FindOrInsert(ctx, depthAxis(0, 5, 10), "depth")
		require.NoError(t, err)
		require.Equal(t, "depth-2", name)

		require.Equal(t, 2, countRows(ctx, t, db, "additional_axes"))

		axis, err := db.Axes().Get(ctx, "depth-2")
		require.NoError(t, err)
		expected := depthAxis(0, 5, 10)
		expected.Name = "depth-2"
		require.Equal(t, expected, axis)

		_, err = db.Axes().Get(ctx, "missing")
		require.True(t, coverage.ErrNoSuchRecord.Has(err))
	})
}

func TestAxes_ConcurrentFindOrInsert(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		const workers = 8

		names := make([]string, workers)
		var group errgroup.Group
		for i := 0; i < workers; i++ {
			i := i
			group.Go(func() (err error) {
				names[i], err = db.Axes().FindOrInsert(ctx, depthAxis(0, 1), "depth")
				return err
			})
		}
		require.NoError(t, group.Wait())
		for _, name := range names {
			require.Equal(t, "depth", name)
		}
		require.Equal(t, 1, countRows(ctx, t, db, "additional_axes"))

		// different contents racing for the same seed all get a name.
		for i := 0; i < workers; i++ {
			i := i
			group.Go(func() (err error) {
				names[i], err = db.Axes().FindOrInsert(ctx, depthAxis(0, float64(i+2)), "depth")
				return err
			})
		}
		require.NoError(t, group.Wait())
		unique := map[string]bool{}
		for _, name := range names {
			unique[name] = true
		}
		require.Len(t, unique, workers)
		require.False(t, unique["depth"])
		require.Equal(t, workers+1, countRows(ctx, t, db, "additional_axes"))
	})
}

func TestAxes_NamespaceExhausted(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		for i := 0; i < catalogdb.MaxCandidates; i++ {
			name, err := db.Axes().FindOrInsert(ctx, depthAxis(0, float64(i+1)), "level")
			require.NoError(t, err)
			if i == 0 {
				require.Equal(t, "level", name)
			} else {
				require.Equal(t, fmt.Sprintf("level-%d", i+1), name)
			}
		}

		_, err := db.Axes().FindOrInsert(ctx, depthAxis(0, -1), "level")
		require.True(t, coverage.ErrNamespaceExhausted.Has(err), err)
		require.Equal(t, catalogdb.MaxCandidates, countRows(ctx, t, db, "additional_axes"))

		// existing content is still found.
		name, err := db.Axes().FindOrInsert(ctx, depthAxis(0, 1), "level")
		require.NoError(t, err)
		require.Equal(t, "level", name)
	})
}

func TestFormats_FindOrInsert(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		format := testFormat()

		name, err := db.Formats().FindOrInsert(ctx, format, "sst")
		require.NoError(t, err)
		require.Equal(t, "sst", name)

		name, err = db.Formats().FindOrInsert(ctx, format, "other")
		require.NoError(t, err)
		require.Equal(t, "sst", name)

		changed := testFormat()
		changed.Bands[0].Scale = 0.3
		name, err = db.Formats().FindOrInsert(ctx, changed, "sst")
		require.NoError(t, err)
		require.Equal(t, "sst-2", name)

		stored, err := db.Formats().Get(ctx, "sst-2")
		require.NoError(t, err)
		changed.Name = "sst-2"
		require.Empty(t, cmp.Diff(changed, stored))
		require.Equal(t, 2, countRows(ctx, t, db, "sample_dimensions"))
	})
}

func TestFormats_ConcurrentFindOrInsert(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		const workers = 8

		names := make([]string, workers)
		var group errgroup.Group
		for i := 0; i < workers; i++ {
			i := i
			group.Go(func() (err error) {
				names[i], err = db.Formats().FindOrInsert(ctx, testFormat(), fmt.Sprintf("s%d", i))
				return err
			})
		}
		require.NoError(t, group.Wait())
		for _, name := range names {
			require.Equal(t, names[0], name)
		}
		require.Equal(t, 1, countRows(ctx, t, db, "formats"))
		require.Equal(t, 1, countRows(ctx, t, db, "sample_dimensions"))

		// the content digest is unique even when bypassing the lookup.
		_, err := catalogdbtest.TestDBAccess(db).ExecContext(ctx, `
			INSERT INTO formats (name, driver, content)
			SELECT 'copy', driver, content FROM formats`)
		require.True(t, dbutil.IsConstraintError(err), err)
	})
}

func TestGridGeometries_FindOrInsert(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		grid := *testGrid()

		first, err := db.GridGeometries().FindOrInsert(ctx, grid)
		require.NoError(t, err)
		again, err := db.GridGeometries().FindOrInsert(ctx, grid)
		require.NoError(t, err)
		require.Equal(t, first, again)

		other := grid
		other.ScaleX = 0.5
		second, err := db.GridGeometries().FindOrInsert(ctx, other)
		require.NoError(t, err)
		require.NotEqual(t, first, second)

		stored, err := db.GridGeometries().Get(ctx, second)
		require.NoError(t, err)
		other.ID = second
		require.True(t, other.Equal(stored), cmp.Diff(other, stored))

		_, err = db.GridGeometries().Get(ctx, second+100)
		require.True(t, coverage.ErrNoSuchRecord.Has(err))
	})
}

func TestAddRasters(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		err := db.AddRasters(ctx, "sst", testGrid(), coverage.CreateProduct,
			coverage.NewRaster{Path: "sst/2020-01.tiff", Format: testFormat(), StartTime: start, EndTime: start.AddDate(0, 1, 0)},
			coverage.NewRaster{Path: "sst/2020-02.tiff", Format: testFormat(), StartTime: start.AddDate(0, 1, 0), EndTime: start.AddDate(0, 2, 0)},
		)
		require.NoError(t, err)

		products, err := db.ListProducts(ctx)
		require.NoError(t, err)
		require.Equal(t, []coverage.Product{{Name: "sst"}}, products)

		product, err := db.GetProduct(ctx, "sst")
		require.NoError(t, err)
		require.Equal(t, "sst", product.Name)
		_, err = db.GetProduct(ctx, "chl")
		require.True(t, coverage.ErrNoSuchRecord.Has(err))

		entries, err := db.ListRasters(ctx, "sst")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, "sst/2020-01.tiff", entries[0].Path)
		require.Equal(t, "2020-02", entries[1].Filename)
		require.Equal(t, entries[0].Series, entries[1].Series)

		entry, err := db.GetRaster(ctx, "sst/2020-01.tiff", 0)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(entries[0], entry))
		require.Equal(t, "GeoTIFF", entry.Format.Driver)
		require.True(t, entry.StartTime.Equal(start))
		require.Equal(t, 360, entry.Geometry.Width)

		series, err := db.Series().Get(ctx, entry.Series)
		require.NoError(t, err)
		require.Equal(t, coverage.Series{ID: entry.Series, Product: "sst", Directory: "sst", Extension: "tiff", Format: "GeoTIFF"}, series)

		require.Equal(t, 1, countRows(ctx, t, db, "series"))
		require.Equal(t, 1, countRows(ctx, t, db, "grid_geometries"))
		require.Equal(t, 1, countRows(ctx, t, db, "formats"))

		_, err = db.GetRaster(ctx, "sst/2020-01.tiff", 1)
		require.True(t, coverage.ErrNoSuchRecord.Has(err))
	})
}

func TestAddRasters_Policies(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		raster := func(path string) coverage.NewRaster {
			return coverage.NewRaster{Path: path, Format: testFormat()}
		}

		err := db.AddRasters(ctx, "sst", testGrid(), coverage.ExistingProduct, raster("a.tiff"))
		require.True(t, coverage.ErrNoSuchRecord.Has(err), err)

		require.NoError(t, db.AddRasters(ctx, "sst", testGrid(), coverage.CreateProduct, raster("a.tiff")))

		err = db.AddRasters(ctx, "sst", testGrid(), coverage.CreateProduct, raster("b.tiff"))
		require.True(t, coverage.ErrProductExists.Has(err), err)

		require.NoError(t, db.AddRasters(ctx, "sst", testGrid(), coverage.CreateOrReuseProduct, raster("b.tiff")))
		require.NoError(t, db.AddRasters(ctx, "sst", testGrid(), coverage.ExistingProduct, raster("c.tiff")))

		entries, err := db.ListRasters(ctx, "sst")
		require.NoError(t, err)
		require.Len(t, entries, 3)

		err = db.AddRasters(ctx, "sst", nil, coverage.ExistingProduct, raster("d.tiff"))
		require.Error(t, err)
	})
}

func TestAddRasters_AllOrNothing(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		err := db.AddRasters(ctx, "sst", testGrid(), coverage.CreateProduct,
			coverage.NewRaster{Path: "sst/a.tiff", Format: testFormat()},
			coverage.NewRaster{Path: "sst/b.tiff", Format: testFormat(), Axes: []coverage.Axis{depthAxis(0, 10)}},
			coverage.NewRaster{Path: "sst/a.tiff", Format: testFormat()},
		)
		require.True(t, coverage.ErrIllegalUpdate.Has(err), err)

		products, err := db.ListProducts(ctx)
		require.NoError(t, err)
		require.Empty(t, products)

		_, err = db.GetRaster(ctx, "sst/a.tiff", 0)
		require.True(t, coverage.ErrNoSuchRecord.Has(err))

		for _, table := range []string{"products", "formats", "sample_dimensions", "additional_axes", "grid_geometries", "series", "rasters"} {
			require.Zero(t, countRows(ctx, t, db, table), table)
		}

		// a failed call leaves the catalog usable.
		require.NoError(t, db.AddRasters(ctx, "sst", testGrid(), coverage.CreateProduct,
			coverage.NewRaster{Path: "sst/a.tiff", Format: testFormat()}))
	})
}

func TestAddRasters_PathInOneProduct(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		require.NoError(t, db.AddRasters(ctx, "sst", testGrid(), coverage.CreateProduct,
			coverage.NewRaster{Path: "shared/a.tiff", Format: testFormat()}))

		err := db.AddRasters(ctx, "chl", testGrid(), coverage.CreateProduct,
			coverage.NewRaster{Path: "shared/a.tiff", Format: testFormat()})
		require.True(t, coverage.ErrIllegalUpdate.Has(err), err)
		_, err = db.GetProduct(ctx, "chl")
		require.True(t, coverage.ErrNoSuchRecord.Has(err), err)

		// another format puts the raster in another series, still rejected.
		other := testFormat()
		other.Driver = "NetCDF"
		err = db.AddRasters(ctx, "sst", testGrid(), coverage.ExistingProduct,
			coverage.NewRaster{Path: "shared/a.tiff", Format: other})
		require.True(t, coverage.ErrIllegalUpdate.Has(err), err)

		err = db.AddRasters(ctx, "sst", testGrid(), coverage.ExistingProduct,
			coverage.NewRaster{Path: "shared/b.tiff", Format: testFormat()},
			coverage.NewRaster{Path: "shared/b.tiff", Format: other})
		require.True(t, coverage.ErrIllegalUpdate.Has(err), err)

		entry, err := db.GetRaster(ctx, "shared/a.tiff", 0)
		require.NoError(t, err)
		require.Equal(t, "sst", entry.Product)
		require.Equal(t, 1, countRows(ctx, t, db, "rasters"))

		removed, err := db.RemoveRasters(ctx, "shared/a.tiff")
		require.NoError(t, err)
		require.EqualValues(t, 1, removed)

		// once removed, the path is free for another product.
		require.NoError(t, db.AddRasters(ctx, "chl", testGrid(), coverage.CreateProduct,
			coverage.NewRaster{Path: "shared/a.tiff", Format: testFormat()}))
	})
}

func TestAddRasters_Axes(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		named := depthAxis(0, 10, 20)
		named.Name = "depth"
		err := db.AddRasters(ctx, "sst", testGrid(), coverage.CreateProduct,
			coverage.NewRaster{Path: "a.tiff", Format: testFormat(), Axes: []coverage.Axis{named}},
			coverage.NewRaster{Path: "b.tiff", Format: testFormat(), Axes: []coverage.Axis{depthAxis(0, 10, 20)}},
		)
		require.NoError(t, err)

		a, err := db.GetRaster(ctx, "a.tiff", 0)
		require.NoError(t, err)
		b, err := db.GetRaster(ctx, "b.tiff", 0)
		require.NoError(t, err)
		require.Equal(t, []string{"depth"}, a.Geometry.Axes)
		require.Equal(t, a.Grid, b.Grid)
		require.Equal(t, 1, countRows(ctx, t, db, "additional_axes"))

		grid := testGrid()
		grid.Axes = []string{"unknown"}
		err = db.AddRasters(ctx, "sst", grid, coverage.ExistingProduct, coverage.NewRaster{Path: "c.tiff", Format: testFormat()})
		require.True(t, coverage.ErrNoSuchRecord.Has(err), err)

		grid.Axes = []string{"depth"}
		require.NoError(t, db.AddRasters(ctx, "sst", grid, coverage.ExistingProduct, coverage.NewRaster{Path: "c.tiff", Format: testFormat()}))
		c, err := db.GetRaster(ctx, "c.tiff", 0)
		require.NoError(t, err)
		require.Equal(t, a.Grid, c.Grid)
	})
}

func TestAddRasters_Concurrent(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		const writers = 6

		var group errgroup.Group
		for i := 0; i < writers; i++ {
			i := i
			group.Go(func() error {
				return db.AddRasters(ctx, "sst", testGrid(), coverage.CreateOrReuseProduct,
					coverage.NewRaster{Path: fmt.Sprintf("sst/%d.tiff", i), Format: testFormat()})
			})
			group.Go(func() error {
				_, err := db.ListProducts(ctx)
				return err
			})
		}
		require.NoError(t, group.Wait())

		entries, err := db.ListRasters(ctx, "sst")
		require.NoError(t, err)
		require.Len(t, entries, writers)
		require.Equal(t, 1, countRows(ctx, t, db, "series"))
		require.Equal(t, 1, countRows(ctx, t, db, "formats"))
		require.Equal(t, 1, countRows(ctx, t, db, "grid_geometries"))
	})
}

func TestRemoveRasters(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		removed, err := db.RemoveRasters(ctx, "sst/missing.tiff")
		require.NoError(t, err)
		require.Zero(t, removed)

		err = db.AddRasters(ctx, "sst", testGrid(), coverage.CreateProduct,
			coverage.NewRaster{Path: "sst/a.tiff", Format: testFormat()},
			coverage.NewRaster{Path: "sst/a.tiff", Index: 1, Format: testFormat()},
			coverage.NewRaster{Path: "sst/b.tiff", Format: testFormat()},
		)
		require.NoError(t, err)

		// populate the cache before removing.
		_, err = db.GetRaster(ctx, "sst/a.tiff", 1)
		require.NoError(t, err)

		removed, err = db.RemoveRasters(ctx, "sst/a.tiff", "sst/a.tiff")
		require.NoError(t, err)
		require.EqualValues(t, 2, removed)

		_, err = db.GetRaster(ctx, "sst/a.tiff", 1)
		require.True(t, coverage.ErrNoSuchRecord.Has(err))
		require.Equal(t, 1, countRows(ctx, t, db, "series"))

		removed, err = db.RemoveRasters(ctx, "sst/b.tiff")
		require.NoError(t, err)
		require.EqualValues(t, 1, removed)
		require.Zero(t, countRows(ctx, t, db, "series"))

		entries, err := db.ListRasters(ctx, "sst")
		require.NoError(t, err)
		require.Empty(t, entries)
	})
}

func TestRemoveRastersIn(t *testing.T) {
	catalogdbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db coverage.DB) {
		january := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		february := january.AddDate(0, 1, 0)
		march := february.AddDate(0, 1, 0)

		west := &coverage.GridGeometry{Width: 10, Height: 10, ScaleX: 1, ScaleY: -1, TranslateX: -20, TranslateY: 10, CRS: "EPSG:4326"}
		east := &coverage.GridGeometry{Width: 10, Height: 10, ScaleX: 1, ScaleY: -1, TranslateX: 10, TranslateY: 10, CRS: "EPSG:4326"}
		projected := &coverage.GridGeometry{Width: 10, Height: 10, ScaleX: 1, ScaleY: -1, TranslateX: -20, TranslateY: 10, CRS: "EPSG:3395"}

		err := db.AddRasters(ctx, "sst", nil, coverage.CreateProduct,
			coverage.NewRaster{Path: "west-jan.tiff", Format: testFormat(), Geometry: west, StartTime: january, EndTime: february},
			coverage.NewRaster{Path: "west-feb.tiff", Format: testFormat(), Geometry: west, StartTime: february.Add(time.Hour), EndTime: march},
			coverage.NewRaster{Path: "east-jan.tiff", Format: testFormat(), Geometry: east, StartTime: january, EndTime: february},
			coverage.NewRaster{Path: "proj-jan.tiff", Format: testFormat(), Geometry: projected, StartTime: january, EndTime: february},
		)
		require.NoError(t, err)

		_, err = db.RemoveRastersIn(ctx, "missing", coverage.Area{})
		require.True(t, coverage.ErrNoSuchRecord.Has(err))

		removed, err := db.RemoveRastersIn(ctx, "sst", coverage.Area{
			CRS:       "EPSG:4326",
			Envelope:  coverage.Envelope{MinX: -15, MinY: -5, MaxX: -12, MaxY: 5},
			StartTime: january,
			EndTime:   february,
		})
		require.NoError(t, err)
		require.EqualValues(t, 1, removed)

		entries, err := db.ListRasters(ctx, "sst")
		require.NoError(t, err)
		var paths []string
		for _, entry := range entries {
			paths = append(paths, entry.Path)
		}
		sort.Strings(paths)
		require.Equal(t, []string{"east-jan.tiff", "proj-jan.tiff", "west-feb.tiff"}, paths)

		removed, err = db.RemoveRastersIn(ctx, "sst", coverage.Area{})
		require.NoError(t, err)
		require.EqualValues(t, 3, removed)
		require.Zero(t, countRows(ctx, t, db, "rasters"))
	})
}
