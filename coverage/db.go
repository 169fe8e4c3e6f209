// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package coverage

import (
	"context"
)

// DB is the raster catalog.
//
// Every operation either applies fully or fails without changing catalog rows.
type DB interface {
	// AddRasters adds rasters to a product. Rasters without geometry use hint.
	AddRasters(ctx context.Context, product string, hint *GridGeometry, policy AddPolicy, rasters ...NewRaster) error
	// RemoveRasters removes the rasters stored at the given paths and returns
	// how many were removed. Unknown paths are ignored.
	RemoveRasters(ctx context.Context, paths ...string) (int64, error)
	// RemoveRastersIn removes the rasters of a product within an area.
	RemoveRastersIn(ctx context.Context, product string, area Area) (int64, error)

	// ListProducts returns every product ordered by name.
	ListProducts(ctx context.Context) ([]Product, error)
	// ListRasters returns the rasters of a product.
	ListRasters(ctx context.Context, product string) ([]RasterEntry, error)
	// GetProduct returns a product by name.
	GetProduct(ctx context.Context, name string) (Product, error)
	// GetRaster returns an image of the raster file at path.
	GetRaster(ctx context.Context, path string, index int) (RasterEntry, error)

	// Axes returns the additional axes sub-catalog.
	Axes() Axes
	// Formats returns the formats sub-catalog.
	Formats() Formats
	// GridGeometries returns the grid geometries sub-catalog.
	GridGeometries() GridGeometries
	// Series returns the series sub-catalog.
	Series() SeriesCatalog

	// MigrateToLatest creates or updates the catalog schema.
	MigrateToLatest(ctx context.Context) error
	// Close closes the underlying database.
	Close() error
}

// Axes stores additional axes under unique names.
type Axes interface {
	// Get returns the axis with the given name.
	Get(ctx context.Context, name string) (Axis, error)
	// FindOrInsert returns the name of an axis with the same content,
	// inserting it under seed or a variant of seed when there is none.
	FindOrInsert(ctx context.Context, axis Axis, seed string) (string, error)
}

// Formats stores sample formats under unique names.
type Formats interface {
	// Get returns the format with the given name.
	Get(ctx context.Context, name string) (Format, error)
	// FindOrInsert returns the name of a format with the same content,
	// inserting it under seed or a variant of seed when there is none.
	FindOrInsert(ctx context.Context, format Format, seed string) (string, error)
}

// GridGeometries stores grid geometries under generated identifiers.
type GridGeometries interface {
	// Get returns the grid geometry with the given identifier.
	Get(ctx context.Context, id int64) (GridGeometry, error)
	// FindOrInsert returns the identifier of a grid geometry with the same
	// content, inserting it when there is none.
	FindOrInsert(ctx context.Context, grid GridGeometry) (int64, error)
}

// SeriesCatalog stores series under generated identifiers.
type SeriesCatalog interface {
	// Get returns the series with the given identifier.
	Get(ctx context.Context, id int64) (Series, error)
	// FindOrInsert returns the identifier of a series with the same content,
	// inserting it when there is none.
	FindOrInsert(ctx context.Context, series Series) (int64, error)
}
