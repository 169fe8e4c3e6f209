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

type productsTable struct {
	db    *catalogDB
	cache *lrucache.Cache[string, coverage.Product]
}

// get returns a committed product through the cache.
func (products *productsTable) get(ctx context.Context, name string) (coverage.Product, error) {
	return products.cache.Get(ctx, name, func() (coverage.Product, error) {
		return products.lookup(ctx, products.db.pool(), name)
	})
}

func (products *productsTable) lookup(ctx context.Context, q dbutil.Queryer, name string) (coverage.Product, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM products WHERE name = ?`, name)
	if err != nil {
		return coverage.Product{}, Error.Wrap(err)
	}
	entries, err := collect(rows, func(rows *sql.Rows) (product coverage.Product, err error) {
		return product, rows.Scan(&product.Name)
	})
	if err != nil {
		return coverage.Product{}, err
	}
	return single(products.db.log, "products", name, entries, func(a, b coverage.Product) bool { return a == b })
}

// prepare makes the product usable for new rasters according to policy.
func (products *productsTable) prepare(ctx context.Context, tx *Transaction, name string, policy coverage.AddPolicy) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := tx.requireWrite(); err != nil {
		return err
	}

	_, err = products.lookup(ctx, tx, name)
	exists := err == nil
	if err != nil && !coverage.ErrNoSuchRecord.Has(err) {
		return err
	}

	switch policy {
	case coverage.CreateProduct:
		if exists {
			return coverage.ErrProductExists.New("%q", name)
		}
	case coverage.CreateOrReuseProduct:
		if exists {
			return nil
		}
	case coverage.ExistingProduct:
		if !exists {
			return coverage.ErrNoSuchRecord.New("products %v", name)
		}
		return nil
	default:
		return Error.New("unknown add policy %d", int(policy))
	}

	inserted, err := insertedRow(tx.ExecContext(ctx,
		`INSERT INTO products (name) VALUES (?) ON CONFLICT DO NOTHING`, name))
	if err != nil {
		return err
	}
	if !inserted {
		return coverage.ErrProductExists.New("%q", name)
	}
	return nil
}

func (products *productsTable) list(ctx context.Context) ([]coverage.Product, error) {
	rows, err := products.db.pool().QueryContext(ctx, `SELECT name FROM products ORDER BY name`)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return collect(rows, func(rows *sql.Rows) (product coverage.Product, err error) {
		return product, rows.Scan(&product.Name)
	})
}
