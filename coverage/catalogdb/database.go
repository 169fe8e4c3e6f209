// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package catalogdb implements coverage.DB on top of SQLite or PostgreSQL.
package catalogdb

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"time"

	_ "github.com/lib/pq"           // registers the postgres driver
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
	"github.com/Geomatys/geotoolkit-sub012/private/dbutil"
	"github.com/Geomatys/geotoolkit-sub012/private/sync2"
	"github.com/Geomatys/geotoolkit-sub012/shared/lrucache"
)

var (
	mon = monkit.Package()

	// Error is the default catalogdb errs class.
	Error = errs.Class("catalogdb")
)

// Config configures the raster catalog.
type Config struct {
	DatabaseURL      string        `help:"the database connection string to use" default:"sqlite3://coverage.db"`
	Root             string        `help:"directory that raster paths are stored relative to" default:""`
	LockTimeout      time.Duration `help:"how long an operation waits for the catalog lock" default:"2m"`
	WriteSlotTimeout time.Duration `help:"how long a writer waits for the write slot" default:"2m"`
	CacheCapacity    int           `help:"entries kept per cache, zero is unbounded" default:"10000"`
	CacheExpiration  time.Duration `help:"how long cached entries stay valid, zero is forever" default:"0s"`
	MaxOpenConns     int           `help:"maximum open database connections, -1 keeps the driver default" default:"16"`
	MaxIdleConns     int           `help:"maximum idle database connections, -1 keeps the driver default" default:"4"`
	ConnMaxLifetime  time.Duration `help:"maximum lifetime of a database connection, zero is forever" default:"0s"`
}

// sqliteDefaults are added to sqlite connection strings unless present.
var sqliteDefaults = [][2]string{
	{"_busy_timeout", "10000"},
	{"_journal_mode", "WAL"},
	{"_txlock", "immediate"},
	{"_foreign_keys", "1"},
}

var _ coverage.DB = (*catalogDB)(nil)

// catalogDB combines access to the catalog tables.
type catalogDB struct {
	log    *zap.Logger
	db     *sql.DB
	impl   dbutil.Implementation
	source string
	config Config
	root   coverage.Root

	// lock guards cache coherency between readers and writers.
	lock *sync2.UpgradableLock
	// ticket admits one writer at a time.
	ticket *sync2.Ticket

	products *productsTable
	axes     *axesTable
	formats  *formatsTable
	grids    *gridsTable
	series   *seriesTable
	rasters  *rastersTable

	// hooks are called around lock upgrades, tests use them to interleave
	// readers with a writer.
	hooks struct {
		beforeUpgrade func()
		revalidated   func(err error)
	}
}

// Open opens the catalog database described by config.
func Open(ctx context.Context, log *zap.Logger, config Config) (_ coverage.DB, err error) {
	defer mon.Task()(&ctx)(&err)

	driver, source, impl, err := dbutil.SplitConnStr(config.DatabaseURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if impl == dbutil.SQLite3 {
		source = withSQLiteDefaults(source)
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, Error.New("failed opening database via sql: %v", err)
	}
	dbutil.Configure(db, "catalogdb", dbutil.Pool{
		MaxOpenConns:    config.MaxOpenConns,
		MaxIdleConns:    config.MaxIdleConns,
		ConnMaxLifetime: config.ConnMaxLifetime,
	}, mon)

	if err := db.PingContext(ctx); err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}

	core := &catalogDB{
		log:    log,
		db:     db,
		impl:   impl,
		source: source,
		config: config,
		root:   coverage.Root(config.Root),
		lock:   sync2.NewUpgradableLock(),
		ticket: sync2.NewTicket(),
	}
	core.products = &productsTable{db: core, cache: newCache[string, coverage.Product](config, "products")}
	core.axes = &axesTable{db: core, cache: newCache[string, coverage.Axis](config, "axes")}
	core.formats = &formatsTable{db: core, cache: newCache[string, coverage.Format](config, "formats")}
	core.grids = &gridsTable{db: core, cache: newCache[int64, coverage.GridGeometry](config, "grid_geometries")}
	core.series = &seriesTable{db: core, cache: newCache[int64, coverage.Series](config, "series")}
	core.rasters = &rastersTable{db: core, cache: newCache[rasterKey, coverage.RasterEntry](config, "rasters")}

	log.Debug("Connected to catalog database", zap.Stringer("implementation", impl))
	return core, nil
}

func newCache[K comparable, V any](config Config, name string) *lrucache.Cache[K, V] {
	return lrucache.New[K, V](lrucache.Options{
		Expiration: config.CacheExpiration,
		Capacity:   config.CacheCapacity,
		Name:       "catalogdb-" + name,
	})
}

// withSQLiteDefaults adds the connection parameters the catalog relies on:
// concurrent readers next to one writer that waits instead of failing.
func withSQLiteDefaults(source string) string {
	path, query, _ := strings.Cut(source, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return source
	}
	for _, param := range sqliteDefaults {
		if values.Get(param[0]) == "" {
			values.Set(param[0], param[1])
		}
	}
	return path + "?" + values.Encode()
}

// Close closes the underlying database.
func (db *catalogDB) Close() error {
	return Error.Wrap(db.db.Close())
}

// TestDBAccess gives raw access to the database for tests.
func (db *catalogDB) TestDBAccess() *sql.DB { return db.db }

// Implementation returns the database implementation in use.
func (db *catalogDB) Implementation() dbutil.Implementation { return db.impl }

// pool returns a queryer outside of any transaction, reading committed rows.
func (db *catalogDB) pool() dbutil.Queryer {
	return rebinder{impl: db.impl, q: db.db}
}

// Axes returns the additional axes sub-catalog.
func (db *catalogDB) Axes() coverage.Axes { return db.axes }

// Formats returns the formats sub-catalog.
func (db *catalogDB) Formats() coverage.Formats { return db.formats }

// GridGeometries returns the grid geometries sub-catalog.
func (db *catalogDB) GridGeometries() coverage.GridGeometries { return db.grids }

// Series returns the series sub-catalog.
func (db *catalogDB) Series() coverage.SeriesCatalog { return db.series }

// withShared runs fn while holding a shared stamp.
func (db *catalogDB) withShared(ctx context.Context, fn func() error) error {
	stamp, err := db.lock.Acquire(ctx, false, db.config.LockTimeout)
	if err != nil {
		return err
	}
	defer db.lock.Release(stamp)
	return fn()
}

// withWrite runs fn in a write transaction committed when fn succeeds.
func (db *catalogDB) withWrite(ctx context.Context, fn func(tx *Transaction) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, tx.Close()) }()

	if err := tx.WriteStart(ctx); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.WriteEnd()
}
