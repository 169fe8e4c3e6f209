// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package catalogdbtest

// This package should be referenced only in test files!

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
	"github.com/Geomatys/geotoolkit-sub012/coverage/catalogdb"
	"github.com/Geomatys/geotoolkit-sub012/private/dbutil/pgutil"
	"github.com/Geomatys/geotoolkit-sub012/private/dbutil/pgutil/pgtest"
	"github.com/Geomatys/geotoolkit-sub012/private/testcontext"
)

// Database describes a test database.
type Database struct {
	Name    string
	URL     func(ctx *testcontext.Context) string
	Message string
}

// Databases returns the default test databases.
func Databases() []Database {
	return []Database{
		{
			Name: "Sqlite",
			URL: func(ctx *testcontext.Context) string {
				return "sqlite3://" + ctx.File("catalog.db")
			},
		},
		{
			Name: "Postgres",
			URL: func(ctx *testcontext.Context) string {
				return *pgtest.ConnStr
			},
			Message: "Postgres flag missing, example: -postgres-test-db=" + pgtest.DefaultConnStr + " or use COVERAGE_POSTGRES_TEST environment variable.",
		},
	}
}

// Config returns the catalog configuration used by tests.
func Config(url string) catalogdb.Config {
	return catalogdb.Config{
		DatabaseURL:      url,
		LockTimeout:      time.Minute,
		WriteSlotTimeout: time.Minute,
		CacheCapacity:    100,
	}
}

// schemaDB drops its postgres schema when closed.
type schemaDB struct {
	coverage.DB
	url    string
	schema string
}

// TestDBAccess gives raw access to the database.
func (db *schemaDB) TestDBAccess() *sql.DB {
	return db.DB.(interface{ TestDBAccess() *sql.DB }).TestDBAccess()
}

// Close closes the catalog and drops the schema.
func (db *schemaDB) Close() error {
	closeErr := db.DB.Close()

	raw, err := sql.Open("postgres", db.url)
	if err != nil {
		return errs.Combine(closeErr, err)
	}
	dropErr := pgutil.DropSchema(context.Background(), raw, db.schema)
	return errs.Combine(closeErr, dropErr, raw.Close())
}

// CreateDB opens a migrated catalog for tests. Postgres catalogs live in a
// schema of their own that is dropped on Close.
func CreateDB(ctx *testcontext.Context, log *zap.Logger, name string, url string, config catalogdb.Config) (coverage.DB, error) {
	if !strings.HasPrefix(url, "postgres://") && !strings.HasPrefix(url, "postgresql://") {
		config.DatabaseURL = url
		db, err := catalogdb.Open(ctx, log, config)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateToLatest(ctx); err != nil {
			return nil, errs.Combine(err, db.Close())
		}
		return db, nil
	}

	schema := strings.ToLower(name)
	if len(schema) > 48 {
		schema = schema[:48]
	}
	schema += "/" + pgutil.CreateRandomTestingSchemaName(6)

	raw, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	err = pgutil.CreateSchema(ctx, raw, schema)
	if err := errs.Combine(err, raw.Close()); err != nil {
		return nil, err
	}

	config.DatabaseURL = pgutil.ConnstrWithSchema(url, schema)
	db, err := catalogdb.Open(ctx, log, config)
	if err != nil {
		return nil, err
	}
	wrapped := &schemaDB{DB: db, url: url, schema: schema}
	if err := db.MigrateToLatest(ctx); err != nil {
		return nil, errs.Combine(err, wrapped.Close())
	}
	return wrapped, nil
}

// Run runs test against every configured database, creating a fresh
// migrated catalog for each.
func Run(t *testing.T, test func(ctx *testcontext.Context, t *testing.T, db coverage.DB)) {
	RunWithConfig(t, Config(""), test)
}

// RunWithConfig is Run with a custom catalog configuration. The database URL
// of config is ignored.
func RunWithConfig(t *testing.T, config catalogdb.Config, test func(ctx *testcontext.Context, t *testing.T, db coverage.DB)) {
	for _, dbInfo := range Databases() {
		dbInfo := dbInfo
		t.Run(dbInfo.Name, func(t *testing.T) {
			t.Parallel()

			ctx := testcontext.New(t)
			defer ctx.Cleanup()

			url := dbInfo.URL(ctx)
			if url == "" {
				t.Skipf("Database %s connection string not provided. %s", dbInfo.Name, dbInfo.Message)
			}

			db, err := CreateDB(ctx, zaptest.NewLogger(t), t.Name(), url, config)
			if err != nil {
				t.Fatal(err)
			}
			defer func() {
				err := db.Close()
				if err != nil {
					t.Fatal(err)
				}
			}()

			test(ctx, t, db)
		})
	}
}

// TestDBAccess returns the raw database behind a catalog created by Run.
func TestDBAccess(db coverage.DB) *sql.DB {
	return db.(interface{ TestDBAccess() *sql.DB }).TestDBAccess()
}
