// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

import (
	"database/sql"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
)

// Pool limits the connections a *sql.DB keeps. Negative values keep the
// database/sql defaults.
type Pool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Configure applies the pool limits to db and reports its statistics to mon
// as db_stats tagged with dbName.
func Configure(db *sql.DB, dbName string, pool Pool, mon *monkit.Scope) {
	if pool.MaxOpenConns >= 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime >= 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	key := monkit.NewSeriesKey("db_stats").WithTag("db_name", dbName)
	mon.Chain(monkit.StatSourceFunc(func(cb func(key monkit.SeriesKey, field string, val float64)) {
		monkit.StatSourceFromStruct(key, db.Stats()).Stats(cb)
	}))
}
