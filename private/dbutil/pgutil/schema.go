// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package pgutil contains PostgreSQL helpers for schema isolated databases.
package pgutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"github.com/zeebo/errs"
)

// CreateRandomTestingSchemaName creates a random schema name string.
func CreateRandomTestingSchemaName(n int) string {
	data := make([]byte, n)
	_, _ = rand.Read(data)
	return hex.EncodeToString(data)
}

// ConnstrWithSchema adds schema to a connection string.
func ConnstrWithSchema(connstr, schema string) string {
	if strings.Contains(connstr, "?") {
		connstr += "&"
	} else {
		connstr += "?"
	}
	return connstr + "search_path=" + url.QueryEscape(pq.QuoteIdentifier(schema))
}

// CreateSchema creates a schema if it doesn't exist.
func CreateSchema(ctx context.Context, db *sql.DB, schema string) (err error) {
	_, err = db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+pq.QuoteIdentifier(schema)+`;`)
	return errs.Wrap(err)
}

// DropSchema drops the named schema.
func DropSchema(ctx context.Context, db *sql.DB, schema string) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA `+pq.QuoteIdentifier(schema)+` CASCADE;`)
	return errs.Wrap(err)
}
