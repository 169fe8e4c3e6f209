// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

import (
	"strings"

	"github.com/zeebo/errs"
)

// Implementation type of valid DBs.
type Implementation int

const (
	// Unknown is an unknown db type.
	Unknown Implementation = iota
	// Postgres is a Postgresdb type.
	Postgres
	// SQLite3 is a sqlite3 database.
	SQLite3
)

// ImplementationForScheme returns the Implementation that is used for
// the url with the provided scheme.
func ImplementationForScheme(scheme string) Implementation {
	switch scheme {
	case "pgx", "postgres", "postgresql":
		return Postgres
	case "sqlite", "sqlite3":
		return SQLite3
	default:
		return Unknown
	}
}

// String returns the default name for a given implementation.
func (impl Implementation) String() string {
	switch impl {
	case Postgres:
		return "postgres"
	case SQLite3:
		return "sqlite3"
	default:
		return "<unknown>"
	}
}

// SplitConnStr returns the driver, the source and the implementation of a
// database URL such as "postgres://user@host/db" or "sqlite3://path/to/file.db".
// The postgres source keeps its scheme, the sqlite3 source is the file path
// with its query parameters.
func SplitConnStr(s string) (driver string, source string, implementation Implementation, err error) {
	parts := strings.SplitN(s, "://", 2)
	if len(parts) != 2 {
		return "", "", Unknown, errs.New("could not categorize database URL %q", s)
	}
	scheme := parts[0]

	implementation = ImplementationForScheme(scheme)
	switch implementation {
	case Postgres:
		return "postgres", s, implementation, nil
	case SQLite3:
		return "sqlite3", parts[1], implementation, nil
	default:
		return "", "", Unknown, errs.New("unsupported database scheme %q", scheme)
	}
}
