// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil_test

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"

	"github.com/Geomatys/geotoolkit-sub012/private/dbutil"
)

func TestSplitConnStr(t *testing.T) {
	for _, tt := range []struct {
		url    string
		driver string
		source string
		impl   dbutil.Implementation
	}{
		{"postgres://user@localhost/catalog?sslmode=disable", "postgres", "postgres://user@localhost/catalog?sslmode=disable", dbutil.Postgres},
		{"postgresql://localhost/catalog", "postgres", "postgresql://localhost/catalog", dbutil.Postgres},
		{"sqlite3://coverage.db?_busy_timeout=100", "sqlite3", "coverage.db?_busy_timeout=100", dbutil.SQLite3},
		{"sqlite3:///tmp/coverage.db", "sqlite3", "/tmp/coverage.db", dbutil.SQLite3},
	} {
		driver, source, impl, err := dbutil.SplitConnStr(tt.url)
		require.NoError(t, err, tt.url)
		require.Equal(t, tt.driver, driver)
		require.Equal(t, tt.source, source)
		require.Equal(t, tt.impl, impl)
	}

	_, _, _, err := dbutil.SplitConnStr("coverage.db")
	require.Error(t, err)
	_, _, _, err = dbutil.SplitConnStr("mysql://localhost/catalog")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	query := `SELECT name FROM axes WHERE datum = ? AND units = '?' AND direction = ?`
	require.Equal(t, query, dbutil.Rebind(dbutil.SQLite3, query))
	require.Equal(t,
		`SELECT name FROM axes WHERE datum = $1 AND units = '?' AND direction = $2`,
		dbutil.Rebind(dbutil.Postgres, query))
}

func TestEscapableCommaSplit(t *testing.T) {
	for _, testcase := range []struct {
		input    string
		expected []string
	}{
		{"", []string{""}},
		{",", []string{"", ""}},
		{",hello", []string{"", "hello"}},
		{"hello,", []string{"hello", ""}},
		{"hello,there", []string{"hello", "there"}},
		{"hello,,there", []string{"hello,there"}},
		{"hello,,", []string{"hello,"}},
		{"hello,,,there", []string{"hello,", "there"}},
	} {
		require.Equal(t, testcase.expected, dbutil.EscapableCommaSplit(testcase.input))
	}
}

func TestEncodeList(t *testing.T) {
	for _, vals := range [][]string{
		nil,
		{"depth"},
		{"depth", "time"},
		{"depth,2", "time"},
		{"depth", "time,"},
	} {
		require.Equal(t, vals, dbutil.DecodeList(dbutil.EncodeList(vals)))
	}
}

func TestErrorKinds(t *testing.T) {
	serialization := &pq.Error{Code: "40001"}
	busy := sqlite3.Error{Code: sqlite3.ErrBusy}
	unique := &pq.Error{Code: "23505"}
	constraint := sqlite3.Error{Code: sqlite3.ErrConstraint}

	require.True(t, dbutil.IsRetryable(serialization))
	require.True(t, dbutil.IsRetryable(errs.Wrap(busy)))
	require.False(t, dbutil.IsRetryable(unique))
	require.False(t, dbutil.IsRetryable(errors.New("other")))

	require.True(t, dbutil.IsConstraintError(unique))
	require.True(t, dbutil.IsConstraintError(errs.Wrap(constraint)))
	require.False(t, dbutil.IsConstraintError(serialization))
}
