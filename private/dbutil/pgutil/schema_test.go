// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package pgutil_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Geomatys/geotoolkit-sub012/private/dbutil/pgutil"
)

func TestConnstrWithSchema(t *testing.T) {
	require.Equal(t,
		`postgres://localhost/db?search_path=%22TestA%22`,
		pgutil.ConnstrWithSchema("postgres://localhost/db", "TestA"))
	require.Equal(t,
		`postgres://localhost/db?sslmode=disable&search_path=%22x%22`,
		pgutil.ConnstrWithSchema("postgres://localhost/db?sslmode=disable", "x"))
}

func TestCreateRandomTestingSchemaName(t *testing.T) {
	a := pgutil.CreateRandomTestingSchemaName(6)
	b := pgutil.CreateRandomTestingSchemaName(6)
	require.Len(t, a, 12)
	require.NotEqual(t, a, b)
}
