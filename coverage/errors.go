// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package coverage

import (
	"github.com/zeebo/errs"
)

var (
	// Error is the default coverage errs class.
	Error = errs.Class("coverage")

	// ErrNoSuchRecord is returned when a lookup by key found no row.
	ErrNoSuchRecord = errs.Class("no such record")
	// ErrDuplicatedRecord is returned when a lookup by key found several
	// different rows.
	ErrDuplicatedRecord = errs.Class("duplicated record")
	// ErrNamespaceExhausted is returned when no free name was found for new
	// content within the candidate bound.
	ErrNamespaceExhausted = errs.Class("namespace exhausted")
	// ErrIllegalUpdate is returned when a statement affected an unexpected
	// number of rows.
	ErrIllegalUpdate = errs.Class("illegal update")
	// ErrProductExists is returned when a product to create already exists.
	ErrProductExists = errs.Class("product exists")
)
