// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package sync2 provides the store-wide coordination primitives of the catalog:
// an upgradable readers-writer lock with bounded waits and a single-permit
// write ticket.
package sync2
