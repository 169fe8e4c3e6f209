// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package sync2_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Geomatys/geotoolkit-sub012/private/sync2"
	"github.com/Geomatys/geotoolkit-sub012/private/testcontext"
)

func TestTicket(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	ticket := sync2.NewTicket()

	require.NoError(t, ticket.Acquire(ctx, time.Second))
	require.False(t, ticket.TryAcquire())

	err := ticket.Acquire(ctx, 20*time.Millisecond)
	require.True(t, sync2.ErrWriteSlotBusy.Has(err), err)
	require.False(t, sync2.ErrLockTimeout.Has(err))

	err = ticket.Acquire(ctx, 0)
	require.True(t, sync2.ErrWriteSlotBusy.Has(err), err)

	ticket.Release()
	require.True(t, ticket.TryAcquire())
	ticket.Release()
}

func TestTicket_Handoff(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	ticket := sync2.NewTicket()
	require.NoError(t, ticket.Acquire(ctx, 0))

	acquired := make(chan error, 1)
	go func() { acquired <- ticket.Acquire(ctx, time.Minute) }()

	select {
	case <-acquired:
		t.Fatal("second writer was admitted")
	case <-time.After(30 * time.Millisecond):
	}

	ticket.Release()
	require.NoError(t, <-acquired)
	ticket.Release()
}

func TestTicket_Interrupted(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	ticket := sync2.NewTicket()
	require.NoError(t, ticket.Acquire(ctx, 0))
	defer ticket.Release()

	waitCtx, cancel := context.WithCancel(ctx)
	cancel()

	err := ticket.Acquire(waitCtx, time.Minute)
	require.True(t, sync2.ErrInterrupted.Has(err), err)
	require.True(t, errors.Is(err, context.Canceled))
}
