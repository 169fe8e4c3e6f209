// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package sync2_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Geomatys/geotoolkit-sub012/private/sync2"
	"github.com/Geomatys/geotoolkit-sub012/private/testcontext"
)

func TestUpgradableLock_SharedStamps(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	lock := sync2.NewUpgradableLock()

	var stamps []sync2.Stamp
	for i := 0; i < 3; i++ {
		stamp, err := lock.Acquire(ctx, false, 0)
		require.NoError(t, err)
		require.Equal(t, sync2.Shared, stamp.Mode())
		stamps = append(stamps, stamp)
	}

	_, err := lock.Acquire(ctx, true, 0)
	require.True(t, sync2.ErrLockTimeout.Has(err), err)

	for _, stamp := range stamps {
		lock.Release(stamp)
	}

	stamp, err := lock.Acquire(ctx, true, 0)
	require.NoError(t, err)
	require.Equal(t, sync2.Exclusive, stamp.Mode())
	lock.Release(stamp)
}

func TestUpgradableLock_MutualExclusion(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	lock := sync2.NewUpgradableLock()

	held, err := lock.Acquire(ctx, true, time.Second)
	require.NoError(t, err)

	writerDone := make(chan struct{})
	readerDone := make(chan struct{})

	ctx.Go(func() error {
		defer close(writerDone)
		stamp, err := lock.Acquire(ctx, true, time.Minute)
		if err != nil {
			return err
		}
		lock.Release(stamp)
		return nil
	})
	ctx.Go(func() error {
		defer close(readerDone)
		stamp, err := lock.Acquire(ctx, false, time.Minute)
		if err != nil {
			return err
		}
		lock.Release(stamp)
		return nil
	})

	select {
	case <-writerDone:
		t.Fatal("exclusive acquire did not block")
	case <-readerDone:
		t.Fatal("shared acquire did not block")
	case <-time.After(50 * time.Millisecond):
	}

	lock.Release(held)

	<-writerDone
	<-readerDone
}

func TestUpgradableLock_Timeout(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	lock := sync2.NewUpgradableLock()

	held, err := lock.Acquire(ctx, true, 0)
	require.NoError(t, err)
	defer lock.Release(held)

	start := time.Now()
	_, err = lock.Acquire(ctx, false, 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, sync2.ErrLockTimeout.Has(err))
	assert.False(t, sync2.ErrInterrupted.Has(err))
	assert.True(t, time.Since(start) >= 20*time.Millisecond)

	_, err = lock.Acquire(ctx, true, 20*time.Millisecond)
	require.True(t, sync2.ErrLockTimeout.Has(err))
}

func TestUpgradableLock_Interrupted(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	lock := sync2.NewUpgradableLock()

	held, err := lock.Acquire(ctx, true, 0)
	require.NoError(t, err)
	defer lock.Release(held)

	waitCtx, cancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = lock.Acquire(waitCtx, false, time.Minute)
	require.True(t, sync2.ErrInterrupted.Has(err), err)
	require.True(t, errors.Is(err, context.Canceled))
	// the cancellation is still visible to the caller.
	require.Error(t, waitCtx.Err())

	_, err = lock.Acquire(waitCtx, true, time.Minute)
	require.True(t, sync2.ErrInterrupted.Has(err), err)
}

func TestUpgradableLock_AtomicUpgrade(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	lock := sync2.NewUpgradableLock()

	stamp, err := lock.Acquire(ctx, false, 0)
	require.NoError(t, err)

	upgraded, atomic, err := lock.TryUpgrade(ctx, stamp, 0)
	require.NoError(t, err)
	require.True(t, atomic)
	require.Equal(t, sync2.Exclusive, upgraded.Mode())

	_, err = lock.Acquire(ctx, false, 0)
	require.True(t, sync2.ErrLockTimeout.Has(err))

	again, atomic, err := lock.TryUpgrade(ctx, upgraded, 0)
	require.NoError(t, err)
	require.True(t, atomic)
	require.Equal(t, upgraded, again)

	lock.Release(upgraded)
}

func TestUpgradableLock_TornUpgrade(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	lock := sync2.NewUpgradableLock()

	first, err := lock.Acquire(ctx, false, 0)
	require.NoError(t, err)
	second, err := lock.Acquire(ctx, false, 0)
	require.NoError(t, err)

	type result struct {
		stamp  sync2.Stamp
		atomic bool
		err    error
	}
	upgraded := make(chan result, 1)
	go func() {
		stamp, atomic, err := lock.TryUpgrade(ctx, first, time.Minute)
		upgraded <- result{stamp, atomic, err}
	}()

	select {
	case <-upgraded:
		t.Fatal("upgrade did not wait for the other reader")
	case <-time.After(30 * time.Millisecond):
	}

	lock.Release(second)

	r := <-upgraded
	require.NoError(t, r.err)
	require.False(t, r.atomic)
	require.Equal(t, sync2.Exclusive, r.stamp.Mode())

	lock.Release(r.stamp)
}

func TestUpgradableLock_FailedUpgradeReleases(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	lock := sync2.NewUpgradableLock()

	first, err := lock.Acquire(ctx, false, 0)
	require.NoError(t, err)
	second, err := lock.Acquire(ctx, false, 0)
	require.NoError(t, err)

	stamp, atomic, err := lock.TryUpgrade(ctx, first, 10*time.Millisecond)
	require.True(t, sync2.ErrLockTimeout.Has(err), err)
	require.False(t, atomic)
	require.False(t, stamp.Held())

	// releasing the zero stamp is harmless.
	lock.Release(stamp)
	lock.Release(second)

	exclusive, err := lock.Acquire(ctx, true, 0)
	require.NoError(t, err)
	lock.Release(exclusive)
}

func TestUpgradableLock_Downgrade(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	lock := sync2.NewUpgradableLock()

	stamp, err := lock.Acquire(ctx, true, 0)
	require.NoError(t, err)

	shared := lock.TryDowngrade(stamp)
	require.Equal(t, sync2.Shared, shared.Mode())
	require.Equal(t, shared, lock.TryDowngrade(shared))

	other, err := lock.Acquire(ctx, false, 0)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, true, 0)
	require.True(t, sync2.ErrLockTimeout.Has(err))

	lock.Release(other)
	lock.Release(shared)
}

func TestUpgradableLock_WaitingWriterBlocksReaders(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	lock := sync2.NewUpgradableLock()

	reader, err := lock.Acquire(ctx, false, 0)
	require.NoError(t, err)

	ctx.Go(func() error {
		stamp, err := lock.Acquire(ctx, true, time.Minute)
		if err != nil {
			return err
		}
		lock.Release(stamp)
		return nil
	})

	require.Eventually(t, func() bool {
		stamp, err := lock.Acquire(ctx, false, 0)
		if err != nil {
			return sync2.ErrLockTimeout.Has(err)
		}
		lock.Release(stamp)
		return false
	}, 10*time.Second, time.Millisecond)

	lock.Release(reader)
}

func TestUpgradableLock_Misuse(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	lock := sync2.NewUpgradableLock()

	stamp, err := lock.Acquire(ctx, false, 0)
	require.NoError(t, err)
	lock.Release(stamp)

	require.Panics(t, func() { lock.Release(stamp) })
	require.NotPanics(t, func() { lock.Release(sync2.Stamp{}) })
	require.Panics(t, func() { _, _, _ = lock.TryUpgrade(ctx, sync2.Stamp{}, 0) })
}
