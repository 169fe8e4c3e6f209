// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package sync2

import (
	"context"
	"sync"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
)

var mon = monkit.Package()

var (
	// ErrLockTimeout is returned when a stamp could not be acquired in time.
	ErrLockTimeout = errs.Class("lock timeout")
	// ErrInterrupted is returned when the context of a waiting caller was canceled.
	ErrInterrupted = errs.Class("interrupted wait")
)

// Mode is the state of a Stamp.
type Mode int

const (
	// Released means the stamp holds nothing.
	Released Mode = iota
	// Shared is a read stamp, many may be held at the same time.
	Shared
	// Exclusive is a write stamp, it excludes every other stamp.
	Exclusive
)

// String implements fmt.Stringer.
func (mode Mode) String() string {
	switch mode {
	case Released:
		return "released"
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	default:
		return "unknown"
	}
}

// Stamp is a token for a held lock state. The zero value is a released stamp,
// releasing it is a no-op.
type Stamp struct {
	mode  Mode
	token uint64
}

// Mode returns the mode of the stamp.
func (stamp Stamp) Mode() Mode { return stamp.mode }

// Held returns whether the stamp holds the lock.
func (stamp Stamp) Held() bool { return stamp.mode != Released }

// UpgradableLock is a non-reentrant readers-writer lock with explicit stamps.
//
// A caller holding a stamp must not request another one: stamps are threaded
// through calls instead of being re-acquired. Waiting writers block new
// readers so that writers are not starved.
type UpgradableLock struct {
	mu             sync.Mutex
	next           uint64
	readers        map[uint64]struct{}
	writer         uint64
	waitingWriters int
	changed        chan struct{}
}

// NewUpgradableLock returns a released lock.
func NewUpgradableLock() *UpgradableLock {
	return &UpgradableLock{
		readers: make(map[uint64]struct{}),
		changed: make(chan struct{}),
	}
}

// Acquire blocks until a stamp of the requested mode is available.
//
// A non-positive timeout only tries once. Expiry returns ErrLockTimeout and
// cancellation of ctx returns ErrInterrupted. Neither is retried.
func (lock *UpgradableLock) Acquire(ctx context.Context, exclusive bool, timeout time.Duration) (_ Stamp, err error) {
	defer mon.Task()(&ctx)(&err)
	if exclusive {
		return lock.acquireExclusive(ctx, timeout)
	}
	return lock.acquireShared(ctx, timeout)
}

// Release releases the stamp. Releasing a zero stamp does nothing.
// Releasing a stamp that is not held panics, like sync.RWMutex does.
func (lock *UpgradableLock) Release(stamp Stamp) {
	if stamp.mode == Released {
		return
	}

	lock.mu.Lock()
	defer lock.mu.Unlock()

	switch stamp.mode {
	case Shared:
		if _, ok := lock.readers[stamp.token]; !ok {
			panic("sync2: release of a shared stamp that is not held")
		}
		delete(lock.readers, stamp.token)
	case Exclusive:
		if lock.writer != stamp.token {
			panic("sync2: release of an exclusive stamp that is not held")
		}
		lock.writer = 0
	}
	lock.broadcast()
}

// TryUpgrade converts a shared stamp into an exclusive one.
//
// When the caller is the only reader the conversion is atomic and atomic is
// true. Otherwise the shared stamp is released first and the caller waits for
// an exclusive stamp: another writer may have run in between, so atomic is
// false and anything observed under the shared stamp must be checked again.
// On failure the returned stamp is released.
func (lock *UpgradableLock) TryUpgrade(ctx context.Context, stamp Stamp, timeout time.Duration) (_ Stamp, atomic bool, err error) {
	defer mon.Task()(&ctx)(&err)

	switch stamp.mode {
	case Exclusive:
		return stamp, true, nil
	case Released:
		panic("sync2: upgrade of a released stamp")
	}

	lock.mu.Lock()
	if _, ok := lock.readers[stamp.token]; !ok {
		lock.mu.Unlock()
		panic("sync2: upgrade of a shared stamp that is not held")
	}
	if lock.writer == 0 && len(lock.readers) == 1 {
		delete(lock.readers, stamp.token)
		lock.writer = stamp.token
		lock.mu.Unlock()
		return Stamp{mode: Exclusive, token: stamp.token}, true, nil
	}
	delete(lock.readers, stamp.token)
	lock.broadcast()
	lock.mu.Unlock()

	mon.Event("lock_upgrade_torn")

	upgraded, err := lock.acquireExclusive(ctx, timeout)
	return upgraded, false, err
}

// TryDowngrade converts an exclusive stamp into a shared one. The conversion
// is always atomic. Shared stamps are returned unchanged.
func (lock *UpgradableLock) TryDowngrade(stamp Stamp) Stamp {
	switch stamp.mode {
	case Shared:
		return stamp
	case Released:
		panic("sync2: downgrade of a released stamp")
	}

	lock.mu.Lock()
	defer lock.mu.Unlock()

	if lock.writer != stamp.token {
		panic("sync2: downgrade of an exclusive stamp that is not held")
	}
	lock.writer = 0
	lock.readers[stamp.token] = struct{}{}
	lock.broadcast()

	return Stamp{mode: Shared, token: stamp.token}
}

func (lock *UpgradableLock) acquireShared(ctx context.Context, timeout time.Duration) (stamp Stamp, err error) {
	start := time.Now()
	err = lock.await(ctx, timeout, func() bool {
		if lock.writer != 0 || lock.waitingWriters > 0 {
			return false
		}
		stamp = Stamp{mode: Shared, token: lock.nextToken()}
		lock.readers[stamp.token] = struct{}{}
		return true
	})
	mon.DurationVal("lock_wait_shared").Observe(time.Since(start))
	return stamp, err
}

func (lock *UpgradableLock) acquireExclusive(ctx context.Context, timeout time.Duration) (stamp Stamp, err error) {
	start := time.Now()

	lock.mu.Lock()
	lock.waitingWriters++
	lock.mu.Unlock()

	err = lock.await(ctx, timeout, func() bool {
		if lock.writer != 0 || len(lock.readers) > 0 {
			return false
		}
		stamp = Stamp{mode: Exclusive, token: lock.nextToken()}
		lock.writer = stamp.token
		return true
	})

	lock.mu.Lock()
	lock.waitingWriters--
	if err != nil {
		// readers may have been held back by this writer.
		lock.broadcast()
	}
	lock.mu.Unlock()

	mon.DurationVal("lock_wait_exclusive").Observe(time.Since(start))
	return stamp, err
}

// await calls try with lock.mu held until it succeeds, the timeout expires or
// ctx is canceled.
func (lock *UpgradableLock) await(ctx context.Context, timeout time.Duration, try func() bool) error {
	if err := ctx.Err(); err != nil {
		return ErrInterrupted.Wrap(err)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	lock.mu.Lock()
	for {
		if try() {
			lock.mu.Unlock()
			return nil
		}
		changed := lock.changed
		lock.mu.Unlock()

		if expired == nil {
			return ErrLockTimeout.New("lock is not available")
		}

		select {
		case <-changed:
		case <-expired:
			return ErrLockTimeout.New("not acquired within %v", timeout)
		case <-ctx.Done():
			return ErrInterrupted.Wrap(ctx.Err())
		}

		lock.mu.Lock()
	}
}

// broadcast wakes every waiter. lock.mu must be held.
func (lock *UpgradableLock) broadcast() {
	close(lock.changed)
	lock.changed = make(chan struct{})
}

// nextToken returns a new stamp token. lock.mu must be held.
func (lock *UpgradableLock) nextToken() uint64 {
	lock.next++
	return lock.next
}
