// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package sync2

import (
	"context"
	"time"

	"github.com/zeebo/errs"
	"golang.org/x/sync/semaphore"
)

// ErrWriteSlotBusy is returned when the write ticket could not be taken in time.
var ErrWriteSlotBusy = errs.Class("write slot busy")

// Ticket is a single permit shared by every writer of a store.
// It is independent of UpgradableLock.
type Ticket struct {
	sem *semaphore.Weighted
}

// NewTicket returns a free ticket.
func NewTicket() *Ticket {
	return &Ticket{sem: semaphore.NewWeighted(1)}
}

// Acquire waits for the ticket. A non-positive timeout only tries once.
// Expiry returns ErrWriteSlotBusy and cancellation of ctx returns ErrInterrupted.
func (ticket *Ticket) Acquire(ctx context.Context, timeout time.Duration) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := ctx.Err(); err != nil {
		return ErrInterrupted.Wrap(err)
	}
	if timeout <= 0 {
		if !ticket.sem.TryAcquire(1) {
			return ErrWriteSlotBusy.New("another writer holds the ticket")
		}
		return nil
	}

	start := time.Now()
	defer func() { mon.DurationVal("ticket_wait").Observe(time.Since(start)) }()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := ticket.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ErrInterrupted.Wrap(ctx.Err())
		}
		return ErrWriteSlotBusy.New("not acquired within %v", timeout)
	}
	return nil
}

// TryAcquire takes the ticket when it is free.
func (ticket *Ticket) TryAcquire() bool {
	return ticket.sem.TryAcquire(1)
}

// Release returns the ticket.
func (ticket *Ticket) Release() {
	ticket.sem.Release(1)
}
