// Package confirm models the confirmation step a booking goes through before
// it is written to the ledger.
package confirm

import (
	"context"
	"time"
)

type Confirmer interface {
	// Confirm blocks until the booking may proceed or ctx is done.
	Confirm(ctx context.Context) error
}

// Delay confirms after a fixed wait. A zero Delay confirms immediately.
type Delay struct {
	Wait time.Duration
}

func NewDelay(wait time.Duration) *Delay {
	return &Delay{Wait: wait}
}

func (d *Delay) Confirm(ctx context.Context) error {
	if d.Wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d.Wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Func adapts a function to Confirmer.
type Func func(ctx context.Context) error

func (f Func) Confirm(ctx context.Context) error {
	return f(ctx)
}
