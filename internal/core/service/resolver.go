package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/rl1809/scan-intake/internal/core/domain"
	"github.com/rl1809/scan-intake/internal/obs"
	"github.com/rl1809/scan-intake/internal/port"
)

var (
	ErrPartNotFound = errors.New("part not found")
	ErrFetchFailure = errors.New("fetch failure")
)

// Resolver turns a barcode into a part snapshot, serving from the resolution
// cache when the entry is still fresh and otherwise hitting the store with
// bounded doubling backoff between attempts.
type Resolver struct {
	store    port.PartStore
	cache    port.ResolutionCache
	clock    clock.Clock
	attempts int
	delay    time.Duration
}

func NewResolver(store port.PartStore, cache port.ResolutionCache, clk clock.Clock, attempts int, delay time.Duration) *Resolver {
	return &Resolver{
		store:    store,
		cache:    cache,
		clock:    clk,
		attempts: attempts,
		delay:    delay,
	}
}

// Resolve returns a snapshot for the barcode. Later quantity changes are not
// reflected in the returned record; callers needing fresh stock must resolve
// again after the cache entry is evicted.
func (r *Resolver) Resolve(ctx context.Context, code string) (domain.PartRecord, error) {
	if part, ok, err := r.cache.Get(ctx, code); err != nil {
		obs.Logger.Warn("resolution cache read failed", "barcode", code, "error", err)
	} else if ok {
		return part, nil
	}

	var records []domain.PartRecord
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			records, err = r.store.LookupByBarcode(ctx, code)
			return err
		},
		NotifyFunc: func(err error, attempt int) {
			obs.Logger.Warn("barcode lookup failed", "barcode", code, "attempt", attempt, "error", err)
		},
		Attempts:    r.attempts,
		Delay:       r.delay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       r.clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		return domain.PartRecord{}, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	if len(records) == 0 {
		return domain.PartRecord{}, ErrPartNotFound
	}

	// Duplicate barcode assignment: the most recently updated record wins.
	part := records[0]
	for _, rec := range records[1:] {
		if rec.UpdatedAt.After(part.UpdatedAt) {
			part = rec
		}
	}

	if err := r.cache.Put(ctx, code, part); err != nil {
		obs.Logger.Warn("resolution cache write failed", "barcode", code, "error", err)
	}

	return part, nil
}
