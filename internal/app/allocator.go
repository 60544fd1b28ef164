package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"parsync/internal/domain"
	appErrors "parsync/internal/errors"
)

// Grant is a reserved bandwidth share. Rate is in KB/s; zero means unlimited.
type Grant struct {
	ID   uuid.UUID
	Rate int64
}

// BandwidthAllocator hands out shares of a fixed bandwidth budget. In
// aggregate mode the sum of outstanding grants never exceeds the total.
type BandwidthAllocator struct {
	total int64
	slots int
	mode  domain.BandwidthMode

	mu       sync.Mutex
	reserved int64
	active   map[uuid.UUID]int64
	// changed is closed and replaced on every release to wake waiters.
	changed chan struct{}
}

func NewBandwidthAllocator(total int64, slots int, mode domain.BandwidthMode) (*BandwidthAllocator, error) {
	if total < 0 {
		return nil, appErrors.New(appErrors.InvalidInput, "allocator", fmt.Sprintf("bandwidth limit must not be negative, got %d", total))
	}
	if slots <= 0 {
		return nil, appErrors.New(appErrors.InvalidInput, "allocator", fmt.Sprintf("slot count must be positive, got %d", slots))
	}
	if mode == "" {
		mode = domain.BandwidthAggregate
	}
	return &BandwidthAllocator{
		total:   total,
		slots:   slots,
		mode:    mode,
		active:  make(map[uuid.UUID]int64),
		changed: make(chan struct{}),
	}, nil
}

func (a *BandwidthAllocator) Total() int64 {
	return a.total
}

func (a *BandwidthAllocator) Reserved() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reserved
}

func (a *BandwidthAllocator) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active)
}

// FairShare is the share a job of the given weight asks for when the budget
// is free.
func (a *BandwidthAllocator) FairShare(weight int) int64 {
	if a.total == 0 {
		return 0
	}
	if a.mode == domain.BandwidthPerFile {
		return a.total
	}
	share := a.total * int64(a.clampWeight(weight)) / int64(a.slots)
	if share < 1 {
		share = 1
	}
	return share
}

// Acquire reserves a share for one job, waiting while the budget is
// exhausted. It returns ctx's error if ctx ends first.
func (a *BandwidthAllocator) Acquire(ctx context.Context, weight int) (Grant, error) {
	grant := Grant{ID: uuid.New()}
	if a.total == 0 || a.mode == domain.BandwidthPerFile {
		grant.Rate = a.FairShare(weight)
		return grant, nil
	}

	want := a.FairShare(weight)
	for {
		a.mu.Lock()
		remaining := a.total - a.reserved
		if remaining > 0 {
			rate := min(want, remaining)
			if rate <= 0 || a.reserved+rate > a.total {
				a.mu.Unlock()
				return Grant{}, appErrors.New(appErrors.InvalidBandwidthGrant, "acquire", fmt.Sprintf("grant %d exceeds remaining %d", rate, remaining))
			}
			a.reserved += rate
			a.active[grant.ID] = rate
			a.mu.Unlock()
			grant.Rate = rate
			return grant, nil
		}
		changed := a.changed
		a.mu.Unlock()

		select {
		case <-ctx.Done():
			return Grant{}, ctx.Err()
		case <-changed:
		}
	}
}

// Release returns a grant to the budget. Releasing a grant twice, or one the
// allocator never issued, is a no-op.
func (a *BandwidthAllocator) Release(grant Grant) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	rate, ok := a.active[grant.ID]
	if !ok {
		return nil
	}
	if rate != grant.Rate || a.reserved-rate < 0 {
		return appErrors.New(appErrors.InvalidBandwidthGrant, "release", fmt.Sprintf("grant %s rate %d does not match reservation %d (reserved %d)", grant.ID, grant.Rate, rate, a.reserved))
	}
	delete(a.active, grant.ID)
	a.reserved -= rate
	close(a.changed)
	a.changed = make(chan struct{})
	return nil
}

func (a *BandwidthAllocator) clampWeight(weight int) int {
	if weight < 1 {
		return 1
	}
	if weight > a.slots {
		return a.slots
	}
	return weight
}
