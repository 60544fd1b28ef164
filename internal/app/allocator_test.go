package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parsync/internal/domain"
	appErrors "parsync/internal/errors"
)

func TestAllocatorSplitsEvenly(t *testing.T) {
	allocator, err := NewBandwidthAllocator(1000, 2, domain.BandwidthAggregate)
	require.NoError(t, err)

	first, err := allocator.Acquire(context.Background(), 1)
	require.NoError(t, err)
	second, err := allocator.Acquire(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int64(500), first.Rate)
	assert.Equal(t, int64(500), second.Rate)
	assert.Equal(t, int64(1000), allocator.Reserved())
	assert.Equal(t, 2, allocator.Active())
}

func TestAllocatorWeightIsClamped(t *testing.T) {
	allocator, err := NewBandwidthAllocator(900, 3, domain.BandwidthAggregate)
	require.NoError(t, err)

	assert.Equal(t, int64(300), allocator.FairShare(0))
	assert.Equal(t, int64(600), allocator.FairShare(2))
	assert.Equal(t, int64(900), allocator.FairShare(10))
}

func TestAllocatorNeverExceedsRemaining(t *testing.T) {
	allocator, err := NewBandwidthAllocator(1000, 2, domain.BandwidthAggregate)
	require.NoError(t, err)

	heavy, err := allocator.Acquire(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), heavy.Rate)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = allocator.Acquire(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1000), allocator.Reserved())
}

func TestAllocatorGrantsPartialRemainder(t *testing.T) {
	allocator, err := NewBandwidthAllocator(1000, 3, domain.BandwidthAggregate)
	require.NoError(t, err)

	_, err = allocator.Acquire(context.Background(), 2)
	require.NoError(t, err)
	rest, err := allocator.Acquire(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(334), rest.Rate)
	assert.Equal(t, int64(1000), allocator.Reserved())
}

func TestAllocatorWakesWaiterOnRelease(t *testing.T) {
	allocator, err := NewBandwidthAllocator(100, 1, domain.BandwidthAggregate)
	require.NoError(t, err)

	held, err := allocator.Acquire(context.Background(), 1)
	require.NoError(t, err)

	granted := make(chan Grant, 1)
	go func() {
		grant, err := allocator.Acquire(context.Background(), 1)
		if err == nil {
			granted <- grant
		}
	}()

	select {
	case <-granted:
		t.Fatal("grant issued while budget exhausted")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, allocator.Release(held))
	select {
	case grant := <-granted:
		assert.Equal(t, int64(100), grant.Rate)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by release")
	}
}

func TestAllocatorReleaseIsIdempotent(t *testing.T) {
	allocator, err := NewBandwidthAllocator(1000, 2, domain.BandwidthAggregate)
	require.NoError(t, err)

	grant, err := allocator.Acquire(context.Background(), 1)
	require.NoError(t, err)

	require.NoError(t, allocator.Release(grant))
	require.NoError(t, allocator.Release(grant))
	require.NoError(t, allocator.Release(Grant{ID: uuid.New(), Rate: 50}))
	assert.Equal(t, int64(0), allocator.Reserved())
}

func TestAllocatorRejectsTamperedGrant(t *testing.T) {
	allocator, err := NewBandwidthAllocator(1000, 2, domain.BandwidthAggregate)
	require.NoError(t, err)

	grant, err := allocator.Acquire(context.Background(), 1)
	require.NoError(t, err)

	grant.Rate = 900
	err = allocator.Release(grant)
	assert.True(t, appErrors.IsKind(err, appErrors.InvalidBandwidthGrant))
	assert.Equal(t, int64(500), allocator.Reserved())
}

func TestAllocatorUnlimitedAndPerFile(t *testing.T) {
	unlimited, err := NewBandwidthAllocator(0, 4, domain.BandwidthAggregate)
	require.NoError(t, err)
	grant, err := unlimited.Acquire(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), grant.Rate)
	assert.Equal(t, int64(0), unlimited.Reserved())

	perFile, err := NewBandwidthAllocator(800, 4, domain.BandwidthPerFile)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		grant, err := perFile.Acquire(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(800), grant.Rate)
	}
}

func TestAllocatorValidatesInput(t *testing.T) {
	_, err := NewBandwidthAllocator(-1, 1, domain.BandwidthAggregate)
	assert.True(t, appErrors.IsKind(err, appErrors.InvalidInput))

	_, err = NewBandwidthAllocator(10, 0, domain.BandwidthAggregate)
	assert.True(t, appErrors.IsKind(err, appErrors.InvalidInput))
}

func TestAllocatorConcurrentInvariant(t *testing.T) {
	const total = 1000
	allocator, err := NewBandwidthAllocator(total, 4, domain.BandwidthAggregate)
	require.NoError(t, err)

	var wg sync.WaitGroup
	violations := make(chan int64, 100)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(weight int) {
			defer wg.Done()
			grant, err := allocator.Acquire(context.Background(), weight)
			if err != nil {
				return
			}
			if grant.Rate <= 0 || grant.Rate > total {
				violations <- grant.Rate
			}
			if reserved := allocator.Reserved(); reserved > total {
				violations <- reserved
			}
			time.Sleep(time.Millisecond)
			_ = allocator.Release(grant)
		}(i%5 + 1)
	}
	wg.Wait()
	close(violations)

	for v := range violations {
		t.Errorf("invariant violated: %d", v)
	}
	assert.Equal(t, int64(0), allocator.Reserved())
}
