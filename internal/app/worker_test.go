package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parsync/internal/domain"
	appErrors "parsync/internal/errors"
)

func TestWorkerSuccess(t *testing.T) {
	var gotRate int64
	worker := Worker{Transferer: TransferFunc(func(ctx context.Context, source, destination string, kbps int64) error {
		gotRate = kbps
		time.Sleep(10 * time.Millisecond)
		return nil
	})}

	job := domain.NewTransferJob("/data/a.bin", "/backup", 1).WithBandwidth(250)
	result := worker.Run(context.Background(), job)

	assert.True(t, result.Succeeded())
	assert.Equal(t, int64(250), gotRate)
	assert.Equal(t, 1, result.Attempts)
	assert.GreaterOrEqual(t, result.Elapsed, 10*time.Millisecond)
	assert.False(t, result.End.Before(result.Start))
}

func TestWorkerCapturesFailure(t *testing.T) {
	worker := Worker{Transferer: TransferFunc(func(ctx context.Context, source, destination string, kbps int64) error {
		return errors.New("exit status 23")
	})}

	result := worker.Run(context.Background(), domain.NewTransferJob("/data/a.bin", "/backup", 1))

	assert.False(t, result.Succeeded())
	assert.True(t, appErrors.IsKind(result.Err, appErrors.TransferFailed))
	assert.Contains(t, result.Reason(), "exit status 23")
}

func TestWorkerRecoversPanic(t *testing.T) {
	worker := Worker{Transferer: TransferFunc(func(ctx context.Context, source, destination string, kbps int64) error {
		panic("boom")
	})}

	result := worker.Run(context.Background(), domain.NewTransferJob("/data/a.bin", "/backup", 1))

	assert.False(t, result.Succeeded())
	assert.Contains(t, result.Reason(), "panic: boom")
}

func TestWorkerTimeout(t *testing.T) {
	worker := Worker{
		Timeout: 30 * time.Millisecond,
		Transferer: TransferFunc(func(ctx context.Context, source, destination string, kbps int64) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	}

	result := worker.Run(context.Background(), domain.NewTransferJob("/data/slow.bin", "/backup", 1))

	assert.False(t, result.Succeeded())
	assert.True(t, appErrors.IsKind(result.Err, appErrors.Timeout))
}

func TestWorkerIgnoresSchedulerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	worker := Worker{Transferer: TransferFunc(func(tctx context.Context, source, destination string, kbps int64) error {
		cancel()
		time.Sleep(10 * time.Millisecond)
		return tctx.Err()
	})}

	result := worker.Run(ctx, domain.NewTransferJob("/data/a.bin", "/backup", 1))

	assert.True(t, result.Succeeded(), "transfer aborted by cancel: %v", result.Err)
}

func TestWorkerRetries(t *testing.T) {
	var calls atomic.Int32
	worker := Worker{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		Transferer: TransferFunc(func(ctx context.Context, source, destination string, kbps int64) error {
			if calls.Add(1) < 3 {
				return errors.New("connection reset")
			}
			return nil
		}),
	}

	result := worker.Run(context.Background(), domain.NewTransferJob("/data/a.bin", "/backup", 1))

	require.True(t, result.Succeeded())
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWorkerGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	worker := Worker{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		Transferer: TransferFunc(func(ctx context.Context, source, destination string, kbps int64) error {
			calls.Add(1)
			return errors.New("permission denied")
		}),
	}

	result := worker.Run(context.Background(), domain.NewTransferJob("/data/a.bin", "/backup", 1))

	assert.False(t, result.Succeeded())
	assert.Equal(t, 2, result.Attempts)
	assert.Contains(t, result.Reason(), "permission denied")
}

func TestWorkerWithoutTransferer(t *testing.T) {
	var worker Worker
	result := worker.Run(context.Background(), domain.NewTransferJob("/data/a.bin", "/backup", 1))
	assert.False(t, result.Succeeded())
	assert.True(t, appErrors.IsKind(result.Err, appErrors.Internal))
}
