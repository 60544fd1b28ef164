package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"parsync/internal/domain"
	appErrors "parsync/internal/errors"
	"parsync/internal/logging"
)

const defaultRetryDelay = 500 * time.Millisecond

// Worker runs a single job through the Transferer. Every failure ends up in
// the returned result; Run never panics or returns an error.
type Worker struct {
	Transferer Transferer
	// Timeout bounds each attempt. Zero disables it.
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Logger     logging.Logger
}

func (w *Worker) Run(ctx context.Context, job domain.TransferJob) domain.TransferResult {
	result := domain.TransferResult{Job: job}

	var (
		elapsed time.Duration
		lastErr error
	)
	attempt := func() error {
		result.Attempts++
		start := time.Now()
		if result.Start.IsZero() {
			result.Start = start
		}
		err := w.attempt(ctx, job)
		end := time.Now()
		result.End = end
		elapsed += end.Sub(start)
		lastErr = err
		if err != nil && result.Attempts <= w.MaxRetries {
			w.Logger.Verbosef("Attempt %d for %s failed: %v", result.Attempts, job.Source, err)
		}
		return err
	}

	err := backoff.Retry(attempt, w.retryPolicy(ctx))
	result.Elapsed = elapsed
	if err != nil {
		// Retry returns ctx.Err() when canceled between attempts. Report the
		// last transfer error instead.
		if lastErr != nil {
			err = lastErr
		}
		result.Status = domain.StatusFailed
		result.Err = err
		return result
	}
	result.Status = domain.StatusSucceeded
	return result
}

func (w *Worker) attempt(ctx context.Context, job domain.TransferJob) (err error) {
	if w.Transferer == nil {
		return appErrors.New(appErrors.Internal, "transfer", "worker requires a Transferer")
	}

	// Scheduler cancellation must not abort a transfer midway; only the
	// per-attempt timeout may.
	attemptCtx := context.WithoutCancel(ctx)
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(attemptCtx, w.Timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = appErrors.Wrap(appErrors.TransferFailed, "transfer", job.Source, fmt.Errorf("panic: %v", r))
		}
	}()

	transferErr := w.Transferer.Transfer(attemptCtx, job.Source, job.Destination, job.Bandwidth)
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return appErrors.Wrap(appErrors.Timeout, "transfer", job.Source, fmt.Errorf("exceeded %s", w.Timeout))
	}
	if transferErr != nil {
		var appErr *appErrors.AppError
		if errors.As(transferErr, &appErr) {
			return transferErr
		}
		return appErrors.Wrap(appErrors.TransferFailed, "transfer", job.Source, transferErr)
	}
	return nil
}

func (w *Worker) retryPolicy(ctx context.Context) backoff.BackOff {
	if w.MaxRetries <= 0 {
		return &backoff.StopBackOff{}
	}
	delay := w.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = delay
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(w.MaxRetries)), ctx)
}
