package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"parsync/internal/domain"
	appErrors "parsync/internal/errors"
	"parsync/internal/logging"
)

type EventType int

const (
	EventDispatched EventType = iota
	EventCompleted
)

// Event reports a job entering or leaving the running set. Result is only
// set for EventCompleted.
type Event struct {
	Type      EventType
	Job       domain.TransferJob
	Result    domain.TransferResult
	Completed int
	Total     int
}

type Options struct {
	MaxConcurrency int
	// TotalBandwidth is the limit in KB/s. Zero means unlimited.
	TotalBandwidth int64
	Mode           domain.BandwidthMode
	// Timeout bounds each transfer attempt. Zero disables it.
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

func (o Options) Validate(jobCount int) error {
	switch {
	case jobCount == 0:
		return appErrors.New(appErrors.InvalidInput, "schedule", "no files to transfer")
	case o.MaxConcurrency <= 0:
		return appErrors.New(appErrors.InvalidInput, "schedule", fmt.Sprintf("concurrency must be positive, got %d", o.MaxConcurrency))
	case o.TotalBandwidth < 0:
		return appErrors.New(appErrors.InvalidInput, "schedule", fmt.Sprintf("bandwidth limit must not be negative, got %d", o.TotalBandwidth))
	case o.Timeout < 0:
		return appErrors.New(appErrors.InvalidInput, "schedule", fmt.Sprintf("timeout must not be negative, got %s", o.Timeout))
	case o.MaxRetries < 0:
		return appErrors.New(appErrors.InvalidInput, "schedule", fmt.Sprintf("retries must not be negative, got %d", o.MaxRetries))
	}
	if _, ok := domain.ParseBandwidthMode(string(o.Mode)); !ok {
		return appErrors.New(appErrors.InvalidInput, "schedule", fmt.Sprintf("unknown bandwidth mode %q", o.Mode))
	}
	return nil
}

// Scheduler runs a batch of jobs with at most MaxConcurrency transfers in
// flight, each holding a bandwidth grant for its duration.
type Scheduler struct {
	Transferer Transferer
	Logger     logging.Logger
	// OnEvent is optional. Calls are serialized.
	OnEvent func(Event)
}

// Run transfers every job and returns a report covering all of them. Once
// ctx is done no further jobs are dispatched: in-flight transfers finish and
// the remaining jobs are recorded as canceled. The returned error is ctx's
// error in that case, or an input validation error before anything starts.
func (s *Scheduler) Run(ctx context.Context, jobs []domain.TransferJob, opts Options) (*Report, error) {
	if err := opts.Validate(len(jobs)); err != nil {
		return nil, err
	}
	if s.Transferer == nil {
		return nil, appErrors.New(appErrors.Internal, "schedule", "scheduler requires a Transferer")
	}

	slots := min(opts.MaxConcurrency, len(jobs))
	allocator, err := NewBandwidthAllocator(opts.TotalBandwidth, slots, opts.Mode)
	if err != nil {
		return nil, err
	}
	gate := semaphore.NewWeighted(int64(slots))
	worker := &Worker{
		Transferer: s.Transferer,
		Timeout:    opts.Timeout,
		MaxRetries: opts.MaxRetries,
		RetryDelay: opts.RetryDelay,
		Logger:     s.Logger,
	}

	stop := s.Logger.Measure(fmt.Sprintf("Transferring %d files", len(jobs)))
	defer stop()
	s.Logger.Verbosef("Scheduling %d jobs with %d slots, bandwidth %d KB/s (%s)", len(jobs), slots, opts.TotalBandwidth, allocator.mode)

	report := NewReport(len(jobs))
	var (
		eventMu   sync.Mutex
		completed int
	)
	emit := func(event Event) {
		eventMu.Lock()
		defer eventMu.Unlock()
		if event.Type == EventCompleted {
			completed++
		}
		if s.OnEvent == nil {
			return
		}
		event.Completed = completed
		event.Total = len(jobs)
		s.OnEvent(event)
	}
	record := func(result domain.TransferResult) {
		report.Record(result)
		emit(Event{Type: EventCompleted, Job: result.Job, Result: result})
	}

	report.Start(time.Now())

	var (
		wg     sync.WaitGroup
		runErr error
	)
	for i, job := range jobs {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			s.cancelRemaining(jobs[i:], runErr, record)
			break
		}
		if err := gate.Acquire(ctx, 1); err != nil {
			runErr = err
			s.cancelRemaining(jobs[i:], runErr, record)
			break
		}
		grant, err := allocator.Acquire(ctx, job.Weight)
		if err != nil {
			gate.Release(1)
			if ctx.Err() != nil {
				runErr = ctx.Err()
				s.cancelRemaining(jobs[i:], runErr, record)
				break
			}
			record(domain.TransferResult{Job: job, Status: domain.StatusFailed, Err: err})
			continue
		}
		// Acquire may succeed immediately after ctx is done.
		if ctx.Err() != nil {
			if err := allocator.Release(grant); err != nil {
				s.Logger.Infof("Bandwidth accounting error: %v", err)
			}
			gate.Release(1)
			runErr = ctx.Err()
			s.cancelRemaining(jobs[i:], runErr, record)
			break
		}

		dispatched := job.WithBandwidth(grant.Rate)
		s.Logger.Verbosef("Dispatching %s at %d KB/s (%d KB/s reserved)", dispatched.Source, grant.Rate, allocator.Reserved())
		emit(Event{Type: EventDispatched, Job: dispatched})

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer gate.Release(1)

			result := worker.Run(ctx, dispatched)
			if err := allocator.Release(grant); err != nil {
				s.Logger.Infof("Bandwidth accounting error: %v", err)
			}
			s.Logger.Verbosef("Finished %s: %s in %s", dispatched.Source, result.Status, result.Elapsed.Round(time.Millisecond))
			record(result)
		}()
	}

	wg.Wait()
	report.Finish(time.Now())
	return report, runErr
}

func (s *Scheduler) cancelRemaining(jobs []domain.TransferJob, cause error, record func(domain.TransferResult)) {
	s.Logger.Verbosef("Canceled before dispatch: %d jobs", len(jobs))
	for _, job := range jobs {
		record(domain.TransferResult{
			Job:    job,
			Status: domain.StatusFailed,
			Err:    appErrors.Wrap(appErrors.Canceled, "dispatch", job.Source, cause),
		})
	}
}
