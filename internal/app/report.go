package app

import (
	"sync"
	"time"

	"parsync/internal/domain"
)

// Report collects transfer results as they complete. Record is safe for
// concurrent use.
type Report struct {
	mu       sync.Mutex
	expected int
	results  []domain.TransferResult
	started  time.Time
	finished time.Time
}

func NewReport(expected int) *Report {
	return &Report{
		expected: expected,
		results:  make([]domain.TransferResult, 0, expected),
	}
}

func (r *Report) Start(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = at
}

func (r *Report) Finish(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = at
}

func (r *Report) Record(result domain.TransferResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

// Results returns the recorded results in arrival order.
func (r *Report) Results() []domain.TransferResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.TransferResult, len(r.results))
	copy(out, r.results)
	return out
}

// Result looks up the result recorded for a source path.
func (r *Report) Result(source string) (domain.TransferResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, result := range r.results {
		if result.Job.Source == source {
			return result, true
		}
	}
	return domain.TransferResult{}, false
}

func (r *Report) Complete() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results) == r.expected
}

func (r *Report) Finalize() domain.Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := domain.Summary{Total: len(r.results)}
	for _, result := range r.results {
		if result.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Sequential += result.Elapsed
	}

	finished := r.finished
	if finished.IsZero() {
		finished = r.lastEnd()
	}
	if !r.started.IsZero() && finished.After(r.started) {
		summary.Parallel = finished.Sub(r.started)
	}
	summary.Saved = summary.Sequential - summary.Parallel
	if summary.Parallel > 0 {
		summary.Speedup = float64(summary.Sequential) / float64(summary.Parallel)
	}
	return summary
}

func (r *Report) lastEnd() time.Time {
	var last time.Time
	for _, result := range r.results {
		if result.End.After(last) {
			last = result.End
		}
	}
	return last
}
