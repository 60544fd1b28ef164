package domain

import "time"

type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusSucceeded {
		return "succeeded"
	}
	return "failed"
}

type TransferResult struct {
	Job      TransferJob
	Start    time.Time
	End      time.Time
	Elapsed  time.Duration
	Attempts int
	Status   Status
	Err      error
}

func (r TransferResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Reason is the failure diagnostic, empty for successful transfers.
func (r TransferResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	// Sequential is the sum of every job's individually measured elapsed time.
	Sequential time.Duration
	// Parallel is the wall-clock span of the whole run.
	Parallel time.Duration
	// Saved is Sequential minus Parallel. It can be negative.
	Saved   time.Duration
	Speedup float64
}

func (s Summary) AllSucceeded() bool {
	return s.Failed == 0
}
