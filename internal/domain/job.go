package domain

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// TransferJob is a single source file headed for the shared destination.
type TransferJob struct {
	ID          uuid.UUID
	Source      string
	Destination string
	Name        string
	Size        int64
	Weight      int
	// Bandwidth is the granted share in KB/s. Zero means unlimited.
	Bandwidth int64
}

func NewTransferJob(source, destination string, size int64) TransferJob {
	return TransferJob{
		ID:          uuid.New(),
		Source:      source,
		Destination: destination,
		Name:        filepath.Base(source),
		Size:        size,
		Weight:      1,
	}
}

// WithBandwidth returns a copy of the job carrying the granted share.
func (j TransferJob) WithBandwidth(kbps int64) TransferJob {
	j.Bandwidth = kbps
	return j
}

type BandwidthMode string

const (
	// BandwidthAggregate splits the limit across concurrently active jobs.
	BandwidthAggregate BandwidthMode = "aggregate"
	// BandwidthPerFile hands every job the full limit.
	BandwidthPerFile BandwidthMode = "per-file"
)

func ParseBandwidthMode(value string) (BandwidthMode, bool) {
	switch BandwidthMode(value) {
	case BandwidthAggregate, "":
		return BandwidthAggregate, true
	case BandwidthPerFile:
		return BandwidthPerFile, true
	default:
		return "", false
	}
}

type TransferPlan struct {
	Jobs        []TransferJob
	Destination string
	TotalBytes  int64
	Warnings    []string
}

// IsRemote reports whether destination uses rsync's host:path form.
func IsRemote(destination string) bool {
	colon := strings.Index(destination, ":")
	if colon <= 0 {
		return false
	}
	slash := strings.Index(destination, "/")
	return slash < 0 || colon < slash
}
