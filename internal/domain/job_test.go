package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRemote(t *testing.T) {
	cases := map[string]bool{
		"host:/backup":      true,
		"user@host:backup":  true,
		"/local/path":       false,
		"relative/dir":      false,
		"./with:colon/file": false,
		":leading":          false,
	}
	for destination, want := range cases {
		assert.Equal(t, want, IsRemote(destination), destination)
	}
}

func TestNewTransferJob(t *testing.T) {
	job := NewTransferJob("/data/file_5mb.txt", "host:/backup/", 5<<20)

	assert.Equal(t, "file_5mb.txt", job.Name)
	assert.Equal(t, 1, job.Weight)
	assert.Zero(t, job.Bandwidth)

	granted := job.WithBandwidth(500)
	assert.Equal(t, int64(500), granted.Bandwidth)
	assert.Zero(t, job.Bandwidth, "WithBandwidth must not mutate the original")
	assert.Equal(t, job.ID, granted.ID)
}

func TestParseBandwidthMode(t *testing.T) {
	mode, ok := ParseBandwidthMode("")
	assert.True(t, ok)
	assert.Equal(t, BandwidthAggregate, mode)

	mode, ok = ParseBandwidthMode("per-file")
	assert.True(t, ok)
	assert.Equal(t, BandwidthPerFile, mode)

	_, ok = ParseBandwidthMode("burst")
	assert.False(t, ok)
}
