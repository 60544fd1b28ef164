package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parsync/internal/domain"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

func TestModelTracksJobLifecycle(t *testing.T) {
	m := NewModel(Config{Destination: "/backup", Total: 2, BandwidthLimit: 1000, Concurrency: 2})
	job := domain.NewTransferJob("/data/a.bin", "/backup", 10).WithBandwidth(500)

	m = update(t, m, JobStartedMsg{Job: job})
	assert.Len(t, m.active, 1)
	assert.Contains(t, m.View(), "a.bin")

	m = update(t, m, JobFinishedMsg{
		Result:    domain.TransferResult{Job: job, Status: domain.StatusSucceeded, Elapsed: time.Second},
		Completed: 1,
		Total:     2,
	})
	assert.Empty(t, m.active)
	assert.Equal(t, 1, m.completed)
	assert.Contains(t, m.View(), "1/2 files")

	m = update(t, m, RunDoneMsg{Summary: domain.Summary{Total: 2, Succeeded: 1, Failed: 1, Parallel: time.Second}})
	assert.Equal(t, PhaseDone, m.Phase)
	view := m.View()
	assert.Contains(t, view, "Summary")
	assert.Contains(t, view, "Failed:")
}

func TestModelQuitCancelsRun(t *testing.T) {
	canceled := false
	m := NewModel(Config{Total: 1, Cancel: func() { canceled = true }})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.True(t, canceled)
	assert.True(t, m.Quitting)
	assert.Empty(t, m.View())
}

func TestModelShowsError(t *testing.T) {
	m := NewModel(Config{})
	m = update(t, m, ErrorMsg{Err: errors.New("rsync not found")})
	assert.Equal(t, PhaseError, m.Phase)
	assert.True(t, strings.Contains(m.View(), "rsync not found"))
}

func TestFormatResultListKeepsNewest(t *testing.T) {
	results := make([]domain.TransferResult, 0, 6)
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		results = append(results, domain.TransferResult{Job: domain.NewTransferJob("/data/"+name, "/backup", 1)})
	}

	lines := formatResultList(results, 4)
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "2 earlier files")
	assert.Contains(t, lines[4], "f")
}
