package tui

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"parsync/internal/domain"
	"parsync/internal/presentation"
)

// Phase represents the current state of the TUI
type Phase int

const (
	PhaseTransferring Phase = iota
	PhaseDone
	PhaseError
)

// Messages for the TUI
type (
	JobStartedMsg struct {
		Job domain.TransferJob
	}
	JobFinishedMsg struct {
		Result    domain.TransferResult
		Completed int
		Total     int
	}
	RunDoneMsg struct {
		Summary domain.Summary
		Err     error
	}
	ErrorMsg struct {
		Err error
	}
	tickMsg time.Time
)

// Config for the TUI
type Config struct {
	Destination    string
	Total          int
	BandwidthLimit int64
	Concurrency    int
	Verbose        bool
	// Cancel stops dispatching new transfers when the user quits.
	Cancel func()
}

// Model is the main TUI model
type Model struct {
	config    Config
	Phase     Phase
	spinner   spinner.Model
	progress  progress.Model
	active    map[uuid.UUID]activeJob
	Finished  []domain.TransferResult
	completed int
	Summary   domain.Summary
	Err       error
	Quitting  bool
	width     int
}

type activeJob struct {
	job     domain.TransferJob
	started time.Time
}

// NewModel creates a new TUI model
func NewModel(cfg Config) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return Model{
		config:   cfg,
		Phase:    PhaseTransferring,
		spinner:  s,
		progress: p,
		active:   make(map[uuid.UUID]activeJob),
		width:    80,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(msg.Width-20, 60)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.Phase == PhaseTransferring && m.config.Cancel != nil {
				m.config.Cancel()
			}
			m.Quitting = true
			return m, tea.Quit
		case "enter":
			if m.Phase == PhaseDone || m.Phase == PhaseError {
				return m, tea.Quit
			}
		}

	case JobStartedMsg:
		m.active[msg.Job.ID] = activeJob{job: msg.Job, started: time.Now()}
		return m, nil

	case JobFinishedMsg:
		delete(m.active, msg.Result.Job.ID)
		m.Finished = append(m.Finished, msg.Result)
		m.completed = msg.Completed
		if msg.Total > 0 {
			m.config.Total = msg.Total
		}
		return m, nil

	case RunDoneMsg:
		m.Phase = PhaseDone
		m.Summary = msg.Summary
		m.Err = msg.Err
		return m, nil

	case ErrorMsg:
		m.Phase = PhaseError
		m.Err = msg.Err
		return m, nil

	case spinner.TickMsg:
		if m.Phase == PhaseTransferring {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tickMsg:
		if m.Phase == PhaseTransferring {
			var cmds []tea.Cmd
			if m.config.Total > 0 {
				cmds = append(cmds, m.progress.SetPercent(float64(m.completed)/float64(m.config.Total)))
			}
			cmds = append(cmds, tickCmd())
			return m, tea.Batch(cmds...)
		}
	}

	return m, nil
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch m.Phase {
	case PhaseTransferring:
		b.WriteString(m.renderTransferring())
	case PhaseDone:
		b.WriteString(m.renderFinished())
		b.WriteString("\n")
		b.WriteString(m.renderSummary())
	case PhaseError:
		b.WriteString(m.renderError())
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("⇉ parsync")
	subtitle := subtitleStyle.Render("Parallel transfers under one bandwidth budget")

	dimStyle := lipgloss.NewStyle().Foreground(dimTextColor)

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		subtitle,
		"",
		dimStyle.Render(fmt.Sprintf("%s Destination: %s", iconFolder, shortenPath(m.config.Destination))),
		dimStyle.Render(fmt.Sprintf("%s Limit: %s  •  %d slots", iconArrow, presentation.FormatRate(m.config.BandwidthLimit), m.config.Concurrency)),
	)
}

func (m Model) renderTransferring() string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render("Transferring"))
	b.WriteString("\n\n")

	percent := 0.0
	if m.config.Total > 0 {
		percent = float64(m.completed) / float64(m.config.Total)
	}

	b.WriteString(fmt.Sprintf("  %s %d active\n\n", m.spinner.View(), len(m.active)))
	b.WriteString(fmt.Sprintf("  %s\n", m.progress.ViewAs(percent)))

	countStyle := lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	percentStyle := lipgloss.NewStyle().Foreground(dimTextColor)

	b.WriteString(fmt.Sprintf("  %s %s\n",
		countStyle.Render(fmt.Sprintf("%d/%d files", m.completed, m.config.Total)),
		percentStyle.Render(fmt.Sprintf("(%.0f%%)", percent*100)),
	))

	if len(m.active) > 0 {
		b.WriteString("\n")
		for _, line := range m.activeLines() {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if len(m.Finished) > 0 {
		b.WriteString("\n")
		for _, line := range formatResultList(m.Finished, 4) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) activeLines() []string {
	jobs := make([]activeJob, 0, len(m.active))
	for _, job := range m.active {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].started.Before(jobs[j].started)
	})

	lines := make([]string, 0, len(jobs))
	for _, job := range jobs {
		lines = append(lines, fmt.Sprintf("%s %s  %s  %s",
			iconArrow,
			fileNameStyle.Render(job.job.Name),
			rateStyle.Render(presentation.FormatRate(job.job.Bandwidth)),
			dateStyle.Render(time.Since(job.started).Round(time.Second).String()),
		))
	}
	return lines
}

func (m Model) renderFinished() string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render("Files"))
	b.WriteString("\n\n")

	if len(m.Finished) == 0 {
		dimStyle := lipgloss.NewStyle().Foreground(dimTextColor)
		b.WriteString(dimStyle.Render("  No files transferred"))
		b.WriteString("\n")
		return b.String()
	}

	limit := 4
	if m.config.Verbose {
		limit = len(m.Finished)
	}
	for _, line := range formatResultList(m.Finished, limit) {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderSummary() string {
	var b strings.Builder

	b.WriteString(sectionStyle.Render("Summary"))
	b.WriteString("\n\n")

	s := m.Summary
	b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("Succeeded:"), successStyle.Render(fmt.Sprintf("%s %d", iconSuccess, s.Succeeded))))
	if s.Failed > 0 {
		b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("Failed:"), errorStyle.Render(fmt.Sprintf("%s %d", iconError, s.Failed))))
	}
	b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("Parallel time:"), statValueStyle.Render(formatDuration(s.Parallel))))
	b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("Sequential time:"), statValueStyle.Render(formatDuration(s.Sequential))))
	b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("Time saved:"), statValueStyle.Render(formatDuration(s.Saved))))
	if s.Speedup > 0 {
		b.WriteString(fmt.Sprintf("  %s  %s\n", statLabelStyle.Render("Speed-up:"), statValueStyle.Render(fmt.Sprintf("%.2fx", s.Speedup))))
	}

	if m.Err != nil {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render(fmt.Sprintf("%s Stopped early: %v", iconWarning, m.Err)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) renderError() string {
	icon := errorStyle.Render(iconError)
	msg := errorStyle.Render(fmt.Sprintf("Error: %s", m.Err.Error()))

	return highlightBoxStyle.
		BorderForeground(errorColor).
		Render(fmt.Sprintf("%s %s", icon, msg))
}

func (m Model) renderHelp() string {
	var help string
	switch m.Phase {
	case PhaseTransferring:
		help = "Press q to stop after running transfers finish"
	case PhaseDone:
		help = "Press Enter to exit"
	case PhaseError:
		help = "Press Enter or q to exit"
	}
	return helpStyle.Render(help)
}

// formatResultList shows the most recent results, newest last.
func formatResultList(results []domain.TransferResult, maxItems int) []string {
	if len(results) == 0 {
		return []string{}
	}

	start := 0
	lines := make([]string, 0, min(len(results), maxItems+1))
	if len(results) > maxItems {
		start = len(results) - maxItems
		dimStyle := lipgloss.NewStyle().Foreground(dimTextColor)
		lines = append(lines, dimStyle.Render(fmt.Sprintf("... %d earlier files ...", start)))
	}
	for _, result := range results[start:] {
		lines = append(lines, formatResultItem(result))
	}
	return lines
}

func formatResultItem(result domain.TransferResult) string {
	icon := successStyle.Render(iconSuccess)
	detail := dateStyle.Render(formatDuration(result.Elapsed))
	if !result.Succeeded() {
		icon = errorStyle.Render(iconError)
		detail = errorStyle.Render(result.Reason())
	}
	return fmt.Sprintf("%s %s  %s", icon, fileNameStyle.Render(result.Job.Name), detail)
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// shortenPath replaces the home directory prefix with ~ for display
func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
