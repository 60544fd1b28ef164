package presentation

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"parsync/internal/domain"
	appErrors "parsync/internal/errors"
)

type Printer struct {
	Writer  io.Writer
	Verbose bool
}

func (p Printer) PrintDryRun(plan domain.TransferPlan, concurrency int, limit int64, mode domain.BandwidthMode) {
	fmt.Fprintf(p.Writer, "Transferring to %s:\n", plan.Destination)
	fmt.Fprintln(p.Writer)

	for _, line := range formatJobLines(plan.Jobs) {
		fmt.Fprintln(p.Writer, line)
	}

	fmt.Fprintln(p.Writer)
	fmt.Fprintf(p.Writer, "Would transfer %d files (%s) with up to %d in parallel, %s.\n",
		len(plan.Jobs), humanize.Bytes(uint64(plan.TotalBytes)), concurrency, describeLimit(limit, mode))

	p.printWarnings(plan.Warnings)
}

// PrintResult writes the per-file outcome line.
func (p Printer) PrintResult(result domain.TransferResult) {
	fmt.Fprintln(p.Writer, FormatResult(result))
	if p.Verbose && result.Attempts > 1 {
		fmt.Fprintf(p.Writer, "  %d attempts\n", result.Attempts)
	}
}

func (p Printer) PrintSummary(summary domain.Summary) {
	fmt.Fprintln(p.Writer)
	fmt.Fprintf(p.Writer, "Transferred %d of %d files, %d failed.\n", summary.Succeeded, summary.Total, summary.Failed)
	fmt.Fprintln(p.Writer, FormatSummaryLine(summary))
}

func (p Printer) PrintWarnings(warnings []string) {
	p.printWarnings(warnings)
}

func (p Printer) printWarnings(warnings []string) {
	if !p.Verbose || len(warnings) == 0 {
		return
	}
	fmt.Fprintln(p.Writer)
	fmt.Fprintln(p.Writer, "Warnings:")
	for _, warning := range warnings {
		fmt.Fprintln(p.Writer, "- "+warning)
	}
}

func FormatResult(result domain.TransferResult) string {
	elapsed := formatSeconds(result.Elapsed)
	if result.Succeeded() {
		return fmt.Sprintf("OK      %s  %s  (%s)", result.Job.Source, elapsed, FormatRate(result.Job.Bandwidth))
	}
	return fmt.Sprintf("FAILED  %s  %s  %s", result.Job.Source, elapsed, appErrors.UserMessage(result.Err))
}

func FormatSummaryLine(summary domain.Summary) string {
	return fmt.Sprintf("Total time elapsed for parallel transfers: %s - parallelism saved %s",
		formatSeconds(summary.Parallel), formatSeconds(summary.Saved))
}

// FormatRate renders a KB/s share; zero is unlimited.
func FormatRate(kbps int64) string {
	if kbps <= 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(kbps)*1024) + "/s"
}

func formatJobLines(jobs []domain.TransferJob) []string {
	lines := make([]string, 0, len(jobs))
	for _, job := range jobs {
		lines = append(lines, fmt.Sprintf("Send %s  %s", job.Source, humanize.Bytes(uint64(job.Size))))
	}

	if len(lines) <= 4 {
		return lines
	}
	head := lines[:2]
	tail := lines[len(lines)-2:]
	return append(append(head, "..."), tail...)
}

func describeLimit(limit int64, mode domain.BandwidthMode) string {
	if limit == 0 {
		return "no bandwidth limit"
	}
	if mode == domain.BandwidthPerFile {
		return fmt.Sprintf("%s per file", FormatRate(limit))
	}
	return fmt.Sprintf("%s shared", FormatRate(limit))
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2f seconds", d.Seconds())
}
