package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"parsync/internal/domain"
	appErrors "parsync/internal/errors"
	"parsync/internal/logging"
)

type Planner struct {
	FS     FileSystem
	Logger logging.Logger
	// WeightBySize gives larger files a proportionally larger bandwidth weight.
	WeightBySize bool
	// LargestFirst queues big files ahead of small ones so the tail of the
	// batch is not a single long transfer.
	LargestFirst bool
}

func (p *Planner) Plan(ctx context.Context, sources []string, destination string) (domain.TransferPlan, error) {
	if p.FS == nil {
		return domain.TransferPlan{}, errors.New("planner requires FS")
	}
	if len(sources) == 0 {
		return domain.TransferPlan{}, appErrors.New(appErrors.InvalidInput, "plan", "at least one source is required")
	}
	if destination == "" {
		return domain.TransferPlan{}, appErrors.New(appErrors.InvalidInput, "plan", "destination is required")
	}

	stop := p.Logger.Measure("Planning transfers")
	defer stop()

	plan := domain.TransferPlan{Destination: destination}
	seen := make(map[string]bool, len(sources))

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return domain.TransferPlan{}, err
		}
		cleaned := filepath.Clean(source)
		if seen[cleaned] {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("Duplicate source %s ignored", source))
			continue
		}
		seen[cleaned] = true

		var size int64
		info, err := p.FS.Stat(source)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("Source %s not found, its transfer will fail", source))
		case err != nil:
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("Cannot stat %s: %v", source, err))
		case info.IsDir():
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("Source %s is a directory and is transferred as a whole", source))
		default:
			size = info.Size()
		}

		plan.Jobs = append(plan.Jobs, domain.NewTransferJob(source, destination, size))
		plan.TotalBytes += size
	}

	if !domain.IsRemote(destination) {
		exists, err := p.FS.Exists(destination)
		if err != nil {
			return domain.TransferPlan{}, appErrors.Wrap(appErrors.IOFailure, "stat", destination, err)
		}
		if !exists {
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("Destination %s does not exist yet", destination))
		}
	}

	if p.WeightBySize {
		assignWeights(plan.Jobs)
	}
	if p.LargestFirst {
		sort.SliceStable(plan.Jobs, func(i, j int) bool {
			return plan.Jobs[i].Size > plan.Jobs[j].Size
		})
	}

	p.Logger.Verbosef("Planned %d transfers (%s) to %s, %d warnings", len(plan.Jobs), humanize.Bytes(uint64(plan.TotalBytes)), destination, len(plan.Warnings))
	return plan, nil
}

// assignWeights sets each job's weight to its size as a multiple of the
// smallest non-empty file. The allocator clamps weights to its slot count.
func assignWeights(jobs []domain.TransferJob) {
	var smallest int64
	for _, job := range jobs {
		if job.Size > 0 && (smallest == 0 || job.Size < smallest) {
			smallest = job.Size
		}
	}
	if smallest == 0 {
		return
	}
	for i := range jobs {
		weight := int(jobs[i].Size / smallest)
		if weight < 1 {
			weight = 1
		}
		jobs[i].Weight = weight
	}
}
