package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"parsync/internal/app"
	"parsync/internal/config"
	"parsync/internal/domain"
	appErrors "parsync/internal/errors"
	"parsync/internal/infra/fs"
	"parsync/internal/infra/rsync"
	"parsync/internal/logging"
	"parsync/internal/presentation"
	"parsync/internal/tui"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, code := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, appErrors.UserMessage(err))
		if appErrors.IsKind(err, appErrors.InvalidConfig) {
			fmt.Fprint(stderr, cmd.UsageString())
			return exitUsage
		}
		return exitFailure
	}
	return *code
}

func newRootCommand(stdout, stderr io.Writer) (*cobra.Command, *int) {
	var flags config.Flags
	code := exitOK

	cmd := &cobra.Command{
		Use:   "parsync [flags] <source>... <destination> <bandwidth-limit>",
		Short: "Send files to one destination in parallel under a shared bandwidth limit",
		Long: "parsync transfers each source file with its own rsync process, running at most\n" +
			"--concurrency of them at once. The bandwidth limit is in KB/s; 0 means unlimited.",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(3)(cmd, args); err != nil {
				return appErrors.Wrap(appErrors.InvalidConfig, "args", "", err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(flags, args)
			if err != nil {
				return appErrors.Wrap(appErrors.InvalidConfig, "config", "", err)
			}
			code, err = run(cmd.Context(), cfg, stdout, stderr)
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return appErrors.Wrap(appErrors.InvalidConfig, "flags", "", err)
	})
	flags.Register(cmd.Flags())

	return cmd, &code
}

func run(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) (int, error) {
	logger := logging.New(stderr, cfg.Verbose)
	filesystem := fs.OSFS{}

	planner := app.Planner{
		FS:           filesystem,
		Logger:       logger,
		WeightBySize: cfg.WeightBySize,
		LargestFirst: cfg.LargestFirst,
	}
	plan, err := planner.Plan(ctx, cfg.Sources, cfg.Destination)
	if err != nil {
		return exitFailure, appErrors.Wrap(appErrors.KindOf(err), "plan", cfg.Destination, err)
	}

	printer := presentation.Printer{
		Writer:  stdout,
		Verbose: cfg.Verbose,
	}

	if cfg.DryRun {
		printer.PrintDryRun(plan, cfg.Concurrency, cfg.BandwidthLimit, cfg.BandwidthMode)
		return exitOK, nil
	}

	transferer, err := newTransferer(cfg, stderr)
	if err != nil {
		return exitFailure, err
	}

	opts := app.Options{
		MaxConcurrency: cfg.Concurrency,
		TotalBandwidth: cfg.BandwidthLimit,
		Mode:           cfg.BandwidthMode,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.Retries,
		RetryDelay:     cfg.RetryDelay,
	}
	scheduler := &app.Scheduler{Transferer: transferer, Logger: logger}

	var (
		report *app.Report
		runErr error
	)
	if cfg.TUI {
		report, runErr = runWithTUI(ctx, scheduler, plan, opts, cfg)
	} else {
		scheduler.OnEvent = func(event app.Event) {
			if event.Type == app.EventCompleted {
				printer.PrintResult(event.Result)
			}
		}
		report, runErr = scheduler.Run(ctx, plan.Jobs, opts)
	}
	if report == nil {
		return exitFailure, runErr
	}

	summary := report.Finalize()
	printer.PrintSummary(summary)
	printer.PrintWarnings(plan.Warnings)

	if runErr != nil {
		return exitFailure, appErrors.Wrap(appErrors.Canceled, "transfer", "", runErr)
	}
	if !summary.AllSucceeded() {
		return exitFailure, appErrors.New(appErrors.TransferFailed, "transfer", fmt.Sprintf("%d of %d files failed", summary.Failed, summary.Total))
	}
	return exitOK, nil
}

func newTransferer(cfg config.Config, stderr io.Writer) (app.Transferer, error) {
	if cfg.Method == config.MethodCopy {
		return fs.Copier{}, nil
	}
	if !rsync.Available(cfg.RsyncPath) {
		path := cfg.RsyncPath
		if path == "" {
			path = rsync.DefaultPath
		}
		return nil, appErrors.Wrap(appErrors.NotFound, "lookup", path, fmt.Errorf("rsync not found, use --method copy for local destinations"))
	}
	t := rsync.Transferer{Path: cfg.RsyncPath}
	if cfg.Verbose && !cfg.TUI {
		t.Output = stderr
	}
	return t, nil
}

func runWithTUI(ctx context.Context, scheduler *app.Scheduler, plan domain.TransferPlan, opts app.Options, cfg config.Config) (*app.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewModel(tui.Config{
		Destination:    plan.Destination,
		Total:          len(plan.Jobs),
		BandwidthLimit: cfg.BandwidthLimit,
		Concurrency:    cfg.Concurrency,
		Verbose:        cfg.Verbose,
		Cancel:         cancel,
	})
	program := tea.NewProgram(model)

	scheduler.OnEvent = func(event app.Event) {
		switch event.Type {
		case app.EventDispatched:
			program.Send(tui.JobStartedMsg{Job: event.Job})
		case app.EventCompleted:
			program.Send(tui.JobFinishedMsg{Result: event.Result, Completed: event.Completed, Total: event.Total})
		}
	}

	type outcome struct {
		report *app.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := scheduler.Run(ctx, plan.Jobs, opts)
		if report == nil {
			program.Send(tui.ErrorMsg{Err: err})
		} else {
			program.Send(tui.RunDoneMsg{Summary: report.Finalize(), Err: err})
		}
		done <- outcome{report: report, err: err}
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		result := <-done
		return result.report, appErrors.Wrap(appErrors.Internal, "tui", "", err)
	}
	result := <-done
	return result.report, result.err
}
