package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"parsync/internal/domain"
)

type Method string

const (
	MethodRsync Method = "rsync"
	MethodCopy  Method = "copy"
)

type Config struct {
	Sources        []string
	Destination    string
	BandwidthLimit int64
	Concurrency    int
	BandwidthMode  domain.BandwidthMode
	Timeout        time.Duration
	Retries        int
	RetryDelay     time.Duration
	Method         Method
	RsyncPath      string
	WeightBySize   bool
	LargestFirst   bool
	DryRun         bool
	Verbose        bool
	TUI            bool
}

// Flags are the raw command line options before Resolve validates them.
type Flags struct {
	Concurrency   int
	BandwidthMode string
	Timeout       time.Duration
	Retries       int
	RetryDelay    time.Duration
	Method        string
	RsyncPath     string
	WeightBySize  bool
	LargestFirst  bool
	DryRun        bool
	Verbose       bool
	TUI           bool

	set *pflag.FlagSet
}

func (f *Flags) Register(fs *pflag.FlagSet) {
	f.set = fs
	fs.IntVarP(&f.Concurrency, "concurrency", "c", 0, "Maximum parallel transfers (default: number of CPUs)")
	fs.StringVar(&f.BandwidthMode, "bandwidth-mode", string(domain.BandwidthAggregate), "How the limit applies: aggregate or per-file")
	fs.DurationVar(&f.Timeout, "timeout", 0, "Per-file transfer timeout, 0 disables it")
	fs.IntVar(&f.Retries, "retries", 0, "Retry a failed transfer up to this many times")
	fs.DurationVar(&f.RetryDelay, "retry-delay", 500*time.Millisecond, "Initial delay between retries")
	fs.StringVarP(&f.Method, "method", "m", string(MethodRsync), "Transfer method: rsync or copy")
	fs.StringVar(&f.RsyncPath, "rsync-path", "", "Path to the rsync binary")
	fs.BoolVar(&f.WeightBySize, "weight-by-size", false, "Give larger files a larger bandwidth share")
	fs.BoolVar(&f.LargestFirst, "largest-first", false, "Start the largest files first")
	fs.BoolVarP(&f.DryRun, "dry-run", "d", false, "Print the plan without transferring")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "Verbose output")
	fs.BoolVar(&f.TUI, "tui", false, "Interactive progress view")
}

// Resolve combines flags with the positional arguments
// <source>... <destination> <bandwidth-limit> and the environment.
func Resolve(flags Flags, args []string) (Config, error) {
	if len(args) < 3 {
		return Config{}, errors.New("expected at least one source, a destination and a bandwidth limit")
	}

	cfg := Config{
		Sources:      append([]string(nil), args[:len(args)-2]...),
		Destination:  args[len(args)-2],
		Concurrency:  flags.Concurrency,
		Timeout:      flags.Timeout,
		Retries:      flags.Retries,
		RetryDelay:   flags.RetryDelay,
		Method:       Method(strings.ToLower(flags.Method)),
		RsyncPath:    flags.RsyncPath,
		WeightBySize: flags.WeightBySize,
		LargestFirst: flags.LargestFirst,
		DryRun:       flags.DryRun,
		Verbose:      flags.Verbose,
		TUI:          flags.TUI,
	}

	limit, err := strconv.ParseInt(strings.TrimSpace(args[len(args)-1]), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid bandwidth limit %q, use an integer in KB/s", args[len(args)-1])
	}
	cfg.BandwidthLimit = limit

	if cfg.RsyncPath == "" {
		cfg.RsyncPath = envOrEmpty("PARSYNC_RSYNC_PATH")
	}
	// An explicit --concurrency 0 is left for Validate to reject.
	if cfg.Concurrency == 0 && !flags.changed("concurrency") {
		if value := envOrEmpty("PARSYNC_CONCURRENCY"); value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return Config{}, fmt.Errorf("invalid PARSYNC_CONCURRENCY %q", value)
			}
			cfg.Concurrency = parsed
		} else {
			cfg.Concurrency = runtime.NumCPU()
		}
	}
	if !cfg.Verbose {
		cfg.Verbose = envTruthy("PARSYNC_VERBOSE")
	}

	mode, ok := domain.ParseBandwidthMode(flags.BandwidthMode)
	if !ok {
		return Config{}, fmt.Errorf("invalid bandwidth mode %q, use aggregate or per-file", flags.BandwidthMode)
	}
	cfg.BandwidthMode = mode

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case len(c.Sources) == 0:
		return errors.New("at least one source is required")
	case c.Destination == "":
		return errors.New("destination is required")
	case c.BandwidthLimit < 0:
		return errors.New("bandwidth limit must not be negative")
	case c.Concurrency <= 0:
		return errors.New("concurrency must be positive")
	case c.Timeout < 0:
		return errors.New("timeout must not be negative")
	case c.Retries < 0:
		return errors.New("retries must not be negative")
	case c.Method != MethodRsync && c.Method != MethodCopy:
		return fmt.Errorf("invalid method %q, use rsync or copy", c.Method)
	case c.Method == MethodCopy && domain.IsRemote(c.Destination):
		return errors.New("the copy method only supports local destinations")
	}
	return nil
}

func (f Flags) changed(name string) bool {
	return f.set != nil && f.set.Changed(name)
}

func envOrEmpty(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envTruthy(key string) bool {
	val := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	return val == "1" || val == "true" || val == "yes" || val == "y"
}
