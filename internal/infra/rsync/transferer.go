package rsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const DefaultPath = "rsync"

// DefaultFlags are archive mode plus compression.
var DefaultFlags = []string{"-az"}

// waitDelay bounds how long Run waits for output pipes after the process
// has been killed.
const waitDelay = 5 * time.Second

// Transferer runs one rsync process per transfer.
type Transferer struct {
	Path  string
	Flags []string
	// Output additionally receives rsync's stdout and stderr.
	Output io.Writer
}

// ExitError is a non-zero rsync exit together with whatever it printed.
// Signal is set when rsync was killed by a signal, in which case Code is -1.
type ExitError struct {
	Code   int
	Signal string
	Output string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("rsync exited with status %d", e.Code)
	if e.Signal != "" {
		msg = "rsync killed by signal: " + e.Signal
	}
	if line := lastLine(e.Output); line != "" {
		msg += ": " + line
	}
	return msg
}

func (t Transferer) Transfer(ctx context.Context, source, destination string, kbps int64) error {
	path := t.Path
	if path == "" {
		path = DefaultPath
	}

	cmd := exec.CommandContext(ctx, path, Args(t.Flags, source, destination, kbps)...)
	cmd.WaitDelay = waitDelay
	// rsync runs in its own process group so a terminal Ctrl-C reaches only
	// parsync, which lets in-flight transfers finish.
	detach(cmd)

	var combined bytes.Buffer
	var out io.Writer = &combined
	if t.Output != nil {
		out = io.MultiWriter(&combined, t.Output)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("rsync terminated: %w", ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode(), Signal: signalName(exitErr), Output: combined.String()}
	}
	return fmt.Errorf("launch %s: %w", path, err)
}

// Args builds the rsync argument list. The bandwidth limit is always passed,
// with zero meaning unlimited as rsync itself defines it.
func Args(flags []string, source, destination string, kbps int64) []string {
	if flags == nil {
		flags = DefaultFlags
	}
	args := make([]string, 0, len(flags)+3)
	args = append(args, flags...)
	args = append(args, "--bwlimit="+strconv.FormatInt(kbps, 10), source, destination)
	return args
}

// Available reports whether the rsync binary can be found.
func Available(path string) bool {
	if path == "" {
		path = DefaultPath
	}
	_, err := exec.LookPath(path)
	return err == nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
