package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrEmptyCommand indicates a run request with no command name.
var ErrEmptyCommand = errors.New("command: empty command")

// Config holds command execution limits.
type Config struct {
	// Timeout bounds a single command run. Default: 30s.
	Timeout time.Duration

	// MaxOutput caps captured stdout and stderr, each, in bytes.
	// Default: 1 MiB.
	MaxOutput int

	// WorkDir is the working directory for commands. Empty inherits the
	// process working directory.
	WorkDir string
}

// Result holds the outcome of a command run.
type Result struct {
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration"`
	Truncated bool          `json:"truncated"`
}

// Runner executes already-validated commands. Callers must pass the
// command through validation first; the runner applies only resource
// limits, never policy.
type Runner struct {
	config Config
}

// New creates a command runner.
func New(config Config) *Runner {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxOutput <= 0 {
		config.MaxOutput = 1 << 20
	}
	return &Runner{config: config}
}

// Run executes name with args and returns captured output. A non-zero
// exit code is reported in the Result, not as an error; errors mean the
// command could not be run at all or was cut short.
func (r *Runner) Run(ctx context.Context, name string, args []string) (Result, error) {
	if strings.TrimSpace(name) == "" {
		return Result{}, ErrEmptyCommand
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	if r.config.WorkDir != "" {
		cmd.Dir = r.config.WorkDir
	}

	stdout := &cappedBuffer{limit: r.config.MaxOutput}
	stderr := &cappedBuffer{limit: r.config.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  duration,
		Truncated: stdout.truncated || stderr.truncated,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("command %s timed out after %s: %w", name, r.config.Timeout, ctx.Err())
		}
		return result, fmt.Errorf("run %s: %w", name, err)
	}

	return result, nil
}

// cappedBuffer keeps at most limit bytes and records whether anything
// was dropped.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
