package deps

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"time"

	"github.com/maxritter/codepro/pkg/errors"
	"github.com/maxritter/codepro/pkg/logging"
)

const (
	maxRetries = 3
	retryDelay = 2 * time.Second
)

var ansiEscapePattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\].*?\x07`)

func stripANSI(s string) string {
	return ansiEscapePattern.ReplaceAllString(s, "")
}

// Runner executes vendor installer shell commands. Implementations block
// until the subprocess exits; transient failures are retried a fixed
// number of times with a fixed delay before returning failure.
type Runner interface {
	// RunShell runs command through bash -c in dir ("" for inherited cwd)
	RunShell(ctx context.Context, command, dir string) error

	// RunShellStreaming runs command and delivers each stdout/stderr line
	// to onLine as it is produced, without retry
	RunShellStreaming(ctx context.Context, command, dir string, onLine func(string)) error
}

// NewRunner returns the bash-backed runner used in production
func NewRunner() Runner {
	return &execRunner{}
}

type execRunner struct{}

func (r *execRunner) RunShell(ctx context.Context, command, dir string) error {
	logger := logging.GetLogger("deps.runner")

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		cmd := exec.CommandContext(ctx, "bash", "-c", command)
		cmd.Dir = dir

		output, err := cmd.CombinedOutput()
		if err == nil {
			return nil
		}
		lastErr = err

		logger.Debug().
			Str("command", command).
			Int("attempt", attempt).
			Err(err).
			Str("output", stripANSI(string(output))).
			Msg("Shell command failed")

		if ctx.Err() != nil {
			break
		}
		if attempt < maxRetries {
			time.Sleep(retryDelay)
		}
	}

	return errors.Wrapf(lastErr, errors.ErrSubprocessFailed, "command failed after %d attempts: %s", maxRetries, command)
}

func (r *execRunner) RunShellStreaming(ctx context.Context, command, dir string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, errors.ErrSubprocessFailed, "failed to open stdout pipe")
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, errors.ErrSubprocessFailed, "failed to start command: %s", command)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := stripANSI(scanner.Text())
		if line != "" && onLine != nil {
			onLine(line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return errors.Wrapf(err, errors.ErrSubprocessFailed, "command failed: %s", command)
	}
	return nil
}
