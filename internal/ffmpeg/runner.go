package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ExecRunner spawns real ffmpeg processes and streams their stderr output
// line by line to a callback. It satisfies the process runner contract of
// the transcode orchestrator.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run spawns the process and blocks until it exits. Each stderr line is
// delivered to onLine before Run returns. A non-zero exit is reported as an
// error carrying the exit code.
func (r *ExecRunner) Run(ctx context.Context, bin string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, bin, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("getting stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", bin, err)
	}

	scanner := bufio.NewScanner(stderr)
	// ffmpeg emits stats as carriage-return updates on one line; split on
	// CR as well so each update is seen individually.
	scanner.Split(scanCRLines)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d", bin, exitErr.ExitCode())
		}
		return fmt.Errorf("waiting for %s: %w", bin, err)
	}
	return nil
}

// scanCRLines is a bufio.SplitFunc that treats both \n and \r as line
// terminators.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
