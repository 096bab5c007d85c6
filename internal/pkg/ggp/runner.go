package ggp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Runner executes an argument vector and reports the exit code of the
// spawned process. A non-nil error means the process could not be run at
// all; a non-zero exit is not an error.
type Runner interface {
	Run(ctx context.Context, argv []string) (int, error)
}

// ExecRunner runs commands on the local machine. Nil streams fall back to
// the current process's stdio.
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (r *ExecRunner) Run(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return -1, errors.New("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = r.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	// A process that exited on its own keeps its status even if ctx was
	// cancelled after the fact; a killed one reports the cancellation.
	var exitErr *exec.ExitError
	isExit := errors.As(err, &exitErr)
	if isExit && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode(), nil
	}
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}
	if isExit {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("run %s: %w", argv[0], err)
}

// LookPath resolves bin on the local PATH.
func (r *ExecRunner) LookPath(_ context.Context, bin string) (string, error) {
	return exec.LookPath(bin)
}
