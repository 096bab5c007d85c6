package ssh

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kballard/go-shellquote"

	"ggp-deploy/internal/pkg/logger"
)

// Runner executes ggp on a build host over SSH. It satisfies the same
// contract as the local runner: argv in, exit code out.
type Runner struct {
	client *Client
	log    *logger.Logger

	Stdout io.Writer
	Stderr io.Writer
}

func NewRunner(client *Client, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{client: client, log: log, Stdout: os.Stdout, Stderr: os.Stderr}
}

// RemoteCommand quotes argv into a single POSIX shell command line.
func RemoteCommand(argv []string) string {
	return shellquote.Join(argv...)
}

func (r *Runner) Run(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return -1, fmt.Errorf("empty command")
	}
	r.log.CommandIssued(r.client.Addr(), argv)
	return r.client.Stream(ctx, RemoteCommand(argv), r.Stdout, r.Stderr)
}

// Exists reports whether p exists on the build host.
func (r *Runner) Exists(_ context.Context, p string) (bool, error) {
	res, err := r.client.ExecuteCommand("test -e " + shellquote.Join(p))
	if err == nil {
		return true, nil
	}
	if res != nil && res.ExitCode == 1 {
		return false, nil
	}
	return false, err
}

// LookPath resolves bin on the build host's PATH.
func (r *Runner) LookPath(_ context.Context, bin string) (string, error) {
	res, err := r.client.ExecuteCommand("command -v " + shellquote.Join(bin))
	if err != nil {
		return "", fmt.Errorf("%s not found on %s: %w", bin, r.client.Addr(), err)
	}
	return res.Stdout, nil
}
