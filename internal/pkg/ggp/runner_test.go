package ggp

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	var out bytes.Buffer
	r := &ExecRunner{Stdout: &out, Stderr: &out}

	code, err := r.Run(context.Background(), []string{"sh", "-c", "echo hi; exit 7"})
	require.NoError(t, err)
	assert.Equal(t, 7, code)
	assert.Equal(t, "hi\n", out.String())

	code, err = r.Run(context.Background(), []string{"sh", "-c", "true"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := &ExecRunner{}
	_, err := r.Run(context.Background(), []string{"definitely-not-a-real-ggp-binary"})
	assert.Error(t, err)

	_, err = r.Run(context.Background(), nil)
	assert.Error(t, err)
}

// cancelledAfterExit reports cancellation without ever closing Done, as a
// context cancelled right after the child exited would look to Run.
type cancelledAfterExit struct {
	context.Context
}

func (cancelledAfterExit) Err() error { return context.Canceled }

func TestExecRunnerKeepsStatusAfterLateCancel(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := &ExecRunner{Stdout: io.Discard, Stderr: io.Discard}
	ctx := cancelledAfterExit{context.Background()}

	code, err := r.Run(ctx, []string{"sh", "-c", "exit 0"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = r.Run(ctx, []string{"sh", "-c", "exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestExecRunnerCancelKillsChild(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := &ExecRunner{Stdout: io.Discard, Stderr: io.Discard}
	code, err := r.Run(ctx, []string{"sleep", "10"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, code)
}
