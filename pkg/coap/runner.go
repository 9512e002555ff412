package coap

import (
	"bytes"
	"context"
	"errors"
	osexec "os/exec"
	"time"
)

// DefaultWaitDelay bounds how long Run waits for the output streams to close
// after the transport exits or is killed.
const DefaultWaitDelay = 500 * time.Millisecond

// Runner invokes the external transport and returns its two output streams.
// A non-nil error means the transport could not be run at all; a transport
// that ran and exited with a failure status is not an error.
type Runner interface {
	Run(ctx context.Context, name string, args []string) (stdout, stderr []byte, err error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, name string, args []string) ([]byte, []byte, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	return f(ctx, name, args)
}

// ExecRunner runs the transport as a subprocess.
type ExecRunner struct {
	// WaitDelay is passed to exec.Cmd.WaitDelay. Zero means DefaultWaitDelay.
	WaitDelay time.Duration
}

// Run executes name with args and captures stdout and stderr separately.
func (r ExecRunner) Run(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	cmd := osexec.CommandContext(ctx, name, args...) //nolint:gosec // command comes from configuration

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// A child left behind by the transport can hold the pipes open.
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, nil, ctxErr
	}

	// coap-client reports rejected requests on stderr and may exit non-zero;
	// the output still needs classifying.
	var exitErr *osexec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, osexec.ErrWaitDelay) {
		return nil, nil, err
	}

	return stdout.Bytes(), stderr.Bytes(), nil
}
