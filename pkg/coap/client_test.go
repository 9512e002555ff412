package coap

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	name string
	args []string
}

func fakeRunner(stdout, stderr string, err error, calls *[]recordedCall) Runner {
	return RunnerFunc(func(_ context.Context, name string, args []string) ([]byte, []byte, error) {
		if calls != nil {
			*calls = append(*calls, recordedCall{name: name, args: args})
		}
		return []byte(stdout), []byte(stderr), err
	})
}

func TestClassifyStructuredOutput(t *testing.T) {
	out, err := Classify([]byte(`{"a":1}`), nil)
	require.NoError(t, err)

	assert.True(t, out.IsOK())
	assert.JSONEq(t, `{"a":1}`, string(out.Data()))
	assert.NoError(t, out.Err())
}

func TestClassifyStructuredOutputIgnoresDiagnostics(t *testing.T) {
	out, err := Classify([]byte(`[1,2]`), []byte("v:1 t:CON c:GET i:1\n4.04\n\n"))
	require.NoError(t, err)

	assert.True(t, out.IsOK())
	assert.JSONEq(t, `[1,2]`, string(out.Data()))
}

func TestClassifyMalformedPayloadIsTransportError(t *testing.T) {
	_, err := Classify([]byte(`{"a":`), nil)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "decode payload", te.Op)
}

func TestClassifyInvalidUTF8(t *testing.T) {
	_, err := Classify([]byte{0xff, 0xfe}, nil)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "read stdout", te.Op)

	_, err = Classify(nil, []byte{0xff, '\n', 0xfe, '\n'})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "read stderr", te.Op)
}

func TestClassifyStatusCode(t *testing.T) {
	out, err := Classify(nil, []byte("v:1 t:ACK c:4.04 i:1\n4.04\n"))
	require.NoError(t, err)

	assert.False(t, out.IsOK())
	assert.JSONEq(t, `{}`, string(out.Data()))

	var pe *ProtocolError
	require.ErrorAs(t, out.Err(), &pe)
	assert.Equal(t, "404", pe.Code)
	assert.Equal(t, "Bad request.", pe.Message)
	assert.Equal(t, `Error("Bad request.")`, out.String())
}

func TestClassifyKnownStatusCode(t *testing.T) {
	out, err := Classify(nil, []byte("header\n4.00\ntrailer"))
	require.NoError(t, err)

	var pe *ProtocolError
	require.ErrorAs(t, out.Err(), &pe)
	assert.Equal(t, "400", pe.Code)
	assert.Equal(t, "Bad request.", pe.Message)
}

func TestClassifyShortDiagnosticsIsEmptySuccess(t *testing.T) {
	for _, stderr := range []string{"", "one line", "line\n", "a\nb"} {
		out, err := Classify(nil, []byte(stderr))
		require.NoError(t, err, stderr)

		assert.True(t, out.IsOK(), stderr)
		assert.JSONEq(t, `{}`, string(out.Data()), stderr)
	}
}

func TestOutcomeDataDefaultsToEmptyObject(t *testing.T) {
	assert.JSONEq(t, `{}`, string(Success(nil).Data()))
	assert.JSONEq(t, `{}`, string(Failure("500", "boom").Data()))
	assert.Equal(t, `Success({"x":true})`, Success(json.RawMessage(`{"x":true}`)).String())
}

func TestRequestPassesArgsInOrder(t *testing.T) {
	var calls []recordedCall
	c := NewClient("", fakeRunner(`{"ok":true}`, "", nil, &calls), nil)

	out, err := c.Request(context.Background(), "coaps://gw:5684/15001",
		Build().Method(GET).User("me").Key("psk"))
	require.NoError(t, err)
	assert.True(t, out.IsOK())

	require.Len(t, calls, 1)
	assert.Equal(t, DefaultCommand, calls[0].name)
	assert.Equal(t, []string{"-m", "get", "-u", "me", "-k", "psk", "coaps://gw:5684/15001"}, calls[0].args)
}

func TestRequestRunnerFailureIsTransportError(t *testing.T) {
	boom := errors.New("exec: not found")
	c := NewClient("coap-client", fakeRunner("", "", boom, nil), nil)

	_, err := c.Request(context.Background(), "coaps://gw", Build())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, boom)
}

func TestRequestTimeout(t *testing.T) {
	slow := RunnerFunc(func(ctx context.Context, _ string, _ []string) ([]byte, []byte, error) {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	})

	c := NewClient("", slow, nil)
	c.Timeout = 10 * time.Millisecond

	_, err := c.Request(context.Background(), "coaps://gw", Build())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// writeScript creates an executable shell script standing in for coap-client.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}

	path := filepath.Join(t.TempDir(), "coap-client")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700)) //nolint:gosec // test script

	return path
}

func TestExecRunnerSeparatesStreams(t *testing.T) {
	script := writeScript(t, "echo '{\"9091\":\"abc\"}'\necho diag >&2\n")

	stdout, stderr, err := ExecRunner{}.Run(context.Background(), script, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"9091":"abc"}`, string(stdout))
	assert.Equal(t, "diag\n", string(stderr))
}

func TestExecRunnerToleratesExitStatus(t *testing.T) {
	script := writeScript(t, "printf 'v:1\\n4.01\\n\\n' >&2\nexit 1\n")

	c := NewClient(script, ExecRunner{}, nil)
	out, err := c.Request(context.Background(), "coaps://gw", Build().Method(GET))
	require.NoError(t, err)

	var pe *ProtocolError
	require.ErrorAs(t, out.Err(), &pe)
	assert.Equal(t, "401", pe.Code)
}

func TestExecRunnerDeadlineWithLingeringChild(t *testing.T) {
	script := writeScript(t, "sleep 5 &\nsleep 5\n")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := ExecRunner{WaitDelay: 100 * time.Millisecond}.Run(ctx, script, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestExecRunnerReturnsOutputWithLingeringChild(t *testing.T) {
	script := writeScript(t, "echo '{}'\nsleep 5 &\n")

	start := time.Now()
	stdout, _, err := ExecRunner{WaitDelay: 100 * time.Millisecond}.Run(context.Background(), script, nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(stdout))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, _, err := ExecRunner{}.Run(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}
