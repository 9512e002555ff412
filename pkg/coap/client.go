// Package coap drives an external CoAP-over-DTLS client (coap-client from
// libcoap) and classifies its output. Requests are described by
// RequestOptions and rendered as command-line flags; the structured stdout
// stream and the diagnostic stderr stream are folded into a single Outcome.
package coap

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultCommand is the transport binary looked up in PATH.
	DefaultCommand = "coap-client"
	// DefaultTimeout bounds a single transport invocation.
	DefaultTimeout = 10 * time.Second
)

// Client executes requests through a Runner. The zero value is not usable;
// create one with NewClient.
type Client struct {
	Command string
	Timeout time.Duration // Zero disables the per-request timeout.

	runner Runner
	log    *slog.Logger
}

// NewClient creates a Client that runs command through runner. A nil runner
// selects ExecRunner and a nil logger discards output.
func NewClient(command string, runner Runner, log *slog.Logger) *Client {
	if command == "" {
		command = DefaultCommand
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Client{
		Command: command,
		Timeout: DefaultTimeout,
		runner:  runner,
		log:     log,
	}
}

// Request sends one request to endpoint and classifies the result. The
// returned error is always a *TransportError; rejections by the gateway are
// reported through the Outcome instead.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (Outcome, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	id := uuid.NewString()
	method := "-"
	if opts.method != nil {
		method = *opts.method
	}

	c.log.DebugContext(ctx, "coap request", "request_id", id, "method", method, "endpoint", endpoint)
	start := time.Now()

	stdout, stderr, err := c.runner.Run(ctx, c.Command, opts.Args(endpoint))
	if err != nil {
		c.log.DebugContext(ctx, "coap transport failed", "request_id", id, "error", err)
		return Outcome{}, &TransportError{Op: "run " + c.Command, Err: err}
	}

	out, err := Classify(stdout, stderr)
	if err != nil {
		return Outcome{}, err
	}

	c.log.DebugContext(ctx, "coap response",
		"request_id", id,
		"ok", out.IsOK(),
		"duration", time.Since(start),
	)

	return out, nil
}

// Classify folds the transport's two output streams into an Outcome.
//
// A non-empty stdout must hold a JSON document and yields a success. With an
// empty stdout, stderr is split on newlines: more than two lines means the
// second line is a dotted status code and the request failed; two or fewer
// lines is an acknowledgement without payload and yields Success({}).
func Classify(stdout, stderr []byte) (Outcome, error) {
	if len(stdout) > 0 {
		if !utf8.Valid(stdout) {
			return Outcome{}, &TransportError{Op: "read stdout", Err: errors.New("output is not valid UTF-8")}
		}

		var data json.RawMessage
		if err := json.Unmarshal(stdout, &data); err != nil {
			return Outcome{}, &TransportError{Op: "decode payload", Err: err}
		}

		return Success(data), nil
	}

	if !utf8.Valid(stderr) {
		return Outcome{}, &TransportError{Op: "read stderr", Err: errors.New("output is not valid UTF-8")}
	}

	lines := strings.Split(string(stderr), "\n")
	if len(lines) <= 2 {
		return Success(emptyObject), nil
	}

	code := strings.ReplaceAll(strings.TrimSpace(lines[1]), ".", "")

	return Failure(code, StatusMessage(code)), nil
}
