package coap

import (
	"encoding/json"
	"fmt"
)

// emptyObject is the payload of acknowledgement-only responses.
var emptyObject = json.RawMessage(`{}`)

// Outcome is the classified result of a single request: either a success
// carrying a JSON payload, or a protocol error reported by the gateway.
type Outcome struct {
	ok      bool
	data    json.RawMessage
	code    string
	message string
}

// Success returns a successful Outcome carrying data.
func Success(data json.RawMessage) Outcome {
	return Outcome{ok: true, data: data}
}

// Failure returns a failed Outcome for the given status code and message.
func Failure(code, message string) Outcome {
	return Outcome{code: code, message: message}
}

// IsOK reports whether the gateway accepted the request.
func (o Outcome) IsOK() bool { return o.ok }

// Data returns the response payload, or an empty JSON object for a failure.
func (o Outcome) Data() json.RawMessage {
	if !o.ok || len(o.data) == 0 {
		return emptyObject
	}

	return o.data
}

// Err converts a failure into a *ProtocolError. It returns nil for a success.
func (o Outcome) Err() error {
	if o.ok {
		return nil
	}

	return &ProtocolError{Code: o.code, Message: o.message}
}

func (o Outcome) String() string {
	if o.ok {
		return fmt.Sprintf("Success(%s)", o.Data())
	}

	return fmt.Sprintf("Error(%q)", o.message)
}

// ProtocolError means the gateway rejected the request.
type ProtocolError struct {
	Code    string // Status code with the dot removed, e.g. "404".
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// TransportError means the gateway could not be reached or its output could
// not be read.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("coap: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// statusMessages maps status codes to human readable messages. Codes not
// listed fall back to defaultStatusMessage.
var statusMessages = map[string]string{
	"400": "Bad request.",
}

const defaultStatusMessage = "Bad request."

// StatusMessage returns the message for a dotless status code.
func StatusMessage(code string) string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}

	return defaultStatusMessage
}
