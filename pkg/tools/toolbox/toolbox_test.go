package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, input json.RawMessage) (string, error) {
	return string(input), nil
}

func errorHandler(_ context.Context, _ json.RawMessage) (string, error) {
	return "", errors.New("tool failed")
}

func newEchoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "Echoes input",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     echoHandler,
	}
}

func TestNew(t *testing.T) {
	tb := New()
	assert.NotNil(t, tb)
	assert.Empty(t, tb.Tools())
}

func TestRegisterAndGet(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("echo"))

	got, ok := tb.Get("echo")
	assert.True(t, ok)
	assert.Equal(t, "echo", got.Name)

	_, ok = tb.Get("missing")
	assert.False(t, ok)
}

func TestToolsSorted(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("c"), newEchoTool("a"), newEchoTool("b"))

	var names []string
	for _, tool := range tb.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestRegisterReplaces(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("x"))

	replaced := newEchoTool("x")
	replaced.Description = "v2"
	tb.Register(replaced)

	require.Len(t, tb.Tools(), 1)
	got, _ := tb.Get("x")
	assert.Equal(t, "v2", got.Description)
}

func TestCall(t *testing.T) {
	tb := New()
	tb.Register(newEchoTool("echo"), Tool{Name: "fail", Handler: errorHandler})

	out, err := tb.Call(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, out)

	out, err = tb.Call(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", out)

	_, err = tb.Call(context.Background(), "fail", nil)
	assert.EqualError(t, err, "tool failed")

	_, err = tb.Call(context.Background(), "missing", nil)
	assert.ErrorContains(t, err, "missing")
}
