// Package devicetools exposes gateway device operations as toolbox tools.
package devicetools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/germanamz/tradfri/pkg/device"
	"github.com/germanamz/tradfri/pkg/tools/toolbox"
)

// Gateway is the subset of *gateway.Gateway the tools need.
type Gateway interface {
	device.StateSetter
	Device(ctx context.Context, id uint64) (*device.Device, error)
	Devices(ctx context.Context, concurrency int) ([]*device.Device, error)
}

// View is the JSON shape returned for a device.
type View struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Power       string `json:"power"`
	Temperature string `json:"temperature"`
}

// NewView summarizes d.
func NewView(d *device.Device) View {
	return View{
		ID:          d.ID,
		Name:        d.Name,
		Power:       d.Bulb.Power.String(),
		Temperature: d.Bulb.Temperature.String(),
	}
}

// Tools provides the device tools for one gateway session.
type Tools struct {
	gw          Gateway
	concurrency int
}

// New creates Tools backed by gw. concurrency bounds parallel fetches when
// listing devices.
func New(gw Gateway, concurrency int) *Tools {
	return &Tools{gw: gw, concurrency: concurrency}
}

// Tools returns a ToolBox with the device tools.
func (t *Tools) Tools() *toolbox.ToolBox {
	tb := toolbox.New()

	idSchema := json.RawMessage(`{"type":"object","properties":{"id":{"type":"integer","minimum":0,"description":"Device ID"}},"required":["id"]}`)

	tb.Register(
		toolbox.Tool{
			Name:        "list_devices",
			Description: "List every bulb paired with the gateway with its power state and color temperature.",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     t.handleList,
		},
		toolbox.Tool{
			Name:        "get_device",
			Description: "Get the current state of a bulb by ID.",
			InputSchema: idSchema,
			Handler:     t.handleGet,
		},
		toolbox.Tool{
			Name:        "turn_on",
			Description: "Switch a bulb on, keeping its color temperature.",
			InputSchema: idSchema,
			Handler:     t.powerHandler(true),
		},
		toolbox.Tool{
			Name:        "turn_off",
			Description: "Switch a bulb off, keeping its color temperature.",
			InputSchema: idSchema,
			Handler:     t.powerHandler(false),
		},
		toolbox.Tool{
			Name:        "set_temperature",
			Description: "Set the color temperature of a bulb to white, warm or glow.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"id":{"type":"integer","minimum":0},"temperature":{"type":"string","enum":["white","warm","glow"]}},"required":["id","temperature"]}`),
			Handler:     t.handleTemperature,
		},
	)

	return tb
}

type idInput struct {
	ID *uint64 `json:"id"`
}

type temperatureInput struct {
	ID          *uint64 `json:"id"`
	Temperature string  `json:"temperature"`
}

func decodeID(input json.RawMessage) (uint64, error) {
	var in idInput
	if err := json.Unmarshal(input, &in); err != nil {
		return 0, fmt.Errorf("invalid input: %w", err)
	}
	if in.ID == nil {
		return 0, errors.New("id is required")
	}
	return *in.ID, nil
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(b), nil
}

func (t *Tools) handleList(ctx context.Context, _ json.RawMessage) (string, error) {
	devices, err := t.gw.Devices(ctx, t.concurrency)
	if err != nil {
		return "", err
	}

	views := make([]View, 0, len(devices))
	for _, d := range devices {
		views = append(views, NewView(d))
	}

	return encode(views)
}

func (t *Tools) handleGet(ctx context.Context, input json.RawMessage) (string, error) {
	id, err := decodeID(input)
	if err != nil {
		return "", err
	}

	d, err := t.gw.Device(ctx, id)
	if err != nil {
		return "", err
	}

	return encode(NewView(d))
}

func (t *Tools) powerHandler(on bool) toolbox.Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		id, err := decodeID(input)
		if err != nil {
			return "", err
		}

		d, err := t.gw.Device(ctx, id)
		if err != nil {
			return "", err
		}

		if on {
			err = d.TurnOn(ctx, t.gw)
		} else {
			err = d.TurnOff(ctx, t.gw)
		}
		if err != nil {
			return "", err
		}

		return encode(NewView(d))
	}
}

func (t *Tools) handleTemperature(ctx context.Context, input json.RawMessage) (string, error) {
	var in temperatureInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if in.ID == nil {
		return "", errors.New("id is required")
	}

	temp, err := device.ParseTemperature(in.Temperature)
	if err != nil {
		return "", err
	}

	d, err := t.gw.Device(ctx, *in.ID)
	if err != nil {
		return "", err
	}

	if err := d.SetTemperature(ctx, t.gw, temp); err != nil {
		return "", err
	}

	return encode(NewView(d))
}
