// Package device models a bulb-like gateway device and the mutations that can
// be pushed back to it. A Device is a snapshot; it holds no reference to the
// session it was fetched from, so mutations take a StateSetter explicitly.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Device attribute keys.
const (
	keyID    = "9003"
	keyName  = "9001"
	KeyLight = "3311"
)

// ErrDecode is wrapped by every error caused by a malformed device payload.
var ErrDecode = errors.New("device: malformed payload")

// StateSetter pushes a new attribute payload for a device.
type StateSetter interface {
	SetDeviceState(ctx context.Context, id uint64, payload any) error
}

// Device is a light bulb as reported by the gateway.
type Device struct {
	ID   uint64
	Name string
	Bulb Bulb
}

type wireDevice struct {
	ID     *uint64           `json:"9003"`
	Name   *string           `json:"9001"`
	Lights []json.RawMessage `json:"3311"`
}

// Decode parses a device representation. Errors wrap ErrDecode.
func Decode(data []byte) (*Device, error) {
	var d Device
	if err := json.Unmarshal(data, &d); err != nil {
		if errors.Is(err, ErrDecode) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return &d, nil
}

func (d *Device) UnmarshalJSON(data []byte) error {
	var w wireDevice
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	switch {
	case w.ID == nil:
		return fmt.Errorf("%w: missing %q", ErrDecode, keyID)
	case w.Name == nil:
		return fmt.Errorf("%w: missing %q", ErrDecode, keyName)
	case len(w.Lights) == 0:
		return fmt.Errorf("%w: missing %q entries", ErrDecode, KeyLight)
	}

	var bulb Bulb
	if err := json.Unmarshal(w.Lights[0], &bulb); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	*d = Device{ID: *w.ID, Name: *w.Name, Bulb: bulb}

	return nil
}

func (d Device) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		keyID:    d.ID,
		keyName:  d.Name,
		KeyLight: []Bulb{d.Bulb},
	})
}

// TurnOn switches the bulb on, keeping every other attribute.
func (d *Device) TurnOn(ctx context.Context, s StateSetter) error {
	return d.apply(ctx, s, d.Bulb.with(func(b *Bulb) { b.Power = On }))
}

// TurnOff switches the bulb off, keeping every other attribute.
func (d *Device) TurnOff(ctx context.Context, s StateSetter) error {
	return d.apply(ctx, s, d.Bulb.with(func(b *Bulb) { b.Power = Off }))
}

// SetTemperature changes the color temperature, keeping every other
// attribute.
func (d *Device) SetTemperature(ctx context.Context, s StateSetter, t Temperature) error {
	if _, ok := temperatureCodes[t]; !ok {
		return fmt.Errorf("device: unknown temperature %d", int(t))
	}
	return d.apply(ctx, s, d.Bulb.with(func(b *Bulb) { b.Temperature = t }))
}

// LightPayload wraps a bulb object in the single-element collection the
// gateway expects for the light attribute family.
func LightPayload(b Bulb) map[string][]Bulb {
	return map[string][]Bulb{KeyLight: {b}}
}

// apply pushes the full bulb object and updates the local snapshot only when
// the gateway accepted it.
func (d *Device) apply(ctx context.Context, s StateSetter, b Bulb) error {
	if s == nil {
		return errors.New("device: nil state setter")
	}

	if err := s.SetDeviceState(ctx, d.ID, LightPayload(b)); err != nil {
		return err
	}

	d.Bulb = b

	return nil
}
