package device

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Bulb attribute keys.
const (
	keyPower       = "5850"
	keyTemperature = "5706"
)

// Power is the on/off state of a bulb.
type Power int

const (
	Off Power = 0
	On  Power = 1
)

func (p Power) String() string {
	if p == On {
		return "on"
	}
	return "off"
}

func (p *Power) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("power: %w", err)
	}

	switch Power(n) {
	case Off, On:
		*p = Power(n)
		return nil
	default:
		return fmt.Errorf("power: unknown value %d", n)
	}
}

// Temperature is one of the fixed color temperatures of a white-spectrum
// bulb. On the wire it is a hex color string.
type Temperature int

const (
	White Temperature = iota
	Warm
	Glow
)

var temperatureCodes = map[Temperature]string{
	White: "f5faf6",
	Warm:  "f1e0b5",
	Glow:  "efd275",
}

var temperatureNames = map[Temperature]string{
	White: "white",
	Warm:  "warm",
	Glow:  "glow",
}

// Code returns the hex color string sent to the gateway.
func (t Temperature) Code() string { return temperatureCodes[t] }

func (t Temperature) String() string {
	if name, ok := temperatureNames[t]; ok {
		return name
	}
	return fmt.Sprintf("temperature(%d)", int(t))
}

// ParseTemperature accepts a temperature name (white, warm, glow) or its hex
// code.
func ParseTemperature(s string) (Temperature, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range temperatureNames {
		if s == name || s == temperatureCodes[t] {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown temperature %q", s)
}

func (t Temperature) MarshalJSON() ([]byte, error) {
	code, ok := temperatureCodes[t]
	if !ok {
		return nil, fmt.Errorf("temperature: unknown value %d", int(t))
	}
	return json.Marshal(code)
}

func (t *Temperature) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("temperature: %w", err)
	}

	for candidate, c := range temperatureCodes {
		if c == code {
			*t = candidate
			return nil
		}
	}

	return fmt.Errorf("temperature: unknown color %q", code)
}

// Bulb is the light control attribute object of a device. Attributes the
// model does not know about are carried through unchanged, because every
// update overwrites the whole object.
type Bulb struct {
	Power       Power
	Temperature Temperature

	extra map[string]json.RawMessage
}

func (b Bulb) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(b.extra)+2)
	for k, v := range b.extra {
		obj[k] = v
	}
	obj[keyPower] = int(b.Power)
	obj[keyTemperature] = b.Temperature

	return json.Marshal(obj)
}

func (b *Bulb) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("bulb: %w", err)
	}

	rawPower, ok := obj[keyPower]
	if !ok {
		return fmt.Errorf("bulb: missing %q", keyPower)
	}
	rawTemp, ok := obj[keyTemperature]
	if !ok {
		return fmt.Errorf("bulb: missing %q", keyTemperature)
	}

	var out Bulb
	if err := json.Unmarshal(rawPower, &out.Power); err != nil {
		return fmt.Errorf("bulb: %w", err)
	}
	if err := json.Unmarshal(rawTemp, &out.Temperature); err != nil {
		return fmt.Errorf("bulb: %w", err)
	}

	delete(obj, keyPower)
	delete(obj, keyTemperature)
	if len(obj) > 0 {
		out.extra = obj
	}

	*b = out

	return nil
}

// with returns a copy of b sharing its extra attributes, which are never
// mutated in place.
func (b Bulb) with(fn func(*Bulb)) Bulb {
	fn(&b)
	return b
}
