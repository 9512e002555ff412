package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/germanamz/tradfri/pkg/device"
	"github.com/germanamz/tradfri/pkg/gateway"
	"github.com/germanamz/tradfri/pkg/tools/devicetools"
	"github.com/germanamz/tradfri/pkg/tools/mcpserver"
)

type runFunc func(ctx context.Context, a *app, args []string) error

// command is a subcommand. Commands with their own flags set flags, which
// registers them on the command's FlagSet and returns the run function bound
// to the parsed values; the others set run.
type command struct {
	summary string
	args    string
	nargs   int
	flags   func(fs *flag.FlagSet) runFunc
	run     runFunc
}

// runner returns the run function of c, registering its flags on fs.
func (c command) runner(fs *flag.FlagSet) runFunc {
	if c.flags != nil {
		return c.flags(fs)
	}
	return c.run
}

func concurrencyFlag(fs *flag.FlagSet, usage string) *int {
	return fs.Int("concurrency", gateway.DefaultConcurrency, usage)
}

var commands = map[string]command{
	"auth": {
		summary: "Derive a pre-shared key with the gateway's security code and store it.",
		flags: func(fs *flag.FlagSet) runFunc {
			prompt := fs.Bool("prompt", true, "prompt for the security code when none is configured")
			return func(ctx context.Context, a *app, _ []string) error {
				return runAuth(ctx, a, *prompt)
			}
		},
	},
	"list": {
		summary: "List paired bulbs.",
		flags: func(fs *flag.FlagSet) runFunc {
			n := concurrencyFlag(fs, "parallel device fetches")
			return func(ctx context.Context, a *app, _ []string) error {
				return runList(ctx, a, *n)
			}
		},
	},
	"get": {summary: "Show a bulb.", args: "<id>", nargs: 1, run: runGet},
	"on":  {summary: "Switch a bulb on.", args: "<id>", nargs: 1, run: powerCommand(true)},
	"off": {summary: "Switch a bulb off.", args: "<id>", nargs: 1, run: powerCommand(false)},
	"temp": {
		summary: "Set the color temperature of a bulb.",
		args:    "<id> <white|warm|glow>",
		nargs:   2,
		run:     runTemp,
	},
	"mcp": {
		summary: "Serve list_devices, get_device, turn_on, turn_off and set_temperature over MCP on stdio.",
		flags: func(fs *flag.FlagSet) runFunc {
			n := concurrencyFlag(fs, "parallel device fetches for list_devices")
			return func(ctx context.Context, a *app, _ []string) error {
				return runMCP(ctx, a, *n)
			}
		},
	},
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid device id %q", s)
	}
	return id, nil
}

func runAuth(ctx context.Context, a *app, prompt bool) error {
	var ask func() (string, error)
	if prompt {
		ask = promptSecurityCode
	}

	if err := a.authenticate(ctx, ask); err != nil {
		return err
	}

	fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("authenticated as %s", a.cfg.Gateway.User)),
		dimStyle.Render("(key stored in "+a.keys.Path()+")"))

	return nil
}

func runList(ctx context.Context, a *app, concurrency int) error {
	if err := a.authenticate(ctx, nil); err != nil {
		return err
	}

	devices, err := a.gw.Devices(ctx, concurrency)
	if err != nil {
		return err
	}

	fmt.Fprint(a.out, renderDevices(devices))

	return nil
}

// fetch authenticates and loads the device named by the first argument.
func fetch(ctx context.Context, a *app, args []string) (*device.Device, error) {
	id, err := parseID(args[0])
	if err != nil {
		return nil, err
	}

	if err := a.authenticate(ctx, nil); err != nil {
		return nil, err
	}

	return a.gw.Device(ctx, id)
}

func runGet(ctx context.Context, a *app, args []string) error {
	d, err := fetch(ctx, a, args)
	if err != nil {
		return err
	}

	fmt.Fprint(a.out, renderDevices([]*device.Device{d}))

	return nil
}

func powerCommand(on bool) runFunc {
	return func(ctx context.Context, a *app, args []string) error {
		d, err := fetch(ctx, a, args)
		if err != nil {
			return err
		}

		if on {
			err = d.TurnOn(ctx, a.gw)
		} else {
			err = d.TurnOff(ctx, a.gw)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(a.out, renderChange(d))

		return nil
	}
}

func runTemp(ctx context.Context, a *app, args []string) error {
	temp, err := device.ParseTemperature(args[1])
	if err != nil {
		return err
	}

	d, err := fetch(ctx, a, args)
	if err != nil {
		return err
	}

	if err := d.SetTemperature(ctx, a.gw, temp); err != nil {
		return err
	}

	fmt.Fprintln(a.out, renderChange(d))

	return nil
}

const mcpInstructions = "Controls the bulbs paired with one gateway. " +
	"Call list_devices first; the other tools take a device id from its output."

func runMCP(ctx context.Context, a *app, concurrency int) error {
	if err := a.authenticate(ctx, nil); err != nil {
		return err
	}

	srv := mcpserver.New("tradfri", version,
		mcpserver.WithLogger(a.log),
		mcpserver.WithInstructions(mcpInstructions),
	)
	n := srv.Register(devicetools.New(a.gw, concurrency).Tools())

	a.log.InfoContext(ctx, "serving mcp on stdio", "gateway", a.cfg.Gateway.Address, "tools", n)

	return srv.Serve(ctx, os.Stdin, a.out)
}
