package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const version = "0.1.0"

const usage = `Usage: tradfri <command> [flags] [args]

Commands:
  auth                 Derive and store a pre-shared key for this client
  list                 List paired bulbs
  get  <id>            Show a bulb
  on   <id>            Switch a bulb on
  off  <id>            Switch a bulb off
  temp <id> <color>    Set color temperature (white, warm, glow)
  mcp                  Serve the device tools over MCP on stdio

Run "tradfri <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	name, args := os.Args[1], os.Args[2:]

	cmd, ok := commands[name]
	if !ok {
		if name == "-h" || name == "--help" || name == "help" {
			fmt.Fprint(os.Stdout, usage)
			return
		}
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	fs, opts, run := newFlagSet(name, cmd, flag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() != cmd.nargs {
		fs.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := runCommand(ctx, run, opts, fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// newFlagSet builds the FlagSet of cmd with the shared options and the
// command's own flags.
func newFlagSet(name string, cmd command, handling flag.ErrorHandling) (*flag.FlagSet, *options, runFunc) {
	fs := flag.NewFlagSet(name, handling)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: tradfri %s [flags] %s\n\n%s\n\nFlags:\n", name, cmd.args, cmd.summary)
		fs.PrintDefaults()
	}

	opts := registerOptions(fs)
	run := cmd.runner(fs)

	return fs, opts, run
}

func runCommand(ctx context.Context, run runFunc, opts *options, args []string) error {
	if err := loadDotEnv(opts.envFile); err != nil {
		return err
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}

	return run(ctx, a, args)
}
