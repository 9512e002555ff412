package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/germanamz/tradfri/pkg/coap"
	"github.com/germanamz/tradfri/pkg/config"
	"github.com/germanamz/tradfri/pkg/gateway"
	"github.com/germanamz/tradfri/pkg/keystore"
)

const defaultConfigPath = "tradfri.yaml"

// options are the flags shared by every command.
type options struct {
	configPath   string
	envFile      string
	address      string
	securityCode string
	user         string
	verbose      bool
}

func registerOptions(fs *flag.FlagSet) *options {
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "path to configuration file (default: tradfri.yaml if present)")
	fs.StringVar(&o.envFile, "env", ".env", "path to .env file (ignored if missing)")
	fs.StringVar(&o.address, "address", "", "gateway host or IP (overrides config and $TRADFRI_ADDRESS)")
	fs.StringVar(&o.securityCode, "security-code", "", "security code printed on the gateway (overrides config and $TRADFRI_SECURITY_CODE)")
	fs.StringVar(&o.user, "user", "", "client identity (overrides config)")
	fs.BoolVar(&o.verbose, "verbose", false, "log every transport invocation")
	return o
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfig loads the config file when one is given or present and
// layers environment variables and flags on top.
func resolveConfig(o *options) (config.Config, error) {
	cfg := config.Default()

	path := o.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}

	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if cfg.Gateway.Address == "" {
		cfg.Gateway.Address = os.Getenv("TRADFRI_ADDRESS")
	}
	if cfg.Gateway.SecurityCode == "" {
		cfg.Gateway.SecurityCode = os.Getenv("TRADFRI_SECURITY_CODE")
	}

	if o.address != "" {
		cfg.Gateway.Address = o.address
	}
	if o.securityCode != "" {
		cfg.Gateway.SecurityCode = o.securityCode
	}
	if o.user != "" {
		cfg.Gateway.User = o.user
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

// app wires a gateway session from configuration.
type app struct {
	cfg    config.Config
	client *coap.Client
	gw     *gateway.Gateway
	keys   *keystore.Store
	log    *slog.Logger
	out    io.Writer
}

func newApp(o *options) (*app, error) {
	cfg, err := resolveConfig(o)
	if err != nil {
		return nil, err
	}

	return newAppFromConfig(cfg, nil, os.Stdout, os.Stderr)
}

// newAppFromConfig builds the app. A nil runner selects the coap-client
// subprocess.
func newAppFromConfig(cfg config.Config, runner coap.Runner, out, logOut io.Writer) (*app, error) {
	lvl, err := cfg.Level()
	if err != nil {
		return nil, err
	}

	log := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: lvl}))

	keys, err := keystore.New(cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	client := coap.NewClient(cfg.Transport.Command, runner, log)
	client.Timeout = time.Duration(cfg.Transport.Timeout)

	gw := gateway.New(cfg.Gateway.Address, cfg.Gateway.SecurityCode,
		gateway.WithClient(client),
		gateway.WithKeyStore(keys),
		gateway.WithLogger(log),
	)

	return &app{cfg: cfg, client: client, gw: gw, keys: keys, log: log, out: out}, nil
}

// errNoCredentials is returned when neither a stored key nor a security code
// is available.
var errNoCredentials = errors.New("no pre-shared key stored and no security code configured; run \"tradfri auth\" first")

// authenticate establishes the session. Without a stored key the security
// code is required; ask supplies it interactively when set.
func (a *app) authenticate(ctx context.Context, ask func() (string, error)) error {
	_, stored, err := a.keys.Load()
	if err != nil {
		return err
	}

	if !stored && a.cfg.Gateway.SecurityCode == "" {
		if ask == nil {
			return errNoCredentials
		}

		code, err := ask()
		if err != nil {
			return fmt.Errorf("read security code: %w", err)
		}

		a.cfg.Gateway.SecurityCode = code
		a.gw = gateway.New(a.cfg.Gateway.Address, code,
			gateway.WithClient(a.client),
			gateway.WithKeyStore(a.keys),
			gateway.WithLogger(a.log),
		)
	}

	return a.gw.Authenticate(ctx, a.cfg.Gateway.User)
}
