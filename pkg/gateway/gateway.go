// Package gateway implements a session against a CoAP gateway: the one-time
// pre-shared key bootstrap and the device operations that need it.
//
// A Gateway starts unauthenticated. Authenticate either adopts a key that was
// persisted by an earlier run or performs the bootstrap exchange with the
// provisioning secret printed on the gateway, and persists the derived key.
// Every other operation requires an authenticated session and fails with
// ErrNotAuthenticated otherwise.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/germanamz/tradfri/pkg/coap"
	"github.com/germanamz/tradfri/pkg/device"
)

const (
	// Port is the CoAPS port of the gateway.
	Port = 5684

	// BootstrapIdentity is the DTLS identity used with the provisioning
	// secret during the bootstrap exchange.
	BootstrapIdentity = "Client_identity"

	AuthenticatePath = "15011/9063"
	DevicesPath      = "15001"
)

// Payload keys of the bootstrap exchange.
const (
	keyIdentity = "9090"
	keyPSK      = "9091"
)

var (
	// ErrNotAuthenticated is returned by operations that need a derived key
	// when Authenticate has not succeeded yet.
	ErrNotAuthenticated = errors.New("gateway: not authenticated")

	// ErrMissingKey is returned when a successful bootstrap response does not
	// carry the derived key.
	ErrMissingKey = errors.New("gateway: bootstrap response has no key")
)

// KeyStore persists the derived key between runs.
type KeyStore interface {
	Load() (string, bool, error)
	Save(key string) error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClient sets the protocol client used for requests.
func WithClient(c *coap.Client) Option {
	return func(g *Gateway) { g.client = c }
}

// WithKeyStore sets where the derived key is loaded from and saved to.
func WithKeyStore(ks KeyStore) Option {
	return func(g *Gateway) { g.keys = ks }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) { g.log = log }
}

type credentials struct {
	user string
	key  string
}

// Gateway is a session against one gateway. It is safe for concurrent use.
type Gateway struct {
	addr         string
	securityCode string
	client       *coap.Client
	keys         KeyStore
	log          *slog.Logger

	mu    sync.RWMutex
	creds *credentials
}

// New creates an unauthenticated session for the gateway at addr, using
// securityCode for the bootstrap exchange.
func New(addr, securityCode string, opts ...Option) *Gateway {
	g := &Gateway{
		addr:         addr,
		securityCode: securityCode,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.log == nil {
		g.log = slog.New(slog.DiscardHandler)
	}
	if g.client == nil {
		g.client = coap.NewClient(coap.DefaultCommand, nil, g.log)
	}

	return g
}

// Endpoint returns the CoAPS URI for path on this gateway.
func (g *Gateway) Endpoint(path string) string {
	return "coaps://" + net.JoinHostPort(g.addr, strconv.Itoa(Port)) + "/" + path
}

// Authenticated reports whether a derived key is held.
func (g *Gateway) Authenticated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.creds != nil
}

// User returns the identity the session authenticated as.
func (g *Gateway) User() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.creds == nil {
		return ""
	}
	return g.creds.user
}

// Authenticate establishes the session for user. A key persisted by an
// earlier run is adopted without contacting the gateway. Otherwise the
// bootstrap exchange derives a new key, which is then persisted. Concurrent
// calls are serialized.
func (g *Gateway) Authenticate(ctx context.Context, user string) error {
	if user == "" {
		return errors.New("gateway: authenticate: empty user")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.keys != nil {
		key, ok, err := g.keys.Load()
		if err != nil {
			return fmt.Errorf("gateway: authenticate: %w", err)
		}
		if ok {
			g.creds = &credentials{user: user, key: key}
			g.log.InfoContext(ctx, "preshared key loaded", "user", user)
			return nil
		}
	}

	payload, err := json.Marshal(map[string]string{keyIdentity: user})
	if err != nil {
		return fmt.Errorf("gateway: authenticate: %w", err)
	}

	opts := coap.NewRequestOptions(coap.POST, BootstrapIdentity, g.securityCode, string(payload))

	out, err := g.client.Request(ctx, g.Endpoint(AuthenticatePath), opts)
	if err != nil {
		return fmt.Errorf("gateway: authenticate: %w", err)
	}
	if !out.IsOK() {
		return fmt.Errorf("gateway: authenticate: %w", out.Err())
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(out.Data(), &resp); err != nil {
		return fmt.Errorf("gateway: authenticate: decode response: %w", err)
	}

	raw, ok := resp[keyPSK]
	if !ok {
		return fmt.Errorf("gateway: authenticate: %w", ErrMissingKey)
	}

	var key string
	if err := json.Unmarshal(raw, &key); err != nil || key == "" {
		return fmt.Errorf("gateway: authenticate: %w: field %q is not a key", ErrMissingKey, keyPSK)
	}

	g.creds = &credentials{user: user, key: key}

	if g.keys != nil {
		if err := g.keys.Save(key); err != nil {
			return fmt.Errorf("gateway: authenticate: persist key: %w", err)
		}
	}

	g.log.InfoContext(ctx, "preshared key saved", "user", user)

	return nil
}

// session returns the credentials or ErrNotAuthenticated.
func (g *Gateway) session() (credentials, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.creds == nil {
		return credentials{}, ErrNotAuthenticated
	}
	return *g.creds, nil
}

// request issues an authenticated request and turns a rejection into an
// error.
func (g *Gateway) request(ctx context.Context, method coap.Method, path string, payload *string) (json.RawMessage, error) {
	creds, err := g.session()
	if err != nil {
		return nil, err
	}

	opts := coap.Build().Method(method).User(creds.user).Key(creds.key)
	if payload != nil {
		opts = opts.Payload(*payload)
	}

	out, err := g.client.Request(ctx, g.Endpoint(path), opts)
	if err != nil {
		return nil, err
	}
	if !out.IsOK() {
		return nil, out.Err()
	}

	return out.Data(), nil
}

// DeviceIDs lists the IDs of the devices paired with the gateway. Entries
// that are not unsigned integers are skipped.
func (g *Gateway) DeviceIDs(ctx context.Context) ([]uint64, error) {
	data, err := g.request(ctx, coap.GET, DevicesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: device ids: %w", err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("gateway: device ids: decode: %w", err)
	}

	ids := make([]uint64, 0, len(entries))
	for _, e := range entries {
		id, err := strconv.ParseUint(string(e), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// Device fetches the current state of device id.
func (g *Gateway) Device(ctx context.Context, id uint64) (*device.Device, error) {
	data, err := g.request(ctx, coap.GET, devicePath(id), nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: device %d: %w", id, err)
	}

	d, err := device.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("gateway: device %d: %w", id, err)
	}

	return d, nil
}

// SetDeviceState replaces attributes of device id with payload, encoded as
// JSON.
func (g *Gateway) SetDeviceState(ctx context.Context, id uint64, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gateway: set device %d: encode: %w", id, err)
	}

	s := string(body)
	g.log.DebugContext(ctx, "set device state", "device", id, "payload", s)

	if _, err := g.request(ctx, coap.PUT, devicePath(id), &s); err != nil {
		return fmt.Errorf("gateway: set device %d: %w", id, err)
	}

	return nil
}

func devicePath(id uint64) string {
	return DevicesPath + "/" + strconv.FormatUint(id, 10)
}
