package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/spf13/cast"

	"github.com/nerrad567/iobridge/internal/osc"
	"github.com/nerrad567/iobridge/internal/peripheral"
)

// Reserved routing keys. They take precedence over peripheral names.
const (
	KeyCreate = "create"
	KeyPoll   = "poll"
	KeyList   = "list"
)

// IsReserved reports whether name collides with a reserved routing key.
func IsReserved(name string) bool {
	switch name {
	case KeyCreate, KeyPoll, KeyList:
		return true
	}
	return false
}

// RateSetter is the part of Poller the router needs.
type RateSetter interface {
	SetRate(hz float64) (float64, error)
}

// RouterStats holds routing counters.
type RouterStats struct {
	Routed  uint64
	Dropped uint64
}

// Router dispatches inbound addresses to reserved operations or to the
// registered driver named by the first path segment.
type Router struct {
	registry *peripheral.Registry
	poller   RateSetter
	logger   Logger

	routed  atomic.Uint64
	dropped atomic.Uint64
}

// NewRouter creates a router over registry. poller may be nil, in which case
// poll commands are dropped.
func NewRouter(registry *peripheral.Registry, poller RateSetter) *Router {
	return &Router{registry: registry, poller: poller, logger: noopLogger{}}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// HandleOSC adapts Route to osc.Handler.
func (r *Router) HandleOSC(ctx context.Context, msg osc.Message) {
	r.Route(ctx, msg.Address, msg.Args)
}

// Route dispatches one message. Every failure is logged and the message is
// dropped; nothing is returned to the sender.
func (r *Router) Route(ctx context.Context, address string, args []any) {
	err := r.Dispatch(ctx, address, args)
	if err == nil {
		r.routed.Add(1)
		return
	}
	r.dropped.Add(1)

	switch {
	case errors.Is(err, peripheral.ErrUnknownDevice),
		errors.Is(err, peripheral.ErrUnknownCommand),
		errors.Is(err, peripheral.ErrInvalidArgument),
		errors.Is(err, peripheral.ErrInvalidName),
		errors.Is(err, peripheral.ErrInvalidAddress),
		errors.Is(err, peripheral.ErrUnknownType),
		errors.Is(err, peripheral.ErrNotReady),
		errors.Is(err, ErrReservedName),
		errors.Is(err, ErrEmptyAddress):
		r.logger.Warn("command dropped", "address", address, "args", args, "error", err)
	default:
		r.logger.Error("command failed", "address", address, "args", args, "error", err)
	}
}

// Dispatch is Route with the error returned instead of logged.
func (r *Router) Dispatch(ctx context.Context, address string, args []any) error {
	key, rest := osc.SplitAddress(address)
	switch key {
	case "":
		return fmt.Errorf("%w: %q", ErrEmptyAddress, address)
	case KeyCreate:
		return r.create(ctx, args)
	case KeyPoll:
		return r.setRate(args)
	case KeyList:
		r.list()
		return nil
	}

	return r.registry.Do(key, func(d peripheral.Driver) error {
		return d.Write(ctx, rest, args)
	})
}

// Stats returns routing counters.
func (r *Router) Stats() RouterStats {
	return RouterStats{Routed: r.routed.Load(), Dropped: r.dropped.Load()}
}

// create handles "create <name> <type> <address>".
func (r *Router) create(ctx context.Context, args []any) error {
	if len(args) != 3 {
		return fmt.Errorf("create: want <name> <type> <address>, got %d args: %w", len(args), peripheral.ErrInvalidArgument)
	}
	name, err := stringArg(args[0])
	if err != nil {
		return fmt.Errorf("create: name: %w", err)
	}
	typ, err := stringArg(args[1])
	if err != nil {
		return fmt.Errorf("create: type: %w", err)
	}
	addr, err := peripheral.ParseAddress(args[2])
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	return CreatePeripheral(ctx, r.registry, name, peripheral.Type(strings.ToLower(typ)), addr)
}

// setRate handles "poll <rateHz>".
func (r *Router) setRate(args []any) error {
	if len(args) != 1 {
		return fmt.Errorf("poll: want <rateHz>, got %d args: %w", len(args), peripheral.ErrInvalidArgument)
	}
	if _, isBool := args[0].(bool); isBool {
		return fmt.Errorf("poll: rate %v: %w", args[0], peripheral.ErrInvalidArgument)
	}
	hz, err := cast.ToFloat64E(args[0])
	if err != nil {
		return fmt.Errorf("poll: rate %v: %w", args[0], peripheral.ErrInvalidArgument)
	}
	if r.poller == nil {
		return fmt.Errorf("poll: no poller: %w", peripheral.ErrNotReady)
	}
	_, err = r.poller.SetRate(hz)
	return err
}

// list writes the registry to the log.
func (r *Router) list() {
	infos := r.registry.Infos()
	r.logger.Info("peripherals", "count", len(infos))
	for _, info := range infos {
		r.logger.Info("peripheral",
			"name", info.Name,
			"type", info.Type,
			"address", peripheral.FormatAddress(info.Address),
			"state", info.State.String(),
		)
	}
}

// CreatePeripheral creates name on registry after rejecting reserved keys.
// Every creation path (OSC, MQTT, HTTP, startup config) goes through here.
func CreatePeripheral(ctx context.Context, registry *peripheral.Registry, name string, typ peripheral.Type, addr uint16) error {
	if IsReserved(name) {
		return fmt.Errorf("%q: %w", name, ErrReservedName)
	}
	return registry.Create(ctx, name, typ, addr)
}

func stringArg(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case bool, nil:
		return "", fmt.Errorf("%v: %w", v, peripheral.ErrInvalidArgument)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%v: %w", v, peripheral.ErrInvalidArgument)
	}
	return s, nil
}

// DecodeArgs parses a JSON array payload into command arguments. An empty
// payload means no arguments. Numbers decode as float64.
func DecodeArgs(payload []byte) ([]any, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, nil
	}
	var args []any
	if err := json.Unmarshal(payload, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON array: %w", peripheral.ErrInvalidArgument)
	}
	return args, nil
}

// RouteJSON routes address with a JSON array of arguments, as carried by
// MQTT command messages.
func (r *Router) RouteJSON(ctx context.Context, address string, payload []byte) {
	args, err := DecodeArgs(payload)
	if err != nil {
		r.dropped.Add(1)
		r.logger.Warn("command dropped", "address", address, "error", err)
		return
	}
	r.Route(ctx, address, args)
}
