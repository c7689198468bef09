package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/iobridge/internal/osc"
	"github.com/nerrad567/iobridge/internal/peripheral"
)

// drainTimeout bounds driver cleanup at shutdown.
const drainTimeout = 5 * time.Second

// Config holds the bridge's runtime settings.
type Config struct {
	// ListenAddr is the UDP "host:port" for inbound OSC.
	ListenAddr string

	// MaxPacketSize bounds inbound datagrams. Zero means osc.DefaultMaxPacketSize.
	MaxPacketSize int

	// RateHz is the initial poll rate. Zero means DefaultRateHz.
	RateHz float64
}

// PeripheralSpec describes a peripheral to create at startup.
type PeripheralSpec struct {
	Name    string
	Type    string
	Address any
}

// Stats aggregates the bridge's counters.
type Stats struct {
	Peripherals int
	Poller      PollerStats
	Router      RouterStats
	Listener    osc.ListenerStats
}

// Bridge owns the OSC listener, the poller and the router around one
// registry.
//
// Lifecycle: New binds the listen port, Run blocks until ctx is cancelled
// and then tears everything down in order.
type Bridge struct {
	registry *peripheral.Registry
	poller   *Poller
	router   *Router
	listener *osc.Listener
	ingress  []ingress
	logger   Logger
}

// ingress is a command source besides the OSC listener.
type ingress struct {
	name string
	stop func(ctx context.Context) error
}

// New creates a bridge publishing to publisher. A failure to bind the
// listen address is returned here and is fatal to the caller.
func New(cfg Config, registry *peripheral.Registry, publisher Publisher) (*Bridge, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	b := &Bridge{
		registry: registry,
		poller:   NewPoller(registry, publisher),
		logger:   noopLogger{},
	}
	if cfg.RateHz != 0 {
		if _, err := b.poller.SetRate(cfg.RateHz); err != nil {
			return nil, err
		}
	}
	b.router = NewRouter(registry, b.poller)

	listener, err := osc.Listen(cfg.ListenAddr, cfg.MaxPacketSize, b.router.HandleOSC)
	if err != nil {
		return nil, err
	}
	b.listener = listener
	return b, nil
}

// SetLogger sets the logger on the bridge and its components.
func (b *Bridge) SetLogger(logger Logger) {
	b.logger = logger
	b.poller.SetLogger(logger)
	b.router.SetLogger(logger)
	b.listener.SetLogger(logger)
}

// Registry returns the peripheral registry.
func (b *Bridge) Registry() *peripheral.Registry { return b.registry }

// Poller returns the poll loop.
func (b *Bridge) Poller() *Poller { return b.poller }

// Router returns the command router.
func (b *Bridge) Router() *Router { return b.router }

// ListenAddr returns the bound OSC address.
func (b *Bridge) ListenAddr() string { return b.listener.Addr().String() }

// AddIngress registers another command source, such as the HTTP API or an
// MQTT subscription. Run calls stop after the OSC listener and poller have
// finished and before the registry is drained, in the order added. Stop
// errors are logged. Must be called before Run.
func (b *Bridge) AddIngress(name string, stop func(ctx context.Context) error) {
	b.ingress = append(b.ingress, ingress{name: name, stop: stop})
}

// Seed creates the given peripherals in order. Failures are logged and
// skipped. It returns how many were created.
func (b *Bridge) Seed(ctx context.Context, specs []PeripheralSpec) int {
	created := 0
	for _, s := range specs {
		addr, err := peripheral.ParseAddress(s.Address)
		if err == nil {
			err = CreatePeripheral(ctx, b.registry, s.Name, peripheral.Type(strings.ToLower(s.Type)), addr)
		}
		if err != nil {
			b.logger.Warn("startup peripheral skipped", "name", s.Name, "type", s.Type, "error", err)
			continue
		}
		created++
	}
	return created
}

// Run serves until ctx is cancelled or the listener fails.
//
// Teardown order: the listener stops first so no command races shutdown,
// then the poller finishes its current tick, then the other ingress sources
// are stopped, then every driver is cleaned up in registry order. Cleanup
// errors are combined into the result.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("bridge started",
		"listen", b.ListenAddr(),
		"rate_hz", b.poller.Rate(),
		"peripherals", b.registry.Len(),
	)

	g, gctx := errgroup.WithContext(ctx)
	pollCtx, stopPolling := context.WithCancel(context.WithoutCancel(ctx))
	defer stopPolling()

	g.Go(func() error {
		defer stopPolling()
		return b.listener.Run(gctx)
	})
	g.Go(func() error {
		return b.poller.Run(pollCtx)
	})
	runErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	for _, in := range b.ingress {
		if err := in.stop(drainCtx); err != nil {
			b.logger.Warn("stopping ingress failed", "ingress", in.name, "error", err)
		}
	}
	err := multierr.Append(runErr, b.registry.Drain(drainCtx))
	if err != nil {
		b.logger.Error("bridge stopped with errors", "error", err)
	} else {
		b.logger.Info("bridge stopped")
	}
	return err
}

// Close releases the listen socket. Run closes it itself; Close is for
// bridges that were never run.
func (b *Bridge) Close() error {
	return b.listener.Close()
}

// Stats returns a snapshot of the bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Peripherals: b.registry.Len(),
		Poller:      b.poller.Stats(),
		Router:      b.router.Stats(),
		Listener:    b.listener.Stats(),
	}
}
