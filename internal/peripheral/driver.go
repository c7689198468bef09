package peripheral

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// Type identifies a driver variant in the catalog.
type Type string

// Driver variants shipped with the bridge.
const (
	TypeADS1015 Type = "ads1015"
	TypeADS1115 Type = "ads1115"
	TypeLIS3DH  Type = "lis3dh"
	TypeMPR121  Type = "mpr121"
	TypeSSD1306 Type = "ssd1306"
)

// State is the lifecycle position of a driver.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Driver is the contract every peripheral implements.
//
// Setup is called exactly once, straight after construction. Read and Write
// are only valid in StateReady and fail with ErrNotReady otherwise. Cleanup
// returns the hardware to an idle state; it is safe to call without a
// successful Setup and more than once.
//
// Drivers are not safe for concurrent use. The Registry serialises every call.
type Driver interface {
	Name() string
	Type() Type
	Address() uint16
	State() State

	Setup(ctx context.Context) error
	Read(ctx context.Context) (Value, error)
	Write(ctx context.Context, command string, args []any) error
	Cleanup(ctx context.Context) error
}

// Info is a point-in-time description of a registered driver.
type Info struct {
	Name    string
	Type    Type
	Address uint16
	State   State
}

// Describe returns the Info for d.
func Describe(d Driver) Info {
	return Info{
		Name:    d.Name(),
		Type:    d.Type(),
		Address: d.Address(),
		State:   d.State(),
	}
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// device carries the identity, lifecycle state and bus handle shared by the
// register-level drivers.
type device struct {
	name  string
	typ   Type
	dev   i2c.Dev
	state atomic.Int32
	sleep sleepFunc
}

func (d *device) init(bus i2c.Bus, name string, typ Type, addr uint16) {
	d.name = name
	d.typ = typ
	d.dev = i2c.Dev{Bus: bus, Addr: addr}
	d.sleep = contextSleep
}

// Name implements Driver.
func (d *device) Name() string { return d.name }

// Type implements Driver.
func (d *device) Type() Type { return d.typ }

// Address implements Driver.
func (d *device) Address() uint16 { return d.dev.Addr }

// State implements Driver.
func (d *device) State() State { return State(d.state.Load()) }

// beginSetup guards Setup against a missing bus and repeat calls.
func (d *device) beginSetup() error {
	if d.dev.Bus == nil {
		return fmt.Errorf("%s at 0x%02x: no i2c bus: %w", d.name, d.dev.Addr, ErrHardwareInit)
	}
	if d.State() != StateUninitialized {
		return fmt.Errorf("%s: setup already called: %w", d.name, ErrHardwareInit)
	}
	return nil
}

func (d *device) markReady() { d.state.Store(int32(StateReady)) }

// markClosed moves the driver to StateClosed and reports whether it was ready.
func (d *device) markClosed() (wasReady bool) {
	return State(d.state.Swap(int32(StateClosed))) == StateReady
}

func (d *device) ready() error {
	if s := d.State(); s != StateReady {
		return fmt.Errorf("%s is %s: %w", d.name, s, ErrNotReady)
	}
	return nil
}

// writeReg writes vals starting at register reg.
func (d *device) writeReg(reg byte, vals ...byte) error {
	w := make([]byte, 0, len(vals)+1)
	w = append(w, reg)
	w = append(w, vals...)
	return d.dev.Tx(w, nil)
}

// readReg reads n bytes starting at register reg.
func (d *device) readReg(reg byte, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := d.dev.Tx([]byte{reg}, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (d *device) hardwareErr(step string, err error) error {
	return fmt.Errorf("%s at 0x%02x: %s: %w: %w", d.name, d.dev.Addr, step, ErrHardwareInit, err)
}

func (d *device) readErr(err error) error {
	return fmt.Errorf("%s at 0x%02x: %w: %w", d.name, d.dev.Addr, ErrReadFailed, err)
}

func (d *device) writeErr(command string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", d.name, command, ErrWriteFailed, err)
}

func (d *device) unknownCommand(command string) error {
	return fmt.Errorf("%s: %q: %w", d.name, command, ErrUnknownCommand)
}
