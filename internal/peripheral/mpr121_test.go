package peripheral

import (
	"context"
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

const mprAddr = 0x5A

func mprThresholdOps(touch, release byte) []i2ctest.IO {
	var ops []i2ctest.IO
	for i := byte(0); i < 12; i++ {
		ops = append(ops,
			w(mprAddr, 0x41+2*i, touch),
			w(mprAddr, 0x42+2*i, release),
		)
	}
	return ops
}

func mprSetupOps() []i2ctest.IO {
	ops := []i2ctest.IO{
		w(mprAddr, 0x80, 0x63),
		w(mprAddr, 0x5E, 0x00),
		wr(mprAddr, []byte{0x5D}, 0x24),
	}
	ops = append(ops, mprThresholdOps(12, 6)...)
	ops = append(ops,
		w(mprAddr, 0x2B, 0x01, 0x01, 0x0E, 0x00, 0x01, 0x05, 0x01, 0x00, 0x00, 0x00, 0x00),
		w(mprAddr, 0x5B, 0x00),
		w(mprAddr, 0x5C, 0x10),
		w(mprAddr, 0x5D, 0x20),
		w(mprAddr, 0x5E, 0x8F),
	)
	return ops
}

// stopped wraps ops in the stop/run sequence every configuration write uses.
func stopped(ops ...i2ctest.IO) []i2ctest.IO {
	out := []i2ctest.IO{w(mprAddr, 0x5E, 0x00)}
	out = append(out, ops...)
	return append(out, w(mprAddr, 0x5E, 0x8F))
}

func newReadyMPR121(t *testing.T, extra ...i2ctest.IO) (*MPR121, *i2ctest.Playback) {
	t.Helper()
	bus := playback(append(mprSetupOps(), extra...)...)
	d := NewMPR121(bus, "touch1", mprAddr)
	d.sleep = noSleep
	if err := d.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return d, bus
}

func TestMPR121_Read(t *testing.T) {
	raw := make([]byte, 24)
	want := make([]float64, 12)
	for i := 0; i < 12; i++ {
		v := uint16(90*i + 3)
		raw[2*i] = byte(v)
		raw[2*i+1] = byte(v>>8) | 0xF0 // upper bits are not part of the value
		want[i] = float64(v)
	}

	d, bus := newReadyMPR121(t, wr(mprAddr, []byte{0x04}, raw...))
	v, err := d.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	assertFloats(t, v.Floats(), want)
	assertDrained(t, bus)
}

func TestMPR121_Commands(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []any
		ops     []i2ctest.IO
	}{
		{
			name:    "threshold from OSC ints",
			command: "threshold",
			args:    []any{int32(20), int32(10)},
			ops:     stopped(mprThresholdOps(20, 10)...),
		},
		{
			name:    "threshold from floats and strings",
			command: "threshold",
			args:    []any{float32(8), "4"},
			ops:     stopped(mprThresholdOps(8, 4)...),
		},
		{
			name:    "cdc",
			command: "cdc",
			args:    []any{int32(3), int32(32)},
			ops:     stopped(w(mprAddr, 0x62, 32)),
		},
		{
			name:    "cdt odd electrode uses high nibble",
			command: "cdt",
			args:    []any{int32(3), int32(5)},
			ops: stopped(
				wr(mprAddr, []byte{0x6D}, 0x12),
				w(mprAddr, 0x6D, 0x52),
			),
		},
		{
			name:    "cdt even electrode uses low bits",
			command: "cdt",
			args:    []any{int32(10), int32(7)},
			ops: stopped(
				wr(mprAddr, []byte{0x71}, 0x50),
				w(mprAddr, 0x71, 0x57),
			),
		},
		{
			name:    "ffi global",
			command: "ffi",
			args:    []any{int32(2)},
			ops: stopped(
				wr(mprAddr, []byte{0x5C}, 0x10),
				w(mprAddr, 0x5C, 0x90),
			),
		},
		{
			name:    "sfi with electrode argument",
			command: "sfi",
			args:    []any{int32(0), int32(3)},
			ops: stopped(
				wr(mprAddr, []byte{0x5D}, 0x20),
				w(mprAddr, 0x5D, 0x38),
			),
		},
		{
			name:    "esi",
			command: "ESI",
			args:    []any{int32(4)},
			ops: stopped(
				wr(mprAddr, []byte{0x5D}, 0x20),
				w(mprAddr, 0x5D, 0x24),
			),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, bus := newReadyMPR121(t, tt.ops...)
			if err := d.Write(context.Background(), tt.command, tt.args); err != nil {
				t.Fatalf("Write(%q, %v) error = %v", tt.command, tt.args, err)
			}
			assertDrained(t, bus)
		})
	}
}

func TestMPR121_InvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []any
		wantErr error
	}{
		{"threshold missing release", "threshold", []any{12}, ErrInvalidArgument},
		{"threshold out of range", "threshold", []any{300, 6}, ErrInvalidArgument},
		{"threshold not a number", "threshold", []any{"high", 6}, ErrInvalidArgument},
		{"cdc electrode out of range", "cdc", []any{12, 10}, ErrInvalidArgument},
		{"cdc current out of range", "cdc", []any{0, 64}, ErrInvalidArgument},
		{"cdt missing value", "cdt", []any{1}, ErrInvalidArgument},
		{"esi out of range", "esi", []any{8}, ErrInvalidArgument},
		{"ffi without args", "ffi", nil, ErrInvalidArgument},
		{"bool argument", "esi", []any{true}, ErrInvalidArgument},
		{"unknown command", "calibrate", nil, ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, bus := newReadyMPR121(t)
			err := d.Write(context.Background(), tt.command, tt.args)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Write(%q, %v) error = %v, want %v", tt.command, tt.args, err, tt.wantErr)
			}
			// Rejected commands never touch the bus.
			assertDrained(t, bus)
		})
	}
}

func TestMPR121_SetupIdentityCheck(t *testing.T) {
	bus := playback(
		w(mprAddr, 0x80, 0x63),
		w(mprAddr, 0x5E, 0x00),
		wr(mprAddr, []byte{0x5D}, 0x00),
	)
	d := NewMPR121(bus, "touch1", mprAddr)
	d.sleep = noSleep

	if err := d.Setup(context.Background()); !errors.Is(err, ErrHardwareInit) {
		t.Fatalf("Setup() error = %v, want ErrHardwareInit", err)
	}
	assertDrained(t, bus)
}

func TestMPR121_Cleanup(t *testing.T) {
	d, bus := newReadyMPR121(t, w(mprAddr, 0x5E, 0x00))
	ctx := context.Background()

	if err := d.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if err := d.Cleanup(ctx); err != nil {
		t.Fatalf("second Cleanup() error = %v", err)
	}
	if err := d.Write(ctx, "threshold", []any{1, 1}); !errors.Is(err, ErrNotReady) {
		t.Errorf("Write() after Cleanup error = %v, want ErrNotReady", err)
	}
	assertDrained(t, bus)
}
