package peripheral

import (
	"context"
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

const lisAddr = 0x19

func lisSetupOps() []i2ctest.IO {
	return []i2ctest.IO{
		wr(lisAddr, []byte{lisRegWhoAmI}, lisWhoAmIResp),
		w(lisAddr, lisRegCtrl1, lisCtrl1Run400Hz),
		w(lisAddr, lisRegCtrl4, lisCtrl4HighRes),
	}
}

// lisSample encodes milli-g as a left-aligned little-endian 12-bit sample.
func lisSample(mg int16) (lo, hi byte) {
	v := uint16(mg << 4)
	return byte(v), byte(v >> 8)
}

func TestLIS3DH_Read(t *testing.T) {
	xl, xh := lisSample(12)
	yl, yh := lisSample(-250)
	zl, zh := lisSample(1000)

	ops := append(lisSetupOps(),
		wr(lisAddr, []byte{lisRegOutXL | lisAutoIncr}, xl, xh, yl, yh, zl, zh),
		w(lisAddr, lisRegCtrl1, lisCtrl1PowerOff),
	)
	bus := playback(ops...)
	d := NewLIS3DH(bus, "tilt", lisAddr)
	ctx := context.Background()

	if err := d.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	v, err := d.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	fields, ok := v.(Fields)
	if !ok {
		t.Fatalf("Read() returned %T, want Fields", v)
	}
	for _, want := range []struct {
		name string
		g    float64
	}{{"x", 0.012}, {"y", -0.25}, {"z", 1}} {
		got, ok := fields.Get(want.name)
		if !ok {
			t.Errorf("field %q missing", want.name)
			continue
		}
		if got != want.g {
			t.Errorf("%s = %v, want %v", want.name, got, want.g)
		}
	}
	assertFloats(t, v.Floats(), []float64{0.012, -0.25, 1})

	if err := d.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	assertDrained(t, bus)
}

func TestLIS3DH_WrongIdentity(t *testing.T) {
	bus := playback(wr(lisAddr, []byte{lisRegWhoAmI}, 0x44))
	d := NewLIS3DH(bus, "tilt", lisAddr)

	if err := d.Setup(context.Background()); !errors.Is(err, ErrHardwareInit) {
		t.Fatalf("Setup() error = %v, want ErrHardwareInit", err)
	}
	// Cleanup after a failed setup touches nothing.
	if err := d.Cleanup(context.Background()); err != nil {
		t.Errorf("Cleanup() after failed Setup error = %v", err)
	}
	assertDrained(t, bus)
}

func TestLIS3DH_ReadOnly(t *testing.T) {
	bus := playback(lisSetupOps()...)
	d := NewLIS3DH(bus, "tilt", lisAddr)
	ctx := context.Background()
	if err := d.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := d.Write(ctx, "range", []any{4}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Write() error = %v, want ErrUnknownCommand", err)
	}
	if _, err := d.Read(ctx); !errors.Is(err, ErrReadFailed) {
		t.Errorf("Read() on silent bus error = %v, want ErrReadFailed", err)
	}
}
