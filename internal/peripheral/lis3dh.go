package peripheral

import (
	"context"
	"encoding/binary"
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

// LIS3DH register map.
const (
	lisRegWhoAmI  byte = 0x0F
	lisRegCtrl1   byte = 0x20
	lisRegCtrl4   byte = 0x23
	lisRegOutXL   byte = 0x28
	lisAutoIncr   byte = 0x80
	lisWhoAmIResp byte = 0x33

	lisCtrl1Run400Hz byte = 0x77 // 400 Hz, normal mode, X/Y/Z enabled
	lisCtrl1PowerOff byte = 0x00
	lisCtrl4HighRes  byte = 0x88 // block data update, +/-2 g, high resolution
)

// LIS3DH reads acceleration on three axes in g. It accepts no commands.
type LIS3DH struct {
	device
}

// NewLIS3DH returns a driver for an ST LIS3DH at addr (0x18 or 0x19).
func NewLIS3DH(bus i2c.Bus, name string, addr uint16) *LIS3DH {
	d := &LIS3DH{}
	d.init(bus, name, TypeLIS3DH, addr)
	return d
}

// Setup verifies the chip identity and starts continuous 400 Hz sampling
// at +/-2 g in high-resolution mode.
func (d *LIS3DH) Setup(ctx context.Context) error {
	if err := d.beginSetup(); err != nil {
		return err
	}
	id, err := d.readReg(lisRegWhoAmI, 1)
	if err != nil {
		return d.hardwareErr("reading WHO_AM_I", err)
	}
	if id[0] != lisWhoAmIResp {
		return d.hardwareErr("identity check", fmt.Errorf("WHO_AM_I = 0x%02x, want 0x%02x", id[0], lisWhoAmIResp))
	}
	if err := d.writeReg(lisRegCtrl1, lisCtrl1Run400Hz); err != nil {
		return d.hardwareErr("writing CTRL_REG1", err)
	}
	if err := d.writeReg(lisRegCtrl4, lisCtrl4HighRes); err != nil {
		return d.hardwareErr("writing CTRL_REG4", err)
	}
	d.markReady()
	return nil
}

// Read returns Fields{x, y, z} in g, rounded to the sensor's 1 mg step.
func (d *LIS3DH) Read(ctx context.Context) (Value, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	raw, err := d.readReg(lisRegOutXL|lisAutoIncr, 6)
	if err != nil {
		return nil, d.readErr(err)
	}
	return Fields{
		{Name: "x", Value: lisG(raw[0:2])},
		{Name: "y", Value: lisG(raw[2:4])},
		{Name: "z", Value: lisG(raw[4:6])},
	}, nil
}

// lisG converts a left-aligned 12-bit sample (1 mg/digit at +/-2 g) to g.
func lisG(b []byte) float64 {
	mg := int16(binary.LittleEndian.Uint16(b)) >> 4
	return float64(mg) / 1000
}

// Write rejects every command; the accelerometer is read-only.
func (d *LIS3DH) Write(ctx context.Context, command string, args []any) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.unknownCommand(command)
}

// Cleanup powers the sensor down if it was running.
func (d *LIS3DH) Cleanup(ctx context.Context) error {
	if !d.markClosed() {
		return nil
	}
	if err := d.writeReg(lisRegCtrl1, lisCtrl1PowerOff); err != nil {
		return fmt.Errorf("%s: power down: %w", d.name, err)
	}
	return nil
}
