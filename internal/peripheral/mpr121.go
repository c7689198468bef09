package peripheral

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// MPR121 register map.
const (
	mprRegFiltered0 byte = 0x04
	mprRegTouchTh0  byte = 0x41
	mprRegReleaseT0 byte = 0x42
	mprRegDebounce  byte = 0x5B
	mprRegConfig1   byte = 0x5C
	mprRegConfig2   byte = 0x5D
	mprRegECR       byte = 0x5E
	mprRegCDC0      byte = 0x5F
	mprRegCDT0      byte = 0x6C
	mprRegSoftReset byte = 0x80

	mprSoftResetCode  byte   = 0x63
	mprConfig2AtReset byte   = 0x24
	mprECRStop        byte   = 0x00
	mprECRRunAll      byte   = 0x8F // baseline tracking on, 12 electrodes
	mprDefaultTouch          = 12
	mprDefaultRelease        = 6
	mprElectrodes            = 12
	mprFilteredMask   uint16 = 0x03FF
)

// mprBaselineFilter holds the rising/falling/touched baseline filter settings
// from the Freescale application note, starting at register 0x2B.
var mprBaselineFilter = []byte{
	0x01, 0x01, 0x0E, 0x00, // MHDR NHDR NCLR FDLR
	0x01, 0x05, 0x01, 0x00, // MHDF NHDF NCLF FDLF
	0x00, 0x00, 0x00, // NHDT NCLT FDLT
}

const mprRegBaselineFilter byte = 0x2B

// MPR121 reads the filtered capacitance of 12 electrodes and accepts
// threshold and analog front-end commands:
//
//	threshold <touch> <release>     all electrodes, 0-255
//	cdc <electrode> <current>        charge current in uA, 0-63
//	cdt <electrode> <time>           charge time code, 0-7
//	ffi [electrode] <iterations>     first filter iterations code, 0-3
//	sfi [electrode] <iterations>     second filter iterations code, 0-3
//	esi <interval>                   electrode sample interval code, 0-7
//
// FFI, SFI and ESI are global on the chip; an electrode argument is accepted
// for compatibility with existing patches and ignored.
type MPR121 struct {
	device
}

// NewMPR121 returns a driver for an NXP MPR121 at addr (0x5A-0x5D).
func NewMPR121(bus i2c.Bus, name string, addr uint16) *MPR121 {
	d := &MPR121{}
	d.init(bus, name, TypeMPR121, addr)
	return d
}

// Setup resets the chip, loads default thresholds and filters and starts
// measuring all 12 electrodes.
func (d *MPR121) Setup(ctx context.Context) error {
	if err := d.beginSetup(); err != nil {
		return err
	}
	if err := d.writeReg(mprRegSoftReset, mprSoftResetCode); err != nil {
		return d.hardwareErr("soft reset", err)
	}
	if err := d.sleep(ctx, time.Millisecond); err != nil {
		return d.hardwareErr("soft reset", err)
	}
	if err := d.writeReg(mprRegECR, mprECRStop); err != nil {
		return d.hardwareErr("entering stop mode", err)
	}
	cfg, err := d.readReg(mprRegConfig2, 1)
	if err != nil {
		return d.hardwareErr("reading CONFIG2", err)
	}
	if cfg[0] != mprConfig2AtReset {
		return d.hardwareErr("identity check", fmt.Errorf("CONFIG2 = 0x%02x after reset, want 0x%02x", cfg[0], mprConfig2AtReset))
	}

	if err := d.writeThresholds(mprDefaultTouch, mprDefaultRelease); err != nil {
		return d.hardwareErr("writing thresholds", err)
	}
	if err := d.writeReg(mprRegBaselineFilter, mprBaselineFilter...); err != nil {
		return d.hardwareErr("writing baseline filter", err)
	}
	setup := []struct {
		reg, val byte
	}{
		{mprRegDebounce, 0x00},
		{mprRegConfig1, 0x10}, // FFI 6 samples, 16 uA
		{mprRegConfig2, 0x20}, // 0.5 us charge, SFI 4, ESI 1 ms
		{mprRegECR, mprECRRunAll},
	}
	for _, s := range setup {
		if err := d.writeReg(s.reg, s.val); err != nil {
			return d.hardwareErr(fmt.Sprintf("writing 0x%02x", s.reg), err)
		}
	}
	d.markReady()
	return nil
}

// Read returns a Sequence of 12 filtered 10-bit electrode values.
func (d *MPR121) Read(ctx context.Context) (Value, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	raw, err := d.readReg(mprRegFiltered0, 2*mprElectrodes)
	if err != nil {
		return nil, d.readErr(err)
	}
	out := make(Sequence, mprElectrodes)
	for i := range out {
		out[i] = float64(binary.LittleEndian.Uint16(raw[2*i:]) & mprFilteredMask)
	}
	return out, nil
}

// Write applies one of the configuration commands listed on MPR121.
func (d *MPR121) Write(ctx context.Context, command string, args []any) error {
	if err := d.ready(); err != nil {
		return err
	}

	var apply func() error
	switch strings.ToLower(command) {
	case "threshold":
		touch, err := intArgIn(command, args, 0, 0, 255)
		if err != nil {
			return err
		}
		release, err := intArgIn(command, args, 1, 0, 255)
		if err != nil {
			return err
		}
		apply = func() error { return d.writeThresholds(byte(touch), byte(release)) }

	case "cdc":
		e, v, err := electrodeArgs(command, args, 63)
		if err != nil {
			return err
		}
		apply = func() error { return d.writeReg(mprRegCDC0+byte(e), byte(v)) }

	case "cdt":
		e, v, err := electrodeArgs(command, args, 7)
		if err != nil {
			return err
		}
		// two electrodes per register: even in bits 2:0, odd in bits 6:4
		shift := uint(4 * (e % 2))
		apply = func() error {
			return d.updateReg(mprRegCDT0+byte(e/2), 0x07<<shift, byte(v)<<shift)
		}

	case "ffi":
		v, err := lastIntArg(command, args, 3)
		if err != nil {
			return err
		}
		apply = func() error { return d.updateReg(mprRegConfig1, 0xC0, byte(v)<<6) }

	case "sfi":
		v, err := lastIntArg(command, args, 3)
		if err != nil {
			return err
		}
		apply = func() error { return d.updateReg(mprRegConfig2, 0x18, byte(v)<<3) }

	case "esi":
		v, err := intArgIn(command, args, 0, 0, 7)
		if err != nil {
			return err
		}
		apply = func() error { return d.updateReg(mprRegConfig2, 0x07, byte(v)) }

	default:
		return d.unknownCommand(command)
	}

	if err := d.stopped(apply); err != nil {
		return d.writeErr(command, err)
	}
	return nil
}

// stopped runs fn with the electrodes halted, since the chip ignores most
// configuration writes in run mode, then restarts measurement.
func (d *MPR121) stopped(fn func() error) error {
	if err := d.writeReg(mprRegECR, mprECRStop); err != nil {
		return err
	}
	fnErr := fn()
	if err := d.writeReg(mprRegECR, mprECRRunAll); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

func (d *MPR121) writeThresholds(touch, release byte) error {
	for i := byte(0); i < mprElectrodes; i++ {
		if err := d.writeReg(mprRegTouchTh0+2*i, touch); err != nil {
			return err
		}
		if err := d.writeReg(mprRegReleaseT0+2*i, release); err != nil {
			return err
		}
	}
	return nil
}

// updateReg replaces the bits in mask with val.
func (d *MPR121) updateReg(reg, mask, val byte) error {
	cur, err := d.readReg(reg, 1)
	if err != nil {
		return err
	}
	return d.writeReg(reg, (cur[0]&^mask)|(val&mask))
}

// Cleanup stops electrode measurement if the chip was running.
func (d *MPR121) Cleanup(ctx context.Context) error {
	if !d.markClosed() {
		return nil
	}
	if err := d.writeReg(mprRegECR, mprECRStop); err != nil {
		return fmt.Errorf("%s: stop: %w", d.name, err)
	}
	return nil
}

func electrodeArgs(command string, args []any, maxValue int) (electrode, value int, err error) {
	if err := needArgs(command, args, 2); err != nil {
		return 0, 0, err
	}
	electrode, err = intArgIn(command, args, 0, 0, mprElectrodes-1)
	if err != nil {
		return 0, 0, err
	}
	value, err = intArgIn(command, args, 1, 0, maxValue)
	if err != nil {
		return 0, 0, err
	}
	return electrode, value, nil
}

// lastIntArg reads "<v>" or "<electrode> <v>".
func lastIntArg(command string, args []any, maxValue int) (int, error) {
	if len(args) == 0 {
		return 0, needArgs(command, args, 1)
	}
	if len(args) > 1 {
		if _, err := intArgIn(command, args, 0, 0, mprElectrodes-1); err != nil {
			return 0, err
		}
	}
	return intArgIn(command, args, len(args)-1, 0, maxValue)
}
