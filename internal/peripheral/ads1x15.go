package peripheral

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// ADS1x15 register map.
const (
	adsRegConversion byte = 0x00
	adsRegConfig     byte = 0x01

	adsChannels = 4

	adsOSSingle   uint16 = 0x8000 // start a single conversion
	adsMuxSingle0 uint16 = 0x4000 // AINx vs GND; channel adds 0x1000 each
	adsPGA4V096   uint16 = 0x0200 // +/-4.096 V full scale
	adsModeSingle uint16 = 0x0100
	adsDR         uint16 = 0x0080 // 1600 SPS on ADS1015, 128 SPS on ADS1115
	adsCompQueOff uint16 = 0x0003

	adsFullScale = 4.096
)

// ADS1x15 reads the four single-ended inputs of a TI ADS1015 (12-bit) or
// ADS1115 (16-bit) as volts. It accepts no commands.
type ADS1x15 struct {
	device

	// resolution in bits of the conversion result
	resolution int
	// settle is how long one conversion takes at the configured data rate
	settle time.Duration
}

// NewADS1015 returns a driver for a 12-bit ADS1015 at addr (usually 0x48).
func NewADS1015(bus i2c.Bus, name string, addr uint16) *ADS1x15 {
	d := &ADS1x15{resolution: 12, settle: time.Millisecond}
	d.init(bus, name, TypeADS1015, addr)
	return d
}

// NewADS1115 returns a driver for a 16-bit ADS1115 at addr (usually 0x48).
func NewADS1115(bus i2c.Bus, name string, addr uint16) *ADS1x15 {
	d := &ADS1x15{resolution: 16, settle: 9 * time.Millisecond}
	d.init(bus, name, TypeADS1115, addr)
	return d
}

// Setup checks that the converter answers on its config register.
func (d *ADS1x15) Setup(ctx context.Context) error {
	if err := d.beginSetup(); err != nil {
		return err
	}
	if _, err := d.readReg(adsRegConfig, 2); err != nil {
		return d.hardwareErr("reading config register", err)
	}
	d.markReady()
	return nil
}

// Read returns a Sequence with one voltage per channel.
func (d *ADS1x15) Read(ctx context.Context) (Value, error) {
	if err := d.ready(); err != nil {
		return nil, err
	}
	volts := make(Sequence, adsChannels)
	for ch := 0; ch < adsChannels; ch++ {
		v, err := d.readChannel(ctx, ch)
		if err != nil {
			return nil, d.readErr(fmt.Errorf("channel %d: %w", ch, err))
		}
		volts[ch] = v
	}
	return volts, nil
}

func (d *ADS1x15) readChannel(ctx context.Context, ch int) (float64, error) {
	cfg := adsOSSingle | (adsMuxSingle0 + uint16(ch)<<12) | adsPGA4V096 | adsModeSingle | adsDR | adsCompQueOff
	if err := d.writeReg(adsRegConfig, byte(cfg>>8), byte(cfg)); err != nil {
		return 0, err
	}
	if err := d.sleep(ctx, d.settle); err != nil {
		return 0, err
	}
	raw, err := d.readReg(adsRegConversion, 2)
	if err != nil {
		return 0, err
	}
	return d.volts(int16(binary.BigEndian.Uint16(raw))), nil
}

// volts scales a conversion result. The 12-bit part left-aligns its result.
func (d *ADS1x15) volts(raw int16) float64 {
	counts := int64(raw) >> (16 - d.resolution)
	return float64(counts) * adsFullScale / float64(int64(1)<<(d.resolution-1))
}

// Write rejects every command; the converter is read-only.
func (d *ADS1x15) Write(ctx context.Context, command string, args []any) error {
	if err := d.ready(); err != nil {
		return err
	}
	return d.unknownCommand(command)
}

// Cleanup marks the driver closed. Single-shot mode already idles the chip
// between conversions.
func (d *ADS1x15) Cleanup(ctx context.Context) error {
	d.markClosed()
	return nil
}
