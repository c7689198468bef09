// Package i2cbus opens the host I2C bus the peripheral drivers talk on.
package i2cbus

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/nerrad567/iobridge/internal/infrastructure/config"
)

// Errors returned by Open.
var (
	// ErrDisabled is returned when I2C is turned off in config.
	ErrDisabled = errors.New("i2cbus: disabled")

	// ErrHostInit is returned when periph host drivers fail to load.
	ErrHostInit = errors.New("i2cbus: host init failed")

	// ErrOpen is returned when the named bus cannot be opened.
	ErrOpen = errors.New("i2cbus: open failed")
)

// Open loads the periph host drivers and opens cfg.Bus. An empty bus name
// opens the first bus the host registers.
func Open(cfg config.I2CConfig) (i2c.BusCloser, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHostInit, err)
	}
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("%w: bus %q: %w", ErrOpen, cfg.Bus, err)
	}
	if cfg.SpeedKHz > 0 {
		if err := bus.SetSpeed(physic.Frequency(cfg.SpeedKHz) * physic.KiloHertz); err != nil {
			bus.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("%w: set speed %d kHz: %w", ErrOpen, cfg.SpeedKHz, err)
		}
	}
	return bus, nil
}

// Names loads the host drivers and lists the buses they register.
func Names() ([]string, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHostInit, err)
	}
	refs := i2creg.All()
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return names, nil
}
