package peripheral

import (
	"fmt"
	"sort"

	"periph.io/x/conn/v3/i2c"
)

// Factory constructs an uninitialised driver on bus at addr.
type Factory func(bus i2c.Bus, name string, addr uint16) Driver

// Catalog maps a type tag to the factory that builds it.
type Catalog map[Type]Factory

// DefaultCatalog returns the drivers shipped with the bridge.
func DefaultCatalog() Catalog {
	return Catalog{
		TypeADS1015: func(bus i2c.Bus, name string, addr uint16) Driver { return NewADS1015(bus, name, addr) },
		TypeADS1115: func(bus i2c.Bus, name string, addr uint16) Driver { return NewADS1115(bus, name, addr) },
		TypeLIS3DH:  func(bus i2c.Bus, name string, addr uint16) Driver { return NewLIS3DH(bus, name, addr) },
		TypeMPR121:  func(bus i2c.Bus, name string, addr uint16) Driver { return NewMPR121(bus, name, addr) },
		TypeSSD1306: func(bus i2c.Bus, name string, addr uint16) Driver { return NewSSD1306(bus, name, addr) },
	}
}

// Lookup returns the factory for typ.
func (c Catalog) Lookup(typ Type) (Factory, error) {
	f, ok := c[typ]
	if !ok {
		return nil, fmt.Errorf("%q: %w", typ, ErrUnknownType)
	}
	return f, nil
}

// Types lists the catalog's type tags in sorted order.
func (c Catalog) Types() []Type {
	types := make([]Type, 0, len(c))
	for t := range c {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
