package peripheral

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry owns the named drivers on one I2C bus.
//
// Iteration order is insertion order. Replacing a name keeps its position.
//
// A single mutex guards the map and every driver call made through the
// registry (Each, Do, Create, Remove, Drain), so the poll loop and the
// command listener never touch the bus at the same time.
type Registry struct {
	mu      sync.Mutex
	bus     i2c.Bus
	catalog Catalog
	order   []string
	drivers map[string]Driver
	drained bool

	store  Store
	logger Logger
}

// NewRegistry creates an empty registry building drivers from catalog on bus.
// bus may be nil on hosts without I2C; every Create then fails with ErrHardwareInit.
func NewRegistry(bus i2c.Bus, catalog Catalog) *Registry {
	return &Registry{
		bus:     bus,
		catalog: catalog,
		drivers: make(map[string]Driver),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetStore enables persistence of created peripherals.
func (r *Registry) SetStore(store Store) {
	r.store = store
}

// Catalog returns the catalog drivers are built from.
func (r *Registry) Catalog() Catalog {
	return r.catalog
}

// Create builds a driver of typ at addr, runs its Setup and registers it as name.
//
// If name already exists the new driver is set up first; only when that
// succeeds is the old driver cleaned up and swapped out, keeping its
// position. On any failure the registry is left unchanged.
func (r *Registry) Create(ctx context.Context, name string, typ Type, addr uint16) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	factory, err := r.catalog.Lookup(typ)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if r.drained {
		r.mu.Unlock()
		return fmt.Errorf("creating %s: registry drained: %w", name, ErrNotReady)
	}
	drv := factory(r.bus, name, addr)
	if err := drv.Setup(ctx); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("creating %s (%s at %s): %w", name, typ, FormatAddress(addr), err)
	}

	if old, exists := r.drivers[name]; exists {
		r.logger.Warn("replacing peripheral",
			"name", name,
			"old_type", old.Type(),
			"old_address", FormatAddress(old.Address()),
		)
		if err := old.Cleanup(ctx); err != nil {
			r.logger.Warn("cleanup of replaced peripheral failed", "name", name, "error", err)
		}
	} else {
		r.order = append(r.order, name)
	}
	r.drivers[name] = drv
	r.mu.Unlock()

	r.logger.Info("peripheral created", "name", name, "type", typ, "address", FormatAddress(addr))

	if r.store != nil {
		rec := Record{Name: name, Type: typ, Address: addr}
		if err := r.store.Save(ctx, rec); err != nil {
			r.logger.Error("persisting peripheral failed", "name", name, "error", err)
		}
	}
	return nil
}

// Remove cleans up and drops name. Removing an absent name is a no-op.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	drv, ok := r.drivers[name]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.drivers, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	cleanupErr := drv.Cleanup(ctx)
	r.mu.Unlock()

	r.logger.Info("peripheral removed", "name", name)

	if r.store != nil {
		if err := r.store.Delete(ctx, name); err != nil {
			r.logger.Error("deleting stored peripheral failed", "name", name, "error", err)
		}
	}

	if cleanupErr != nil {
		return fmt.Errorf("cleanup %s: %w", name, cleanupErr)
	}
	return nil
}

// Get returns the driver registered as name.
func (r *Registry) Get(name string) (Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	drv, ok := r.drivers[name]
	return drv, ok
}

// All returns the registered drivers in insertion order.
func (r *Registry) All() []Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Driver, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.drivers[name])
	}
	return out
}

// Infos describes the registered drivers in insertion order.
func (r *Registry) Infos() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Describe(r.drivers[name]))
	}
	return out
}

// Names returns the registered names in insertion order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered drivers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Each calls fn for every driver in insertion order while holding the lock.
// fn must not call back into the registry.
func (r *Registry) Each(fn func(Driver)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range r.order {
		fn(r.drivers[name])
	}
}

// Do calls fn with the driver registered as name while holding the lock.
// It returns ErrUnknownDevice when name is absent.
func (r *Registry) Do(name string, fn func(Driver) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drv, ok := r.drivers[name]
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownDevice)
	}
	return fn(drv)
}

// Drain cleans up every driver in insertion order and empties the registry.
// Stored records are kept so the set can be restored on the next start.
// Once drained, Create fails with ErrNotReady.
func (r *Registry) Drain(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for _, name := range r.order {
		if err := r.drivers[name].Cleanup(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cleanup %s: %w", name, err))
		}
	}
	if len(r.order) > 0 {
		r.logger.Info("registry drained", "count", len(r.order))
	}
	r.order = nil
	r.drivers = make(map[string]Driver)
	r.drained = true
	return errs
}

// Restore recreates the peripherals held in the store, in stored order.
// Names already registered are left alone. Failures are logged and skipped.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	records, err := r.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading stored peripherals: %w", err)
	}

	restored := 0
	for _, rec := range records {
		if _, exists := r.Get(rec.Name); exists {
			continue
		}
		if err := r.Create(ctx, rec.Name, rec.Type, rec.Address); err != nil {
			r.logger.Warn("restoring peripheral failed", "name", rec.Name, "error", err)
			continue
		}
		restored++
	}
	return restored, nil
}
