package bridge

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nerrad567/iobridge/internal/peripheral"
)

// Poll rate limits.
const (
	// MinRateHz is the slowest accepted poll rate; lower requests are clamped.
	MinRateHz = 0.1

	// MaxRateHz is the fastest accepted poll rate; higher requests are clamped.
	// At this rate a tick still leaves the bus free for routed commands.
	MaxRateHz = 1000.0

	// MinInterval is the shortest wait between ticks.
	MinInterval = time.Millisecond

	// DefaultRateHz is used when no rate is configured.
	DefaultRateHz = 10.0
)

// PollerStats holds poll loop counters.
type PollerStats struct {
	RateHz        float64
	Ticks         uint64
	Published     uint64
	ReadErrors    uint64
	PublishErrors uint64
	LastBatchSize int
	LastTick      time.Time
}

// Poller reads every registered driver once per interval and publishes the
// results as one Batch.
//
// Thread Safety: SetRate, Rate and Stats are safe for concurrent use with Run.
type Poller struct {
	registry  *peripheral.Registry
	publisher Publisher
	clock     clock.Clock
	logger    Logger

	rateMu sync.RWMutex
	rate   float64

	ticks         atomic.Uint64
	published     atomic.Uint64
	readErrors    atomic.Uint64
	publishErrors atomic.Uint64
	lastBatchSize atomic.Int64
	lastTick      atomic.Int64
}

// NewPoller creates a poller at DefaultRateHz using the wall clock.
func NewPoller(registry *peripheral.Registry, publisher Publisher) *Poller {
	return &Poller{
		registry:  registry,
		publisher: publisher,
		clock:     clock.New(),
		logger:    noopLogger{},
		rate:      DefaultRateHz,
	}
}

// SetLogger sets the logger for the poller.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
}

// SetClock replaces the clock. Must be called before Run.
func (p *Poller) SetClock(c clock.Clock) {
	p.clock = c
}

// SetRate changes the poll rate. Rates outside MinRateHz..MaxRateHz are
// clamped; NaN and infinities are rejected. The new rate applies from the next interval.
// It returns the rate actually in effect.
func (p *Poller) SetRate(hz float64) (float64, error) {
	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return p.Rate(), fmt.Errorf("poll rate %v: %w", hz, peripheral.ErrInvalidArgument)
	}
	if hz < MinRateHz {
		p.logger.Warn("poll rate clamped", "requested_hz", hz, "rate_hz", MinRateHz)
		hz = MinRateHz
	}
	if hz > MaxRateHz {
		p.logger.Warn("poll rate clamped", "requested_hz", hz, "rate_hz", MaxRateHz)
		hz = MaxRateHz
	}
	p.rateMu.Lock()
	p.rate = hz
	p.rateMu.Unlock()
	p.logger.Info("poll rate set", "rate_hz", hz)
	return hz, nil
}

// Rate returns the current poll rate in Hz.
func (p *Poller) Rate() float64 {
	p.rateMu.RLock()
	defer p.rateMu.RUnlock()
	return p.rate
}

// Interval returns the time between ticks at the current rate, never less
// than MinInterval.
func (p *Poller) Interval() time.Duration {
	return max(time.Duration(float64(time.Second)/p.Rate()), MinInterval)
}

// Run ticks until ctx is cancelled. A tick in progress always completes.
// The next interval is armed after each tick so rate changes take effect on
// the following wait.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "rate_hz", p.Rate())
	for {
		timer := p.clock.Timer(p.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("poller stopped", "ticks", p.ticks.Load())
			return nil
		case <-timer.C:
			_ = p.Tick(ctx) //nolint:errcheck // logged and counted in Tick
		}
	}
}

// Tick reads every driver in registry order and publishes one batch.
//
// Failed reads are logged and left out of the batch. An empty registry
// publishes nothing; a populated registry publishes even if every read
// failed. The returned error is the publisher's.
func (p *Poller) Tick(ctx context.Context) error {
	p.ticks.Add(1)
	p.lastTick.Store(p.clock.Now().UnixNano())

	var entries []Entry
	polled := 0
	p.registry.Each(func(d peripheral.Driver) {
		polled++
		v, err := d.Read(ctx)
		if err != nil {
			p.readErrors.Add(1)
			p.logger.Warn("peripheral read failed", "peripheral", d.Name(), "type", d.Type(), "error", err)
			return
		}
		entries = append(entries, Entry{Name: d.Name(), Values: v.Floats()})
	})
	if polled == 0 {
		return nil
	}

	batch := Batch{Time: p.clock.Now(), Entries: entries}
	p.lastBatchSize.Store(int64(len(entries)))
	if err := p.publisher.Publish(ctx, batch); err != nil {
		p.publishErrors.Add(1)
		p.logger.Warn("batch publish failed", "entries", len(entries), "error", err)
		return err
	}
	p.published.Add(1)
	return nil
}

// Stats returns current poll loop counters.
func (p *Poller) Stats() PollerStats {
	var last time.Time
	if ns := p.lastTick.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return PollerStats{
		RateHz:        p.Rate(),
		Ticks:         p.ticks.Load(),
		Published:     p.published.Load(),
		ReadErrors:    p.readErrors.Load(),
		PublishErrors: p.publishErrors.Load(),
		LastBatchSize: int(p.lastBatchSize.Load()),
		LastTick:      last,
	}
}
