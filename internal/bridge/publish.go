package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/iobridge/internal/osc"
)

// Entry is one peripheral's flattened reading.
type Entry struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Batch is every successful reading from one poll tick, in registry order.
type Batch struct {
	Time    time.Time `json:"ts"`
	Entries []Entry   `json:"entries"`
}

// Publisher delivers a batch to one sink.
type Publisher interface {
	Publish(ctx context.Context, batch Batch) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, batch Batch) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, batch Batch) error {
	return f(ctx, batch)
}

// BundleSender is the part of osc.Sender the OSC publisher needs.
type BundleSender interface {
	SendBundle(ctx context.Context, at time.Time, msgs []osc.Message) error
}

// OSCPublisher sends each batch as one bundle holding a "/<name>" message
// per entry with float32 arguments.
type OSCPublisher struct {
	sender BundleSender
}

// NewOSCPublisher wraps sender.
func NewOSCPublisher(sender BundleSender) *OSCPublisher {
	return &OSCPublisher{sender: sender}
}

// Publish implements Publisher.
func (p *OSCPublisher) Publish(ctx context.Context, batch Batch) error {
	msgs := make([]osc.Message, len(batch.Entries))
	for i, e := range batch.Entries {
		msgs[i] = osc.Message{Address: "/" + e.Name, Args: osc.Float32s(e.Values)}
	}
	return p.sender.SendBundle(ctx, batch.Time, msgs)
}

// Fanout publishes to a primary sink and any number of best-effort mirrors.
// Only the primary's error is returned; mirror errors are logged.
type Fanout struct {
	primary Publisher
	mirrors []namedPublisher
	logger  Logger
}

type namedPublisher struct {
	name string
	pub  Publisher
}

// NewFanout creates a fan-out around primary.
func NewFanout(primary Publisher) *Fanout {
	return &Fanout{primary: primary, logger: noopLogger{}}
}

// SetLogger sets the logger used for mirror failures.
func (f *Fanout) SetLogger(logger Logger) {
	f.logger = logger
}

// AddMirror attaches a best-effort sink. Not safe once publishing has started.
func (f *Fanout) AddMirror(name string, pub Publisher) {
	f.mirrors = append(f.mirrors, namedPublisher{name: name, pub: pub})
}

// Mirrors returns the names of attached mirrors.
func (f *Fanout) Mirrors() []string {
	names := make([]string, len(f.mirrors))
	for i, m := range f.mirrors {
		names[i] = m.name
	}
	return names
}

// Publish implements Publisher.
func (f *Fanout) Publish(ctx context.Context, batch Batch) error {
	var primaryErr error
	if err := f.primary.Publish(ctx, batch); err != nil {
		primaryErr = fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	for _, m := range f.mirrors {
		if err := m.pub.Publish(ctx, batch); err != nil {
			f.logger.Warn("mirror publish failed", "mirror", m.name, "error", err)
		}
	}
	return primaryErr
}
