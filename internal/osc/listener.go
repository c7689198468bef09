package osc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// DefaultMaxPacketSize is the largest UDP payload over IPv4.
const DefaultMaxPacketSize = 65507

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Handler receives each decoded message in arrival order.
type Handler func(ctx context.Context, msg Message)

// ListenerStats holds listener counters.
type ListenerStats struct {
	Packets   uint64
	Messages  uint64
	Malformed uint64
}

// Listener reads OSC datagrams from a bound UDP socket.
//
// Thread Safety: Close may be called from any goroutine. Run must only be
// called once.
type Listener struct {
	conn      net.PacketConn
	handler   Handler
	maxPacket int
	logger    Logger

	closeOnce sync.Once
	closed    atomic.Bool

	packets   atomic.Uint64
	messages  atomic.Uint64
	malformed atomic.Uint64
}

// Listen binds addr ("host:port") for UDP. A bind failure wraps ErrBind.
func Listen(addr string, maxPacket int, handler Handler) (*Listener, error) {
	if handler == nil {
		return nil, fmt.Errorf("osc: handler is required")
	}
	if maxPacket <= 0 {
		maxPacket = DefaultMaxPacketSize
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBind, addr, err)
	}
	return &Listener{
		conn:      conn,
		handler:   handler,
		maxPacket: maxPacket,
		logger:    noopLogger{},
	}, nil
}

// SetLogger sets the logger for the listener.
func (l *Listener) SetLogger(logger Logger) {
	l.logger = logger
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run reads datagrams until ctx is cancelled or Close is called, and then
// returns nil. Malformed datagrams are logged and counted.
func (l *Listener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { l.Close() }) //nolint:errcheck // shutdown path
	defer stop()

	l.logger.Info("osc listener started", "addr", l.Addr().String())
	buf := make([]byte, l.maxPacket)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				l.logger.Info("osc listener stopped")
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("osc: read: %w", err)
		}
		l.packets.Add(1)

		msgs, err := Decode(buf[:n])
		if err != nil {
			l.malformed.Add(1)
			l.logger.Warn("dropping malformed osc packet", "from", from.String(), "bytes", n, "error", err)
			continue
		}
		for _, m := range msgs {
			l.messages.Add(1)
			l.logger.Debug("osc message received", "from", from.String(), "message", m.String())
			l.handler(ctx, m)
		}
	}
}

// Close unbinds the socket and unblocks Run. Safe to call multiple times.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		err = l.conn.Close()
	})
	return err
}

// Stats returns current listener counters.
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Packets:   l.packets.Load(),
		Messages:  l.messages.Load(),
		Malformed: l.malformed.Load(),
	}
}
