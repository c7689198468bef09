package osc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultSendTimeout bounds one write when the caller sets no deadline.
const DefaultSendTimeout = time.Second

// Sender writes OSC packets to one UDP target from an unconnected socket,
// so a receiver that is not running yet does not poison later sends.
type Sender struct {
	conn   net.PacketConn
	target net.Addr

	closeOnce sync.Once
	sent      atomic.Uint64
}

// NewSender resolves target ("host:port") and opens a local UDP socket.
func NewSender(target string) (*Sender, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("osc: resolve target %s: %w", target, err)
	}
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("%w: sender socket: %w", ErrBind, err)
	}
	return &Sender{conn: conn, target: addr}, nil
}

// Target returns the destination address.
func (s *Sender) Target() net.Addr {
	return s.target
}

// Send writes a single message.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	return s.write(ctx, data)
}

// SendBundle writes msgs as one bundle in a single datagram.
func (s *Sender) SendBundle(ctx context.Context, at time.Time, msgs []Message) error {
	data, err := EncodeBundle(at, msgs)
	if err != nil {
		return err
	}
	return s.write(ctx, data)
}

func (s *Sender) write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultSendTimeout)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrSendFailed, err)
	}
	if _, err := s.conn.WriteTo(data, s.target); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSendFailed, s.target, err)
	}
	s.sent.Add(1)
	return nil
}

// Sent returns the number of datagrams written.
func (s *Sender) Sent() uint64 {
	return s.sent.Load()
}

// Close releases the socket. Safe to call multiple times.
func (s *Sender) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}
