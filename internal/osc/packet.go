package osc

import (
	"fmt"
	"strings"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"
)

// Message is one decoded OSC message.
//
// Args hold the wire types go-osc produces: int32, int64, float32, float64,
// string, bool, nil and []byte.
type Message struct {
	Address string
	Args    []any
}

// String renders the message the way it would be typed into a patch.
func (m Message) String() string {
	var b strings.Builder
	b.WriteString(m.Address)
	for _, a := range m.Args {
		fmt.Fprintf(&b, " %v", a)
	}
	return b.String()
}

// Decode parses one datagram. Bundles are flattened: a bundle's own messages
// come first, followed by the contents of nested bundles.
func Decode(data []byte) ([]Message, error) {
	pkt, err := goosc.ParsePacket(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPacket, err)
	}
	return flatten(pkt, nil), nil
}

func flatten(pkt goosc.Packet, out []Message) []Message {
	switch p := pkt.(type) {
	case *goosc.Message:
		out = append(out, Message{Address: p.Address, Args: p.Arguments})
	case *goosc.Bundle:
		for _, m := range p.Messages {
			out = flatten(m, out)
		}
		for _, b := range p.Bundles {
			out = flatten(b, out)
		}
	}
	return out
}

// EncodeMessage marshals a single message.
func EncodeMessage(m Message) ([]byte, error) {
	if err := validAddress(m.Address); err != nil {
		return nil, err
	}
	data, err := goosc.NewMessage(m.Address, m.Args...).MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %w", ErrSendFailed, m.Address, err)
	}
	return data, nil
}

// EncodeBundle marshals msgs into one bundle stamped with at.
// An empty msgs produces a valid bundle with no elements.
func EncodeBundle(at time.Time, msgs []Message) ([]byte, error) {
	bundle := goosc.NewBundle(at)
	for _, m := range msgs {
		if err := validAddress(m.Address); err != nil {
			return nil, err
		}
		if err := bundle.Append(goosc.NewMessage(m.Address, m.Args...)); err != nil {
			return nil, fmt.Errorf("%w: bundle %s: %w", ErrSendFailed, m.Address, err)
		}
	}
	data, err := bundle.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: encode bundle: %w", ErrSendFailed, err)
	}
	return data, nil
}

// Float32s converts readings to the float32 arguments Pure Data expects.
func Float32s(values []float64) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = float32(v)
	}
	return args
}

// SplitAddress trims the leading slash and returns the first path segment
// and the remainder joined with '/'.
//
//	"/touch1/threshold" -> "touch1", "threshold"
//	"/oled/fill/rect"   -> "oled", "fill/rect"
//	"/list"             -> "list", ""
func SplitAddress(addr string) (head, rest string) {
	addr = strings.TrimPrefix(addr, "/")
	head, rest, _ = strings.Cut(addr, "/")
	return head, rest
}

func validAddress(addr string) error {
	if addr == "" || addr[0] != '/' {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nil
}
