package osc

import "errors"

// Domain errors for the osc package.
var (
	// ErrBind is returned when the listen address cannot be bound.
	ErrBind = errors.New("osc: bind failed")

	// ErrMalformedPacket is returned when a datagram is not valid OSC.
	ErrMalformedPacket = errors.New("osc: malformed packet")

	// ErrInvalidAddress is returned for empty addresses or ones not starting with '/'.
	ErrInvalidAddress = errors.New("osc: invalid address")

	// ErrSendFailed is returned when a packet cannot be encoded or written.
	ErrSendFailed = errors.New("osc: send failed")
)
