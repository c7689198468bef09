package bridge

import "errors"

// Domain errors for the bridge package.
var (
	// ErrReservedName is returned when create targets a reserved routing key.
	ErrReservedName = errors.New("bridge: name is reserved")

	// ErrEmptyAddress is returned for messages whose address has no routing key.
	ErrEmptyAddress = errors.New("bridge: empty address")

	// ErrPublishFailed is returned when the primary publisher rejects a batch.
	ErrPublishFailed = errors.New("bridge: publish failed")
)
