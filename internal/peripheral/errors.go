package peripheral

import "errors"

// Domain errors for the peripheral package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, peripheral.ErrUnknownCommand) {
//	    // warn and carry on
//	}
var (
	// ErrNotReady is returned by Read and Write outside the ready state.
	ErrNotReady = errors.New("peripheral: not ready")

	// ErrHardwareInit is returned when a device cannot be reached during Setup.
	ErrHardwareInit = errors.New("peripheral: hardware init failed")

	// ErrReadFailed is returned when a bus transaction fails during Read.
	ErrReadFailed = errors.New("peripheral: read failed")

	// ErrWriteFailed is returned when a bus transaction fails while applying a command.
	ErrWriteFailed = errors.New("peripheral: write failed")

	// ErrInvalidArgument is returned for malformed command arguments.
	ErrInvalidArgument = errors.New("peripheral: invalid argument")

	// ErrUnknownType is returned when creating a peripheral of a type not in the catalog.
	ErrUnknownType = errors.New("peripheral: unknown type")

	// ErrUnknownCommand is returned by Write for commands a driver does not implement.
	ErrUnknownCommand = errors.New("peripheral: unknown command")

	// ErrUnknownDevice is returned when a name is not in the registry.
	ErrUnknownDevice = errors.New("peripheral: unknown device")

	// ErrInvalidName is returned when a peripheral name cannot be used as a routing key.
	ErrInvalidName = errors.New("peripheral: invalid name")

	// ErrInvalidAddress is returned when an I2C address is malformed or outside 0x03-0x77.
	ErrInvalidAddress = errors.New("peripheral: invalid address")
)
