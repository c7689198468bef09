package peripheral

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Valid 7-bit I2C address range. 0x00-0x02 and 0x78-0x7F are reserved by the bus.
const (
	MinAddress uint16 = 0x03
	MaxAddress uint16 = 0x77
)

// ParseAddress converts a create argument into an I2C address.
//
// Strings are read as hex, with or without a 0x prefix ("0x48", "48").
// Numbers are used as-is. The result must lie in 0x03-0x77.
func ParseAddress(v any) (uint16, error) {
	var n int64
	switch a := v.(type) {
	case string:
		s := strings.TrimSpace(a)
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		parsed, err := strconv.ParseUint(s, 16, 16)
		if err != nil {
			return 0, fmt.Errorf("address %q: %w", a, ErrInvalidAddress)
		}
		n = int64(parsed)
	case bool, nil:
		return 0, fmt.Errorf("address %v: %w", v, ErrInvalidAddress)
	default:
		parsed, err := cast.ToInt64E(v)
		if err != nil {
			return 0, fmt.Errorf("address %v: %w", v, ErrInvalidAddress)
		}
		n = parsed
	}

	if n < int64(MinAddress) || n > int64(MaxAddress) {
		return 0, fmt.Errorf("address 0x%02x outside 0x%02x-0x%02x: %w", n, MinAddress, MaxAddress, ErrInvalidAddress)
	}
	return uint16(n), nil
}

// FormatAddress renders an address the way operators type it.
func FormatAddress(addr uint16) string {
	return fmt.Sprintf("0x%02x", addr)
}

// ValidateName checks that name can be used as a routing key.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/ \t\r\n#*?,[]{}") {
		return fmt.Errorf("%q contains reserved characters: %w", name, ErrInvalidName)
	}
	return nil
}

// command arguments arrive from OSC as int32, float32 or string; these
// helpers coerce them and turn failures into ErrInvalidArgument.

func needArgs(command string, args []any, n int) error {
	if len(args) < n {
		return fmt.Errorf("%s needs %d arguments, got %d: %w", command, n, len(args), ErrInvalidArgument)
	}
	return nil
}

func intArg(command string, args []any, i int) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s: missing argument %d: %w", command, i+1, ErrInvalidArgument)
	}
	if _, ok := args[i].(bool); ok {
		return 0, fmt.Errorf("%s: argument %d: bool is not a number: %w", command, i+1, ErrInvalidArgument)
	}
	n, err := cast.ToIntE(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s: argument %d %v: %w", command, i+1, args[i], ErrInvalidArgument)
	}
	return n, nil
}

func intArgIn(command string, args []any, i, lo, hi int) (int, error) {
	n, err := intArg(command, args, i)
	if err != nil {
		return 0, err
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s: argument %d = %d outside %d-%d: %w", command, i+1, n, lo, hi, ErrInvalidArgument)
	}
	return n, nil
}

// optIntArg returns def when argument i is absent.
func optIntArg(command string, args []any, i, def int) (int, error) {
	if i >= len(args) {
		return def, nil
	}
	return intArg(command, args, i)
}

func stringArg(command string, args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: missing argument %d: %w", command, i+1, ErrInvalidArgument)
	}
	s, err := cast.ToStringE(args[i])
	if err != nil {
		return "", fmt.Errorf("%s: argument %d %v: %w", command, i+1, args[i], ErrInvalidArgument)
	}
	return s, nil
}
