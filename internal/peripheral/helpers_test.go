package peripheral

import (
	"context"
	"math"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

func noSleep(context.Context, time.Duration) error { return nil }

// playback returns a bus that expects exactly ops, in order.
func playback(ops ...i2ctest.IO) *i2ctest.Playback {
	return &i2ctest.Playback{Ops: ops, DontPanic: true}
}

// assertDrained fails the test if the playback has unconsumed transactions.
func assertDrained(t *testing.T, bus *i2ctest.Playback) {
	t.Helper()
	if err := bus.Close(); err != nil {
		t.Errorf("bus playback not fully consumed: %v", err)
	}
}

func w(addr uint16, bytes ...byte) i2ctest.IO {
	return i2ctest.IO{Addr: addr, W: bytes}
}

func wr(addr uint16, write []byte, read ...byte) i2ctest.IO {
	return i2ctest.IO{Addr: addr, W: write, R: read}
}

func assertFloats(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d values %v, want %d values %v", len(got), got, len(want), want)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("value[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
