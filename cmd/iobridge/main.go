// iobridge connects I2C sensors and displays to a Pure Data patch over OSC.
//
// It polls every registered peripheral at a fixed rate and sends the
// readings to the patch as one OSC bundle per tick. Commands from the patch
// create peripherals, change the poll rate and drive individual devices.
//
// Optional mirrors copy each batch to MQTT, InfluxDB and a WebSocket stream;
// an HTTP API exposes the registry for administration.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/iobridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
