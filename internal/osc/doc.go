// Package osc moves Open Sound Control packets over UDP.
//
// A Listener binds the inbound port and hands every decoded message, with
// bundles unpacked in order, to a Handler on its read goroutine. A Sender
// writes single messages or timestamped bundles to a fixed target, which is
// how reading batches reach Pure Data.
//
// Wire encoding is github.com/hypebeast/go-osc; this package owns the
// sockets so bind failures surface at startup and shutdown is explicit.
package osc
