// Package api implements the HTTP admin API and WebSocket stream for the
// bridge.
//
// This package provides:
//   - REST endpoints to list, create and remove peripherals
//   - Poll rate control and device command dispatch
//   - Runtime and bridge counters at /api/v1/metrics
//   - A WebSocket hub that streams every published batch
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API sits beside the OSC listener as a second control surface. Both
// reach the same registry and router, so a peripheral created over HTTP is
// polled and addressed over OSC like any other.
//
// The Hub implements bridge.Publisher and is added to the publish fanout as
// a mirror; clients subscribe to the "batch" channel to receive readings.
package api
