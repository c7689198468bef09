// Package bridge connects the peripheral registry to the outside world.
//
// The Poller reads every registered driver on a timer and hands one Batch
// per tick to a Publisher. The Router turns inbound OSC-style addresses into
// registry operations or driver commands. Bridge owns both loops plus the
// OSC listener and tears them down in order: listener, poller, then the
// registry's drivers.
//
// Publishers are composable: the OSC sender is the primary sink and MQTT,
// InfluxDB and WebSocket mirrors are attached with Fanout.
package bridge
