// Package peripheral drives I2C sensors and displays and keeps the registry
// of active devices.
//
// Every device implements Driver: Setup once, Read on every poll tick,
// Write for named commands, Cleanup on removal or shutdown. Drivers talk to
// hardware through a periph.io i2c.Bus, so tests can substitute i2ctest
// playback and recording buses.
//
// Supported types:
//   - ads1015, ads1115: 4-channel ADC, Sequence of volts
//   - lis3dh: 3-axis accelerometer, Fields x/y/z in g
//   - mpr121: 12-electrode capacitive touch, Sequence of filtered counts
//   - ssd1306: 128x64 OLED, drawn through a gg canvas
//
// The Registry maps unique names to drivers and preserves insertion order,
// which is the order readings are batched in. It is safe for concurrent
// use; the poller and command router both go through it.
package peripheral
