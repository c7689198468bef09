package influxdb

import (
	"math"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement and tag names used for readings.
const (
	MeasurementReading = "peripheral_reading"
	TagPeripheral      = "peripheral"
)

// ReadingPoint builds the point for one reading. Values become fields v0..vN;
// NaN and infinities are left out because InfluxDB rejects them. It returns
// nil when no field remains.
func ReadingPoint(name string, values []float64, ts time.Time) *write.Point {
	fields := make(map[string]interface{}, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		fields["v"+strconv.Itoa(i)] = v
	}
	if len(fields) == 0 {
		return nil
	}
	return write.NewPoint(
		MeasurementReading,
		map[string]string{TagPeripheral: name},
		fields,
		ts,
	)
}

// WriteReading queues one reading. It never blocks and does nothing when
// the client is not connected.
func (c *Client) WriteReading(name string, values []float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	point := ReadingPoint(name, values, ts)
	if point == nil {
		return
	}
	c.writeAPI.WritePoint(point)
	c.points.Add(1)
}
