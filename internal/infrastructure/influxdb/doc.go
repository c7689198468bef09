// Package influxdb records peripheral readings in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Writes go through the
// non-blocking WriteAPI, so the poll loop never waits on the database;
// points are batched and flushed in the background and write failures are
// reported through SetOnError.
//
// Each reading becomes one point:
//
//	peripheral_reading,peripheral=adc1 v0=1.02,v1=0.5,v2=3.3,v3=0
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("adc1", []float64{1.02, 0.5, 3.3, 0}, time.Now())
package influxdb
