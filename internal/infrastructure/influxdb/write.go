package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementSweep = "registry_sweep"
)

// SweepStats is one liveness sweep as stored in InfluxDB.
type SweepStats struct {
	At           time.Time
	Online       int
	Offline      int
	Transitioned int
	Duration     time.Duration
}

// WriteSweep records the outcome of a liveness sweep as a registry_sweep
// point tagged with the service ID.
//
// The write is non-blocking; points are batched and sent asynchronously.
//
// Example:
//
//	client.WriteSweep(influxdb.SweepStats{At: now, Online: 12, Offline: 3, Transitioned: 1})
func (c *Client) WriteSweep(stats SweepStats) {
	if !c.IsConnected() {
		return
	}
	c.mu.RLock()
	serviceID := c.serviceID
	c.mu.RUnlock()

	c.writeAPI.WritePoint(sweepPoint(serviceID, stats))
}

// WritePoint writes a custom point stamped with the current time.
//
// Example:
//
//	client.WritePoint("registry_events",
//	    map[string]string{"type": "device.registered"},
//	    map[string]interface{}{"count": 1})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

// sweepPoint builds the registry_sweep point for stats.
func sweepPoint(serviceID string, stats SweepStats) *write.Point {
	at := stats.At
	if at.IsZero() {
		at = time.Now()
	}

	tags := map[string]string{}
	if serviceID != "" {
		tags["service"] = serviceID
	}

	return write.NewPoint(
		measurementSweep,
		tags,
		map[string]interface{}{
			"online":       stats.Online,
			"offline":      stats.Offline,
			"transitioned": stats.Transitioned,
			"duration_ms":  float64(stats.Duration) / float64(time.Millisecond),
		},
		at,
	)
}
