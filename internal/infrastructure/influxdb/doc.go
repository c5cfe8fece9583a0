// Package influxdb provides InfluxDB connectivity for registry statistics.
//
// It wraps the official influxdb-client-go v2 library. After each liveness
// sweep the registry writes a registry_sweep point with the online and
// offline device counts, the number of transitions, and the pass duration.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSweep(influxdb.SweepStats{At: time.Now(), Online: 12, Offline: 3})
//
// # Error Handling
//
// Writes are non-blocking. Batch failures are delivered to the callback set
// with SetOnError; connection and health check errors are returned directly.
package influxdb
