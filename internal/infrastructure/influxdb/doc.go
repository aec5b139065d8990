// Package influxdb provides InfluxDB connectivity for a dispatch node.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes and health monitoring.
//
// # Purpose
//
// This package keeps a time-series history of:
//   - Dispatch outcomes per device (measurement dispatch_outcomes)
//   - Device session online/offline events (measurement device_sessions)
//   - Events reported by devices connected to this node (measurement device_events)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteDispatchOutcome("node-1", "thermostat-01", "failed", "SEND_FAILED")
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are reported via a callback.
// Connection and health check errors are returned directly.
package influxdb
