// Package metrics holds the Prometheus collectors of a dispatch node and the
// Recorder that feeds them.
//
// Recorder implements dispatch.OutcomeRecorder and cluster.Observer. When an
// OutcomeSink is attached (the InfluxDB client) every dispatch outcome is
// also written as a time-series point.
//
// Call Register once at startup; the collectors are then exposed by
// promhttp.Handler on the default registry.
package metrics
