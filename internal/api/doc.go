// Package api implements the HTTP surface of a dispatch node.
//
// This package provides:
//   - The device gateway: devices connect over WebSocket and become the
//     node's session for that device
//   - REST endpoints for the device catalogue
//   - Send and state endpoints that go through the cluster
//   - Health, status and Prometheus metrics endpoints
//   - An audit trail of catalogue changes and session activity
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Device Sessions
//
// A device connects to the gateway path (default /devices/{deviceID}/ws).
// Frames the dispatcher sends are written to the socket as text or binary
// messages. Frames the device sends are decoded with the device's protocol
// codec; replies are published to the waiting caller and anything else is
// published as a device event.
//
// # Endpoints
//
//	GET    /api/v1/health
//	GET    /api/v1/status
//	GET    /api/v1/sessions
//	GET    /api/v1/cluster/topics
//	GET    /api/v1/audit
//	POST   /api/v1/states
//	GET    /api/v1/devices
//	POST   /api/v1/devices
//	GET    /api/v1/devices/{id}
//	PATCH  /api/v1/devices/{id}
//	DELETE /api/v1/devices/{id}
//	GET    /api/v1/devices/{id}/state
//	POST   /api/v1/devices/{id}/messages
//	GET    /metrics
package api
