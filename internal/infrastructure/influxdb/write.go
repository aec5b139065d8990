package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementDispatch = "dispatch_outcomes"
	measurementSessions = "device_sessions"
	measurementEvents   = "device_events"
)

// WriteDispatchOutcome records how one device message dispatch ended.
//
// An empty code is stored as "none" so the tag is always present.
//
// Parameters:
//   - serverID: Node that dispatched the message
//   - deviceID: Target device
//   - outcome: Outcome name (offline, sent, accepted, failed, disconnected)
//   - code: Reply error code, empty on success
func (c *Client) WriteDispatchOutcome(serverID, deviceID, outcome, code string) {
	if code == "" {
		code = "none"
	}
	c.write(measurementDispatch,
		map[string]string{
			"server_id": serverID,
			"device_id": deviceID,
			"outcome":   outcome,
			"code":      code,
		},
		map[string]interface{}{"count": 1},
		time.Now(),
	)
}

// WriteSessionEvent records a device going online or offline on a node.
//
//	client.WriteSessionEvent("node-1", "thermostat-01", "online", time.Now())
func (c *Client) WriteSessionEvent(serverID, deviceID, state string, at time.Time) {
	online := 0
	if state == "online" {
		online = 1
	}
	c.write(measurementSessions,
		map[string]string{
			"server_id": serverID,
			"device_id": deviceID,
		},
		map[string]interface{}{"online": online},
		at,
	)
}

// WriteDeviceEvent records one event a device reported through serverID.
// kind is the event name, or the message type for non-event messages.
func (c *Client) WriteDeviceEvent(serverID, deviceID, kind string, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	c.write(measurementEvents,
		map[string]string{
			"server_id": serverID,
			"device_id": deviceID,
			"kind":      kind,
		},
		map[string]interface{}{"count": 1},
		at,
	)
}

// write queues one point; it is dropped after Close.
func (c *Client) write(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if c.closed.Load() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
