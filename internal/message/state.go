package message

// DeviceState is the derived connection state of a device.
type DeviceState string

// Device states.
const (
	StateOnline  DeviceState = "online"
	StateOffline DeviceState = "offline"
)

// DeviceStateInfo is one answer of a bulk state query.
type DeviceStateInfo struct {
	DeviceID string      `json:"device_id"`
	State    DeviceState `json:"state"`
}
