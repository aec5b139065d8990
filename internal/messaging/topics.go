package messaging

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when Topics is built with an empty prefix.
const DefaultTopicPrefix = "graylogic/cluster"

// Topics builds the cluster messaging topic names.
//
//	topics := messaging.Topics{Prefix: "graylogic/cluster"}
//	topics.Send("node-1")
//	// Returns: "graylogic/cluster/node/node-1/send"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Send returns the topic of messages addressed to serverID.
func (t Topics) Send(serverID string) string {
	return fmt.Sprintf("%s/node/%s/send", t.prefix(), serverID)
}

// StateRequest returns the topic of state queries addressed to serverID.
func (t Topics) StateRequest(serverID string) string {
	return fmt.Sprintf("%s/node/%s/state/request", t.prefix(), serverID)
}

// StateReply returns the topic answers to one state query are published on.
func (t Topics) StateReply(requestID string) string {
	return fmt.Sprintf("%s/state/reply/%s", t.prefix(), requestID)
}

// Reply returns the topic replies to one device message are published on.
func (t Topics) Reply(deviceID, messageID string) string {
	return fmt.Sprintf("%s/reply/%s/%s", t.prefix(), deviceID, messageID)
}

// DeviceState returns the topic device online/offline events are published on.
func (t Topics) DeviceState() string {
	return t.prefix() + "/device/state"
}

// DeviceEvent returns the topic events reported by deviceID are published on.
func (t Topics) DeviceEvent(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/event", t.prefix(), deviceID)
}

// AllDeviceEvents returns a pattern matching every device event topic.
func (t Topics) AllDeviceEvents() string {
	return t.prefix() + "/device/+/event"
}

// checkID rejects ids that would change the shape of a topic name.
func checkID(kind, id string) error {
	if id == "" || strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("%w: %s %q", ErrInvalidID, kind, id)
	}
	return nil
}
