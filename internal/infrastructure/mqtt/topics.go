package mqtt

import "fmt"

// DefaultTopicPrefix is used when Topics is built with an empty prefix.
const DefaultTopicPrefix = "graylogic/cluster"

// Topics provides builders for the node-level MQTT topics owned by this package.
//
// Cluster messaging topics (send streams, replies, state queries) are built by
// the messaging package; this builder only covers what the connection itself
// publishes (online status and the Last Will).
//
//	topics := mqtt.Topics{Prefix: "graylogic/cluster"}
//	topics.NodeStatus("node-001")
//	// Returns: "graylogic/cluster/node/node-001/status"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// NodeStatus returns the retained status topic for one node connection.
//
// Example: graylogic/cluster/node/node-001/status
func (t Topics) NodeStatus(clientID string) string {
	return fmt.Sprintf("%s/node/%s/status", t.prefix(), clientID)
}

// AllNodeStatus returns a pattern matching every node status topic.
//
// Pattern: graylogic/cluster/node/+/status
func (t Topics) AllNodeStatus() string {
	return fmt.Sprintf("%s/node/+/status", t.prefix())
}
