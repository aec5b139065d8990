package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NodeStatus is one node's retained liveness record, published on connect,
// on graceful shutdown and by the broker as the Last Will.
type NodeStatus struct {
	ClientID  string    `json:"client_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Online reports whether the node announced itself as connected.
func (s NodeStatus) Online() bool {
	return s.Status == "online"
}

// ParseNodeStatus decodes a node status payload received on topic.
// The client ID falls back to the topic segment when the payload omits it.
func ParseNodeStatus(topic string, payload []byte) (NodeStatus, error) {
	var st NodeStatus
	if err := json.Unmarshal(payload, &st); err != nil {
		return NodeStatus{}, fmt.Errorf("%w: %w", ErrInvalidNodeStatus, err)
	}
	if st.Status != "online" && st.Status != "offline" {
		return NodeStatus{}, fmt.Errorf("%w: status %q", ErrInvalidNodeStatus, st.Status)
	}
	if st.ClientID == "" {
		parts := strings.Split(topic, "/")
		if len(parts) >= 2 {
			st.ClientID = parts[len(parts)-2]
		}
	}
	return st, nil
}

// WatchNodes subscribes to every node status topic under the prefix and
// calls fn for each peer change. This node's own status is skipped, as are
// undecodable payloads.
//
// The subscription is tracked like any other, so it survives reconnects.
// Retained statuses arrive immediately after subscribing.
func (c *Client) WatchNodes(fn func(NodeStatus)) error {
	self := c.cfg.Broker.ClientID
	return c.Subscribe(c.topics.AllNodeStatus(), byte(c.cfg.QoS), func(topic string, payload []byte) error { //nolint:gosec // QoS validated to 0-2 by config
		st, err := ParseNodeStatus(topic, payload)
		if err != nil {
			return err
		}
		if st.ClientID == self {
			return nil
		}
		fn(st)
		return nil
	})
}
