package messaging

import "github.com/nerrad567/gray-logic-dispatch/internal/message"

// StateRequest asks one node which of DeviceIDs it holds a session for.
type StateRequest struct {
	RequestID string   `json:"request_id"`
	DeviceIDs []string `json:"device_ids"`
}

// StateReply is one node's answer to a StateRequest.
type StateReply struct {
	RequestID string                    `json:"request_id"`
	ServerID  string                    `json:"server_id"`
	States    []message.DeviceStateInfo `json:"states"`
}
