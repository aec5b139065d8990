package session

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-dispatch/internal/message"
	"github.com/nerrad567/gray-logic-dispatch/internal/protocol"
)

// Session is a node-local handle to one device's live connection.
//
// Implementations must be safe for concurrent use.
type Session interface {
	// ID identifies the connection; it changes when a device reconnects.
	ID() string

	DeviceID() string

	Operator() protocol.DeviceOperator

	Transport() protocol.Transport

	// Send writes one encoded frame. It returns false when the session
	// refused the frame without a transport error, e.g. after close.
	Send(ctx context.Context, msg protocol.EncodedMessage) (bool, error)

	// Close terminates the connection. It is safe to call more than once.
	Close() error
}

// DeviceStateEvent is published on the cluster device state topic when a
// device comes online or goes offline on a node.
type DeviceStateEvent struct {
	DeviceID  string              `json:"device_id"`
	State     message.DeviceState `json:"state"`
	ServerID  string              `json:"server_id"`
	Timestamp time.Time           `json:"timestamp"`
}
