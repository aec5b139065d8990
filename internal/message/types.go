package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType is the wire discriminator of a message.
type MessageType string

// Message types.
const (
	TypeReadProperty        MessageType = "READ_PROPERTY"
	TypeReadPropertyReply   MessageType = "READ_PROPERTY_REPLY"
	TypeWriteProperty       MessageType = "WRITE_PROPERTY"
	TypeWritePropertyReply  MessageType = "WRITE_PROPERTY_REPLY"
	TypeFunctionInvoke      MessageType = "INVOKE_FUNCTION"
	TypeFunctionInvokeReply MessageType = "INVOKE_FUNCTION_REPLY"
	TypeDisconnect          MessageType = "DISCONNECT"
	TypeDisconnectReply     MessageType = "DISCONNECT_REPLY"
	TypeEvent               MessageType = "EVENT"
	TypeBroadcast           MessageType = "BROADCAST"
	TypeReply               MessageType = "REPLY"
)

// HeaderAsync marks a request whose caller only wants an acknowledgement
// that the session accepted it.
const HeaderAsync = "async"

// Message is anything carried on a node's send stream.
type Message interface {
	Type() MessageType
	MessageID() string
	Timestamp() time.Time
	Headers() Headers
}

// DeviceMessage is a message addressed to one device.
type DeviceMessage interface {
	Message
	DeviceID() string
	Header(key string) (any, bool)
}

// Repayable is implemented by request types that have a typed reply.
type Repayable interface {
	DeviceMessage
	NewReply() DeviceMessageReply
}

// Headers are free-form message headers.
type Headers map[string]any

// Bool reads a boolean header. String values "true"/"1" also count as true.
func (h Headers) Bool(key string) bool {
	switch v := h[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	default:
		return false
	}
}

// IsAsync reports whether msg carries async=true.
func IsAsync(msg DeviceMessage) bool {
	return msg.Headers().Bool(HeaderAsync)
}

// Common holds the identity fields shared by every device message.
type Common struct {
	ID        string    `json:"message_id,omitempty"`
	Device    string    `json:"device_id"`
	Time      time.Time `json:"timestamp"`
	HeaderMap Headers   `json:"headers,omitempty"`
}

// NewCommon returns a Common for deviceID with a fresh message id.
func NewCommon(deviceID string) Common {
	return Common{
		ID:     uuid.NewString(),
		Device: deviceID,
		Time:   time.Now().UTC(),
	}
}

func (c *Common) MessageID() string    { return c.ID }
func (c *Common) DeviceID() string     { return c.Device }
func (c *Common) Timestamp() time.Time { return c.Time }
func (c *Common) Headers() Headers     { return c.HeaderMap }

// SetTimestamp sets the message time.
func (c *Common) SetTimestamp(t time.Time) { c.Time = t }

// Header returns one header value.
func (c *Common) Header(key string) (any, bool) {
	v, ok := c.HeaderMap[key]
	return v, ok
}

// SetHeader sets one header value.
func (c *Common) SetHeader(key string, value any) {
	if c.HeaderMap == nil {
		c.HeaderMap = make(Headers)
	}
	c.HeaderMap[key] = value
}
