package message

import "time"

// ReadPropertyMessage asks a device for property values.
type ReadPropertyMessage struct {
	Common
	Properties []string `json:"properties"`
}

// NewReadProperty builds a read request for deviceID.
func NewReadProperty(deviceID string, properties ...string) *ReadPropertyMessage {
	return &ReadPropertyMessage{Common: NewCommon(deviceID), Properties: properties}
}

func (*ReadPropertyMessage) Type() MessageType { return TypeReadProperty }

func (*ReadPropertyMessage) NewReply() DeviceMessageReply { return &ReadPropertyReply{} }

// WritePropertyMessage sets property values on a device.
type WritePropertyMessage struct {
	Common
	Properties map[string]any `json:"properties"`
}

// NewWriteProperty builds a write request for deviceID.
func NewWriteProperty(deviceID string, properties map[string]any) *WritePropertyMessage {
	return &WritePropertyMessage{Common: NewCommon(deviceID), Properties: properties}
}

func (*WritePropertyMessage) Type() MessageType { return TypeWriteProperty }

func (*WritePropertyMessage) NewReply() DeviceMessageReply { return &WritePropertyReply{} }

// FunctionInvokeMessage invokes a device function.
type FunctionInvokeMessage struct {
	Common
	FunctionID string         `json:"function_id"`
	Inputs     map[string]any `json:"inputs,omitempty"`
}

// NewFunctionInvoke builds a function call for deviceID.
func NewFunctionInvoke(deviceID, functionID string, inputs map[string]any) *FunctionInvokeMessage {
	return &FunctionInvokeMessage{Common: NewCommon(deviceID), FunctionID: functionID, Inputs: inputs}
}

func (*FunctionInvokeMessage) Type() MessageType { return TypeFunctionInvoke }

func (*FunctionInvokeMessage) NewReply() DeviceMessageReply { return &FunctionInvokeReply{} }

// DisconnectDeviceMessage asks the node holding the device's session to
// drop it. It is never encoded for the device.
type DisconnectDeviceMessage struct {
	Common
}

// NewDisconnect builds a disconnect command for deviceID.
func NewDisconnect(deviceID string) *DisconnectDeviceMessage {
	return &DisconnectDeviceMessage{Common: NewCommon(deviceID)}
}

func (*DisconnectDeviceMessage) Type() MessageType { return TypeDisconnect }

func (*DisconnectDeviceMessage) NewReply() DeviceMessageReply { return &DisconnectDeviceReply{} }

// EventMessage is a device message without a typed reply, such as an event
// forwarded back down to the device.
type EventMessage struct {
	Common
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// NewEvent builds an event message for deviceID.
func NewEvent(deviceID, event string, data any) *EventMessage {
	return &EventMessage{Common: NewCommon(deviceID), Event: event, Data: data}
}

func (*EventMessage) Type() MessageType { return TypeEvent }

// BroadcastMessage targets every device matching Address rather than one
// device. Dispatch accepts it on the send stream but does not deliver it.
type BroadcastMessage struct {
	ID        string    `json:"message_id,omitempty"`
	Time      time.Time `json:"timestamp"`
	HeaderMap Headers   `json:"headers,omitempty"`
	Address   string    `json:"address"`
	Payload   any       `json:"payload,omitempty"`
}

func (*BroadcastMessage) Type() MessageType      { return TypeBroadcast }
func (m *BroadcastMessage) MessageID() string    { return m.ID }
func (m *BroadcastMessage) Timestamp() time.Time { return m.Time }
func (m *BroadcastMessage) Headers() Headers     { return m.HeaderMap }
