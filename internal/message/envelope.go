package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// typeField is the JSON discriminator key.
const typeField = "message_type"

var factories = map[MessageType]func() Message{
	TypeReadProperty:        func() Message { return &ReadPropertyMessage{} },
	TypeReadPropertyReply:   func() Message { return &ReadPropertyReply{} },
	TypeWriteProperty:       func() Message { return &WritePropertyMessage{} },
	TypeWritePropertyReply:  func() Message { return &WritePropertyReply{} },
	TypeFunctionInvoke:      func() Message { return &FunctionInvokeMessage{} },
	TypeFunctionInvokeReply: func() Message { return &FunctionInvokeReply{} },
	TypeDisconnect:          func() Message { return &DisconnectDeviceMessage{} },
	TypeDisconnectReply:     func() Message { return &DisconnectDeviceReply{} },
	TypeEvent:               func() Message { return &EventMessage{} },
	TypeBroadcast:           func() Message { return &BroadcastMessage{} },
	TypeReply:               func() Message { return &CommonReply{} },
}

// Encode marshals msg as a JSON object with a message_type field.
func Encode(msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("message: encode %s: %w", msg.Type(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%w: %s does not encode to an object", ErrMalformedEnvelope, msg.Type())
	}

	typ, err := json.Marshal(msg.Type())
	if err != nil {
		return nil, fmt.Errorf("message: encode %s: %w", msg.Type(), err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(typ) + len(typeField) + 4)
	buf.WriteString(`{"` + typeField + `":`)
	buf.Write(typ)
	if rest := body[1:]; !bytes.Equal(rest, []byte("}")) {
		buf.WriteByte(',')
		buf.Write(rest)
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// Decode unmarshals an envelope produced by Encode into its concrete type.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type MessageType `json:"message_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedEnvelope, typeField)
	}

	factory, ok := factories[head.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessageType, head.Type)
	}
	msg := factory()
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("message: decode %s: %w", head.Type, err)
	}
	return msg, nil
}

// DecodeReply decodes data and requires the result to be a reply.
func DecodeReply(data []byte) (DeviceMessageReply, error) {
	msg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	reply, ok := msg.(DeviceMessageReply)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotAReply, msg.Type())
	}
	return reply, nil
}

// Envelope wraps a Message so it can be used as a cluster topic payload.
type Envelope struct {
	Message Message
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Message == nil {
		return []byte("null"), nil
	}
	return Encode(e.Message)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		return err
	}
	e.Message = msg
	return nil
}
