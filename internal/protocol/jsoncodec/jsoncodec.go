// Package jsoncodec is the reference device protocol: device messages are
// exchanged as the same JSON envelopes the cluster uses internally.
//
// It exists so a node can be run end to end with simple WebSocket or MQTT
// devices; real deployments register their own protocol supports.
package jsoncodec

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-dispatch/internal/message"
	"github.com/nerrad567/gray-logic-dispatch/internal/protocol"
)

// ProtocolID is the id devices use in the catalogue to select this protocol.
const ProtocolID = "graylogic-json"

// ErrDeviceMismatch is returned when a device sends a message for another device.
var ErrDeviceMismatch = errors.New("jsoncodec: message device id does not match session")

// Support implements protocol.Support for the JSON envelope protocol.
type Support struct {
	codec *Codec
}

// New returns the JSON protocol support.
func New() *Support {
	return &Support{codec: &Codec{}}
}

func (s *Support) ID() string   { return ProtocolID }
func (s *Support) Name() string { return "Gray Logic JSON" }

// Codec returns the shared codec for WebSocket and MQTT sessions.
func (s *Support) Codec(_ context.Context, transport protocol.Transport) (protocol.Codec, error) {
	switch transport {
	case protocol.TransportWebSocket, protocol.TransportMQTT:
		return s.codec, nil
	default:
		return nil, protocol.UnsupportedTransport(ProtocolID, transport)
	}
}

// Codec encodes one text frame per request.
type Codec struct{}

// Encode implements protocol.Codec.
func (*Codec) Encode(_ context.Context, ectx protocol.EncodeContext) ([]protocol.EncodedMessage, error) {
	msg := ectx.Message()
	if msg.DeviceID() != ectx.Operator().DeviceID() {
		return nil, fmt.Errorf("%w: %s", ErrDeviceMismatch, msg.DeviceID())
	}

	data, err := message.Encode(msg)
	if err != nil {
		return nil, err
	}
	return []protocol.EncodedMessage{protocol.TextMessage(data)}, nil
}

// Decode implements protocol.Codec. Replies without a device id are
// attributed to the session's device.
func (*Codec) Decode(_ context.Context, dctx protocol.DecodeContext) (message.Message, error) {
	msg, err := message.Decode(dctx.Frame().Payload)
	if err != nil {
		return nil, err
	}

	deviceID := dctx.Operator().DeviceID()
	switch m := msg.(type) {
	case message.DeviceMessageReply:
		if m.DeviceID() == "" {
			m.SetDeviceID(deviceID)
		}
		if m.DeviceID() != deviceID {
			return nil, fmt.Errorf("%w: %s", ErrDeviceMismatch, m.DeviceID())
		}
	case message.DeviceMessage:
		if m.DeviceID() != deviceID {
			return nil, fmt.Errorf("%w: %s", ErrDeviceMismatch, m.DeviceID())
		}
	}
	return msg, nil
}
