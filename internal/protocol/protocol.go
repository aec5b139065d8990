package protocol

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-dispatch/internal/message"
)

// Transport identifies how a device session is connected.
type Transport string

// Known transports.
const (
	TransportWebSocket Transport = "websocket"
	TransportMQTT      Transport = "mqtt"
	TransportTCP       Transport = "tcp"
)

// EncodedMessage is one frame ready to be written to a session.
type EncodedMessage struct {
	Payload []byte
	Binary  bool
}

// TextMessage returns a text frame.
func TextMessage(payload []byte) EncodedMessage {
	return EncodedMessage{Payload: payload}
}

// BinaryMessage returns a binary frame.
func BinaryMessage(payload []byte) EncodedMessage {
	return EncodedMessage{Payload: payload, Binary: true}
}

// DeviceOperator identifies a device and resolves its protocol.
type DeviceOperator interface {
	DeviceID() string

	// Protocol returns the device's protocol support. A device without a
	// usable protocol yields an error coded UNKNOWN_PROTOCOL.
	Protocol(ctx context.Context) (Support, error)
}

// EncodeContext is what a Codec may do while encoding a request.
type EncodeContext interface {
	// SendToDevice writes an encoded frame through the device's session.
	SendToDevice(ctx context.Context, msg EncodedMessage) (bool, error)
	// Disconnect closes the device's session.
	Disconnect(ctx context.Context) error
	// Message returns the request being encoded.
	Message() message.DeviceMessage
	// Operator returns the target device's operator.
	Operator() DeviceOperator
}

// DecodeContext is what a Codec sees while decoding a frame from a device.
type DecodeContext interface {
	Frame() EncodedMessage
	Operator() DeviceOperator
}

// Codec encodes requests for, and decodes frames from, one protocol on one
// transport.
type Codec interface {
	// Encode returns the frames to send for the request in ectx. It may
	// also send frames itself through ectx.SendToDevice and return none.
	Encode(ctx context.Context, ectx EncodeContext) ([]EncodedMessage, error)

	// Decode turns a frame received from the device into a message.
	Decode(ctx context.Context, dctx DecodeContext) (message.Message, error)
}

// Support describes one device protocol.
type Support interface {
	ID() string
	Name() string

	// Codec returns the codec for transport, or an error coded
	// UNSUPPORTED_TRANSPORT.
	Codec(ctx context.Context, transport Transport) (Codec, error)
}

// Registry holds the protocol supports known to this node.
//
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	supports map[string]Support
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{supports: make(map[string]Support)}
}

// Register adds s. Ids must be unique.
func (r *Registry) Register(s Support) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.supports[s.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrProtocolExists, s.ID())
	}
	r.supports[s.ID()] = s
	return nil
}

// Get returns the support registered under id.
func (r *Registry) Get(id string) (Support, error) {
	r.mu.RLock()
	s, ok := r.supports[id]
	r.mu.RUnlock()

	if !ok {
		return nil, message.NewError(message.CodeUnknownProtocol, fmt.Errorf("%w: %q", ErrProtocolNotFound, id))
	}
	return s, nil
}

// IDs returns the registered protocol ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.supports))
	for id := range r.supports {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UnsupportedTransport builds the error a Support returns for a transport it
// has no codec for.
func UnsupportedTransport(protocolID string, transport Transport) error {
	return message.NewError(message.CodeUnsupportedTransport,
		fmt.Errorf("%w: %s over %s", ErrTransportNotSupported, protocolID, transport))
}
