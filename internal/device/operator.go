package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/gray-logic-dispatch/internal/message"
	"github.com/nerrad567/gray-logic-dispatch/internal/protocol"
)

// Catalogue looks devices up by id. Registry implements it.
type Catalogue interface {
	GetDevice(ctx context.Context, id string) (*Device, error)
}

// ProtocolResolver returns the protocol support registered under an id.
// protocol.Registry implements it.
type ProtocolResolver interface {
	Get(id string) (protocol.Support, error)
}

// Operator implements protocol.DeviceOperator for a catalogued device.
type Operator struct {
	deviceID  string
	catalogue Catalogue
	protocols ProtocolResolver
}

// NewOperator creates an operator for deviceID.
func NewOperator(deviceID string, catalogue Catalogue, protocols ProtocolResolver) *Operator {
	return &Operator{deviceID: deviceID, catalogue: catalogue, protocols: protocols}
}

// DeviceID returns the device id.
func (o *Operator) DeviceID() string {
	return o.deviceID
}

// Protocol resolves the device's protocol. Every failure to produce a usable
// protocol is coded UNKNOWN_PROTOCOL; catalogue errors other than not-found
// keep their own cause but carry the same code.
func (o *Operator) Protocol(ctx context.Context) (protocol.Support, error) {
	d, err := o.catalogue.GetDevice(ctx, o.deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, message.NewError(message.CodeUnknownProtocol, fmt.Errorf("%w: %s", err, o.deviceID))
		}
		return nil, message.NewError(message.CodeUnknownProtocol, fmt.Errorf("looking up device %s: %w", o.deviceID, err))
	}
	if !d.Enabled {
		return nil, message.NewError(message.CodeUnknownProtocol, fmt.Errorf("%w: %s", ErrDeviceDisabled, o.deviceID))
	}
	return o.protocols.Get(d.Protocol)
}
