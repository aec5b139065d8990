package message

import "errors"

// Domain-specific errors for message encoding.
var (
	// ErrUnknownMessageType is returned by Decode for an unregistered discriminator.
	ErrUnknownMessageType = errors.New("message: unknown message type")

	// ErrMalformedEnvelope is returned when a payload is not a JSON object
	// with a message_type field.
	ErrMalformedEnvelope = errors.New("message: malformed envelope")

	// ErrNotAReply is returned by DecodeReply for a non-reply message.
	ErrNotAReply = errors.New("message: not a reply")
)
