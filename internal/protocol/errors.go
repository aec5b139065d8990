package protocol

import "errors"

// Domain-specific errors for the protocol registry.
var (
	// ErrProtocolNotFound is returned when no Support is registered under an id.
	ErrProtocolNotFound = errors.New("protocol: not found")

	// ErrProtocolExists is returned when registering a duplicate id.
	ErrProtocolExists = errors.New("protocol: already registered")

	// ErrTransportNotSupported is returned when a Support has no codec for a transport.
	ErrTransportNotSupported = errors.New("protocol: transport not supported")
)
