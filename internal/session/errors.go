package session

import "errors"

// Domain-specific errors for session handling.
var (
	// ErrSessionClosed is returned when sending through a closed session.
	ErrSessionClosed = errors.New("session: closed")

	// ErrManagerClosed is returned when registering after Close.
	ErrManagerClosed = errors.New("session: manager closed")

	// ErrInvalidSession is returned for sessions without a device id.
	ErrInvalidSession = errors.New("session: device id is required")
)
