package dispatch

import "errors"

var (
	// ErrInvalidOptions is returned by New when a required option is missing.
	ErrInvalidOptions = errors.New("dispatch: invalid options")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("dispatch: already started")

	// ErrNoOperator is returned for sessions that carry no device operator.
	ErrNoOperator = errors.New("dispatch: session has no device operator")

	// ErrCodecPanic is returned when a codec panics while encoding.
	ErrCodecPanic = errors.New("dispatch: codec panicked")
)
