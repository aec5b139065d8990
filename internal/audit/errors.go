package audit

import "errors"

// ErrInvalidEntry is returned when an entry has no action or source.
var ErrInvalidEntry = errors.New("audit: action and source are required")
