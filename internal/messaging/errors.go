package messaging

import "errors"

var (
	// ErrInvalidID is returned for server, device or message ids that are
	// empty or contain topic separators or wildcards.
	ErrInvalidID = errors.New("messaging: invalid id")

	// ErrNoListener is returned when a message reached no node.
	ErrNoListener = errors.New("messaging: no node is listening")

	// ErrUnexpectedReply is returned when a reply topic carried something
	// other than a reply.
	ErrUnexpectedReply = errors.New("messaging: unexpected message on reply topic")
)
