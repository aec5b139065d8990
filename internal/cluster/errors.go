package cluster

import "errors"

// Domain-specific errors for the topic bridge.
var (
	// ErrTopicTypeMismatch is returned by TopicOf when the name is already
	// registered with a different payload type.
	ErrTopicTypeMismatch = errors.New("cluster: topic registered with a different payload type")

	// ErrTopicClosed is returned when subscribing to a topic whose manager was closed.
	ErrTopicClosed = errors.New("cluster: topic closed")

	// ErrInvalidPattern is returned for malformed topic names.
	ErrInvalidPattern = errors.New("cluster: invalid topic pattern")

	// ErrPublishWildcard is returned when publishing to a name containing wildcards.
	ErrPublishWildcard = errors.New("cluster: cannot publish to a wildcard topic")

	// ErrBackplaneClosed is returned by a closed MemoryBackplane.
	ErrBackplaneClosed = errors.New("cluster: backplane closed")
)
