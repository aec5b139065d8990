package mqtt

import "errors"

// Sentinel errors returned by Client and Backplane; match with errors.Is.
var (
	// ErrNotConnected means the broker connection is down.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed means the initial connect did not succeed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps broker and timeout errors from Publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps broker and timeout errors from Subscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed wraps broker and timeout errors from Unsubscribe.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS means a QoS outside 0-2 was requested.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic means the topic was empty.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrInvalidNodeStatus means a node status payload could not be decoded.
	ErrInvalidNodeStatus = errors.New("mqtt: invalid node status payload")
)
