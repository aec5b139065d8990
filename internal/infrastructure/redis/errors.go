package redis

import "errors"

// Domain-specific errors for the Redis backplane.
var (
	// ErrConnectionFailed is returned when the initial PING fails.
	ErrConnectionFailed = errors.New("redis: connection failed")

	// ErrSubscribeFailed is returned when a pattern subscription is not confirmed.
	ErrSubscribeFailed = errors.New("redis: subscribe failed")

	// ErrPublishFailed is returned when PUBLISH fails.
	ErrPublishFailed = errors.New("redis: publish failed")

	// ErrInvalidPattern is returned for an empty or malformed topic pattern.
	ErrInvalidPattern = errors.New("redis: invalid topic pattern")

	// ErrClosed is returned by operations on a closed backplane.
	ErrClosed = errors.New("redis: backplane closed")
)
