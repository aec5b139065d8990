package message

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failed (or provisional) reply.
type ErrorCode string

// Reply codes.
const (
	CodeClientOffline        ErrorCode = "CLIENT_OFFLINE"
	CodeRequestHandling      ErrorCode = "REQUEST_HANDLING"
	CodeSystemError          ErrorCode = "SYSTEM_ERROR"
	CodeUnsupportedMessage   ErrorCode = "UNSUPPORTED_MESSAGE"
	CodeUnknownProtocol      ErrorCode = "UNKNOWN_PROTOCOL"
	CodeUnsupportedTransport ErrorCode = "UNSUPPORTED_TRANSPORT"
	CodeSendFailed           ErrorCode = "SEND_FAILED"
	CodeTimeout              ErrorCode = "TIME_OUT"
)

var codeText = map[ErrorCode]string{
	CodeClientOffline:        "device is not online",
	CodeRequestHandling:      "request is being handled",
	CodeSystemError:          "system error",
	CodeUnsupportedMessage:   "unsupported message",
	CodeUnknownProtocol:      "device protocol is not available",
	CodeUnsupportedTransport: "protocol does not support the session transport",
	CodeSendFailed:           "session refused the message",
	CodeTimeout:              "timed out waiting for the device reply",
}

// Text returns the fixed human-readable text of the code.
func (c ErrorCode) Text() string {
	if t, ok := codeText[c]; ok {
		return t
	}
	return string(c)
}

// CodedError attaches an ErrorCode to an error.
type CodedError struct {
	Code ErrorCode
	Err  error
}

// NewError wraps err with code. A nil err uses the code text.
func NewError(code ErrorCode, err error) *CodedError {
	if err == nil {
		err = errors.New(code.Text())
	}
	return &CodedError{Code: code, Err: err}
}

// Errorf formats an error carrying code.
func Errorf(code ErrorCode, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Err: fmt.Errorf(format, args...)}
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code carried by err, or CodeSystemError.
func CodeOf(err error) ErrorCode {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeSystemError
}
