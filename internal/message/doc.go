// Package message defines the device message model carried between the
// nodes of a dispatch cluster.
//
// Requests addressed to a device implement DeviceMessage. Request types that
// have a matching typed reply also implement Repayable. Every reply
// implements DeviceMessageReply and is correlated to its request by message
// id and device id.
//
// Messages cross the backplane as JSON objects carrying a "message_type"
// discriminator; Decode returns the concrete Go type:
//
//	data, _ := message.Encode(message.NewReadProperty("dev-1", "temperature"))
//	msg, _ := message.Decode(data) // *message.ReadPropertyMessage
//
// Failed replies carry an ErrorCode. Errors that should surface with a
// specific code are wrapped in a *CodedError; CodeOf recovers it through
// any %w chain.
package message
