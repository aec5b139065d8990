package message

import "time"

// DeviceMessageReply is the answer to one DeviceMessage.
//
// A reply is created fresh for every dispatch attempt and stamped with the
// request's message id and device id before anything else happens to it.
type DeviceMessageReply interface {
	DeviceMessage

	SetMessageID(id string)
	SetDeviceID(id string)
	SetTimestamp(t time.Time)

	// Succeed marks the reply successful.
	Succeed()
	// Fail marks the reply failed with code and text.
	Fail(code ErrorCode, text string)
	// FailWith marks the reply failed, taking the code from err (see CodeOf).
	FailWith(err error)
	// SetCode sets the code without changing the success flag.
	SetCode(code ErrorCode)
	// SetText sets the free-text message.
	SetText(text string)

	Successful() bool
	Code() ErrorCode
	Text() string
}

// ReplyCommon carries the correlation and outcome fields shared by all replies.
type ReplyCommon struct {
	Common
	Success bool      `json:"success"`
	ErrCode ErrorCode `json:"code,omitempty"`
	ErrText string    `json:"message,omitempty"`
}

func (r *ReplyCommon) SetMessageID(id string) { r.ID = id }
func (r *ReplyCommon) SetDeviceID(id string)  { r.Device = id }

func (r *ReplyCommon) Succeed() {
	r.Success = true
}

func (r *ReplyCommon) Fail(code ErrorCode, text string) {
	r.Success = false
	r.ErrCode = code
	r.ErrText = text
}

func (r *ReplyCommon) FailWith(err error) {
	r.Fail(CodeOf(err), err.Error())
}

func (r *ReplyCommon) SetCode(code ErrorCode) { r.ErrCode = code }
func (r *ReplyCommon) SetText(text string)    { r.ErrText = text }

func (r *ReplyCommon) Successful() bool { return r.Success }
func (r *ReplyCommon) Code() ErrorCode  { return r.ErrCode }
func (r *ReplyCommon) Text() string     { return r.ErrText }

// CommonReply is the generic reply for requests without a typed reply.
type CommonReply struct {
	ReplyCommon
}

func (*CommonReply) Type() MessageType { return TypeReply }

// ReadPropertyReply answers a ReadPropertyMessage.
type ReadPropertyReply struct {
	ReplyCommon
	Properties map[string]any `json:"properties,omitempty"`
}

func (*ReadPropertyReply) Type() MessageType { return TypeReadPropertyReply }

// WritePropertyReply answers a WritePropertyMessage.
type WritePropertyReply struct {
	ReplyCommon
	Properties map[string]any `json:"properties,omitempty"`
}

func (*WritePropertyReply) Type() MessageType { return TypeWritePropertyReply }

// FunctionInvokeReply answers a FunctionInvokeMessage.
type FunctionInvokeReply struct {
	ReplyCommon
	Output any `json:"output,omitempty"`
}

func (*FunctionInvokeReply) Type() MessageType { return TypeFunctionInvokeReply }

// DisconnectDeviceReply answers a DisconnectDeviceMessage.
type DisconnectDeviceReply struct {
	ReplyCommon
}

func (*DisconnectDeviceReply) Type() MessageType { return TypeDisconnectReply }

// NewReplyFor builds the reply skeleton for msg: the typed reply when msg is
// Repayable, a CommonReply otherwise, stamped with msg's identity.
func NewReplyFor(msg DeviceMessage) DeviceMessageReply {
	var reply DeviceMessageReply
	if r, ok := msg.(Repayable); ok {
		reply = r.NewReply()
	} else {
		reply = &CommonReply{}
	}
	reply.SetMessageID(msg.MessageID())
	reply.SetDeviceID(msg.DeviceID())
	reply.SetTimestamp(time.Now().UTC())
	return reply
}
