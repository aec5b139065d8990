package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestEncodeDecode_ConcreteTypes(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want MessageType
	}{
		{"read property", NewReadProperty("dev-1", "temperature"), TypeReadProperty},
		{"write property", NewWriteProperty("dev-1", map[string]any{"on": true}), TypeWriteProperty},
		{"function", NewFunctionInvoke("dev-1", "reboot", nil), TypeFunctionInvoke},
		{"disconnect", NewDisconnect("dev-2"), TypeDisconnect},
		{"event", NewEvent("dev-3", "alarm", map[string]any{"level": 2}), TypeEvent},
		{"broadcast", &BroadcastMessage{ID: "b1", Address: "site/*"}, TypeBroadcast},
		{"reply", &CommonReply{}, TypeReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !strings.HasPrefix(string(data), `{"message_type":"`+string(tt.want)+`"`) {
				t.Errorf("Encode() = %s, want message_type first", data)
			}

			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.Type() != tt.want {
				t.Errorf("Type() = %s, want %s", got.Type(), tt.want)
			}
			if fmt.Sprintf("%T", got) != fmt.Sprintf("%T", tt.msg) {
				t.Errorf("Decode() type = %T, want %T", got, tt.msg)
			}
			if got.MessageID() != tt.msg.MessageID() {
				t.Errorf("MessageID() = %q, want %q", got.MessageID(), tt.msg.MessageID())
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", "nope", ErrMalformedEnvelope},
		{"missing type", `{"device_id":"dev-1"}`, ErrMalformedEnvelope},
		{"unknown type", `{"message_type":"TELEPORT"}`, ErrUnknownMessageType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.data)); !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeReply(t *testing.T) {
	reply := &ReadPropertyReply{Properties: map[string]any{"temperature": 21.5}}
	reply.SetMessageID("m1")
	reply.SetDeviceID("dev-1")
	reply.Succeed()

	data, err := Encode(reply)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := DecodeReply(data)
	if err != nil {
		t.Fatalf("DecodeReply() error = %v", err)
	}
	if !got.Successful() || got.MessageID() != "m1" || got.DeviceID() != "dev-1" {
		t.Errorf("DecodeReply() = %+v", got)
	}

	req, _ := Encode(NewDisconnect("dev-1"))
	if _, err := DecodeReply(req); !errors.Is(err, ErrNotAReply) {
		t.Errorf("DecodeReply(request) error = %v, want ErrNotAReply", err)
	}
}

func TestNewReplyFor(t *testing.T) {
	tests := []struct {
		name     string
		msg      DeviceMessage
		wantType MessageType
	}{
		{"typed reply for read", NewReadProperty("dev-1"), TypeReadPropertyReply},
		{"typed reply for write", NewWriteProperty("dev-1", nil), TypeWritePropertyReply},
		{"typed reply for function", NewFunctionInvoke("dev-1", "f", nil), TypeFunctionInvokeReply},
		{"typed reply for disconnect", NewDisconnect("dev-1"), TypeDisconnectReply},
		{"generic reply for event", NewEvent("dev-1", "e", nil), TypeReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := NewReplyFor(tt.msg)
			if reply.Type() != tt.wantType {
				t.Errorf("Type() = %s, want %s", reply.Type(), tt.wantType)
			}
			if reply.MessageID() != tt.msg.MessageID() {
				t.Errorf("MessageID() = %q, want %q", reply.MessageID(), tt.msg.MessageID())
			}
			if reply.DeviceID() != tt.msg.DeviceID() {
				t.Errorf("DeviceID() = %q, want %q", reply.DeviceID(), tt.msg.DeviceID())
			}
			if reply.Successful() {
				t.Error("fresh skeleton should not be successful")
			}
		})
	}
}

func TestReply_FailWith(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{"plain error", errors.New("boom"), CodeSystemError},
		{"coded error", NewError(CodeUnknownProtocol, nil), CodeUnknownProtocol},
		{"wrapped coded error", fmt.Errorf("encode: %w", Errorf(CodeUnsupportedTransport, "no codec for %s", "coap")), CodeUnsupportedTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := &CommonReply{}
			reply.Succeed()
			reply.FailWith(tt.err)

			if reply.Successful() {
				t.Error("Successful() = true after FailWith")
			}
			if reply.Code() != tt.wantCode {
				t.Errorf("Code() = %s, want %s", reply.Code(), tt.wantCode)
			}
			if reply.Text() != tt.err.Error() {
				t.Errorf("Text() = %q, want %q", reply.Text(), tt.err.Error())
			}
		})
	}
}

func TestErrorCode_Text(t *testing.T) {
	if CodeClientOffline.Text() != "device is not online" {
		t.Errorf("CLIENT_OFFLINE text = %q", CodeClientOffline.Text())
	}
	if ErrorCode("CUSTOM").Text() != "CUSTOM" {
		t.Errorf("unknown code text = %q", ErrorCode("CUSTOM").Text())
	}
}

func TestHeaders_Async(t *testing.T) {
	tests := []struct {
		name  string
		value any
		set   bool
		want  bool
	}{
		{"absent", nil, false, false},
		{"bool true", true, true, true},
		{"bool false", false, true, false},
		{"string true", "TRUE", true, true},
		{"string one", "1", true, true},
		{"number", 1, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewFunctionInvoke("dev-1", "f", nil)
			if tt.set {
				msg.SetHeader(HeaderAsync, tt.value)
			}
			if got := IsAsync(msg); got != tt.want {
				t.Errorf("IsAsync() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnvelope_JSON(t *testing.T) {
	in := Envelope{Message: NewReadProperty("dev-1", "a", "b")}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var out Envelope
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	read, ok := out.Message.(*ReadPropertyMessage)
	if !ok {
		t.Fatalf("Message type = %T, want *ReadPropertyMessage", out.Message)
	}
	if len(read.Properties) != 2 || read.DeviceID() != "dev-1" {
		t.Errorf("decoded = %+v", read)
	}
}
