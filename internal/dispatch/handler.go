package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-dispatch/internal/message"
	"github.com/nerrad567/gray-logic-dispatch/internal/protocol"
	"github.com/nerrad567/gray-logic-dispatch/internal/session"
)

// Logger defines the logging interface used by the Handler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SessionRegistry is the part of the session registry the Handler uses.
// session.Manager implements it.
type SessionRegistry interface {
	Lookup(deviceID string) (session.Session, bool)
	Unregister(deviceID string) bool
}

// StateQueryFunc answers one bulk state query.
type StateQueryFunc func(deviceIDs []string) []message.DeviceStateInfo

// RequestSource supplies the inbound request streams of a node and accepts
// its replies.
type RequestSource interface {
	// HandleSendToDevice returns the stream of messages addressed to
	// serverID. The channel is closed when ctx ends.
	HandleSendToDevice(ctx context.Context, serverID string) (<-chan message.Message, error)

	// HandleGetDeviceState answers state queries addressed to serverID with
	// fn until ctx ends.
	HandleGetDeviceState(ctx context.Context, serverID string, fn StateQueryFunc) error

	// Reply delivers a reply to whoever sent the request.
	Reply(ctx context.Context, reply message.DeviceMessageReply) error
}

// Outcome classifies how one dispatch ended.
type Outcome string

// Dispatch outcomes.
const (
	OutcomeOffline      Outcome = "offline"
	OutcomeDisconnected Outcome = "disconnected"
	OutcomeSent         Outcome = "sent"
	OutcomeAccepted     Outcome = "accepted"
	OutcomeFailed       Outcome = "failed"
)

// OutcomeRecorder observes dispatch outcomes. Implementations must be cheap
// and safe for concurrent use.
type OutcomeRecorder interface {
	RecordOutcome(deviceID string, outcome Outcome, code message.ErrorCode)
}

type noopRecorder struct{}

func (noopRecorder) RecordOutcome(string, Outcome, message.ErrorCode) {}

// Options configures a Handler.
type Options struct {
	// ServerID selects the request streams this node binds to. Required.
	ServerID string

	Sessions SessionRegistry // required
	Requests RequestSource   // required

	Logger   Logger
	Recorder OutcomeRecorder
}

// Handler is the send-to-device dispatcher of one node.
//
// Thread Safety:
//   - Start and Stop may be called from any goroutine.
//   - Messages are dispatched concurrently; per message the steps run in order.
type Handler struct {
	serverID string
	sessions SessionRegistry
	requests RequestSource
	logger   Logger
	recorder OutcomeRecorder

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Handler.
func New(opts Options) (*Handler, error) {
	if opts.ServerID == "" {
		return nil, fmt.Errorf("%w: server id is required", ErrInvalidOptions)
	}
	if opts.Sessions == nil || opts.Requests == nil {
		return nil, fmt.Errorf("%w: sessions and requests are required", ErrInvalidOptions)
	}

	h := &Handler{
		serverID: opts.ServerID,
		sessions: opts.Sessions,
		requests: opts.Requests,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
	if h.logger == nil {
		h.logger = noopLogger{}
	}
	if h.recorder == nil {
		h.recorder = noopRecorder{}
	}
	return h, nil
}

// Start binds the send stream and the state query handler for the node's
// server id. Both stay bound until ctx ends or Stop is called.
func (h *Handler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)

	messages, err := h.requests.HandleSendToDevice(ctx, h.serverID)
	if err != nil {
		cancel()
		return fmt.Errorf("binding send stream: %w", err)
	}
	if err := h.requests.HandleGetDeviceState(ctx, h.serverID, h.deviceStates); err != nil {
		cancel()
		return fmt.Errorf("binding state queries: %w", err)
	}

	h.started = true
	h.cancel = cancel
	h.wg.Add(1)
	go h.loop(ctx, messages)

	h.logger.Info("dispatcher started", "server_id", h.serverID)
	return nil
}

// Stop unbinds the request streams and waits for in-flight dispatches and
// replies to finish.
func (h *Handler) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	h.wg.Wait()
	h.logger.Info("dispatcher stopped", "server_id", h.serverID)
}

// loop consumes the send stream. It only hands messages off, so a slow or
// failing dispatch never holds up the stream.
func (h *Handler) loop(ctx context.Context, messages <-chan message.Message) {
	defer h.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			h.route(ctx, msg)
		}
	}
}

func (h *Handler) route(ctx context.Context, msg message.Message) {
	switch m := msg.(type) {
	case message.DeviceMessageReply:
		h.logger.Debug("ignoring reply on send stream", "message_id", m.MessageID(), "device_id", m.DeviceID())
	case message.DeviceMessage:
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.handleDeviceMessage(ctx, m)
		}()
	case *message.BroadcastMessage:
		// Broadcast fan-out is not implemented.
		h.logger.Debug("dropping broadcast message", "message_id", m.MessageID())
	default:
		h.logger.Debug("ignoring unsupported message", "type", msg.Type(), "message_id", msg.MessageID())
	}
}

// deviceStates answers a bulk state query from the local sessions.
func (h *Handler) deviceStates(deviceIDs []string) []message.DeviceStateInfo {
	out := make([]message.DeviceStateInfo, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		state := message.StateOffline
		if _, ok := h.sessions.Lookup(id); ok {
			state = message.StateOnline
		}
		out = append(out, message.DeviceStateInfo{DeviceID: id, State: state})
	}
	return out
}

// handleDeviceMessage runs the dispatch steps for one message.
func (h *Handler) handleDeviceMessage(ctx context.Context, msg message.DeviceMessage) {
	reply := newReply(msg)
	deviceID := msg.DeviceID()

	s, ok := h.sessions.Lookup(deviceID)
	if !ok {
		h.logger.Warn("device not connected, send message failed",
			"device_id", deviceID,
			"message_id", msg.MessageID(),
		)
		reply.Fail(message.CodeClientOffline, message.CodeClientOffline.Text())
		h.reply(ctx, reply, OutcomeOffline)
		return
	}

	if _, ok := msg.(*message.DisconnectDeviceMessage); ok {
		h.sessions.Unregister(s.DeviceID())
		reply.Succeed()
		h.reply(ctx, reply, OutcomeDisconnected)
		return
	}

	accepted, err := h.send(ctx, msg, s)
	switch {
	case err != nil:
		h.logger.Error("sending message to device failed",
			"device_id", deviceID,
			"message_id", msg.MessageID(),
			"type", msg.Type(),
			"transport", s.Transport(),
			"error", err,
		)
		reply.FailWith(err)
		h.reply(ctx, reply, OutcomeFailed)
	case !accepted:
		h.logger.Warn("session refused message",
			"device_id", deviceID,
			"message_id", msg.MessageID(),
		)
		reply.Fail(message.CodeSendFailed, message.CodeSendFailed.Text())
		h.reply(ctx, reply, OutcomeFailed)
	case message.IsAsync(msg):
		reply.Succeed()
		reply.SetCode(message.CodeRequestHandling)
		reply.SetText(message.CodeRequestHandling.Text())
		h.reply(ctx, reply, OutcomeAccepted)
	default:
		// The device answers through its own session.
		h.recorder.RecordOutcome(deviceID, OutcomeSent, "")
	}
}

// send resolves the codec for s, encodes msg and writes the frames.
// It reports whether the session accepted every frame.
func (h *Handler) send(ctx context.Context, msg message.DeviceMessage, s session.Session) (accepted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			accepted = false
			err = message.NewError(message.CodeSystemError, fmt.Errorf("%w: %v", ErrCodecPanic, r))
		}
	}()

	op := s.Operator()
	if op == nil {
		return false, message.NewError(message.CodeUnknownProtocol, ErrNoOperator)
	}

	support, err := op.Protocol(ctx)
	if err != nil {
		return false, err
	}
	codec, err := support.Codec(ctx, s.Transport())
	if err != nil {
		return false, err
	}

	frames, err := codec.Encode(ctx, &encodeContext{msg: msg, session: s})
	if err != nil {
		return false, fmt.Errorf("encoding %s for %s: %w", msg.Type(), support.ID(), err)
	}

	for _, frame := range frames {
		ok, err := s.Send(ctx, frame)
		if err != nil {
			return false, message.NewError(message.CodeSendFailed, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// encodeContext is the capability surface handed to codecs.
type encodeContext struct {
	msg     message.DeviceMessage
	session session.Session
}

func (c *encodeContext) SendToDevice(ctx context.Context, frame protocol.EncodedMessage) (bool, error) {
	return c.session.Send(ctx, frame)
}

func (c *encodeContext) Disconnect(context.Context) error {
	return c.session.Close()
}

func (c *encodeContext) Message() message.DeviceMessage {
	return c.msg
}

func (c *encodeContext) Operator() protocol.DeviceOperator {
	return c.session.Operator()
}
