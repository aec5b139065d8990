package messaging

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/dispatch"
	"github.com/nerrad567/gray-logic-dispatch/internal/message"
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ClusterHandler implements dispatch.RequestSource on cluster topics.
type ClusterHandler struct {
	clusters *cluster.Manager
	topics   Topics
	logger   Logger
}

var _ dispatch.RequestSource = (*ClusterHandler)(nil)

// NewClusterHandler creates a handler on the topics of clusters.
func NewClusterHandler(clusters *cluster.Manager, topics Topics) *ClusterHandler {
	return &ClusterHandler{clusters: clusters, topics: topics, logger: noopLogger{}}
}

// SetLogger sets the logger for the handler.
func (h *ClusterHandler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.logger = logger
}

// Topics returns the topic layout the handler uses.
func (h *ClusterHandler) Topics() Topics {
	return h.topics
}

// HandleSendToDevice subscribes to the send topic of serverID. The returned
// channel is closed when ctx ends.
func (h *ClusterHandler) HandleSendToDevice(ctx context.Context, serverID string) (<-chan message.Message, error) {
	if err := checkID("server", serverID); err != nil {
		return nil, err
	}

	topic, err := cluster.TopicOf[message.Envelope](h.clusters, h.topics.Send(serverID))
	if err != nil {
		return nil, err
	}
	sub, err := topic.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribing send topic: %w", err)
	}

	out := make(chan message.Message)
	go func() {
		defer close(out)
		for rec := range sub.C() {
			select {
			case out <- rec.Payload.Message:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// HandleGetDeviceState answers state queries for serverID with fn until ctx ends.
func (h *ClusterHandler) HandleGetDeviceState(ctx context.Context, serverID string, fn dispatch.StateQueryFunc) error {
	if err := checkID("server", serverID); err != nil {
		return err
	}

	topic, err := cluster.TopicOf[StateRequest](h.clusters, h.topics.StateRequest(serverID))
	if err != nil {
		return err
	}
	sub, err := topic.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribing state request topic: %w", err)
	}

	go func() {
		for rec := range sub.C() {
			req := rec.Payload
			if checkID("request", req.RequestID) != nil {
				h.logger.Warn("dropping state request without valid id", "channel", rec.Topic)
				continue
			}
			answer := StateReply{
				RequestID: req.RequestID,
				ServerID:  serverID,
				States:    fn(req.DeviceIDs),
			}
			if _, err := cluster.PublishEach(ctx, h.clusters.Backplane(), h.topics.StateReply(req.RequestID), answer); err != nil {
				h.logger.Error("publishing state reply failed", "request_id", req.RequestID, "error", err)
			}
		}
	}()
	return nil
}

// Reply publishes reply on the reply topic of its device and message id.
func (h *ClusterHandler) Reply(ctx context.Context, reply message.DeviceMessageReply) error {
	if err := checkID("device", reply.DeviceID()); err != nil {
		return err
	}
	if err := checkID("message", reply.MessageID()); err != nil {
		return err
	}

	_, err := cluster.PublishEach(ctx, h.clusters.Backplane(),
		h.topics.Reply(reply.DeviceID(), reply.MessageID()),
		message.Envelope{Message: reply},
	)
	return err
}

// PublishEvent publishes a message reported by a device on its event topic.
func (h *ClusterHandler) PublishEvent(ctx context.Context, msg message.DeviceMessage) error {
	if err := checkID("device", msg.DeviceID()); err != nil {
		return err
	}
	_, err := cluster.PublishEach(ctx, h.clusters.Backplane(),
		h.topics.DeviceEvent(msg.DeviceID()),
		message.Envelope{Message: msg},
	)
	return err
}
