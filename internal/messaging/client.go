package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/message"
)

// Client sends device messages into the cluster and waits for replies.
//
// Bound waiting with the context: Client never times out on its own.
type Client struct {
	clusters *cluster.Manager
	topics   Topics
}

// NewClient creates a client on the topics of clusters.
func NewClient(clusters *cluster.Manager, topics Topics) *Client {
	return &Client{clusters: clusters, topics: topics}
}

// Send delivers msg to the node serverID and returns the first reply.
//
// For async requests the first reply is the provisional REQUEST_HANDLING
// one. When ctx ends first, Send returns a failed reply coded TIME_OUT and
// a nil error, the same shape a node-side failure has.
func (c *Client) Send(ctx context.Context, serverID string, msg message.DeviceMessage) (message.DeviceMessageReply, error) {
	if err := checkID("server", serverID); err != nil {
		return nil, err
	}
	if err := checkID("device", msg.DeviceID()); err != nil {
		return nil, err
	}
	if err := checkID("message", msg.MessageID()); err != nil {
		return nil, err
	}

	replyName := c.topics.Reply(msg.DeviceID(), msg.MessageID())
	topic, err := cluster.TopicOf[message.Envelope](c.clusters, replyName)
	if err != nil {
		return nil, err
	}
	defer c.clusters.Release(replyName)

	// Subscribe before publishing so a fast reply is not missed.
	sub, err := topic.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribing reply topic: %w", err)
	}
	defer sub.Close()

	counts, err := cluster.PublishEach(ctx, c.clusters.Backplane(), c.topics.Send(serverID), message.Envelope{Message: msg})
	if err != nil {
		return nil, err
	}
	if counts[0] == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoListener, serverID)
	}

	select {
	case rec, ok := <-sub.C():
		if !ok {
			return timeoutReply(msg), nil
		}
		reply, isReply := rec.Payload.Message.(message.DeviceMessageReply)
		if !isReply {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedReply, rec.Payload.Message.Type())
		}
		return reply, nil
	case <-ctx.Done():
		return timeoutReply(msg), nil
	}
}

func timeoutReply(msg message.DeviceMessage) message.DeviceMessageReply {
	reply := message.NewReplyFor(msg)
	reply.Fail(message.CodeTimeout, message.CodeTimeout.Text())
	return reply
}

// DeviceStates asks every node in serverIDs for the state of deviceIDs and
// merges the answers: a device is online when any node holds it. Nodes are
// queried concurrently; the first failure cancels the rest.
func (c *Client) DeviceStates(ctx context.Context, deviceIDs []string, serverIDs ...string) ([]message.DeviceStateInfo, error) {
	online := make(map[string]bool, len(deviceIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, serverID := range serverIDs {
		serverID := serverID
		g.Go(func() error {
			states, err := c.queryNode(gctx, serverID, deviceIDs)
			if err != nil {
				return fmt.Errorf("querying %s: %w", serverID, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, s := range states {
				if s.State == message.StateOnline {
					online[s.DeviceID] = true
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]message.DeviceStateInfo, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		state := message.StateOffline
		if online[id] {
			state = message.StateOnline
		}
		out = append(out, message.DeviceStateInfo{DeviceID: id, State: state})
	}
	return out, nil
}

// queryNode sends one state request to serverID and waits for its answer.
func (c *Client) queryNode(ctx context.Context, serverID string, deviceIDs []string) ([]message.DeviceStateInfo, error) {
	if err := checkID("server", serverID); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	replyName := c.topics.StateReply(requestID)
	topic, err := cluster.TopicOf[StateReply](c.clusters, replyName)
	if err != nil {
		return nil, err
	}
	defer c.clusters.Release(replyName)

	sub, err := topic.Subscribe(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribing state reply topic: %w", err)
	}
	defer sub.Close()

	req := StateRequest{RequestID: requestID, DeviceIDs: deviceIDs}
	counts, err := cluster.PublishEach(ctx, c.clusters.Backplane(), c.topics.StateRequest(serverID), req)
	if err != nil {
		return nil, err
	}
	if counts[0] == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoListener, serverID)
	}

	select {
	case rec, ok := <-sub.C():
		if !ok {
			return nil, message.NewError(message.CodeTimeout, ctx.Err())
		}
		return rec.Payload.States, nil
	case <-ctx.Done():
		return nil, message.NewError(message.CodeTimeout, ctx.Err())
	}
}
