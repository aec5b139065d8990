package messaging_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/dispatch"
	"github.com/nerrad567/gray-logic-dispatch/internal/message"
	"github.com/nerrad567/gray-logic-dispatch/internal/messaging"
	"github.com/nerrad567/gray-logic-dispatch/internal/protocol"
	"github.com/nerrad567/gray-logic-dispatch/internal/protocol/jsoncodec"
	"github.com/nerrad567/gray-logic-dispatch/internal/session"
)

// ============================================================================
// Test doubles
// ============================================================================

type jsonOperator struct{ deviceID string }

func (o jsonOperator) DeviceID() string { return o.deviceID }
func (o jsonOperator) Protocol(context.Context) (protocol.Support, error) {
	return jsoncodec.New(), nil
}

// frameSession records frames and accepts them unless refuse is set.
type frameSession struct {
	deviceID string
	refuse   bool

	mu     sync.Mutex
	frames []protocol.EncodedMessage
}

func (s *frameSession) ID() string                        { return "conn-" + s.deviceID }
func (s *frameSession) DeviceID() string                  { return s.deviceID }
func (s *frameSession) Operator() protocol.DeviceOperator { return jsonOperator{deviceID: s.deviceID} }
func (s *frameSession) Transport() protocol.Transport     { return protocol.TransportWebSocket }
func (s *frameSession) Close() error                      { return nil }

func (s *frameSession) Send(_ context.Context, msg protocol.EncodedMessage) (bool, error) {
	if s.refuse {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, msg)
	return true, nil
}

func (s *frameSession) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// node is one dispatcher bound to a shared cluster.
type node struct {
	sessions *session.Manager
	handler  *dispatch.Handler
}

func startNode(t *testing.T, clusters *cluster.Manager, serverID string, sessions ...session.Session) *node {
	t.Helper()

	mgr := session.NewManager(serverID)
	for _, s := range sessions {
		require.NoError(t, mgr.Register(s))
	}

	h, err := dispatch.New(dispatch.Options{
		ServerID: serverID,
		Sessions: mgr,
		Requests: messaging.NewClusterHandler(clusters, messaging.Topics{}),
	})
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() {
		h.Stop()
		mgr.Close()
	})
	return &node{sessions: mgr, handler: h}
}

func newCluster(t *testing.T) *cluster.Manager {
	t.Helper()
	m := cluster.NewManager(cluster.NewMemoryBackplane())
	t.Cleanup(func() { m.Close() })
	return m
}

func asyncRead(deviceID string) *message.ReadPropertyMessage {
	msg := message.NewReadProperty(deviceID, "power")
	msg.SetHeader(message.HeaderAsync, true)
	return msg
}

// ============================================================================
// Topics
// ============================================================================

func TestTopics(t *testing.T) {
	topics := messaging.Topics{}

	assert.Equal(t, "graylogic/cluster/node/n1/send", topics.Send("n1"))
	assert.Equal(t, "graylogic/cluster/node/n1/state/request", topics.StateRequest("n1"))
	assert.Equal(t, "graylogic/cluster/state/reply/r1", topics.StateReply("r1"))
	assert.Equal(t, "graylogic/cluster/reply/d1/m1", topics.Reply("d1", "m1"))
	assert.Equal(t, "graylogic/cluster/device/state", topics.DeviceState())
	assert.Equal(t, "graylogic/cluster/device/d1/event", topics.DeviceEvent("d1"))
	assert.Equal(t, "graylogic/cluster/device/+/event", topics.AllDeviceEvents())

	custom := messaging.Topics{Prefix: "site/a"}
	assert.Equal(t, "site/a/node/n1/send", custom.Send("n1"))
}

// ============================================================================
// Client.Send
// ============================================================================

func TestClientSend_RejectsInvalidIDs(t *testing.T) {
	client := messaging.NewClient(newCluster(t), messaging.Topics{})
	ctx := context.Background()

	tests := []struct {
		name     string
		serverID string
		deviceID string
	}{
		{"empty server", "", "dev-1"},
		{"server with slash", "node/1", "dev-1"},
		{"device with wildcard", "node-1", "dev+1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Send(ctx, tt.serverID, message.NewReadProperty(tt.deviceID, "power"))
			assert.ErrorIs(t, err, messaging.ErrInvalidID)
		})
	}
}

func TestClientSend_NoListener(t *testing.T) {
	clusters := newCluster(t)
	client := messaging.NewClient(clusters, messaging.Topics{})

	_, err := client.Send(context.Background(), "node-9", message.NewReadProperty("dev-1", "power"))
	assert.ErrorIs(t, err, messaging.ErrNoListener)

	// The reply topic is released even when nothing was sent.
	assert.Empty(t, clusters.Status())
}

func TestClientSend_AsyncProvisionalReply(t *testing.T) {
	clusters := newCluster(t)
	sess := &frameSession{deviceID: "dev-1"}
	startNode(t, clusters, "node-1", sess)
	client := messaging.NewClient(clusters, messaging.Topics{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg := asyncRead("dev-1")
	reply, err := client.Send(ctx, "node-1", msg)
	require.NoError(t, err)

	assert.True(t, reply.Successful())
	assert.Equal(t, message.CodeRequestHandling, reply.Code())
	assert.Equal(t, msg.MessageID(), reply.MessageID())
	assert.Equal(t, "dev-1", reply.DeviceID())
	assert.Equal(t, message.TypeReadPropertyReply, reply.Type())
	assert.Equal(t, 1, sess.frameCount())
}

func TestClientSend_Failures(t *testing.T) {
	clusters := newCluster(t)
	startNode(t, clusters, "node-1", &frameSession{deviceID: "dev-refuse", refuse: true})
	client := messaging.NewClient(clusters, messaging.Topics{})

	tests := []struct {
		name     string
		msg      message.DeviceMessage
		wantCode message.ErrorCode
	}{
		{"offline device", message.NewReadProperty("dev-missing", "power"), message.CodeClientOffline},
		{"session refuses sync", message.NewReadProperty("dev-refuse", "power"), message.CodeSendFailed},
		{"session refuses async", asyncRead("dev-refuse"), message.CodeSendFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			reply, err := client.Send(ctx, "node-1", tt.msg)
			require.NoError(t, err)
			assert.False(t, reply.Successful())
			assert.Equal(t, tt.wantCode, reply.Code())
		})
	}
}

func TestClientSend_TimeoutReply(t *testing.T) {
	clusters := newCluster(t)
	sess := &frameSession{deviceID: "dev-1"}
	startNode(t, clusters, "node-1", sess)
	client := messaging.NewClient(clusters, messaging.Topics{})

	// A successful sync send produces no node-side reply.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	reply, err := client.Send(ctx, "node-1", message.NewReadProperty("dev-1", "power"))
	require.NoError(t, err)
	assert.False(t, reply.Successful())
	assert.Equal(t, message.CodeTimeout, reply.Code())
	assert.Eventually(t, func() bool { return sess.frameCount() == 1 }, time.Second, 10*time.Millisecond)
}

// ============================================================================
// State queries
// ============================================================================

func TestClientDeviceStates_MergesNodes(t *testing.T) {
	clusters := newCluster(t)
	startNode(t, clusters, "node-1", &frameSession{deviceID: "dev-a"})
	startNode(t, clusters, "node-2", &frameSession{deviceID: "dev-b"})
	client := messaging.NewClient(clusters, messaging.Topics{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	states, err := client.DeviceStates(ctx, []string{"dev-a", "dev-b", "dev-c"}, "node-1", "node-2")
	require.NoError(t, err)
	assert.Equal(t, []message.DeviceStateInfo{
		{DeviceID: "dev-a", State: message.StateOnline},
		{DeviceID: "dev-b", State: message.StateOnline},
		{DeviceID: "dev-c", State: message.StateOffline},
	}, states)
}

func TestClientDeviceStates_UnknownNode(t *testing.T) {
	clusters := newCluster(t)
	startNode(t, clusters, "node-1")
	client := messaging.NewClient(clusters, messaging.Topics{})

	_, err := client.DeviceStates(context.Background(), []string{"dev-a"}, "node-1", "node-2")
	assert.ErrorIs(t, err, messaging.ErrNoListener)
}

// ============================================================================
// ClusterHandler
// ============================================================================

func TestClusterHandler_PublishEvent(t *testing.T) {
	clusters := newCluster(t)
	topics := messaging.Topics{}
	h := messaging.NewClusterHandler(clusters, topics)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := cluster.TopicOf[message.Envelope](clusters, topics.AllDeviceEvents())
	require.NoError(t, err)
	sub, err := events.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, h.PublishEvent(ctx, message.NewEvent("dev-1", "motion", map[string]any{"zone": 2})))

	select {
	case rec := <-sub.C():
		assert.Equal(t, topics.DeviceEvent("dev-1"), rec.Topic)
		ev, ok := rec.Payload.Message.(*message.EventMessage)
		require.True(t, ok)
		assert.Equal(t, "motion", ev.Event)
	case <-ctx.Done():
		t.Fatal("event not delivered")
	}
}

func TestClusterHandler_SendStreamClosesWithContext(t *testing.T) {
	h := messaging.NewClusterHandler(newCluster(t), messaging.Topics{})

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := h.HandleSendToDevice(ctx, "node-1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-stream:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream not closed")
	}
}

func TestClusterHandler_ReplyRejectsInvalidIDs(t *testing.T) {
	h := messaging.NewClusterHandler(newCluster(t), messaging.Topics{})

	reply := message.NewReplyFor(message.NewReadProperty("dev/1", "power"))
	assert.ErrorIs(t, h.Reply(context.Background(), reply), messaging.ErrInvalidID)
}
