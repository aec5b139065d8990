package mqtt

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/config"
)

const testBrokerAddr = "127.0.0.1:1883"

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-dispatch-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

var testTopics = Topics{Prefix: "graylogic/test"}

// connectOrSkip connects to the local test broker, skipping when none is running.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", testBrokerAddr, 200*time.Millisecond)
	if err != nil {
		t.Skipf("no MQTT broker at %s: %v", testBrokerAddr, err)
	}
	conn.Close()

	cfg := testConfig()
	if clientID != "" {
		cfg.Broker.ClientID = clientID
	}
	client, err := Connect(cfg, testTopics)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// trackedSubscriptions returns how many subscriptions c restores on reconnect.
func trackedSubscriptions(c *Client) int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

func tracksSubscription(c *Client, topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectOrSkip(t, "")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
}

func TestClose(t *testing.T) {
	client := connectOrSkip(t, "graylogic-test-close")

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

// =============================================================================
// HealthCheck Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	client := connectOrSkip(t, "")

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := connectOrSkip(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() expected error for cancelled context")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := connectOrSkip(t, "graylogic-test-hc-closed")
	client.Close()

	err := client.HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Publish / Subscribe Validation
// =============================================================================

func TestPublishValidation(t *testing.T) {
	client := connectOrSkip(t, "")

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "graylogic/test/a", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "graylogic/test/a", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"nil payload", "graylogic/test/a", nil, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Publish() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	client := connectOrSkip(t, "")
	noop := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("graylogic/test/a", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("graylogic/test/a", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil) error = %v, want ErrSubscribeFailed", err)
	}
}

func TestPublishDisconnected(t *testing.T) {
	client := connectOrSkip(t, "graylogic-test-pub-closed")
	client.Close()

	err := client.Publish("graylogic/test/a", []byte("x"), 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionTracking(t *testing.T) {
	client := connectOrSkip(t, "graylogic-test-tracking")
	handler := func(string, []byte) error { return nil }

	topics := []string{
		"graylogic/test/topic1",
		"graylogic/test/topic2",
		"graylogic/test/+/state",
	}
	for _, topic := range topics {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}

	if n := trackedSubscriptions(client); n != len(topics) {
		t.Errorf("tracked subscriptions = %d, want %d", n, len(topics))
	}

	if err := client.Unsubscribe(topics[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if tracksSubscription(client, topics[0]) {
		t.Error("subscription still tracked after Unsubscribe")
	}
	if !tracksSubscription(client, topics[2]) {
		t.Error("wildcard subscription not tracked")
	}
}

// =============================================================================
// Round Trips
// =============================================================================

func TestWildcardSubscription(t *testing.T) {
	pub := connectOrSkip(t, "graylogic-test-wild-pub")
	sub := connectOrSkip(t, "graylogic-test-wild-sub")

	var mu sync.Mutex
	received := make(map[string]bool)
	err := sub.Subscribe("graylogic/test/device/+/state", 1, func(topic string, _ []byte) error {
		mu.Lock()
		received[topic] = true
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	topics := []string{
		"graylogic/test/device/dev-1/state",
		"graylogic/test/device/dev-2/state",
	}
	for _, topic := range topics {
		if err := pub.Publish(topic, []byte(`{"state":"online"}`), 1, false); err != nil {
			t.Fatalf("Publish(%s) error = %v", topic, err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == len(topics) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("received %d of %d wildcard messages", len(received), len(topics))
}

func TestHandlerPanicRecovered(t *testing.T) {
	client := connectOrSkip(t, "graylogic-test-panic")
	logger := &mockLogger{}
	client.SetLogger(logger)

	topic := "graylogic/test/panic"
	called := make(chan struct{}, 1)
	err := client.Subscribe(topic, 1, func(string, []byte) error {
		called <- struct{}{}
		panic("boom")
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := client.Publish(topic, []byte("x"), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}

	// Connection survives the panic.
	time.Sleep(50 * time.Millisecond)
	if !client.IsConnected() {
		t.Error("client disconnected after handler panic")
	}
	if logger.errorCount() == 0 {
		t.Error("panic was not logged")
	}
}

// =============================================================================
// Topics
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"NodeStatus", Topics{Prefix: "site/cluster"}.NodeStatus("node-a"), "site/cluster/node/node-a/status"},
		{"NodeStatus default prefix", Topics{}.NodeStatus("node-a"), "graylogic/cluster/node/node-a/status"},
		{"AllNodeStatus", Topics{}.AllNodeStatus(), "graylogic/cluster/node/+/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Node Liveness
// =============================================================================

func TestParseNodeStatus(t *testing.T) {
	topic := "graylogic/cluster/node/node-b/status"
	tests := []struct {
		name       string
		payload    string
		wantErr    bool
		wantID     string
		wantOnline bool
		wantReason string
	}{
		{"online", buildOnlinePayload("node-b"), false, "node-b", true, ""},
		{"graceful offline", buildOfflinePayload("node-b"), false, "node-b", false, "graceful_shutdown"},
		{"client id from topic", `{"status":"online"}`, false, "node-b", true, ""},
		{"unknown status", `{"status":"sleeping","client_id":"node-b"}`, true, "", false, ""},
		{"not json", `offline`, true, "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ParseNodeStatus(topic, []byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidNodeStatus) {
					t.Errorf("ParseNodeStatus() error = %v, want ErrInvalidNodeStatus", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNodeStatus() error = %v", err)
			}
			if st.ClientID != tt.wantID || st.Online() != tt.wantOnline || st.Reason != tt.wantReason {
				t.Errorf("ParseNodeStatus() = %+v", st)
			}
		})
	}
}

func TestWatchNodes(t *testing.T) {
	watcher := connectOrSkip(t, "graylogic-test-watch")

	seen := make(chan NodeStatus, 8)
	if err := watcher.WatchNodes(func(st NodeStatus) { seen <- st }); err != nil {
		t.Fatalf("WatchNodes() error = %v", err)
	}

	peer := connectOrSkip(t, "graylogic-test-watch-peer")
	wantOnline := true
	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-seen:
			if st.ClientID == watcher.cfg.Broker.ClientID {
				t.Fatal("watcher reported its own status")
			}
			if st.ClientID != "graylogic-test-watch-peer" || st.Online() != wantOnline {
				continue
			}
			if !wantOnline {
				return
			}
			wantOnline = false
			peer.Close()
		case <-deadline:
			t.Fatalf("peer status online=%v never observed", wantOnline)
		}
	}
}

// mockLogger captures log calls.
type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) errorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.errors)
}
