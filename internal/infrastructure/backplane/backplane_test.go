package backplane

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/mqtt"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, config.LoggingConfig{Level: "error", Format: "text"}, "test")
}

func TestOpen_Memory(t *testing.T) {
	cfg := config.Default()
	cfg.Backplane.Type = config.BackplaneMemory

	bp, err := Open(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer bp.Close()

	assert.NoError(t, bp.HealthCheck(context.Background()))

	got := make(chan string, 1)
	closer, err := bp.SubscribePattern(context.Background(), "a/+", func(channel string, _ []byte) {
		got <- channel
	})
	require.NoError(t, err)
	defer closer.Close()

	n, err := bp.Publish(context.Background(), "a/b", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	select {
	case ch := <-got:
		assert.Equal(t, "a/b", ch)
	case <-time.After(time.Second):
		t.Fatal("publish not delivered")
	}
}

func TestOpen_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Backplane.Type = config.BackplaneRedis
	cfg.Redis.Addrs = []string{mr.Addr()}

	bp, err := Open(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer bp.Close()

	assert.NoError(t, bp.HealthCheck(context.Background()))
}

func TestOpen_RedisUnreachable(t *testing.T) {
	cfg := config.Default()
	cfg.Backplane.Type = config.BackplaneRedis
	cfg.Redis.Addrs = []string{"127.0.0.1:1"}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Open(ctx, cfg, testLogger())
	assert.Error(t, err)
}

func TestOpen_UnknownType(t *testing.T) {
	cfg := config.Default()
	cfg.Backplane.Type = "carrier-pigeon"

	_, err := Open(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestLogPeerStatus(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "text"}, "test")
	report := logPeerStatus(log)

	report(mqtt.NodeStatus{ClientID: "node-b", Status: "online"})
	report(mqtt.NodeStatus{ClientID: "node-b", Status: "offline", Reason: "unexpected_disconnect"})

	out := buf.String()
	assert.Contains(t, out, "peer node online")
	assert.Contains(t, out, "peer node offline")
	assert.Contains(t, out, "unexpected_disconnect")
}
