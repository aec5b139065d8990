package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/config"
)

var _ cluster.Backplane = (*Backplane)(nil)

// setupTestBackplane starts an in-process Redis and connects a backplane to it.
func setupTestBackplane(t *testing.T) (*miniredis.Miniredis, *Backplane) {
	t.Helper()

	mr := miniredis.RunT(t)
	bp, err := Connect(context.Background(), config.RedisConfig{
		Addrs:    []string{mr.Addr()},
		PoolSize: 10,
	})
	require.NoError(t, err)
	t.Cleanup(func() { bp.Close() })
	return mr, bp
}

type delivery struct {
	channel string
	payload string
}

func collect(ch chan delivery) func(string, []byte) {
	return func(channel string, payload []byte) {
		ch <- delivery{channel: channel, payload: string(payload)}
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(context.Background(), config.RedisConfig{Addrs: []string{"127.0.0.1:1"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestBackplane_PublishSubscribe(t *testing.T) {
	_, bp := setupTestBackplane(t)
	ctx := context.Background()

	got := make(chan delivery, 4)
	closer, err := bp.SubscribePattern(ctx, "graylogic/cluster/node-a/send", collect(got))
	require.NoError(t, err)
	defer closer.Close()

	n, err := bp.Publish(ctx, "graylogic/cluster/node-a/send", []byte(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	select {
	case d := <-got:
		assert.Equal(t, "graylogic/cluster/node-a/send", d.channel)
		assert.Equal(t, `{"x":1}`, d.payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestBackplane_WildcardFiltering(t *testing.T) {
	_, bp := setupTestBackplane(t)
	ctx := context.Background()

	got := make(chan delivery, 8)
	closer, err := bp.SubscribePattern(ctx, "graylogic/cluster/device/+/state", collect(got))
	require.NoError(t, err)
	defer closer.Close()

	// Matches the Redis glob but has an extra level, so "+" must reject it.
	_, err = bp.Publish(ctx, "graylogic/cluster/device/a/b/state", []byte("deep"))
	require.NoError(t, err)
	_, err = bp.Publish(ctx, "graylogic/cluster/device/dev-1/state", []byte("online"))
	require.NoError(t, err)

	select {
	case d := <-got:
		assert.Equal(t, "graylogic/cluster/device/dev-1/state", d.channel)
		assert.Equal(t, "online", d.payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}

	select {
	case d := <-got:
		t.Fatalf("unexpected delivery on %s", d.channel)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBackplane_ListenerCount(t *testing.T) {
	_, bp := setupTestBackplane(t)
	ctx := context.Background()

	n, err := bp.Publish(ctx, "graylogic/cluster/events", []byte("nobody"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	c1, err := bp.SubscribePattern(ctx, "graylogic/cluster/events", func(string, []byte) {})
	require.NoError(t, err)
	c2, err := bp.SubscribePattern(ctx, "graylogic/cluster/#", func(string, []byte) {})
	require.NoError(t, err)

	n, err = bp.Publish(ctx, "graylogic/cluster/events", []byte("both"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, c1.Close())
	require.NoError(t, c2.Close())

	assert.Eventually(t, func() bool {
		n, err := bp.Publish(ctx, "graylogic/cluster/events", []byte("gone"))
		return err == nil && n == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestBackplane_PublishRejectsPattern(t *testing.T) {
	_, bp := setupTestBackplane(t)

	_, err := bp.Publish(context.Background(), "graylogic/+/send", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestBackplane_ClosedRejectsSubscribe(t *testing.T) {
	_, bp := setupTestBackplane(t)
	require.NoError(t, bp.Close())

	_, err := bp.SubscribePattern(context.Background(), "a/b", func(string, []byte) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBackplane_HealthCheck(t *testing.T) {
	mr, bp := setupTestBackplane(t)

	require.NoError(t, bp.HealthCheck(context.Background()))

	mr.Close()
	assert.Error(t, bp.HealthCheck(context.Background()))
}

func TestGlobFor(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
		wantErr bool
	}{
		{"graylogic/cluster/node-a/send", "graylogic/cluster/node-a/send", false},
		{"graylogic/cluster/+/send", "graylogic/cluster/*/send", false},
		{"graylogic/cluster/#", "graylogic/cluster/*", false},
		{"graylogic/odd*name", `graylogic/odd\*name`, false},
		{"graylogic/#/send", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := globFor(tt.pattern)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPattern)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
