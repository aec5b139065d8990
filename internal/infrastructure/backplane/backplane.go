package backplane

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/redis"
)

// Backplane is a cluster backplane owned by the caller.
type Backplane interface {
	cluster.Backplane

	// HealthCheck verifies the underlying connection.
	HealthCheck(ctx context.Context) error

	// Close releases the connection. Subscriptions still open are dropped.
	Close() error
}

// Open connects the backplane named by cfg.Backplane.Type.
//
// Parameters:
//   - ctx: Bounds the initial connection for the Redis backplane
//   - cfg: Validated node configuration
//   - log: Parent logger; each backplane logs under its own component
//
// Returns:
//   - Backplane: Connected backplane
//   - error: If the connection fails or the type is unknown
func Open(ctx context.Context, cfg *config.Config, log *logging.Logger) (Backplane, error) {
	switch cfg.Backplane.Type {
	case config.BackplaneMQTT:
		return openMQTT(cfg, log)

	case config.BackplaneRedis:
		bp, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting to Redis: %w", err)
		}
		bp.SetLogger(log.Component("redis"))
		log.Info("Redis connected", "addrs", cfg.Redis.Addrs, "cluster_mode", cfg.Redis.ClusterMode)
		return bp, nil

	case config.BackplaneMemory:
		log.Warn("using in-process backplane; this node cannot reach other nodes")
		return memoryBackplane{cluster.NewMemoryBackplane()}, nil

	default:
		return nil, fmt.Errorf("unknown backplane type %q", cfg.Backplane.Type)
	}
}

func openMQTT(cfg *config.Config, log *logging.Logger) (Backplane, error) {
	client, err := mqtt.Connect(cfg.MQTT, mqtt.Topics{Prefix: cfg.Backplane.TopicPrefix})
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	if err := client.WatchNodes(logPeerStatus(log)); err != nil {
		log.Warn("peer node liveness unavailable", "error", err)
	}

	//nolint:gosec // QoS validated to 0-2 by config
	return &mqttBackplane{Backplane: mqtt.NewBackplane(client, byte(cfg.MQTT.QoS)), client: client}, nil
}

// logPeerStatus logs peer nodes joining and leaving the broker.
func logPeerStatus(log *logging.Logger) func(mqtt.NodeStatus) {
	return func(st mqtt.NodeStatus) {
		if st.Online() {
			log.Info("peer node online", "node", st.ClientID)
			return
		}
		log.Warn("peer node offline", "node", st.ClientID, "reason", st.Reason)
	}
}

// mqttBackplane ties the client's lifetime to the backplane.
type mqttBackplane struct {
	*mqtt.Backplane
	client *mqtt.Client
}

func (b *mqttBackplane) HealthCheck(ctx context.Context) error { return b.client.HealthCheck(ctx) }
func (b *mqttBackplane) Close() error                          { return b.client.Close() }

// memoryBackplane is always healthy.
type memoryBackplane struct {
	*cluster.MemoryBackplane
}

func (memoryBackplane) HealthCheck(context.Context) error { return nil }
