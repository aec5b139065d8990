package redis

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/config"
)

const (
	// defaultPoolSize is used when redis.pool_size is not set.
	defaultPoolSize = 100

	// defaultPingTimeout bounds the connectivity check in Connect.
	defaultPingTimeout = 5 * time.Second
)

// Logger is the logging surface used by the backplane.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Backplane is a cluster backplane over Redis pub/sub.
//
// Every SubscribePattern call owns one PubSub connection; closing the
// returned io.Closer releases it.
type Backplane struct {
	client goredis.UniversalClient
	owned  bool
	logger Logger

	mu     sync.Mutex
	subs   map[*patternSub]struct{}
	closed bool
}

// NewClient builds a standalone or cluster client from config and verifies
// it with PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (goredis.UniversalClient, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}

	var client goredis.UniversalClient
	if cfg.ClusterMode {
		client = goredis.NewClusterClient(&goredis.ClusterOptions{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
			PoolSize: poolSize,
		})
	} else {
		addr := "localhost:6379"
		if len(cfg.Addrs) > 0 {
			addr = cfg.Addrs[0]
		}
		client = goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: poolSize,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return client, nil
}

// Connect creates a client from config and wraps it in a Backplane that
// closes the client when the backplane is closed.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Backplane, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	bp := NewBackplane(client)
	bp.owned = true
	return bp, nil
}

// NewBackplane wraps an existing client. The caller keeps ownership of it.
func NewBackplane(client goredis.UniversalClient) *Backplane {
	return &Backplane{
		client: client,
		logger: noopLogger{},
		subs:   make(map[*patternSub]struct{}),
	}
}

// SetLogger sets the logger used for delivery diagnostics.
func (b *Backplane) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.logger = logger
}

// SubscribePattern subscribes handler to every channel matching pattern.
//
// It returns once Redis has confirmed the subscription, so a publish issued
// after it returns is counted and delivered.
func (b *Backplane) SubscribePattern(ctx context.Context, pattern string, handler func(channel string, payload []byte)) (io.Closer, error) {
	glob, err := globFor(pattern)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.mu.Unlock()

	ps := b.client.PSubscribe(ctx, glob)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, pattern, err)
	}

	sub := &patternSub{
		backplane: b,
		pattern:   pattern,
		pubsub:    ps,
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ps.Close()
		return nil, ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.run(handler)

	b.logger.Debug("redis pattern subscribed", "pattern", pattern, "glob", glob)
	return sub, nil
}

// Publish sends payload on channel topic and returns the number of
// subscribers Redis delivered it to.
func (b *Backplane) Publish(ctx context.Context, topic string, payload []byte) (int64, error) {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return 0, fmt.Errorf("%w: cannot publish to %q", ErrInvalidPattern, topic)
	}

	n, err := b.client.Publish(ctx, topic, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return n, nil
}

// HealthCheck pings Redis.
func (b *Backplane) HealthCheck(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check: %w", err)
	}
	return nil
}

// Close releases every pattern subscription and, when the backplane created
// the client itself, the client too.
func (b *Backplane) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := make([]*patternSub, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[*patternSub]struct{})
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
	}

	if b.owned {
		return b.client.Close()
	}
	return nil
}

func (b *Backplane) forget(s *patternSub) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// patternSub is one PSUBSCRIBE connection and its delivery goroutine.
type patternSub struct {
	backplane *Backplane
	pattern   string
	pubsub    *goredis.PubSub
	done      chan struct{}
	once      sync.Once
	err       error
}

func (s *patternSub) run(handler func(string, []byte)) {
	defer close(s.done)

	for msg := range s.pubsub.Channel() {
		// Redis globs are wider than MQTT wildcards.
		if !cluster.MatchTopic(s.pattern, msg.Channel) {
			continue
		}
		handler(msg.Channel, []byte(msg.Payload))
	}
}

func (s *patternSub) close() error {
	s.once.Do(func() {
		s.err = s.pubsub.Close()
	})
	return s.err
}

// Close stops delivery. It does not wait for an in-flight handler call.
func (s *patternSub) Close() error {
	s.backplane.forget(s)
	return s.close()
}

// globFor translates an MQTT-style topic pattern into a Redis glob.
//
//	graylogic/cluster/+/send   -> graylogic/cluster/*/send
//	graylogic/cluster/#        -> graylogic/cluster/*
func globFor(pattern string) (string, error) {
	if err := cluster.ValidatePattern(pattern); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	levels := strings.Split(pattern, "/")
	for i, level := range levels {
		switch level {
		case "+", "#":
			levels[i] = "*"
		default:
			levels[i] = escapeGlob(level)
		}
	}
	return strings.Join(levels, "/"), nil
}

// escapeGlob escapes the characters Redis treats as glob syntax.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
