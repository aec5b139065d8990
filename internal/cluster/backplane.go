package cluster

import (
	"context"
	"io"
	"sync"
)

// Backplane is the shared publish/subscribe transport connecting the nodes
// of a cluster.
type Backplane interface {
	// SubscribePattern delivers every record whose channel matches pattern
	// to handler until the returned io.Closer is closed. handler may be
	// called from any goroutine and must not call Close itself.
	SubscribePattern(ctx context.Context, pattern string, handler func(channel string, payload []byte)) (io.Closer, error)

	// Publish sends payload to topic and returns the number of listeners
	// the backplane reports as having received it.
	Publish(ctx context.Context, topic string, payload []byte) (int64, error)
}

// MemoryBackplane is an in-process Backplane for single-node deployments
// and tests. Publish calls matching handlers synchronously, in
// subscription order, and reports how many were called.
type MemoryBackplane struct {
	mu       sync.RWMutex
	handlers []*memoryHandler
	nextID   uint64
	closed   bool
}

type memoryHandler struct {
	id      uint64
	pattern string
	fn      func(channel string, payload []byte)
}

// NewMemoryBackplane creates an empty in-process backplane.
func NewMemoryBackplane() *MemoryBackplane {
	return &MemoryBackplane{}
}

// SubscribePattern implements Backplane.
func (b *MemoryBackplane) SubscribePattern(_ context.Context, pattern string, handler func(channel string, payload []byte)) (io.Closer, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBackplaneClosed
	}
	b.nextID++
	h := &memoryHandler{id: b.nextID, pattern: pattern, fn: handler}
	b.handlers = append(b.handlers, h)

	return closerFunc(func() error {
		b.remove(h.id)
		return nil
	}), nil
}

// Publish implements Backplane.
func (b *MemoryBackplane) Publish(ctx context.Context, topic string, payload []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if hasWildcard(topic) {
		return 0, ErrPublishWildcard
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return 0, ErrBackplaneClosed
	}
	var matched []*memoryHandler
	for _, h := range b.handlers {
		if MatchTopic(h.pattern, topic) {
			matched = append(matched, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range matched {
		h.fn(topic, payload)
	}
	return int64(len(matched)), nil
}

// SubscriptionCount returns the number of live pattern subscriptions.
func (b *MemoryBackplane) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

// Close drops every subscription. Later calls fail with ErrBackplaneClosed.
func (b *MemoryBackplane) Close() error {
	b.mu.Lock()
	b.closed = true
	b.handlers = nil
	b.mu.Unlock()
	return nil
}

func (b *MemoryBackplane) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, h := range b.handlers {
		if h.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
