package mqtt

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Backplane adapts a Client to the cluster backplane contract.
//
// Several local listeners may share one pattern; the broker subscription is
// made when the first listener arrives and removed when the last one closes.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Backplane struct {
	client *Client
	qos    byte

	mu     sync.Mutex
	routes map[string]*route
	nextID uint64
}

// route fans one broker subscription out to its local listeners.
// It has its own lock so broker callbacks never wait on Backplane.mu.
type route struct {
	mu       sync.RWMutex
	handlers map[uint64]func(channel string, payload []byte)
}

// NewBackplane creates a backplane on top of a connected client.
func NewBackplane(client *Client, qos byte) *Backplane {
	return &Backplane{
		client: client,
		qos:    qos,
		routes: make(map[string]*route),
	}
}

// SubscribePattern registers handler for every message whose topic matches
// pattern (MQTT wildcard syntax). Close the returned io.Closer to stop.
func (b *Backplane) SubscribePattern(ctx context.Context, pattern string, handler func(channel string, payload []byte)) (io.Closer, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	r, ok := b.routes[pattern]
	if !ok {
		r = &route{handlers: make(map[uint64]func(string, []byte))}
		if err := b.client.Subscribe(pattern, b.qos, r.dispatch); err != nil {
			return nil, err
		}
		b.routes[pattern] = r
	}
	r.add(id, handler)

	return &listener{backplane: b, pattern: pattern, id: id}, nil
}

// Publish sends payload to topic and waits for the broker acknowledgement.
//
// Returns 1 on success: MQTT does not expose receiver counts.
func (b *Backplane) Publish(ctx context.Context, topic string, payload []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if err := b.client.Publish(topic, payload, b.qos, false); err != nil {
		return 0, err
	}
	return 1, nil
}

// remove drops one listener and unsubscribes the pattern when it was the last.
func (b *Backplane) remove(pattern string, id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.routes[pattern]
	if !ok {
		return nil
	}
	if r.remove(id) > 0 {
		return nil
	}
	delete(b.routes, pattern)

	if !b.client.IsConnected() {
		// Clean sessions drop broker-side subscriptions on reconnect anyway.
		b.client.forget(pattern)
		return nil
	}
	return b.client.Unsubscribe(pattern)
}

// listenerCount returns the number of local listeners on pattern.
func (b *Backplane) listenerCount(pattern string) int {
	b.mu.Lock()
	r, ok := b.routes[pattern]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

func (r *route) add(id uint64, h func(string, []byte)) {
	r.mu.Lock()
	r.handlers[id] = h
	r.mu.Unlock()
}

func (r *route) remove(id uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, id)
	return len(r.handlers)
}

// dispatch is the MessageHandler registered with the client.
func (r *route) dispatch(topic string, payload []byte) error {
	r.mu.RLock()
	handlers := make([]func(string, []byte), 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h(topic, payload)
	}
	return nil
}

type listener struct {
	backplane *Backplane
	pattern   string
	id        uint64
	once      sync.Once
}

func (l *listener) Close() error {
	var err error
	l.once.Do(func() {
		err = l.backplane.remove(l.pattern, l.id)
	})
	return err
}
