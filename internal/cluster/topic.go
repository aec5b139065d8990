package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

const (
	// recordQueueSize buffers records between the backplane callback and the pump.
	recordQueueSize = 256

	// subscriberBuffer is the channel capacity of each local subscription.
	// A subscriber whose buffer is full misses records instead of stalling
	// the other subscribers of the topic.
	subscriberBuffer = 64
)

// TopicMessage is one record received on a topic.
// Topic is the concrete channel it arrived on, which differs from the
// bridge name when the name contains wildcards.
type TopicMessage[T any] struct {
	Topic   string
	Payload T
}

// Topic bridges one backplane topic to local subscribers of payload type T.
//
// Create topics with TopicOf; a Topic must not be copied.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Topic[T any] struct {
	name      string
	backplane Backplane
	manager   *Manager

	// attached mirrors att != nil and is only flipped under mu.
	attached atomic.Bool

	mu     sync.Mutex
	subs   map[uint64]*Subscription[T]
	order  []uint64
	nextID uint64
	att    *attachment
	closed bool
}

// attachment is one backplane subscription and its pump.
type attachment struct {
	queue  chan record
	done   chan struct{} // closed on detach
	ready  chan struct{} // closed once closer/err are set
	closer io.Closer
	err    error
	once   sync.Once
}

type record struct {
	channel string
	payload []byte
}

func newTopic[T any](name string, bp Backplane, m *Manager) *Topic[T] {
	return &Topic[T]{
		name:      name,
		backplane: bp,
		manager:   m,
		subs:      make(map[uint64]*Subscription[T]),
	}
}

// Name returns the topic name (possibly a wildcard pattern).
func (t *Topic[T]) Name() string {
	return t.name
}

// Attached reports whether the bridge currently holds a backplane subscription.
func (t *Topic[T]) Attached() bool {
	return t.attached.Load()
}

// SubscriberCount returns the number of live local subscribers.
func (t *Topic[T]) SubscriberCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Subscribe registers a local subscriber and attaches the bridge to the
// backplane if it is not attached yet.
//
// The subscription ends when ctx is cancelled or Close is called; its
// channel is closed at that point. If attaching fails the subscription is
// discarded and the error returned.
func (t *Topic[T]) Subscribe(ctx context.Context) (*Subscription[T], error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTopicClosed
	}
	t.nextID++
	sub := &Subscription[T]{
		id:    t.nextID,
		topic: t,
		ch:    make(chan TopicMessage[T], subscriberBuffer),
		done:  make(chan struct{}),
	}
	t.subs[sub.id] = sub
	t.order = append(t.order, sub.id)
	t.mu.Unlock()

	if err := t.ensureAttached(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// ensureAttached attaches the bridge unless it already is. Concurrent
// callers collapse onto one attempt and all observe its result.
func (t *Topic[T]) ensureAttached(ctx context.Context) error {
	t.mu.Lock()
	if !t.attached.CompareAndSwap(false, true) {
		a := t.att
		t.mu.Unlock()
		return a.wait(ctx)
	}
	a := &attachment{
		queue: make(chan record, recordQueueSize),
		done:  make(chan struct{}),
		ready: make(chan struct{}),
	}
	t.att = a
	t.mu.Unlock()

	closer, err := t.backplane.SubscribePattern(ctx, t.name, a.handle)
	if err != nil {
		a.err = fmt.Errorf("cluster: attach %s: %w", t.name, err)
		t.mu.Lock()
		if t.att == a {
			t.att = nil
			t.attached.Store(false)
		}
		t.mu.Unlock()
		close(a.ready)
		t.manager.logger.Error("topic attach failed", "topic", t.name, "error", err)
		return a.err
	}

	a.closer = closer
	t.manager.observer.TopicAttached(t.name)
	t.manager.logger.Debug("topic attached", "topic", t.name)
	close(a.ready)

	go t.pump(a)
	return nil
}

// pump is the only consumer of an attachment's records, which keeps
// delivery in arrival order.
func (t *Topic[T]) pump(a *attachment) {
	for {
		select {
		case rec := <-a.queue:
			if !t.deliver(a, rec) {
				return
			}
		case <-a.done:
			return
		}
	}
}

// deliver broadcasts one record. It returns false once the attachment has
// been released.
func (t *Topic[T]) deliver(a *attachment, rec record) bool {
	var payload T
	if err := json.Unmarshal(rec.payload, &payload); err != nil {
		t.manager.logger.Warn("dropping undecodable topic record",
			"topic", t.name,
			"channel", rec.channel,
			"error", err,
		)
		return true
	}

	t.mu.Lock()
	if t.att != a {
		t.mu.Unlock()
		return false
	}
	if len(t.subs) == 0 {
		t.releaseLocked(a)
		t.mu.Unlock()
		t.closeAttachment(a)

		// Demand may have come back while the backplane was being released.
		if t.SubscriberCount() > 0 {
			if err := t.ensureAttached(context.Background()); err != nil {
				t.manager.logger.Error("topic re-attach failed", "topic", t.name, "error", err)
			}
		}
		return false
	}
	subs := make([]*Subscription[T], 0, len(t.order))
	for _, id := range t.order {
		if s, ok := t.subs[id]; ok {
			subs = append(subs, s)
		}
	}
	t.mu.Unlock()

	msg := TopicMessage[T]{Topic: rec.channel, Payload: payload}
	for _, s := range subs {
		if !s.send(msg) && s.startLag() {
			t.manager.logger.Warn("topic subscriber lagging, dropping records",
				"topic", t.name,
				"channel", rec.channel,
				"dropped", s.Dropped(),
			)
		}
	}
	return true
}

// DetachIdle releases the backplane subscription if no local subscriber is
// left. It reports whether a subscription was released.
func (t *Topic[T]) DetachIdle(ctx context.Context) bool {
	t.mu.Lock()
	a := t.att
	if a == nil || len(t.subs) > 0 {
		t.mu.Unlock()
		return false
	}
	t.releaseLocked(a)
	t.mu.Unlock()

	if err := a.wait(ctx); err != nil {
		// The attach is still in flight; close its subscription once it lands.
		go func() {
			<-a.ready
			t.closeAttachment(a)
		}()
		return false
	}
	t.closeAttachment(a)
	return true
}

// releaseLocked unbinds a from the topic. t.mu must be held.
func (t *Topic[T]) releaseLocked(a *attachment) {
	t.att = nil
	t.attached.Store(false)
	a.once.Do(func() { close(a.done) })
}

// closeAttachment closes the backplane subscription of a released attachment.
func (t *Topic[T]) closeAttachment(a *attachment) {
	if a.closer == nil {
		return
	}
	if err := a.closer.Close(); err != nil {
		t.manager.logger.Warn("topic detach failed", "topic", t.name, "error", err)
	}
	t.manager.observer.TopicDetached(t.name)
	t.manager.logger.Debug("topic detached", "topic", t.name)
}

// Publish JSON-encodes each payload and publishes it independently.
//
// It returns the listener count reported for the last payload, or 0 when
// called with no payloads. The first failure stops publishing.
func (t *Topic[T]) Publish(ctx context.Context, payloads ...T) (int64, error) {
	counts, err := t.PublishEach(ctx, payloads...)
	if err != nil {
		return 0, err
	}
	if len(counts) == 0 {
		return 0, nil
	}
	return counts[len(counts)-1], nil
}

// PublishEach is Publish returning one listener count per payload.
func (t *Topic[T]) PublishEach(ctx context.Context, payloads ...T) ([]int64, error) {
	return PublishEach(ctx, t.backplane, t.name, payloads...)
}

// PublishEach JSON-encodes each payload and publishes it to name on bp
// without registering a topic. It returns one listener count per payload
// published before the first failure.
func PublishEach[T any](ctx context.Context, bp Backplane, name string, payloads ...T) ([]int64, error) {
	if hasWildcard(name) {
		return nil, fmt.Errorf("%w: %s", ErrPublishWildcard, name)
	}

	counts := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		data, err := json.Marshal(p)
		if err != nil {
			return counts, fmt.Errorf("cluster: encode payload for %s: %w", name, err)
		}
		n, err := bp.Publish(ctx, name, data)
		if err != nil {
			return counts, fmt.Errorf("cluster: publish %s: %w", name, err)
		}
		counts = append(counts, n)
	}
	return counts, nil
}

// close ends every subscription and releases the backplane subscription.
func (t *Topic[T]) close() {
	t.mu.Lock()
	t.closed = true
	subs := make([]*Subscription[T], 0, len(t.subs))
	for _, s := range t.subs {
		subs = append(subs, s)
	}
	a := t.att
	if a != nil {
		t.releaseLocked(a)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
	if a != nil {
		<-a.ready
		t.closeAttachment(a)
	}
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.subs[id]; !ok {
		return
	}
	delete(t.subs, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
}

// handle is the backplane callback; it only enqueues. The pump never waits
// on subscribers, so a full queue drains without outside help.
func (a *attachment) handle(channel string, payload []byte) {
	select {
	case a.queue <- record{channel: channel, payload: payload}:
	case <-a.done:
	}
}

// wait blocks until the attach attempt for a has finished.
func (a *attachment) wait(ctx context.Context) error {
	select {
	case <-a.ready:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscription is one local subscriber of a Topic.
type Subscription[T any] struct {
	id    uint64
	topic *Topic[T]
	ch    chan TopicMessage[T]
	done  chan struct{}

	dropped atomic.Uint64
	lagging atomic.Bool

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// C returns the channel of received messages. It is closed when the
// subscription ends.
func (s *Subscription[T]) C() <-chan TopicMessage[T] {
	return s.ch
}

// Done is closed when the subscription ends.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Close ends the subscription. The bridge keeps its backplane subscription
// until the next record arrives or DetachIdle is called.
func (s *Subscription[T]) Close() error {
	s.closeOnce.Do(func() {
		s.topic.remove(s.id)
		close(s.done)

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}

// Dropped returns how many records were discarded because the
// subscriber's buffer was full.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// send hands msg to the subscriber without waiting. It reports false when
// the buffer was full and msg was dropped.
func (s *Subscription[T]) send(msg TopicMessage[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}
	select {
	case s.ch <- msg:
		s.lagging.Store(false)
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// startLag reports whether this drop begins a new run of drops.
func (s *Subscription[T]) startLag() bool {
	return s.lagging.CompareAndSwap(false, true)
}
