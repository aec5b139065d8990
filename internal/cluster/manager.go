package cluster

import (
	"fmt"
	"sort"
	"sync"
)

// Logger is the logging surface used by the topic bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer is notified when bridges attach to or detach from the backplane.
type Observer interface {
	TopicAttached(name string)
	TopicDetached(name string)
}

type noopObserver struct{}

func (noopObserver) TopicAttached(string) {}
func (noopObserver) TopicDetached(string) {}

// registered is the type-erased view of a Topic[T] held by the Manager.
type registered interface {
	Name() string
	Attached() bool
	SubscriberCount() int
	close()
}

// Manager owns one Topic per name on a shared Backplane.
//
// SetLogger and SetObserver must be called before the first TopicOf.
type Manager struct {
	backplane Backplane
	logger    Logger
	observer  Observer

	mu     sync.Mutex
	topics map[string]registered
	closed bool
}

// TopicStatus is a snapshot of one registered topic.
type TopicStatus struct {
	Name        string `json:"name"`
	Attached    bool   `json:"attached"`
	Subscribers int    `json:"subscribers"`
}

// NewManager creates a topic registry over bp.
func NewManager(bp Backplane) *Manager {
	return &Manager{
		backplane: bp,
		logger:    noopLogger{},
		observer:  noopObserver{},
		topics:    make(map[string]registered),
	}
}

// SetLogger sets the logger shared by all topics of the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// SetObserver sets the attach/detach observer shared by all topics.
func (m *Manager) SetObserver(observer Observer) {
	if observer == nil {
		observer = noopObserver{}
	}
	m.observer = observer
}

// Backplane returns the backplane topics are bridged to.
func (m *Manager) Backplane() Backplane {
	return m.backplane
}

// TopicOf returns the bridge for name, creating it on first use.
//
// Every call with the same name returns the same *Topic[T]. Asking for a
// name already registered with another payload type fails with
// ErrTopicTypeMismatch.
func TopicOf[T any](m *Manager, name string) (*Topic[T], error) {
	if err := ValidatePattern(name); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrTopicClosed
	}
	if existing, ok := m.topics[name]; ok {
		t, ok := existing.(*Topic[T])
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrTopicTypeMismatch, name)
		}
		return t, nil
	}

	t := newTopic[T](name, m.backplane, m)
	m.topics[name] = t
	return t, nil
}

// Release drops the topic registered under name if it has no local
// subscriber, releasing its backplane subscription. It reports whether the
// topic was dropped. Short-lived topics (one per request) are released
// this way so the registry does not grow.
func (m *Manager) Release(name string) bool {
	m.mu.Lock()
	t, ok := m.topics[name]
	if !ok || t.SubscriberCount() > 0 {
		m.mu.Unlock()
		return false
	}
	delete(m.topics, name)
	m.mu.Unlock()

	t.close()
	return true
}

// Status returns a snapshot of every registered topic, sorted by name.
func (m *Manager) Status() []TopicStatus {
	m.mu.Lock()
	topics := make([]registered, 0, len(m.topics))
	for _, t := range m.topics {
		topics = append(topics, t)
	}
	m.mu.Unlock()

	out := make([]TopicStatus, 0, len(topics))
	for _, t := range topics {
		out = append(out, TopicStatus{
			Name:        t.Name(),
			Attached:    t.Attached(),
			Subscribers: t.SubscriberCount(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close ends every subscription and releases every backplane subscription.
// The backplane itself is not closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	topics := make([]registered, 0, len(m.topics))
	for _, t := range m.topics {
		topics = append(topics, t)
	}
	m.mu.Unlock()

	for _, t := range topics {
		t.close()
	}
	return nil
}
