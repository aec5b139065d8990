package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/message"
)

const (
	// stateQueueSize bounds state events waiting to be published.
	stateQueueSize = 256

	// statePublishTimeout bounds one state event publish.
	statePublishTimeout = 5 * time.Second
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager is the session registry of one node.
//
// State events are queued while the registry lock is held and published by
// a single goroutine, so a device's online and offline events never swap.
// Sessions are closed after the lock is released.
//
// All public methods are thread-safe.
type Manager struct {
	serverID string
	logger   Logger

	mu       sync.RWMutex
	sessions map[string]Session
	closed   bool

	stateMu    sync.Mutex
	stateTopic *cluster.Topic[DeviceStateEvent]
	events     chan DeviceStateEvent
	stopped    chan struct{}
}

// NewManager creates an empty registry for the node serverID.
func NewManager(serverID string) *Manager {
	return &Manager{
		serverID: serverID,
		logger:   noopLogger{},
		sessions: make(map[string]Session),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// SetStateTopic enables publishing of DeviceStateEvents on topic.
// It must be called at most once, before sessions are registered.
func (m *Manager) SetStateTopic(topic *cluster.Topic[DeviceStateEvent]) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if m.stateTopic != nil || topic == nil {
		return
	}
	m.stateTopic = topic
	m.events = make(chan DeviceStateEvent, stateQueueSize)
	m.stopped = make(chan struct{})
	go m.publishStates(topic, m.events, m.stopped)
}

// Register adds s as the session of its device. A previous session of the
// same device is replaced and closed.
func (m *Manager) Register(s Session) error {
	if s.DeviceID() == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	old, replaced := m.sessions[s.DeviceID()]
	m.sessions[s.DeviceID()] = s
	m.emit(s.DeviceID(), message.StateOnline)
	m.mu.Unlock()

	if replaced && old != s {
		m.logger.Info("replacing device session",
			"device_id", s.DeviceID(),
			"old_session", old.ID(),
			"session", s.ID(),
		)
		if err := old.Close(); err != nil {
			m.logger.Warn("closing replaced session failed", "device_id", s.DeviceID(), "error", err)
		}
	}

	m.logger.Debug("session registered",
		"device_id", s.DeviceID(),
		"session", s.ID(),
		"transport", s.Transport(),
	)
	return nil
}

// Lookup returns the session of deviceID, if this node holds one.
func (m *Manager) Lookup(deviceID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[deviceID]
	return s, ok
}

// Unregister removes and closes the session of deviceID.
// It reports whether a session was removed.
func (m *Manager) Unregister(deviceID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	if ok {
		delete(m.sessions, deviceID)
		m.emit(deviceID, message.StateOffline)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	if err := s.Close(); err != nil {
		m.logger.Warn("closing session failed", "device_id", deviceID, "error", err)
	}
	m.logger.Debug("session unregistered", "device_id", deviceID, "session", s.ID())
	return true
}

// Remove drops s if it is still the registered session of its device.
// It does not close s; connections call it when they end on their own.
func (m *Manager) Remove(s Session) bool {
	m.mu.Lock()
	current, ok := m.sessions[s.DeviceID()]
	if !ok || current != s {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, s.DeviceID())
	m.emit(s.DeviceID(), message.StateOffline)
	m.mu.Unlock()

	m.logger.Debug("session removed", "device_id", s.DeviceID(), "session", s.ID())
	return true
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sessions returns the registered sessions ordered by device id.
func (m *Manager) Sessions() []Session {
	m.mu.RLock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID() < out[j].DeviceID() })
	return out
}

// Close closes every session, publishes their offline events and waits
// for pending state events to be published.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]Session)
	m.mu.Unlock()

	for id, s := range sessions {
		if err := s.Close(); err != nil {
			m.logger.Warn("closing session failed", "device_id", id, "error", err)
		}
		m.emit(id, message.StateOffline)
	}

	m.stateMu.Lock()
	events, stopped := m.events, m.stopped
	m.events = nil
	m.stateMu.Unlock()

	if events != nil {
		close(events)
		<-stopped
	}
	return nil
}

// emit queues a state event without blocking the caller. Callers hold m.mu,
// or have closed the registry, so the queue order matches the registry order.
func (m *Manager) emit(deviceID string, state message.DeviceState) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	if m.events == nil {
		return
	}
	ev := DeviceStateEvent{
		DeviceID:  deviceID,
		State:     state,
		ServerID:  m.serverID,
		Timestamp: time.Now().UTC(),
	}
	select {
	case m.events <- ev:
	default:
		m.logger.Warn("device state queue full, dropping event", "device_id", deviceID, "state", state)
	}
}

func (m *Manager) publishStates(topic *cluster.Topic[DeviceStateEvent], events <-chan DeviceStateEvent, stopped chan<- struct{}) {
	defer close(stopped)

	for ev := range events {
		ctx, cancel := context.WithTimeout(context.Background(), statePublishTimeout)
		if _, err := topic.Publish(ctx, ev); err != nil {
			m.logger.Error("publishing device state failed",
				"device_id", ev.DeviceID,
				"state", ev.State,
				"error", err,
			)
		}
		cancel()
	}
}
