package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
)

// NodeStatus is the response of GET /api/v1/status.
type NodeStatus struct {
	Timestamp     string         `json:"timestamp"`
	ServerID      string         `json:"server_id"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Sessions      int            `json:"sessions"`
	Devices       int            `json:"devices"`
	Protocols     []string       `json:"protocols"`
	Topics        int            `json:"topics"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// SessionInfo describes one local device session.
type SessionInfo struct {
	ID        string `json:"id"`
	DeviceID  string `json:"device_id"`
	Transport string `json:"transport"`
}

// handleStatus returns a snapshot of the node.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := NodeStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		ServerID:      s.serverID,
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Sessions:  s.sessions.Count(),
		Devices:   s.devices.GetDeviceCount(),
		Protocols: s.protocols.IDs(),
	}
	if s.clusters != nil {
		status.Topics = len(s.clusters.Status())
	}

	writeJSON(w, http.StatusOK, status)
}

// handleListSessions lists the device sessions held by this node.
func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.sessions.Sessions()
	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionInfo{
			ID:        sess.ID(),
			DeviceID:  sess.DeviceID(),
			Transport: string(sess.Transport()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out, "count": len(out)})
}

// handleClusterTopics lists the cluster topics this node has registered.
func (s *Server) handleClusterTopics(w http.ResponseWriter, _ *http.Request) {
	topics := []cluster.TopicStatus{}
	if s.clusters != nil {
		topics = s.clusters.Status()
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics, "count": len(topics)})
}
