package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-dispatch/internal/audit"
)

// auditChanSize is the buffer size for the async audit channel.
// Entries beyond this are dropped to avoid back-pressure on requests and sockets.
const auditChanSize = 256

// auditLog enqueues an audit entry for asynchronous write (best-effort).
func (s *Server) auditLog(action, source, deviceID string, details map[string]any) {
	if s.auditRepo == nil || s.auditCh == nil {
		return
	}

	entry := &audit.Entry{
		Action:   action,
		DeviceID: deviceID,
		ServerID: s.serverID,
		Source:   source,
		Details:  details,
	}

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit channel full, dropping entry",
			"action", action,
			"device_id", deviceID,
		)
	}
}

// drainAuditLog writes queued entries serially until ctx ends, then writes
// whatever is still buffered.
func (s *Server) drainAuditLog(ctx context.Context) {
	defer close(s.auditDone)

	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					s.writeAudit(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAudit(entry *audit.Entry) {
	if err := s.auditRepo.Create(context.Background(), entry); err != nil {
		s.logger.Error("audit write failed",
			"action", entry.Action,
			"device_id", entry.DeviceID,
			"error", err,
		)
	}
}

// handleListAuditLogs returns a page of audit entries.
//
// Query parameters:
//   - action: create, update, delete, connect, disconnect or refused
//   - device_id, source: optional filters
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeUnavailable(w, "audit logging is not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		DeviceID: q.Get("device_id"),
		Source:   q.Get("source"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
