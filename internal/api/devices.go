package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-dispatch/internal/audit"
	"github.com/nerrad567/gray-logic-dispatch/internal/device"
	"github.com/nerrad567/gray-logic-dispatch/internal/message"
	"github.com/nerrad567/gray-logic-dispatch/internal/messaging"
)

// handleListDevices returns all devices.
//
// Query parameters:
//   - protocol: filter by protocol id
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []device.Device
	if protocolID := r.URL.Query().Get("protocol"); protocolID != "" {
		devices = s.devices.GetDevicesByProtocol(protocolID)
	} else {
		devices = s.devices.ListDevices()
	}
	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice creates a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var dev device.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.devices.CreateDevice(r.Context(), &dev); err != nil {
		switch {
		case isValidationError(err):
			writeBadRequest(w, err.Error())
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		default:
			writeInternalError(w, "failed to create device")
		}
		return
	}

	s.auditLog(audit.ActionCreate, audit.SourceAPI, dev.ID, map[string]any{"protocol": dev.Protocol})
	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice partially updates a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	existing, ok := s.lookupDevice(w, r)
	if !ok {
		return
	}
	id := existing.ID

	// Decode partial update onto existing device
	if err := json.NewDecoder(r.Body).Decode(existing); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	existing.ID = id // Ensure ID cannot be changed

	if err := s.devices.UpdateDevice(r.Context(), existing); err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update device")
		return
	}

	s.auditLog(audit.ActionUpdate, audit.SourceAPI, id, map[string]any{"enabled": existing.Enabled})
	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteDevice removes a device by ID and closes its local session.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}
	s.sessions.Unregister(id)
	s.auditLog(audit.ActionDelete, audit.SourceAPI, id, nil)

	w.WriteHeader(http.StatusNoContent)
}

// handleGetDeviceState reports whether a device is online.
//
// Query parameters:
//   - servers: comma-separated node ids to ask; defaults to this node only
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	servers := splitList(r.URL.Query().Get("servers"))
	states, err := s.queryStates(r.Context(), []string{id}, servers)
	if err != nil {
		writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, states[0])
}

// StateQuery is the body of POST /api/v1/states.
type StateQuery struct {
	DeviceIDs []string `json:"device_ids"`
	ServerIDs []string `json:"server_ids,omitempty"`
}

// handleQueryStates reports the state of several devices across nodes.
func (s *Server) handleQueryStates(w http.ResponseWriter, r *http.Request) {
	var q StateQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(q.DeviceIDs) == 0 {
		writeBadRequest(w, "device_ids is required")
		return
	}

	states, err := s.queryStates(r.Context(), q.DeviceIDs, q.ServerIDs)
	if err != nil {
		writeSendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"states": states})
}

// queryStates answers from the local session registry when no other node
// is named, and through the cluster otherwise.
func (s *Server) queryStates(ctx context.Context, deviceIDs, serverIDs []string) ([]message.DeviceStateInfo, error) {
	if len(serverIDs) == 0 || (len(serverIDs) == 1 && serverIDs[0] == s.serverID) {
		out := make([]message.DeviceStateInfo, 0, len(deviceIDs))
		for _, id := range deviceIDs {
			state := message.StateOffline
			if _, ok := s.sessions.Lookup(id); ok {
				state = message.StateOnline
			}
			out = append(out, message.DeviceStateInfo{DeviceID: id, State: state})
		}
		return out, nil
	}
	if s.sender == nil {
		return nil, errNoSender
	}

	ctx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()
	return s.sender.DeviceStates(ctx, deviceIDs, serverIDs...)
}

// SendRequest is the body of POST /api/v1/devices/{id}/messages.
type SendRequest struct {
	// ServerID is the node holding the device; defaults to this node.
	ServerID string `json:"server_id,omitempty"`

	// TimeoutMS bounds the wait for the reply; defaults to the node setting.
	// It must not exceed maxSendTimeout.
	TimeoutMS int64 `json:"timeout_ms,omitempty"`

	// Message is the device message envelope (with message_type).
	Message json.RawMessage `json:"message"`
}

// handleSendMessage sends a device message through the cluster and returns
// the first reply. A device that never answers yields a TIME_OUT reply.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.sender == nil {
		writeUnavailable(w, "sending is not enabled on this node")
		return
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	decoded, err := message.Decode(req.Message)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	msg, ok := decoded.(message.DeviceMessage)
	if !ok {
		writeBadRequest(w, "message is not addressed to a device")
		return
	}
	if _, isReply := msg.(message.DeviceMessageReply); isReply {
		writeBadRequest(w, "replies cannot be sent")
		return
	}
	if msg.DeviceID() != id {
		writeBadRequest(w, "message device_id does not match the path")
		return
	}
	if msg.MessageID() == "" {
		writeBadRequest(w, "message_id is required")
		return
	}
	if req.TimeoutMS < 0 || req.TimeoutMS > maxSendTimeout.Milliseconds() {
		writeBadRequest(w, fmt.Sprintf("timeout_ms must be between 0 and %d", maxSendTimeout.Milliseconds()))
		return
	}

	serverID := req.ServerID
	if serverID == "" {
		serverID = s.serverID
	}
	timeout := s.replyTimeout
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	reply, err := s.sender.Send(ctx, serverID, msg)
	if err != nil {
		writeSendError(w, err)
		return
	}

	data, err := message.Encode(reply)
	if err != nil {
		writeInternalError(w, "failed to encode reply")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write(data)
}

// maxSendTimeout caps the reply wait a caller may request.
const maxSendTimeout = 10 * time.Minute

var errNoSender = errors.New("cluster queries are not enabled on this node")

// writeSendError maps cluster errors to HTTP responses.
func writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, messaging.ErrInvalidID):
		writeBadRequest(w, err.Error())
	case errors.Is(err, messaging.ErrNoListener), errors.Is(err, errNoSender):
		writeUnavailable(w, err.Error())
	case message.CodeOf(err) == message.CodeTimeout:
		writeError(w, http.StatusGatewayTimeout, strings.ToLower(string(message.CodeTimeout)), err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}

// lookupDevice loads the device named by the id path parameter, writing
// the error response itself when it cannot.
func (s *Server) lookupDevice(w http.ResponseWriter, r *http.Request) (*device.Device, bool) {
	dev, err := s.devices.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return nil, false
		}
		writeInternalError(w, "failed to get device")
		return nil, false
	}
	return dev, true
}

// isValidationError checks whether an error is a device validation error.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidName) ||
		errors.Is(err, device.ErrInvalidProtocol)
}

// splitList splits a comma-separated query value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
