package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-dispatch/internal/audit"
	"github.com/nerrad567/gray-logic-dispatch/internal/device"
	"github.com/nerrad567/gray-logic-dispatch/internal/message"
	"github.com/nerrad567/gray-logic-dispatch/internal/protocol"
	"github.com/nerrad567/gray-logic-dispatch/internal/session"
)

const (
	// wsSendBufferSize is the per-device outbound frame buffer size.
	wsSendBufferSize = 256

	// eventTimeout bounds publishing one inbound reply or event.
	eventTimeout = 5 * time.Second
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Devices are not browsers
		return true
	},
}

// handleDeviceSocket upgrades a device connection and registers it as the
// device's session on this node.
//
// The device must be in the catalogue and enabled. A second connection for
// the same device replaces the first.
func (s *Server) handleDeviceSocket(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	dev, err := s.devices.GetDevice(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	if !dev.Enabled {
		s.auditLog(audit.ActionRefused, audit.SourceGateway, deviceID, map[string]any{"reason": "disabled"})
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "device is disabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "device_id", deviceID, "error", err)
		return
	}

	c := &deviceConn{
		id:       uuid.NewString(),
		deviceID: deviceID,
		operator: s.devices.Operator(deviceID, s.protocols),
		conn:     conn,
		send:     make(chan protocol.EncodedMessage, wsSendBufferSize),
		done:     make(chan struct{}),
		server:   s,
	}

	if err := s.sessions.Register(c); err != nil {
		s.logger.Warn("session registration refused", "device_id", deviceID, "error", err)
		s.auditLog(audit.ActionRefused, audit.SourceGateway, deviceID, map[string]any{"reason": err.Error()})
		conn.Close()
		return
	}
	s.conns.add(c)
	s.recorder.SessionOpened()
	s.auditLog(audit.ActionConnect, audit.SourceGateway, deviceID, map[string]any{"session_id": c.id, "remote": r.RemoteAddr})
	s.logger.Info("device connected", "device_id", deviceID, "session_id", c.id, "remote", r.RemoteAddr)

	go c.writePump()
	go c.readPump()
}

// deviceConn is a device session over one WebSocket connection.
type deviceConn struct {
	id       string
	deviceID string
	operator protocol.DeviceOperator
	conn     *websocket.Conn
	send     chan protocol.EncodedMessage
	server   *Server

	done      chan struct{}
	closeOnce sync.Once
}

var _ session.Session = (*deviceConn)(nil)

func (c *deviceConn) ID() string                        { return c.id }
func (c *deviceConn) DeviceID() string                  { return c.deviceID }
func (c *deviceConn) Operator() protocol.DeviceOperator { return c.operator }
func (c *deviceConn) Transport() protocol.Transport     { return protocol.TransportWebSocket }

// Send queues one frame for the write pump. It returns false once the
// connection is closed.
func (c *deviceConn) Send(ctx context.Context, msg protocol.EncodedMessage) (bool, error) {
	select {
	case <-c.done:
		return false, nil
	default:
	}

	select {
	case c.send <- msg:
		return true, nil
	case <-c.done:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Close ends the connection. The write pump sends a close frame and closes
// the socket, which ends the read pump.
func (c *deviceConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// readPump reads frames from the device until the connection fails.
func (c *deviceConn) readPump() {
	s := c.server
	defer func() {
		c.Close()
		s.conns.remove(c)
		if s.sessions.Remove(c) {
			s.logger.Info("device disconnected", "device_id", c.deviceID, "session_id", c.id)
		}
		s.recorder.SessionClosed()
		s.auditLog(audit.ActionDisconnect, audit.SourceGateway, c.deviceID, map[string]any{"session_id": c.id})
	}()

	pingInterval := s.cfg.GetPingInterval()
	pongWait := s.cfg.GetPongTimeout()
	if s.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(s.cfg.MaxMessageSize))
	}
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("device read error", "device_id", c.deviceID, "error", err)
			} else {
				s.logger.Debug("device socket closed", "device_id", c.deviceID, "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		s.recorder.FrameReceived()

		c.handleFrame(protocol.EncodedMessage{Payload: data, Binary: mt == websocket.BinaryMessage})
	}
}

// writePump writes queued frames and keepalive pings.
func (c *deviceConn) writePump() {
	s := c.server
	pingInterval := s.cfg.GetPingInterval()
	pongWait := s.cfg.GetPongTimeout()
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			mt := websocket.TextMessage
			if frame.Binary {
				mt = websocket.BinaryMessage
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(mt, frame.Payload); err != nil {
				s.logger.Debug("device write failed", "device_id", c.deviceID, "error", err)
				c.Close()
				return
			}
			s.recorder.FrameSent()
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			//nolint:errcheck // Best-effort close message
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// handleFrame decodes one inbound frame with the device's protocol and
// forwards replies and events to the cluster.
func (c *deviceConn) handleFrame(frame protocol.EncodedMessage) {
	s := c.server
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	support, err := c.operator.Protocol(ctx)
	if err != nil {
		s.recorder.DecodeFailed()
		s.logger.Warn("dropping frame: no protocol", "device_id", c.deviceID, "error", err)
		return
	}
	codec, err := support.Codec(ctx, protocol.TransportWebSocket)
	if err != nil {
		s.recorder.DecodeFailed()
		s.logger.Warn("dropping frame: no codec", "device_id", c.deviceID, "protocol", support.ID(), "error", err)
		return
	}
	msg, err := codec.Decode(ctx, decodeContext{frame: frame, operator: c.operator})
	if err != nil {
		s.recorder.DecodeFailed()
		s.logger.Warn("dropping undecodable frame", "device_id", c.deviceID, "protocol", support.ID(), "error", err)
		return
	}
	if msg == nil {
		// Protocol-level frame with nothing to report.
		return
	}

	switch m := msg.(type) {
	case message.DeviceMessageReply:
		if err := s.events.Reply(ctx, m); err != nil {
			s.logger.Error("forwarding device reply failed", "device_id", c.deviceID, "message_id", m.MessageID(), "error", err)
		}
	case message.DeviceMessage:
		if err := s.events.PublishEvent(ctx, m); err != nil {
			s.logger.Error("publishing device event failed", "device_id", c.deviceID, "type", m.Type(), "error", err)
		}
	default:
		s.logger.Debug("ignoring device frame", "device_id", c.deviceID, "type", msg.Type())
	}
}

type decodeContext struct {
	frame    protocol.EncodedMessage
	operator protocol.DeviceOperator
}

func (d decodeContext) Frame() protocol.EncodedMessage    { return d.frame }
func (d decodeContext) Operator() protocol.DeviceOperator { return d.operator }

// connSet tracks open device connections so Close can end them; hijacked
// connections are not closed by http.Server.Shutdown.
type connSet struct {
	mu    sync.Mutex
	conns map[*deviceConn]struct{}
}

func newConnSet() *connSet {
	return &connSet{conns: make(map[*deviceConn]struct{})}
}

func (cs *connSet) add(c *deviceConn) {
	cs.mu.Lock()
	cs.conns[c] = struct{}{}
	cs.mu.Unlock()
}

func (cs *connSet) remove(c *deviceConn) {
	cs.mu.Lock()
	delete(cs.conns, c)
	cs.mu.Unlock()
}

func (cs *connSet) closeAll() {
	cs.mu.Lock()
	conns := make([]*deviceConn, 0, len(cs.conns))
	for c := range cs.conns {
		conns = append(conns, c)
	}
	cs.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
