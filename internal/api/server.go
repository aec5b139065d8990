package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-dispatch/internal/audit"
	"github.com/nerrad567/gray-logic-dispatch/internal/cluster"
	"github.com/nerrad567/gray-logic-dispatch/internal/device"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dispatch/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dispatch/internal/message"
	"github.com/nerrad567/gray-logic-dispatch/internal/messaging"
	"github.com/nerrad567/gray-logic-dispatch/internal/metrics"
	"github.com/nerrad567/gray-logic-dispatch/internal/protocol"
	"github.com/nerrad567/gray-logic-dispatch/internal/session"
)

// HTTP server timeouts. WebSocket connections clear the deadlines after
// upgrading, so these only bound plain requests.
const (
	gracefulShutdownTimeout = 10 * time.Second
	readHeaderTimeout       = 5 * time.Second
	idleTimeout             = 60 * time.Second
)

// EventSink receives what devices report over their sessions.
// messaging.ClusterHandler implements it.
type EventSink interface {
	Reply(ctx context.Context, reply message.DeviceMessageReply) error
	PublishEvent(ctx context.Context, msg message.DeviceMessage) error
}

// DeviceSender sends a message to the node holding a device.
// messaging.Client implements it.
type DeviceSender interface {
	Send(ctx context.Context, serverID string, msg message.DeviceMessage) (message.DeviceMessageReply, error)
	DeviceStates(ctx context.Context, deviceIDs []string, serverIDs ...string) ([]message.DeviceStateInfo, error)
}

var (
	_ EventSink    = (*messaging.ClusterHandler)(nil)
	_ DeviceSender = (*messaging.Client)(nil)
)

// Deps holds the dependencies required by the Server.
type Deps struct {
	Config   config.GatewayConfig
	Metrics  config.MetricsConfig
	ServerID string
	Version  string

	Logger    *logging.Logger
	Devices   *device.Registry
	Protocols *protocol.Registry
	Sessions  *session.Manager
	Events    EventSink

	// Optional.
	Sender       DeviceSender     // enables the send and cluster state endpoints
	Clusters     *cluster.Manager // enables the topic status endpoint
	Recorder     *metrics.Recorder
	Audit        audit.Repository // enables the audit trail and GET /api/v1/audit
	ReplyTimeout time.Duration    // default wait for POST /devices/{id}/messages
}

// Server is the HTTP surface of a dispatch node.
//
// It accepts device WebSocket sessions and serves the device catalogue,
// send and state endpoints, health and Prometheus metrics.
type Server struct {
	cfg          config.GatewayConfig
	metricsCfg   config.MetricsConfig
	serverID     string
	version      string
	logger       *logging.Logger
	devices      *device.Registry
	protocols    *protocol.Registry
	sessions     *session.Manager
	events       EventSink
	sender       DeviceSender
	clusters     *cluster.Manager
	recorder     *metrics.Recorder
	replyTimeout time.Duration
	startTime    time.Time

	auditRepo   audit.Repository
	auditCh     chan *audit.Entry
	auditCancel context.CancelFunc
	auditDone   chan struct{}

	server *http.Server
	conns  *connSet
}

// New creates a new Server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil || deps.Protocols == nil {
		return nil, fmt.Errorf("device registry and protocol registry are required")
	}
	if deps.Sessions == nil || deps.Events == nil {
		return nil, fmt.Errorf("session manager and event sink are required")
	}
	if deps.ServerID == "" {
		return nil, fmt.Errorf("server id is required")
	}

	s := &Server{
		cfg:          deps.Config,
		metricsCfg:   deps.Metrics,
		serverID:     deps.ServerID,
		version:      deps.Version,
		logger:       deps.Logger.Component("api"),
		devices:      deps.Devices,
		protocols:    deps.Protocols,
		sessions:     deps.Sessions,
		events:       deps.Events,
		sender:       deps.Sender,
		clusters:     deps.Clusters,
		recorder:     deps.Recorder,
		replyTimeout: deps.ReplyTimeout,
		startTime:    time.Now(),
		conns:        newConnSet(),
		auditRepo:    deps.Audit,
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}
	if s.recorder == nil {
		s.recorder = metrics.NewRecorder(deps.ServerID, nil)
	}
	if s.replyTimeout <= 0 {
		s.replyTimeout = 10 * time.Second
	}
	return s, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	if s.metricsCfg.Enabled {
		metrics.Register()
	}

	if s.auditRepo != nil {
		var auditCtx context.Context
		auditCtx, s.auditCancel = context.WithCancel(context.Background())
		s.auditDone = make(chan struct{})
		go s.drainAuditLog(auditCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}

	go func() {
		s.logger.Info("gateway listening", "address", s.server.Addr, "device_path", s.cfg.Path)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the server.
//
// Device sessions are closed first, then in-flight requests get up to
// 10 seconds to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.conns.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("gateway shutting down")
	err := s.server.Shutdown(ctx)

	if s.auditCancel != nil {
		s.auditCancel()
		<-s.auditDone
	}

	if err != nil {
		return fmt.Errorf("shutting down gateway: %w", err)
	}
	return nil
}

// HealthCheck verifies the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("gateway health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("gateway server not started")
	}
	return nil
}
