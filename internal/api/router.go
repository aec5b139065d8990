package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	// Device sessions. Bodies are not limited here: the socket has its own
	// read limit.
	r.Get(s.devicePath(), s.handleDeviceSocket)

	if s.metricsCfg.Enabled {
		path := s.metricsCfg.Path
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.bodySizeLimitMiddleware)

		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/cluster/topics", s.handleClusterTopics)
		r.Get("/audit", s.handleListAuditLogs)
		r.Post("/states", s.handleQueryStates)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Patch("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Get("/state", s.handleGetDeviceState)
				r.Post("/messages", s.handleSendMessage)
			})
		})
	})

	return r
}

// devicePath returns the chi pattern of the device socket endpoint.
func (s *Server) devicePath() string {
	if s.cfg.Path == "" {
		return "/devices/{deviceID}/ws"
	}
	return s.cfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   s.version,
		"server_id": s.serverID,
	})
}
