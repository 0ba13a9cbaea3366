package handler

import (
	"net/http"
	"strings"

	"github.com/tavira/kestrel/internal/telemetry"
	"github.com/tavira/kestrel/pkg/middleware"
)

// Router handles HTTP routing
type Router struct {
	scheduleHandler *ScheduleHandler
	relayHandler    *RelayHandler
	runHandler      *RunHandler
	healthHandler   *HealthHandler
	corsConfig      middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	scheduleHandler *ScheduleHandler,
	relayHandler *RelayHandler,
	runHandler *RunHandler,
	healthHandler *HealthHandler,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		scheduleHandler: scheduleHandler,
		relayHandler:    relayHandler,
		runHandler:      runHandler,
		healthHandler:   healthHandler,
		corsConfig:      corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health and metrics endpoints (no middleware)
	mux.HandleFunc("/health", rt.healthHandler.Health)
	mux.HandleFunc("/ready", rt.healthHandler.Ready)
	mux.Handle("/metrics", telemetry.Handler())

	// API endpoints
	mux.HandleFunc("/api/v1/schedules", rt.handleSchedules)
	mux.HandleFunc("/api/v1/schedules/", rt.handleSchedulesWithID)
	mux.HandleFunc("/api/v1/relays", rt.handleRelays)
	mux.HandleFunc("/api/v1/relays/", rt.handleRelaysWithID)

	// Apply middleware (CORS first to handle preflight requests)
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}

// handleSchedules routes schedule collection endpoints
func (rt *Router) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rt.scheduleHandler.List(w, r)
	case http.MethodPost:
		rt.scheduleHandler.Create(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSchedulesWithID routes schedule individual endpoints plus the run
// and logs sub-resources
func (rt *Router) handleSchedulesWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/schedules/")

	switch path {
	case "run":
		rt.runHandler.Run(w, r)
		return
	case "logs":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.scheduleHandler.Logs(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut:
		rt.scheduleHandler.Update(w, r)
	case http.MethodDelete:
		rt.scheduleHandler.Delete(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRelays routes relay collection endpoints
func (rt *Router) handleRelays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.relayHandler.List(w, r)
}

// handleRelaysWithID routes relay individual endpoints
func (rt *Router) handleRelaysWithID(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/toggle") {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		rt.relayHandler.Toggle(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "Endpoint not found")
}
