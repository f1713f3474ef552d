// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	service "github.com/okian/cohort/internal/app"
	"github.com/okian/cohort/internal/domain/types"
)

// Visitor identity cookie. Pages carry it for a year so that traffic
// classification and assignments stay sticky across visits.
const (
	visitorCookie = "ab_vid"
	visitorMaxAge = 365 * 24 * time.Hour
)

// SessionRequest mirrors the service request shape.
type SessionRequest = service.SessionRequest

// SessionInfo mirrors the service response shape.
type SessionInfo = service.SessionInfo

// Resolution mirrors the composed variant lookup result.
type Resolution = types.Resolution

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Session lifecycle.
	StartSession(ctx context.Context, req SessionRequest) (SessionInfo, error)
	ObserveScroll(ctx context.Context, sessionID string, position, pageHeight, viewport float64) error
	TrackEvent(ctx context.Context, sessionID, name string, params map[string]string) error
	EndSession(ctx context.Context, sessionID string) error

	// Experiment assignment.
	Resolve(ctx context.Context, visitorID, slug, referrer string, query url.Values) (Resolution, error)
	ActiveExperiments(ctx context.Context, visitorID string) (map[string]string, error)
	ForceVariant(ctx context.Context, visitorID, slug, variantID string) error
	ClearVariant(ctx context.Context, visitorID, slug string) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionsHandler    *SessionsHandler
	experimentsHandler *ExperimentsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		sessionsHandler:    NewSessionsHandler(deps),
		experimentsHandler: NewExperimentsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/v1/sessions", MetricsMiddleware(s.sessionsHandler.HandleStartSession, "sessions"))
	mux.HandleFunc("/v1/sessions/", MetricsMiddleware(s.sessionsHandler.HandleSessionBeacon, "session_beacon"))
	mux.HandleFunc("/v1/experiments", MetricsMiddleware(s.experimentsHandler.HandleListExperiments, "experiments"))
	mux.HandleFunc("/v1/experiments/", MetricsMiddleware(s.experimentsHandler.HandleVariant, "experiment_variant"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// visitorID resolves the caller's visitor identity: an explicit header
// wins, then the cookie; a new id is minted and set otherwise.
func visitorID(w http.ResponseWriter, r *http.Request) string {
	if id := r.Header.Get("X-Visitor-Id"); id != "" {
		return id
	}
	if c, err := r.Cookie(visitorCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(visitorMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
