// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	service "github.com/okian/cohort/internal/app"
)

// SessionsHandler handles page session lifecycle requests.
type SessionsHandler struct {
	deps Dependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

// startSessionRequest mirrors the OpenAPI schema for POST /v1/sessions.
type startSessionRequest struct {
	Experiment string `json:"experiment"`
	Competitor string `json:"competitor"`
	Referrer   string `json:"referrer"`
	URL        string `json:"url"`
}

// scrollRequest mirrors POST /v1/sessions/{id}/scroll.
type scrollRequest struct {
	Position   float64 `json:"position"`
	PageHeight float64 `json:"page_height"`
	Viewport   float64 `json:"viewport"`
}

// trackRequest mirrors POST /v1/sessions/{id}/events.
type trackRequest struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

type ackResponse struct {
	Status string `json:"status"`
}

// HandleStartSession handles POST /v1/sessions requests: the page view
// beacon that classifies, assigns, and opens the engagement monitors.
func (h *SessionsHandler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Competitor) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	// Campaign parameters ride on the landing page URL.
	query := url.Values{}
	if req.URL != "" {
		if u, err := url.Parse(req.URL); err == nil {
			query = u.Query()
		}
	}

	info, err := h.deps.StartSession(r.Context(), SessionRequest{
		VisitorID:      visitorID(w, r),
		ExperimentSlug: req.Experiment,
		CompetitorSlug: req.Competitor,
		Referrer:       req.Referrer,
		Query:          query,
	})
	if err != nil {
		if errors.Is(err, service.ErrUnknownExperiment) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// HandleSessionBeacon routes POST /v1/sessions/{id}/{scroll|events|leave}.
func (h *SessionsHandler) HandleSessionBeacon(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_beacon"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	sessionID, action := parts[0], parts[1]

	var err error
	switch action {
	case "scroll":
		err = h.handleScroll(w, r, sessionID)
	case "events":
		err = h.handleTrack(w, r, sessionID)
	case "leave":
		err = h.deps.EndSession(r.Context(), sessionID)
	default:
		http.NotFound(w, r)
		return
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrUnknownEvent):
		writeError(w, http.StatusBadRequest, "bad_request", Wrap(op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

func (h *SessionsHandler) handleScroll(_ http.ResponseWriter, r *http.Request, sessionID string) error {
	var req scrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return WrapKind("api.scroll", ErrBadRequest, err)
	}
	return h.deps.ObserveScroll(r.Context(), sessionID, req.Position, req.PageHeight, req.Viewport)
}

func (h *SessionsHandler) handleTrack(_ http.ResponseWriter, r *http.Request, sessionID string) error {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return WrapKind("api.track", ErrBadRequest, err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return NewKind("api.track", ErrBadRequest)
	}
	return h.deps.TrackEvent(r.Context(), sessionID, req.Name, req.Params)
}
