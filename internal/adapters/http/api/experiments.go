// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/cohort/internal/app"
)

// ExperimentsHandler handles assignment inspection and override requests.
type ExperimentsHandler struct {
	deps Dependencies
}

// NewExperimentsHandler creates a new experiments handler.
func NewExperimentsHandler(deps Dependencies) *ExperimentsHandler {
	return &ExperimentsHandler{deps: deps}
}

// forceVariantRequest mirrors PUT /v1/experiments/{slug}/variant.
type forceVariantRequest struct {
	VariantID string `json:"variant_id"`
}

// HandleListExperiments handles GET /v1/experiments: the visitor's
// persisted slug to variant map.
func (h *ExperimentsHandler) HandleListExperiments(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_experiments"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	active, err := h.deps.ActiveExperiments(r.Context(), visitorID(w, r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, active)
}

// HandleVariant routes /v1/experiments/{slug}/variant.
// GET resolves, PUT forces, DELETE clears.
func (h *ExperimentsHandler) HandleVariant(w http.ResponseWriter, r *http.Request) {
	const op = "api.variant"
	rest := strings.TrimPrefix(r.URL.Path, "/v1/experiments/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "variant" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	slug := parts[0]
	vid := visitorID(w, r)

	switch r.Method {
	case http.MethodGet:
		h.handleResolve(w, r, vid, slug)
	case http.MethodPut:
		h.handleForce(w, r, vid, slug)
	case http.MethodDelete:
		h.handleClear(w, r, vid, slug)
	default:
		http.NotFound(w, r)
	}
}

func (h *ExperimentsHandler) handleResolve(w http.ResponseWriter, r *http.Request, vid, slug string) {
	const op = "api.resolve_variant"
	res, err := h.deps.Resolve(r.Context(), vid, slug, r.Referer(), r.URL.Query())
	if err != nil {
		if errors.Is(err, service.ErrUnknownExperiment) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ExperimentsHandler) handleForce(w http.ResponseWriter, r *http.Request, vid, slug string) {
	const op = "api.force_variant"
	var req forceVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.VariantID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	if err := h.deps.ForceVariant(r.Context(), vid, slug, req.VariantID); err != nil {
		if errors.Is(err, service.ErrUnknownExperiment) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "forced"})
}

func (h *ExperimentsHandler) handleClear(w http.ResponseWriter, r *http.Request, vid, slug string) {
	const op = "api.clear_variant"
	if err := h.deps.ClearVariant(r.Context(), vid, slug); err != nil {
		if errors.Is(err, service.ErrUnknownExperiment) {
			writeError(w, http.StatusNotFound, "not_found", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "cleared"})
}
