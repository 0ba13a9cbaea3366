package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tavira/kestrel/internal/service"
	"github.com/tavira/kestrel/internal/store"
)

// RelayHandler handles relay state endpoints.
type RelayHandler struct {
	service *service.RelayService
}

// NewRelayHandler creates a new relay handler.
func NewRelayHandler(svc *service.RelayService) *RelayHandler {
	return &RelayHandler{service: svc}
}

// ToggleResponse is the toggle response payload.
type ToggleResponse struct {
	ID      string `json:"id"`
	On      bool   `json:"on"`
	Message string `json:"message"`
}

// List handles GET /api/v1/relays
func (h *RelayHandler) List(w http.ResponseWriter, r *http.Request) {
	relays, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, relays)
}

// Toggle handles POST /api/v1/relays/{id}/toggle
func (h *RelayHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/relays/")
	id := strings.TrimSuffix(path, "/toggle")
	if id == "" || id == path {
		writeError(w, http.StatusBadRequest, "Relay ID is required")
		return
	}

	on, err := h.service.Toggle(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Relay not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	state := "OFF"
	if on {
		state = "ON"
	}
	writeJSON(w, http.StatusOK, ToggleResponse{
		ID:      id,
		On:      on,
		Message: fmt.Sprintf("%s turned %s", id, state),
	})
}
