package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tavira/kestrel/internal/model"
	"github.com/tavira/kestrel/internal/service"
	"github.com/tavira/kestrel/internal/store"
)

// ScheduleHandler handles schedule rule CRUD operations.
type ScheduleHandler struct {
	service *service.ScheduleService
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(svc *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// ScheduleRequest is the create/update request body.
type ScheduleRequest struct {
	Time   string       `json:"time"`
	Action model.Action `json:"action"`
}

// ListResponse represents the list response
type ListResponse struct {
	Total   int                  `json:"total"`
	Results []model.ScheduleRule `json:"results"`
}

// List handles GET /api/v1/schedules
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rules == nil {
		rules = []model.ScheduleRule{}
	}
	writeJSON(w, http.StatusOK, ListResponse{Total: len(rules), Results: rules})
}

// Create handles POST /api/v1/schedules
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rule, err := h.service.Create(r.Context(), req.Time, req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

// Update handles PUT /api/v1/schedules/{id}
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := ruleID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "Schedule ID is required")
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := h.service.Update(r.Context(), id, req.Time, req.Action); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Schedule not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Schedule updated"})
}

// Delete handles DELETE /api/v1/schedules/{id}
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := ruleID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "Schedule ID is required")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Schedule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Schedule deleted"})
}

// Logs handles GET /api/v1/schedules/logs
func (h *ScheduleHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50)

	entries, err := h.service.Logs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []model.ScheduleLog{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func ruleID(r *http.Request) string {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/schedules/")
	return strings.Split(id, "/")[0]
}
