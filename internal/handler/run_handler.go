package handler

import (
	"net/http"
	"regexp"

	"github.com/tavira/kestrel/internal/model"
	"github.com/tavira/kestrel/internal/service"
)

// overridePattern matches the on-demand trigger's optional time parameter
// before range validation.
var overridePattern = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// RunHandler exposes the on-demand trigger surface.
type RunHandler struct {
	runner *service.Runner
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runner *service.Runner) *RunHandler {
	return &RunHandler{runner: runner}
}

// RunResponse is the trigger response envelope.
type RunResponse struct {
	OK     bool               `json:"ok"`
	Result *service.RunResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Run handles POST /api/v1/schedules/run. An optional time=HH:MM parameter
// evaluates as if it were that wall-clock minute today, for testing rule
// matching deterministically.
func (h *RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	override := r.URL.Query().Get("time")

	var result service.RunResult
	var err error
	if override != "" {
		if !overridePattern.MatchString(override) {
			writeJSON(w, http.StatusBadRequest, RunResponse{OK: false, Error: "time must match HH:MM"})
			return
		}
		clock, normErr := model.NormalizeClock(override)
		if normErr != nil {
			writeJSON(w, http.StatusBadRequest, RunResponse{OK: false, Error: normErr.Error()})
			return
		}
		result, err = h.runner.RunAtClock(r.Context(), clock)
	} else {
		result, err = h.runner.Run(r.Context())
	}

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, RunResponse{OK: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{OK: true, Result: &result})
}
