// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/pulse/internal/domain/model"
)

// StreakDependencies defines the interface for streak reads.
type StreakDependencies interface {
	Streak(ctx context.Context, userID string) (model.StreakRecord, error)
}

// StreakHandler handles streak requests.
type StreakHandler struct {
	deps StreakDependencies
}

// NewStreakHandler creates a new streak handler.
func NewStreakHandler(deps StreakDependencies) *StreakHandler {
	return &StreakHandler{deps: deps}
}

// HandleGetStreak handles GET /streaks/{user_id} requests.
func (h *StreakHandler) HandleGetStreak(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /streaks/
	path := strings.TrimPrefix(r.URL.Path, "/streaks/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	streak, err := h.deps.Streak(r.Context(), path)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, streak)
}
