// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/pulse/internal/domain/model"
)

// MasteryDependencies defines the interface for mastery reads.
type MasteryDependencies interface {
	SkillMasteries(ctx context.Context, userID string) ([]model.SkillMastery, error)
}

// MasteryHandler handles skill mastery requests.
type MasteryHandler struct {
	deps MasteryDependencies
}

// NewMasteryHandler creates a new mastery handler.
func NewMasteryHandler(deps MasteryDependencies) *MasteryHandler {
	return &MasteryHandler{deps: deps}
}

// HandleGetMastery handles GET /mastery?user_id=... requests.
func (h *MasteryHandler) HandleGetMastery(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_mastery"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	masteries, err := h.deps.SkillMasteries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if masteries == nil {
		masteries = []model.SkillMastery{}
	}
	writeJSON(w, http.StatusOK, masteries)
}
