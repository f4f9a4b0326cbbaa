// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/pulse/internal/domain/model"
)

// InsightDependencies defines the interface for insight reads.
type InsightDependencies interface {
	Insights(ctx context.Context, userID string, limit int) ([]model.Insight, error)
}

// InsightsHandler handles insight requests.
type InsightsHandler struct {
	deps InsightDependencies
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(deps InsightDependencies) *InsightsHandler {
	return &InsightsHandler{deps: deps}
}

// HandleGetInsights handles GET /insights?user_id=...&limit=N requests.
func (h *InsightsHandler) HandleGetInsights(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_insights"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id, err := userID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
	}
	insights, err := h.deps.Insights(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if insights == nil {
		insights = []model.Insight{}
	}
	writeJSON(w, http.StatusOK, insights)
}
