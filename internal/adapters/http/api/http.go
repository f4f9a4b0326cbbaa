// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Ingest appends one event idempotently, returning the stored id.
	Ingest(ctx context.Context, e model.Event) (id string, duplicate bool, err error)

	// Read operations expose derived state.
	RecentEvents(ctx context.Context, userID string, limit int) ([]model.Event, error)
	SkillMasteries(ctx context.Context, userID string) ([]model.SkillMastery, error)
	Streak(ctx context.Context, userID string) (model.StreakRecord, error)
	DailySummary(ctx context.Context, userID string, day types.Day) (model.UserDailySummary, error)
	Insights(ctx context.Context, userID string, limit int) ([]model.Insight, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	eventsHandler   *EventsHandler
	masteryHandler  *MasteryHandler
	streakHandler   *StreakHandler
	summaryHandler  *SummaryHandler
	insightsHandler *InsightsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		eventsHandler:   NewEventsHandler(deps),
		masteryHandler:  NewMasteryHandler(deps),
		streakHandler:   NewStreakHandler(deps),
		summaryHandler:  NewSummaryHandler(deps),
		insightsHandler: NewInsightsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandleEvents, "events"))
	mux.HandleFunc("/mastery", MetricsMiddleware(s.masteryHandler.HandleGetMastery, "mastery"))
	mux.HandleFunc("/streaks/", MetricsMiddleware(s.streakHandler.HandleGetStreak, "streaks"))
	mux.HandleFunc("/summary", MetricsMiddleware(s.summaryHandler.HandleGetSummary, "summary"))
	mux.HandleFunc("/insights", MetricsMiddleware(s.insightsHandler.HandleGetInsights, "insights"))
}

// eventRequest mirrors the wire schema for POST /events. Timestamp is
// epoch milliseconds; zero means "now".
type eventRequest struct {
	EventID   string        `json:"event_id"`
	Type      string        `json:"type"`
	UserID    string        `json:"user_id"`
	Timestamp int64         `json:"timestamp"`
	Payload   model.Payload `json:"payload"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.Type) == "":
		return errors.New("missing type")
	case strings.TrimSpace(e.UserID) == "":
		return errors.New("missing user_id")
	case e.Timestamp < 0:
		return errors.New("invalid timestamp; must be epoch milliseconds")
	}
	for _, s := range e.Payload.Skills {
		if strings.TrimSpace(s.SkillID) == "" {
			return errors.New("missing skill_id in payload.skills")
		}
		if s.Weight < 0 {
			return errors.New("invalid weight; must be non-negative")
		}
	}
	return nil
}

func (e eventRequest) toEvent() model.Event {
	var ts time.Time
	if e.Timestamp > 0 {
		ts = time.UnixMilli(e.Timestamp).UTC()
	}
	return model.Event{
		EventID:   strings.TrimSpace(e.EventID),
		Type:      strings.TrimSpace(e.Type),
		UserID:    strings.TrimSpace(e.UserID),
		Timestamp: ts,
		Payload:   e.Payload,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id,omitempty"`
	Duplicate bool   `json:"duplicate"`
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

// userID extracts the required user_id query parameter.
func userID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if id == "" {
		return "", errors.New("missing user_id")
	}
	return id, nil
}

// isNotFound allows the API to translate upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
