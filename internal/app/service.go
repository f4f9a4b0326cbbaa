// Package service wires the store, the deduper, the domain models and
// the batch runner into the surface the HTTP API and scheduler use.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/adapters/worker"
	"github.com/okian/pulse/internal/config"
	"github.com/okian/pulse/internal/domain/dedupe"
	"github.com/okian/pulse/internal/domain/insight"
	"github.com/okian/pulse/internal/domain/mastery"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/scoring"
	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// Service is the aggregation service: sole owner of derived state and
// the ingestion entry point.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	deduper dedupe.Deduper
	runner  *worker.Runner

	// Configuration
	storeDriver      string
	sqlitePath       string
	batchSize        int
	passTimeout      time.Duration
	concurrency      int
	dedupeSize       int
	difficultyScores map[string]float64
	decayFactor      float64
	dropThreshold    float64
	criticalDrop     float64
	neglectDays      int
	maxReadLimit     int
	clock            func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig applies every service-relevant field of a loaded Config.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		s.storeDriver = cfg.StoreDriver
		s.sqlitePath = cfg.SQLitePath
		s.batchSize = cfg.BatchSize
		s.passTimeout = cfg.PassTimeout
		s.concurrency = cfg.Concurrency
		s.dedupeSize = cfg.DedupeSize
		s.difficultyScores = cfg.DifficultyScores
		s.decayFactor = cfg.DecayFactor
		s.dropThreshold = cfg.DropThreshold
		s.criticalDrop = cfg.CriticalDrop
		s.neglectDays = cfg.NeglectDays
		s.maxReadLimit = cfg.MaxReadLimit
	}
}

// WithStore injects a pre-built store, overriding the driver config.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock injects a time source, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	defaults := config.New()
	s := &Service{
		clock: time.Now,
	}
	WithConfig(defaults)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.store == nil {
		switch s.storeDriver {
		case config.StoreSQLite:
			store, err := repository.NewSQLStore(s.sqlitePath)
			if err != nil {
				return fmt.Errorf("init sqlite store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.sqlitePath))
		default:
			s.store = repository.NewMemStore()
			s.logger.Info(ctx, "using in-memory store")
		}
	}

	s.deduper = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))

	scorer := scoring.New(scoring.WithScores(s.difficultyScores))
	masteryModel := mastery.New(mastery.WithDecay(s.decayFactor))
	detector := insight.NewDetector(
		s.store.TaskPointsByDay,
		insight.WithDropThreshold(s.dropThreshold),
		insight.WithCriticalDrop(s.criticalDrop),
	)

	s.runner = worker.NewRunner(
		s.store,
		scorer,
		masteryModel,
		detector,
		worker.WithBatchSize(s.batchSize),
		worker.WithPassTimeout(s.passTimeout),
		worker.WithConcurrency(s.concurrency),
		worker.WithNeglectDays(s.neglectDays),
		worker.WithClock(s.clock),
		worker.WithLogger(s.logger.Named("worker")),
	)

	s.started = true
	s.logger.Info(ctx, "aggregation service started",
		logger.String("store", s.storeDriver),
		logger.Int("batchSize", s.batchSize),
		logger.Int("concurrency", s.concurrency),
	)
	return nil
}

// Stop releases the service's resources.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(context.Background(), "store close failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "aggregation service stopped")
}

// Ingest appends one event idempotently. A resubmitted EventID reports
// duplicate=true with no new record. Events without a client EventID
// get a server-assigned one. The caller leaves e.ID empty.
func (s *Service) Ingest(ctx context.Context, e model.Event) (id string, duplicate bool, err error) {
	clientID := e.EventID
	if clientID != "" && s.deduper.SeenAndRecord(ctx, clientID) {
		metrics.RecordEventDuplicate()
		return "", true, nil
	}

	now := s.clock()
	e.ID = uuid.New().String()
	e.Processed = false
	e.ProcessedAt = nil
	e.CreatedAt = now
	if e.EventID == "" {
		e.EventID = e.ID
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}

	stored, err := s.store.AppendEvent(ctx, e)
	if err != nil {
		if clientID != "" {
			// Roll back the cache entry so a retry can reach the store.
			s.deduper.Unrecord(ctx, clientID)
		}
		if isDuplicate(err) {
			metrics.RecordEventDuplicate()
			return "", true, nil
		}
		metrics.RecordIngestError()
		return "", false, fmt.Errorf("ingest event: %w", err)
	}

	metrics.RecordEventIngested()
	return stored.ID, false, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, repository.ErrDuplicateEvent)
}

// RunPass executes one batch pass.
func (s *Service) RunPass(ctx context.Context) (worker.Summary, error) {
	return s.runner.RunPass(ctx)
}

// RunNeglectSweep executes one neglected-skill sweep.
func (s *Service) RunNeglectSweep(ctx context.Context) (int, error) {
	return s.runner.RunNeglectSweep(ctx)
}

// Read operations, consumed by the HTTP API.

// RecentEvents returns a user's newest events.
func (s *Service) RecentEvents(ctx context.Context, userID string, limit int) ([]model.Event, error) {
	return s.store.RecentEvents(ctx, userID, s.clampLimit(limit))
}

// SkillMasteries returns every mastery record for a user.
func (s *Service) SkillMasteries(ctx context.Context, userID string) ([]model.SkillMastery, error) {
	return s.store.SkillMasteries(ctx, userID)
}

// Streak returns a user's streak record.
func (s *Service) Streak(ctx context.Context, userID string) (model.StreakRecord, error) {
	return s.store.Streak(ctx, userID)
}

// DailySummary returns a user's summary for one day.
func (s *Service) DailySummary(ctx context.Context, userID string, day types.Day) (model.UserDailySummary, error) {
	return s.store.UserDailySummary(ctx, userID, day)
}

// Insights returns a user's newest insights.
func (s *Service) Insights(ctx context.Context, userID string, limit int) ([]model.Insight, error) {
	return s.store.InsightsByUser(ctx, userID, s.clampLimit(limit))
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 || limit > s.maxReadLimit {
		return s.maxReadLimit
	}
	return limit
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"store":       s.storeDriver,
		"batchSize":   s.batchSize,
		"concurrency": s.concurrency,
	}
	if s.started {
		if backlog, err := s.store.CountUnprocessed(context.Background()); err == nil {
			stats["unprocessedEvents"] = backlog
			metrics.UpdateUnprocessedEvents(backlog)
		}
		stats["dedupeSize"] = s.deduper.Size()
	}
	return stats
}
