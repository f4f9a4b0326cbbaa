// Package config defines service configuration structures and loading.
//
// Conventions:
// - Defaults come from New; file and env layers override them.
// - Durations are expressed in Go duration syntax ("90s", "5m").
package config

import (
	"runtime"
	"time"
)

// Store driver names.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogJSON switches the log handler to JSON output.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the persistence backend: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// SQLitePath locates the SQLite database file.
	SQLitePath string `koanf:"sqlite_path"`

	// BatchSize bounds how many unprocessed events one pass fetches.
	BatchSize int `koanf:"batch_size"`

	// PassInterval is the cadence of the scheduled batch pass.
	PassInterval time.Duration `koanf:"pass_interval"`

	// PassTimeout bounds one pass's total duration.
	PassTimeout time.Duration `koanf:"pass_timeout"`

	// SweepInterval is the cadence of the neglected-skill sweep.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// Concurrency bounds parallel user partitions within a pass.
	Concurrency int `koanf:"concurrency"`

	// DedupeSize bounds the ingestion idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DifficultyScores maps difficulty labels to base point values.
	DifficultyScores map[string]float64 `koanf:"difficulty_scores"`

	// DecayFactor is the per-event mastery decay.
	DecayFactor float64 `koanf:"decay_factor"`

	// DropThreshold is the week-over-week ratio triggering an insight.
	DropThreshold float64 `koanf:"drop_threshold"`

	// CriticalDrop upgrades insight severity past this absolute ratio.
	CriticalDrop float64 `koanf:"critical_drop"`

	// NeglectDays flags skills inactive for this many days or more.
	NeglectDays int `koanf:"neglect_days"`

	// RunOnce performs a single pass plus sweep and exits, for
	// invocation from an external scheduler.
	RunOnce bool `koanf:"run_once"`

	// MaxReadLimit caps limit query parameters on read endpoints.
	MaxReadLimit int `koanf:"max_read_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		Addr:          ":9090",
		StoreDriver:   StoreMemory,
		SQLitePath:    "pulse.db",
		BatchSize:     100,
		PassInterval:  2 * time.Minute,
		PassTimeout:   2 * time.Minute,
		SweepInterval: 24 * time.Hour,
		Concurrency:   runtime.NumCPU(),
		DedupeSize:    50_000,
		DifficultyScores: map[string]float64{
			"easy":   1,
			"medium": 2,
			"hard":   4,
		},
		DecayFactor:   0.95,
		DropThreshold: -0.10,
		CriticalDrop:  0.25,
		NeglectDays:   7,
		MaxReadLimit:  200,
	}
}
