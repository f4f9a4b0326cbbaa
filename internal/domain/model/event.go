// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/pulse/internal/domain/types"
)

// Event types understood by the aggregation worker. Unknown types are
// marked processed with no derived effect, which keeps ingestion
// forward-compatible.
const (
	TypeTaskCompleted = "task.completed"
)

// Insight keys and severities.
const (
	InsightSkillDrop      = "skill_drop"
	InsightNeglectedSkill = "neglected_skill"

	SeverityWarn     = "warn"
	SeverityCritical = "critical"
)

// SkillRef names a skill touched by an event together with its share of
// the event's difficulty points.
type SkillRef struct {
	SkillID string  `json:"skill_id"`
	Weight  float64 `json:"weight"`
}

// Payload carries the task-completion details of an event.
type Payload struct {
	Skills          []SkillRef `json:"skills"`
	Difficulty      string     `json:"difficulty"`
	DurationMinutes int        `json:"duration_minutes"`
}

// Event is the immutable unit of ingestion. Created with Processed=false
// by the ingestion boundary; flipped to true exactly once by the worker;
// never deleted.
type Event struct {
	ID          string     `json:"id" gorm:"primaryKey;column:id"`
	EventID     string     `json:"event_id" gorm:"uniqueIndex;column:event_id"`
	Type        string     `json:"type" gorm:"column:type"`
	UserID      string     `json:"user_id" gorm:"index;column:user_id"`
	Timestamp   time.Time  `json:"timestamp" gorm:"index;column:timestamp"`
	Payload     Payload    `json:"payload" gorm:"serializer:json;column:payload"`
	Processed   bool       `json:"processed" gorm:"index;column:processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" gorm:"column:processed_at"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at"`
}

// DailyAggregate accumulates per (user, skill, day) totals. Purely
// additive; created on the first event for its key.
type DailyAggregate struct {
	UserID         string    `json:"user_id" gorm:"primaryKey;column:user_id"`
	SkillID        string    `json:"skill_id" gorm:"primaryKey;column:skill_id"`
	Date           types.Day `json:"date" gorm:"primaryKey;column:date"`
	TaskPoints     float64   `json:"task_points" gorm:"column:task_points"`
	TimeSeconds    int64     `json:"time_seconds" gorm:"column:time_seconds"`
	TasksCompleted int64     `json:"tasks_completed" gorm:"column:tasks_completed"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// SkillMastery holds the exponentially decayed running sum for a
// (user, skill) pair and the bounded score derived from it. Mastery is
// always recomputed from DecayedSum, never set independently.
type SkillMastery struct {
	UserID     string    `json:"user_id" gorm:"primaryKey;column:user_id"`
	SkillID    string    `json:"skill_id" gorm:"primaryKey;column:skill_id"`
	DecayedSum float64   `json:"decayed_sum" gorm:"column:decayed_sum"`
	Mastery    int       `json:"mastery" gorm:"column:mastery"`
	LastActive types.Day `json:"last_active" gorm:"index;column:last_active"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// UserDailySummary accumulates per (user, day) totals across all skills.
type UserDailySummary struct {
	UserID         string    `json:"user_id" gorm:"primaryKey;column:user_id"`
	Date           types.Day `json:"date" gorm:"primaryKey;column:date"`
	TasksCompleted int64     `json:"tasks_completed" gorm:"column:tasks_completed"`
	TimeSeconds    int64     `json:"time_seconds" gorm:"column:time_seconds"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// StreakRecord tracks consecutive active days for a user.
// Invariant: LongestStreak >= CurrentStreak >= 0.
type StreakRecord struct {
	UserID         string    `json:"user_id" gorm:"primaryKey;column:user_id"`
	CurrentStreak  int       `json:"current_streak" gorm:"column:current_streak"`
	LongestStreak  int       `json:"longest_streak" gorm:"column:longest_streak"`
	LastActiveDate types.Day `json:"last_active_date" gorm:"column:last_active_date"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Insight is an append-only derived signal generated from aggregate
// trends. SkillID is empty for user-level insights.
type Insight struct {
	ID          string         `json:"id" gorm:"primaryKey;column:id"`
	UserID      string         `json:"user_id" gorm:"index;column:user_id"`
	SkillID     string         `json:"skill_id,omitempty" gorm:"column:skill_id"`
	Key         string         `json:"key" gorm:"column:key"`
	Severity    string         `json:"severity" gorm:"column:severity"`
	Message     string         `json:"message" gorm:"column:message"`
	Data        map[string]any `json:"data,omitempty" gorm:"serializer:json;column:data"`
	GeneratedAt time.Time      `json:"generated_at" gorm:"column:generated_at"`
}
