package seedevents

import "time"

// Config holds configuration for the event seeding run.
type Config struct {
	BaseURL   string        // Base URL of the service
	NumEvents int           // Number of events to generate
	NumUsers  int           // Number of distinct users to spread events across
	NumSkills int           // Number of distinct skills to draw from
	SpanDays  int           // Timestamp spread: events land within the last N days
	Workers   int           // Number of concurrent submit workers
	Timeout   time.Duration // HTTP request timeout
	Verbose   bool          // Enable verbose logging
}

// Event represents an activity event to be submitted.
type Event struct {
	EventID   string  `json:"event_id"`
	Type      string  `json:"type"`
	UserID    string  `json:"user_id"`
	Timestamp int64   `json:"timestamp"`
	Payload   Payload `json:"payload"`
}

// Payload mirrors the ingestion wire schema. DurationMinutes is an
// integer because the server decodes it into an int field.
type Payload struct {
	Skills          []Skill `json:"skills"`
	Difficulty      string  `json:"difficulty"`
	DurationMinutes int     `json:"duration_minutes"`
}

// Skill is one weighted skill reference in a payload.
type Skill struct {
	SkillID string  `json:"skill_id"`
	Weight  float64 `json:"weight"`
}

// AckResponse represents the response from event submission.
type AckResponse struct {
	Status    string `json:"status"`
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds seeding statistics.
type Stats struct {
	EventsGenerated  int
	EventsSubmitted  int
	EventsSuccessful int
	EventsDuplicate  int
	EventsFailed     int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
