package seedevents

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pulse/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	maxSkillsPerEvent  = 3
	minutesPerDay      = 24 * 60
)

// Duration and weight generation ranges.
const (
	durationMinMinutes = 10
	durationRange      = 110
	weightMin          = 0.5
	weightRange        = 1.5
)

var difficulties = []string{"easy", "medium", "hard"}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, max).
func getRandomInt(max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64())
}

// generateEvents creates task completion events spread across a pool of
// users and skills, with timestamps scattered over the configured span.
func generateEvents(ctx context.Context, config *Config, stats *Stats) ([]Event, error) {
	logger.Get().Info(ctx, "generating events",
		logger.Int("numEvents", config.NumEvents),
		logger.Int("numUsers", config.NumUsers),
		logger.Int("numSkills", config.NumSkills))

	userIDs := make([]string, config.NumUsers)
	for i := range userIDs {
		userIDs[i] = uuid.New().String()
	}
	skillIDs := make([]string, config.NumSkills)
	for i := range skillIDs {
		skillIDs[i] = "skill-" + strconv.Itoa(i)
	}

	now := time.Now().UTC()
	events := make([]Event, config.NumEvents)
	for i := range events {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		events[i] = generateSingleEvent(now, config, userIDs, skillIDs)
	}

	stats.EventsGenerated = len(events)
	return events, nil
}

// generateSingleEvent builds one task.completed event with one to three
// weighted skills.
func generateSingleEvent(now time.Time, config *Config, userIDs, skillIDs []string) Event {
	numSkills := 1 + getRandomInt(maxSkillsPerEvent)
	skills := make([]Skill, 0, numSkills)
	seen := make(map[string]bool, numSkills)
	for len(skills) < numSkills {
		id := skillIDs[getRandomInt(len(skillIDs))]
		if seen[id] {
			continue
		}
		seen[id] = true
		skills = append(skills, Skill{
			SkillID: id,
			Weight:  weightMin + getRandomFloat()*weightRange,
		})
	}

	minutesBack := getRandomInt(config.SpanDays * minutesPerDay)
	ts := now.Add(-time.Duration(minutesBack) * time.Minute)

	return Event{
		EventID: uuid.New().String(),
		Type:    "task.completed",
		UserID:  userIDs[getRandomInt(len(userIDs))],
		// Wire timestamps are epoch milliseconds
		Timestamp: ts.UnixMilli(),
		Payload: Payload{
			Skills:          skills,
			Difficulty:      difficulties[getRandomInt(len(difficulties))],
			DurationMinutes: durationMinMinutes + getRandomInt(durationRange+1),
		},
	}
}
