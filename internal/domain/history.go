package domain

import (
	"math"
	"time"
)

// SessionStatus records how a coaching session ended.
type SessionStatus string

const (
	SessionCompleted SessionStatus = "completed"
	SessionSkipped   SessionStatus = "skipped"
	SessionPartial   SessionStatus = "partial"
)

func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionCompleted, SessionSkipped, SessionPartial:
		return true
	default:
		return false
	}
}

const (
	MinDifficulty = 1
	MaxDifficulty = 10
)

// HistoryEntry is an immutable record of one finished or aborted session.
type HistoryEntry struct {
	Date       time.Time     `bson:"date" json:"date"`
	Workout    WorkoutPlan   `bson:"workout" json:"workout"`
	Status     SessionStatus `bson:"status" json:"status"`
	Feedback   string        `bson:"feedback" json:"feedback"`
	Difficulty int           `bson:"difficulty" json:"difficulty"`
}

// ConsistencyScore returns the share of completed sessions as a rounded
// percentage in [0,100]. An empty history scores 0.
func ConsistencyScore(history []HistoryEntry) int {
	completed := 0
	for _, h := range history {
		if h.Status == SessionCompleted {
			completed++
		}
	}
	total := len(history)
	if total < 1 {
		total = 1
	}
	return int(math.Round(math.Min(100, float64(completed)/float64(total)*100)))
}
