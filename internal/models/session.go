package models

import "time"

const (
	StatusInProgress = "in_progress"
	StatusPaused     = "paused"
	StatusCompleted  = "completed"
	StatusAbandoned  = "abandoned"
)

type Session struct {
	ID              string     `json:"id"`
	WorkoutID       string     `json:"workout_id"`
	UserID          string     `json:"user_id"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	PerceivedEffort *int       `json:"perceived_effort,omitempty"`
	MoodRating      *int       `json:"mood_rating,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (s *Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusAbandoned
}

type SetLog struct {
	SetIndex      int        `json:"set_index"`
	RepsCompleted *int       `json:"reps_completed,omitempty"`
	WeightKg      *float64   `json:"weight_kg,omitempty"`
	DurationSec   *int       `json:"duration_sec,omitempty"`
	Completed     bool       `json:"completed"`
	Skipped       bool       `json:"skipped"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (l *SetLog) Resolved() bool {
	return l.Completed || l.Skipped
}

type TimerSnapshot struct {
	Running          bool  `json:"running"`
	IsResting        bool  `json:"is_resting"`
	RemainingSeconds int   `json:"remaining_seconds"`
	TotalSeconds     int   `json:"total_seconds"`
	Paused           bool  `json:"paused"`
	ExpiresAtEpochMs int64 `json:"expires_at_epoch_ms,omitempty"`
}

type CompletionInput struct {
	PerceivedEffort *int    `json:"perceived_effort,omitempty"`
	MoodRating      *int    `json:"mood_rating,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type SetLogInput struct {
	ExerciseID    string   `json:"exercise_id"`
	SetNumber     int      `json:"set_number"`
	RepsCompleted *int     `json:"reps_completed,omitempty"`
	WeightKg      *float64 `json:"weight_kg,omitempty"`
	DurationSec   *int     `json:"duration_sec,omitempty"`
	WasSkipped    bool     `json:"was_skipped"`
	Notes         *string  `json:"notes,omitempty"`
}

type PendingSyncEntry struct {
	Session    Session         `json:"session"`
	SetLogs    []SetLogInput   `json:"set_logs"`
	Completion CompletionInput `json:"completion"`
	QueuedAt   time.Time       `json:"queued_at"`
}
