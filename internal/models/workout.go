package models

import "time"

type Workout struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ExerciseSlot struct {
	ExerciseID   string   `json:"exercise_id"`
	Name         string   `json:"name"`
	SetsPlanned  int      `json:"sets_planned"`
	RepsPerSet   *int     `json:"reps_per_set,omitempty"`
	WeightKg     *float64 `json:"weight_kg,omitempty"`
	DurationSec  *int     `json:"duration_sec,omitempty"`
	RestAfterSec int      `json:"rest_after_sec"`
}
