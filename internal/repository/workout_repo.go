package repository

import (
	"context"

	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

type WorkoutRepository struct {
	db DBTX
}

func NewWorkoutRepository(db DBTX) *WorkoutRepository {
	return &WorkoutRepository{db: db}
}

func (r *WorkoutRepository) GetByID(ctx context.Context, workoutID string) (*models.Workout, error) {
	query := `
		SELECT id, user_id, name, created_at, updated_at
		FROM workouts
		WHERE id = $1
	`
	var workout models.Workout
	err := r.db.QueryRow(ctx, query, workoutID).Scan(
		&workout.ID,
		&workout.UserID,
		&workout.Name,
		&workout.CreatedAt,
		&workout.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &workout, nil
}

// ListExerciseSlots returns the ordered exercise plan the engine builds its
// session from. The catalog is read-only from the session API's perspective.
func (r *WorkoutRepository) ListExerciseSlots(
	ctx context.Context,
	workoutID string,
) ([]models.ExerciseSlot, error) {
	query := `
		SELECT exercise_id, name, sets_planned, reps_per_set, weight_kg, duration_sec, rest_after_sec
		FROM workout_exercises
		WHERE workout_id = $1
		ORDER BY position ASC
	`
	rows, err := r.db.Query(ctx, query, workoutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make([]models.ExerciseSlot, 0)
	for rows.Next() {
		var slot models.ExerciseSlot
		if err := rows.Scan(
			&slot.ExerciseID,
			&slot.Name,
			&slot.SetsPlanned,
			&slot.RepsPerSet,
			&slot.WeightKg,
			&slot.DurationSec,
			&slot.RestAfterSec,
		); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}
