package repository

import (
	"context"

	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

type SetLogRepository struct {
	db DBTX
}

func NewSetLogRepository(db DBTX) *SetLogRepository {
	return &SetLogRepository{db: db}
}

// Upsert keys on (session, exercise, set number): redelivered logs from a
// flaky connection overwrite instead of duplicating.
func (r *SetLogRepository) Upsert(
	ctx context.Context,
	sessionID string,
	input models.SetLogInput,
) error {
	query := `
		INSERT INTO session_set_logs (
			session_id, exercise_id, set_number, reps_completed,
			weight_kg, duration_sec, was_skipped, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, exercise_id, set_number) DO UPDATE SET
			reps_completed = excluded.reps_completed,
			weight_kg = excluded.weight_kg,
			duration_sec = excluded.duration_sec,
			was_skipped = excluded.was_skipped,
			notes = excluded.notes
	`
	_, err := r.db.Exec(
		ctx,
		query,
		sessionID,
		input.ExerciseID,
		input.SetNumber,
		input.RepsCompleted,
		input.WeightKg,
		input.DurationSec,
		input.WasSkipped,
		input.Notes,
	)
	return err
}

func (r *SetLogRepository) ListBySessionID(
	ctx context.Context,
	sessionID string,
) ([]models.SetLogInput, error) {
	query := `
		SELECT exercise_id, set_number, reps_completed, weight_kg, duration_sec, was_skipped, notes
		FROM session_set_logs
		WHERE session_id = $1
		ORDER BY exercise_id ASC, set_number ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]models.SetLogInput, 0)
	for rows.Next() {
		var entry models.SetLogInput
		if err := rows.Scan(
			&entry.ExerciseID,
			&entry.SetNumber,
			&entry.RepsCompleted,
			&entry.WeightKg,
			&entry.DurationSec,
			&entry.WasSkipped,
			&entry.Notes,
		); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
