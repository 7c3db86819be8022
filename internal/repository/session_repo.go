package repository

import (
	"context"
	"time"

	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
)

const sessionColumns = `
	id, workout_id, user_id, status, started_at, completed_at,
	duration_min, perceived_effort, mood_rating, notes, created_at, updated_at
`

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

type CreateSessionInput struct {
	ID        string
	WorkoutID string
	UserID    string
	Status    string
	StartedAt time.Time
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := `
		INSERT INTO workout_sessions (id, workout_id, user_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + sessionColumns

	return r.scanSession(r.db.QueryRow(
		ctx,
		query,
		input.ID,
		input.WorkoutID,
		input.UserID,
		input.Status,
		input.StartedAt,
	))
}

// Upsert re-adopts a session recovered from a device's local storage. An
// existing row keeps its identity; status and progress fields follow the
// incoming record.
func (r *SessionRepository) Upsert(
	ctx context.Context,
	session *models.Session,
) (*models.Session, error) {
	query := `
		INSERT INTO workout_sessions (
			id, workout_id, user_id, status, started_at, completed_at,
			duration_min, perceived_effort, mood_rating, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			duration_min = excluded.duration_min,
			perceived_effort = excluded.perceived_effort,
			mood_rating = excluded.mood_rating,
			notes = excluded.notes,
			updated_at = NOW()
		RETURNING ` + sessionColumns

	return r.scanSession(r.db.QueryRow(
		ctx,
		query,
		session.ID,
		session.WorkoutID,
		session.UserID,
		session.Status,
		session.StartedAt,
		session.CompletedAt,
		session.DurationMinutes,
		session.PerceivedEffort,
		session.MoodRating,
		session.Notes,
	))
}

// InsertIfAbsent backs the idempotent offline sync: a payload whose session id
// already exists is reported as a duplicate, not an error.
func (r *SessionRepository) InsertIfAbsent(
	ctx context.Context,
	session *models.Session,
) (bool, error) {
	query := `
		INSERT INTO workout_sessions (
			id, workout_id, user_id, status, started_at, completed_at,
			duration_min, perceived_effort, mood_rating, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.db.Exec(
		ctx,
		query,
		session.ID,
		session.WorkoutID,
		session.UserID,
		session.Status,
		session.StartedAt,
		session.CompletedAt,
		session.DurationMinutes,
		session.PerceivedEffort,
		session.MoodRating,
		session.Notes,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM workout_sessions WHERE id = $1`
	return r.scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) ListInProgress(
	ctx context.Context,
	userID, workoutID string,
) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM workout_sessions
		WHERE user_id = $1 AND workout_id = $2 AND status = $3
		ORDER BY started_at DESC, id ASC
	`
	rows, err := r.db.Query(ctx, query, userID, workoutID, models.StatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.WorkoutID,
			&session.UserID,
			&session.Status,
			&session.StartedAt,
			&session.CompletedAt,
			&session.DurationMinutes,
			&session.PerceivedEffort,
			&session.MoodRating,
			&session.Notes,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpdateStatusIfCurrent moves a session between states only when it still sits
// in one of the expected source states, so two racing writers cannot both win.
func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID string,
	currentStatuses []string,
	nextStatus string,
) (*models.Session, error) {
	query := `
		UPDATE workout_sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
		RETURNING ` + sessionColumns

	return r.scanSession(r.db.QueryRow(ctx, query, sessionID, currentStatuses, nextStatus))
}

type CompleteSessionInput struct {
	DurationMinutes int
	PerceivedEffort *int
	MoodRating      *int
	Notes           *string
	CompletedAt     time.Time
}

func (r *SessionRepository) Complete(
	ctx context.Context,
	sessionID string,
	input CompleteSessionInput,
) (*models.Session, error) {
	query := `
		UPDATE workout_sessions
		SET status = $2, completed_at = $3, duration_min = $4,
			perceived_effort = $5, mood_rating = $6, notes = $7, updated_at = NOW()
		WHERE id = $1 AND status = $8
		RETURNING ` + sessionColumns

	return r.scanSession(r.db.QueryRow(
		ctx,
		query,
		sessionID,
		models.StatusCompleted,
		input.CompletedAt,
		input.DurationMinutes,
		input.PerceivedEffort,
		input.MoodRating,
		input.Notes,
		models.StatusInProgress,
	))
}

func (r *SessionRepository) scanSession(row interface{ Scan(dest ...any) error }) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.WorkoutID,
		&session.UserID,
		&session.Status,
		&session.StartedAt,
		&session.CompletedAt,
		&session.DurationMinutes,
		&session.PerceivedEffort,
		&session.MoodRating,
		&session.Notes,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
