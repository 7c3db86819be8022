package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
	"github.com/tomnasc/treino-na-mao-sub000/internal/repository"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrWorkoutNotFound        = errors.New("workout not found")
)

type workoutReader interface {
	GetByID(ctx context.Context, workoutID string) (*models.Workout, error)
	ListExerciseSlots(ctx context.Context, workoutID string) ([]models.ExerciseSlot, error)
}

type SessionService struct {
	db          *pgxpool.Pool
	sessionRepo *repository.SessionRepository
	setLogRepo  *repository.SetLogRepository
	workoutRepo workoutReader
}

func NewSessionService(
	db *pgxpool.Pool,
	sessionRepo *repository.SessionRepository,
	setLogRepo *repository.SetLogRepository,
	workoutRepo workoutReader,
) *SessionService {
	return &SessionService{
		db:          db,
		sessionRepo: sessionRepo,
		setLogRepo:  setLogRepo,
		workoutRepo: workoutRepo,
	}
}

type CreateSessionInput struct {
	ID        string
	WorkoutID string
	StartedAt time.Time
}

// CreateSession registers a session started on a device. Ids are client
// generated so a session created offline keeps its identity when it finally
// reaches the server; a missing id gets one here.
func (s *SessionService) CreateSession(
	ctx context.Context,
	userID string,
	input CreateSessionInput,
) (*models.Session, error) {
	if input.WorkoutID == "" {
		return nil, ErrInvalidInput
	}
	if _, err := s.workoutRepo.GetByID(ctx, input.WorkoutID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}

	id := input.ID
	if id == "" {
		id = uuid.NewString()
	}
	startedAt := input.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	return s.sessionRepo.Create(ctx, repository.CreateSessionInput{
		ID:        id,
		WorkoutID: input.WorkoutID,
		UserID:    userID,
		Status:    models.StatusInProgress,
		StartedAt: startedAt,
	})
}

// UpsertSession re-adopts a session a device recovered from local storage.
func (s *SessionService) UpsertSession(
	ctx context.Context,
	userID string,
	session models.Session,
) (*models.Session, error) {
	if session.ID == "" || session.WorkoutID == "" {
		return nil, ErrInvalidInput
	}
	if !validStatus(session.Status) {
		return nil, ErrInvalidInput
	}

	existing, err := s.sessionRepo.GetByID(ctx, session.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing != nil && existing.UserID != userID {
		return nil, ErrForbidden
	}

	session.UserID = userID
	return s.sessionRepo.Upsert(ctx, &session)
}

func (s *SessionService) LogSet(
	ctx context.Context,
	userID, sessionID string,
	input models.SetLogInput,
) error {
	if input.ExerciseID == "" || input.SetNumber < 1 {
		return ErrInvalidInput
	}

	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if session.IsTerminal() {
		return ErrInvalidStateTransition
	}
	return s.setLogRepo.Upsert(ctx, sessionID, input)
}

type CompleteInput struct {
	DurationMinutes int
	PerceivedEffort *int
	MoodRating      *int
	Notes           *string
}

func (s *SessionService) CompleteSession(
	ctx context.Context,
	userID, sessionID string,
	input CompleteInput,
) (*models.Session, error) {
	if input.DurationMinutes < 0 {
		return nil, ErrInvalidInput
	}
	if input.PerceivedEffort != nil && (*input.PerceivedEffort < 1 || *input.PerceivedEffort > 10) {
		return nil, ErrInvalidInput
	}

	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	completed, err := s.sessionRepo.Complete(ctx, sessionID, repository.CompleteSessionInput{
		DurationMinutes: input.DurationMinutes,
		PerceivedEffort: input.PerceivedEffort,
		MoodRating:      input.MoodRating,
		Notes:           input.Notes,
		CompletedAt:     time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return completed, nil
}

func (s *SessionService) AbandonSession(
	ctx context.Context,
	userID, sessionID string,
) (*models.Session, error) {
	return s.transition(
		ctx,
		userID,
		sessionID,
		[]string{models.StatusInProgress, models.StatusPaused},
		models.StatusAbandoned,
	)
}

func (s *SessionService) PauseSession(
	ctx context.Context,
	userID, sessionID string,
) (*models.Session, error) {
	return s.transition(
		ctx,
		userID,
		sessionID,
		[]string{models.StatusInProgress},
		models.StatusPaused,
	)
}

func (s *SessionService) ResumeSession(
	ctx context.Context,
	userID, sessionID string,
) (*models.Session, error) {
	return s.transition(
		ctx,
		userID,
		sessionID,
		[]string{models.StatusPaused},
		models.StatusInProgress,
	)
}

func (s *SessionService) ListInProgressSessions(
	ctx context.Context,
	userID, workoutID string,
) ([]models.Session, error) {
	if workoutID == "" {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListInProgress(ctx, userID, workoutID)
}

func (s *SessionService) ListSetLogs(
	ctx context.Context,
	userID, sessionID string,
) ([]models.SetLogInput, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.setLogRepo.ListBySessionID(ctx, sessionID)
}

func (s *SessionService) ListExerciseSlots(
	ctx context.Context,
	workoutID string,
) ([]models.ExerciseSlot, error) {
	if _, err := s.workoutRepo.GetByID(ctx, workoutID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkoutNotFound
		}
		return nil, err
	}
	return s.workoutRepo.ListExerciseSlots(ctx, workoutID)
}

// SyncOfflineSessions imports completions that could not be flushed while the
// device was offline. A session unknown to the server is inserted whole; one
// that already exists in a non-terminal state takes the payload's completion
// and set logs. Replays of already-terminal sessions are skipped, not failures.
func (s *SessionService) SyncOfflineSessions(
	ctx context.Context,
	userID string,
	entries []models.PendingSyncEntry,
) (int, error) {
	imported := 0
	for _, entry := range entries {
		session := entry.Session
		if session.ID == "" || session.WorkoutID == "" {
			continue
		}
		session.UserID = userID
		if !session.IsTerminal() {
			session.Status = models.StatusCompleted
		}

		inserted, err := s.importEntry(ctx, &session, entry.SetLogs)
		if err != nil {
			return imported, err
		}
		if inserted {
			imported++
		}
	}
	return imported, nil
}

func (s *SessionService) importEntry(
	ctx context.Context,
	session *models.Session,
	setLogs []models.SetLogInput,
) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txSetLogRepo := repository.NewSetLogRepository(tx)

	inserted, err := txSessionRepo.InsertIfAbsent(ctx, session)
	if err != nil {
		return false, err
	}
	if !inserted {
		// The session reached the server before going offline. Replays of an
		// already-imported payload are skipped; a row still sitting in a
		// non-terminal state takes the payload's completion and set logs.
		existing, err := txSessionRepo.GetByID(ctx, session.ID)
		if err != nil {
			return false, err
		}
		if existing.UserID != session.UserID || existing.IsTerminal() {
			return false, tx.Commit(ctx)
		}
		if _, err := txSessionRepo.Upsert(ctx, session); err != nil {
			return false, err
		}
	}

	for _, entry := range setLogs {
		if entry.ExerciseID == "" || entry.SetNumber < 1 {
			continue
		}
		if err := txSetLogRepo.Upsert(ctx, session.ID, entry); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SessionService) transition(
	ctx context.Context,
	userID, sessionID string,
	currentStatuses []string,
	nextStatus string,
) (*models.Session, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	updated, err := s.sessionRepo.UpdateStatusIfCurrent(ctx, sessionID, currentStatuses, nextStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return updated, nil
}

func (s *SessionService) ownedSession(
	ctx context.Context,
	userID, sessionID string,
) (*models.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	return session, nil
}

func validStatus(status string) bool {
	switch status {
	case models.StatusInProgress, models.StatusPaused, models.StatusCompleted, models.StatusAbandoned:
		return true
	default:
		return false
	}
}
