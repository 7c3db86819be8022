package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
	"github.com/tomnasc/treino-na-mao-sub000/internal/services"
	sessionws "github.com/tomnasc/treino-na-mao-sub000/internal/websocket"
)

type sessionApplicationService interface {
	CreateSession(ctx context.Context, userID string, input services.CreateSessionInput) (*models.Session, error)
	UpsertSession(ctx context.Context, userID string, session models.Session) (*models.Session, error)
	LogSet(ctx context.Context, userID, sessionID string, input models.SetLogInput) error
	CompleteSession(ctx context.Context, userID, sessionID string, input services.CompleteInput) (*models.Session, error)
	AbandonSession(ctx context.Context, userID, sessionID string) (*models.Session, error)
	PauseSession(ctx context.Context, userID, sessionID string) (*models.Session, error)
	ResumeSession(ctx context.Context, userID, sessionID string) (*models.Session, error)
	ListInProgressSessions(ctx context.Context, userID, workoutID string) ([]models.Session, error)
	ListSetLogs(ctx context.Context, userID, sessionID string) ([]models.SetLogInput, error)
	SyncOfflineSessions(ctx context.Context, userID string, entries []models.PendingSyncEntry) (int, error)
}

type sessionEventPublisher interface {
	Publish(event sessionws.Event)
}

type SessionHandler struct {
	service sessionApplicationService
	events  sessionEventPublisher
}

func NewSessionHandler(service *services.SessionService, events sessionEventPublisher) *SessionHandler {
	return &SessionHandler{service: service, events: events}
}

type createSessionRequest struct {
	ID        string `json:"id"`
	WorkoutID string `json:"workout_id"`
	StartedAt string `json:"started_at"`
}

type completeSessionRequest struct {
	DurationMinutes int     `json:"duration_minutes"`
	PerceivedEffort *int    `json:"perceived_effort"`
	MoodRating      *int    `json:"mood_rating"`
	Notes           *string `json:"notes"`
}

type syncRequest struct {
	Entries []models.PendingSyncEntry `json:"entries"`
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	userID, ok := userIDFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
	}

	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.WorkoutID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "workout_id is required"})
	}

	var startedAt time.Time
	if strings.TrimSpace(req.StartedAt) != "" {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartedAt))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "started_at must be a valid RFC3339 timestamp"})
		}
		startedAt = parsed
	}

	session, err := h.service.CreateSession(c.Context(), userID, services.CreateSessionInput{
		ID:        strings.TrimSpace(req.ID),
		WorkoutID: strings.TrimSpace(req.WorkoutID),
		StartedAt: startedAt,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	h.publishStatus(sessionws.EventSessionStarted, session)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) UpsertSession(c *fiber.Ctx) error {
	userID, ok := userIDFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
	}

	var session models.Session
	if err := c.BodyParser(&session); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	session.ID = c.Params("id")

	updated, err := h.service.UpsertSession(c.Context(), userID, session)
	if err != nil {
		return mapSessionError(c, err)
	}

	h.publishStatus(sessionws.EventSessionStatus, updated)
	return c.JSON(fiber.Map{"session": updated})
}

func (h *SessionHandler) LogSet(c *fiber.Ctx) error {
	userID, ok := userIDFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
	}

	sessionID := c.Params("id")
	var input models.SetLogInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.service.LogSet(c.Context(), userID, sessionID, input); err != nil {
		return mapSessionError(c, err)
	}

	if h.events != nil {
		h.events.Publish(sessionws.Event{
			Type:       sessionws.EventSetLogged,
			UserID:     userID,
			SessionID:  sessionID,
			ExerciseID: input.ExerciseID,
			SetNumber:  input.SetNumber,
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SessionHandler) ListSetLogs(c *fiber.Ctx) error {
	userID, ok := userIDFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
	}

	logs, err := h.service.ListSetLogs(c.Context(), userID, c.Params("id"))
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"set_logs": logs})
}

func (h *SessionHandler) CompleteSession(c *fiber.Ctx) error {
	userID, ok := userIDFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
	}

	var req completeSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	session, err := h.service.CompleteSession(c.Context(), userID, c.Params("id"), services.CompleteInput{
		DurationMinutes: req.DurationMinutes,
		PerceivedEffort: req.PerceivedEffort,
		MoodRating:      req.MoodRating,
		Notes:           req.Notes,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	h.publishStatus(sessionws.EventSessionStatus, session)
	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) AbandonSession(c *fiber.Ctx) error {
	return h.transition(c, h.service.AbandonSession)
}

func (h *SessionHandler) PauseSession(c *fiber.Ctx) error {
	return h.transition(c, h.service.PauseSession)
}

func (h *SessionHandler) ResumeSession(c *fiber.Ctx) error {
	return h.transition(c, h.service.ResumeSession)
}

func (h *SessionHandler) ListInProgressSessions(c *fiber.Ctx) error {
	userID, ok := userIDFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
	}

	workoutID := strings.TrimSpace(c.Query("workout_id"))
	if workoutID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "workout_id is required"})
	}

	sessions, err := h.service.ListInProgressSessions(c.Context(), userID, workoutID)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) SyncOfflineSessions(c *fiber.Ctx) error {
	userID, ok := userIDFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
	}

	var req syncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	imported, err := h.service.SyncOfflineSessions(c.Context(), userID, req.Entries)
	if err != nil {
		return mapSessionError(c, err)
	}
	return c.JSON(fiber.Map{"imported": imported})
}

func (h *SessionHandler) transition(
	c *fiber.Ctx,
	apply func(ctx context.Context, userID, sessionID string) (*models.Session, error),
) error {
	userID, ok := userIDFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
	}

	session, err := apply(c.Context(), userID, c.Params("id"))
	if err != nil {
		return mapSessionError(c, err)
	}

	h.publishStatus(sessionws.EventSessionStatus, session)
	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) publishStatus(eventType string, session *models.Session) {
	if h.events == nil || session == nil {
		return
	}
	h.events.Publish(sessionws.Event{
		Type:      eventType,
		UserID:    session.UserID,
		SessionID: session.ID,
		WorkoutID: session.WorkoutID,
		Status:    session.Status,
	})
}

func userIDFrom(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals("user_id").(string)
	return userID, ok && userID != ""
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrWorkoutNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Workout not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
