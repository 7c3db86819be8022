package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tomnasc/treino-na-mao-sub000/internal/models"
	"github.com/tomnasc/treino-na-mao-sub000/internal/services"
)

type workoutApplicationService interface {
	ListExerciseSlots(ctx context.Context, workoutID string) ([]models.ExerciseSlot, error)
}

type WorkoutHandler struct {
	service workoutApplicationService
}

func NewWorkoutHandler(service *services.SessionService) *WorkoutHandler {
	return &WorkoutHandler{service: service}
}

func (h *WorkoutHandler) ListExercises(c *fiber.Ctx) error {
	if _, ok := userIDFrom(c); !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
	}

	slots, err := h.service.ListExerciseSlots(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, services.ErrWorkoutNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Workout not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load workout exercises"})
	}
	return c.JSON(fiber.Map{"exercises": slots})
}
