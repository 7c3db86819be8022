package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tomnasc/treino-na-mao-sub000/internal/handlers"
	"github.com/tomnasc/treino-na-mao-sub000/internal/middleware"
	"github.com/tomnasc/treino-na-mao-sub000/internal/repository"
	"github.com/tomnasc/treino-na-mao-sub000/internal/services"
	sessionws "github.com/tomnasc/treino-na-mao-sub000/internal/websocket"
)

func RegisterRoutes(app *fiber.App, db *pgxpool.Pool) {
	sessionRepo := repository.NewSessionRepository(db)
	setLogRepo := repository.NewSetLogRepository(db)
	workoutRepo := repository.NewWorkoutRepository(db)

	hub := sessionws.NewHub()
	go hub.Run()

	sessionService := services.NewSessionService(db, sessionRepo, setLogRepo, workoutRepo)
	sessionHandler := handlers.NewSessionHandler(sessionService, hub)
	workoutHandler := handlers.NewWorkoutHandler(sessionService)
	wsHandler := handlers.NewWSHandler(hub)

	api := app.Group("/api")
	v1 := api.Group("/v1", middleware.RequireIdentity())

	sessions := v1.Group("/sessions")
	sessions.Post("", sessionHandler.CreateSession)
	sessions.Get("/in-progress", sessionHandler.ListInProgressSessions)
	sessions.Post("/sync", sessionHandler.SyncOfflineSessions)
	sessions.Put("/:id", sessionHandler.UpsertSession)
	sessions.Get("/:id/sets", sessionHandler.ListSetLogs)
	sessions.Post("/:id/sets", sessionHandler.LogSet)
	sessions.Post("/:id/complete", sessionHandler.CompleteSession)
	sessions.Post("/:id/abandon", sessionHandler.AbandonSession)
	sessions.Post("/:id/pause", sessionHandler.PauseSession)
	sessions.Post("/:id/resume", sessionHandler.ResumeSession)

	workouts := v1.Group("/workouts")
	workouts.Get("/:id/exercises", workoutHandler.ListExercises)

	api.Use("/v1/ws", wsHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(wsHandler.HandleWebSocket))
}
