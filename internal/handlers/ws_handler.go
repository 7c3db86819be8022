package handlers

import (
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	sessionws "github.com/tomnasc/treino-na-mao-sub000/internal/websocket"
)

type WSHandler struct {
	hub *sessionws.Hub
}

func NewWSHandler(hub *sessionws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

func (h *WSHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	userID := strings.TrimSpace(c.Get("X-User-ID"))
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user identity"})
	}

	c.Locals("user_id", userID)
	return c.Next()
}

func (h *WSHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	client := sessionws.NewClient(h.hub, conn, userID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}
