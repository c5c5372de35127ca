package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/prolean/ProleanBack/internal/middleware"
	"github.com/prolean/ProleanBack/internal/services"
	notifyws "github.com/prolean/ProleanBack/internal/websocket"
	"github.com/prolean/ProleanBack/pkg/utils"
)

type NotificationHandler struct {
	service   notificationApplicationService
	hub       *notifyws.Hub
	jwtSecret string
}

type notificationApplicationService interface {
	List(ctx context.Context, userID int64, unreadOnly bool, page int, limit int) (*services.NotificationPage, error)
	MarkRead(ctx context.Context, userID int64, notificationID int64) error
}

func NewNotificationHandler(service notificationApplicationService, hub *notifyws.Hub, jwtSecret string) *NotificationHandler {
	return &NotificationHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))

	result, err := h.service.List(c.Context(), userID, unreadOnly, page, limit)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"notifications": result.Items,
		"pagination":    buildPaginationMeta(result.Page, result.Limit, result.Total),
	})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	notificationID, ok := parseIDParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid notification id")
	}

	if err := h.service.MarkRead(c.Context(), userID, notificationID); err != nil {
		return mapServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// WebSocketAuth accepts the token from ?token= because browsers cannot set
// headers on the upgrade request.
func (h *NotificationHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	userID, err := h.parseWSUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals(middleware.LocalUserID, userID)
	return c.Next()
}

func (h *NotificationHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.LocalUserID).(int64)
	client := notifyws.NewClient(h.hub, conn, userID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump()
}

func (h *NotificationHandler) parseWSUserID(c *fiber.Ctx) (int64, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		tokenString, _ = middleware.BearerToken(c.Get("Authorization"))
	}
	if tokenString == "" {
		return 0, errors.New("missing token")
	}

	claims, err := utils.ValidateToken(tokenString, h.jwtSecret)
	if err != nil {
		return 0, err
	}
	return utils.UserIDFromClaims(claims)
}
