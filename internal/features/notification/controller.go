package notification

import (
	"errors"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type NotificationController struct {
	service NotificationService
	hub     *Hub
	logger  *zap.Logger
}

func NewNotificationController(service NotificationService, hub *Hub, logger *zap.Logger) *NotificationController {
	return &NotificationController{
		service: service,
		hub:     hub,
		logger:  logger.Named("notification.ws"),
	}
}

// List godoc
// @Summary Inbox of one audience (role, requester or escalation audience)
// @Tags notifications
// @Param audience query string true "Audience"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Router /api/notifications [get]
func (c *NotificationController) List(ctx *fiber.Ctx) error {
	audience := ctx.Query("audience")
	if audience == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "audience is required"})
	}

	page, _ := strconv.ParseInt(ctx.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(ctx.Query("limit", "10"), 10, 64)

	notifications, total, err := c.service.List(ctx.UserContext(), audience, page, limit)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return ctx.JSON(fiber.Map{
		"data":  notifications,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// MarkAsRead godoc
// @Summary Mark a notification as read
// @Tags notifications
// @Router /api/notifications/{id}/read [put]
func (c *NotificationController) MarkAsRead(ctx *fiber.Ctx) error {
	if err := c.service.MarkAsRead(ctx.UserContext(), ctx.Params("id")); err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"status": "success"})
}

// HandleWebSocket streams every notification to the connected client
func (c *NotificationController) HandleWebSocket(conn *websocket.Conn) {
	messages, cancel := c.hub.Subscribe()
	defer cancel()

	// The read loop only detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
