package system

import (
	"context"
	"time"

	"go-approvals/internal/common/clock"
	"go-approvals/internal/database"
	"go-approvals/internal/features/notification"

	"github.com/gofiber/fiber/v2"
)

type HealthController struct {
	Database *database.Database
	Hub      *notification.Hub
	Clock    clock.Clock
	started  time.Time
}

func NewHealthController(db *database.Database, hub *notification.Hub, clk clock.Clock) *HealthController {
	return &HealthController{
		Database: db,
		Hub:      hub,
		Clock:    clk,
		started:  clk.Now(),
	}
}

// Health godoc
// @Summary      Liveness and storage reachability
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (c *HealthController) Health(ctx *fiber.Ctx) error {
	now := c.Clock.Now()
	body := fiber.Map{
		"status":            "ok",
		"storage":           c.Database.Driver,
		"websocket_clients": c.Hub.Clients(),
		"uptime_seconds":    int64(now.Sub(c.started).Seconds()),
		"time":              now,
	}

	if err := c.ping(ctx.UserContext()); err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(body)
	}
	return ctx.JSON(body)
}

func (c *HealthController) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	switch {
	case c.Database.Mongo != nil:
		return c.Database.Mongo.DB.Client().Ping(ctx, nil)
	case c.Database.Postgres != nil:
		return c.Database.Postgres.DB.PingContext(ctx)
	default:
		return nil
	}
}
