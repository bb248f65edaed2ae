package system

import (
	"go-approvals/internal/common/api"
	"go-approvals/internal/config"
	"go-approvals/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SystemApi struct {
	health *HealthController
	debug  *DebugController
	config *config.Config
}

func NewSystemApi(health *HealthController, debug *DebugController, cfg *config.Config) api.Route {
	return &SystemApi{
		health: health,
		debug:  debug,
		config: cfg,
	}
}

// Setup registers health and debug routes
func (h *SystemApi) Setup(app *fiber.App) {
	app.Get("/health", h.health.Health)

	debug := app.Group("/api/debug", middleware.AuthMiddleware(h.config.SkipAuth))
	debug.Get("/me", h.debug.GetCurrentUser)
}
