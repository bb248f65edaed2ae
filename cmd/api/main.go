package main

import (
	"context"
	"fmt"
	"log"

	common_api "go-approvals/internal/common/api"
	"go-approvals/internal/common/clock"
	"go-approvals/internal/config"
	"go-approvals/internal/database"
	"go-approvals/internal/features/approval"
	"go-approvals/internal/features/audit"
	"go-approvals/internal/features/escalation"
	"go-approvals/internal/features/notification"
	"go-approvals/internal/features/system"
	"go-approvals/internal/features/task"
	"go-approvals/internal/features/workflow"
	"go-approvals/internal/logger"
	"go-approvals/internal/middleware"
	"go-approvals/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route, logger *zap.Logger) {
	logger.Info("Registering routes", zap.Int("count", len(routes)))
	for _, route := range routes {
		logger.Debug("Setting up route", zap.String("route", fmt.Sprintf("%T", route)))
		route.Setup(app)
	}
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`, ``),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// LoadTemplates restores the workflow catalog before the server accepts requests
func LoadTemplates(lc fx.Lifecycle, registry workflow.TemplateRegistry, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return registry.Load(ctx, cfg.SeedDefaultTemplates)
		},
	})
}

// StartEscalations runs the escalation scheduler for the lifetime of the app
func StartEscalations(lc fx.Lifecycle, scheduler *escalation.Scheduler, hub *notification.Hub) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			hub.Close()
			return nil
		},
	})
}

// @title           Approval Workflow API
// @version         1.0
// @description     Multi-step approval workflows with role-bound gates and escalation.
// @BasePath        /
func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Database
			database.NewDatabase,

			clock.NewSystemClock,

			// Initialize Repository
			audit.NewAuditRepository,
			workflow.NewTemplateRepository,
			approval.NewRequestRepository,
			notification.NewNotificationRepository,
			task.NewTaskRepository,

			// Initialize Service
			audit.NewAuditService,
			workflow.NewTemplateRegistry,
			notification.NewHub,
			notification.NewNotificationService,
			task.LoadCompletionScript,
			task.NewTaskService,
			approval.NewRequestFactory,
			approval.NewApprovalEngine,
			escalation.NewEscalationMonitor,
			escalation.NewScheduler,

			// Interface Adapters between features
			func(r workflow.TemplateRegistry) approval.TemplateSource { return r },
			func(s notification.NotificationService) approval.Notifier { return s },
			func(s task.TaskService) approval.TaskSink { return s },

			// Initialize Controller
			audit.NewAuditController,
			workflow.NewWorkflowController,
			approval.NewApprovalController,
			escalation.NewEscalationController,
			notification.NewNotificationController,
			task.NewTaskController,
			system.NewHealthController,
			system.NewDebugController,

			// Initialize API Routes
			AsRoute(audit.NewAuditApi),
			AsRoute(workflow.NewWorkflowApi),
			AsRoute(approval.NewApprovalApi),
			AsRoute(escalation.NewEscalationApi),
			AsRoute(notification.NewNotificationApi),
			AsRoute(task.NewTaskApi),
			AsRoute(system.NewSystemApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) { utils.SetSecret(cfg.JWTSecret) },
			LoadTemplates,
			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,
			StartEscalations,
		),
	)

	app.Run()
}
