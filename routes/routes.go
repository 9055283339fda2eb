package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	controller "casedesk/controllers"
	"casedesk/lead"
	"casedesk/middleware"
)

// SetupRoutes wires the full HTTP surface: the human /api group, the
// rate-limited /api/ai group and the health endpoint.
func SetupRoutes(app *fiber.App, db *gorm.DB) {
	routeLogger := log.New(os.Stdout, "ROUTES: ", log.Ldate|log.Ltime)

	service := lead.NewService(lead.NewGormStore(db))
	audit := &controller.GormAuditRecorder{DB: db}

	leadController := controller.NewLeadController(service, audit, log.New(os.Stdout, "LEAD: ", log.LstdFlags))
	aiController := controller.NewAIController(service, log.New(os.Stdout, "AI: ", log.LstdFlags))
	userController := controller.NewUserController(db, log.New(os.Stdout, "USER: ", log.LstdFlags))
	auditController := controller.NewAuditController(db, log.New(os.Stdout, "AUDIT: ", log.LstdFlags))
	migrateController := controller.NewMigrateController(db, service, log.New(os.Stdout, "MIGRATE: ", log.LstdFlags))
	healthController := controller.NewHealthController(db)

	api := app.Group("/api", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Lead routes
	api.Get("/leads", leadController.GetLeads)
	api.Post("/leads", leadController.CreateLead)
	api.Get("/leads/:id", leadController.GetLead)
	api.Put("/leads/:id", leadController.UpdateLead)
	api.Delete("/leads/:id", leadController.DeleteLead)
	api.Post("/leads/:id/progress", leadController.AddProgress)
	api.Post("/leads/:id/costs", leadController.AddCost)
	api.Post("/leads/:id/profits", leadController.AddProfit)
	api.Post("/leads/:id/attachments", leadController.AddAttachment)

	// User routes
	api.Get("/users", userController.GetUsers)
	api.Post("/users", userController.CreateUser)
	api.Get("/users/:id", userController.GetUser)
	api.Put("/users/:id", userController.UpdateUser)
	api.Delete("/users/:id", userController.DeleteUser)

	// Audit log routes
	api.Get("/audit-logs", auditController.GetAuditLogs)
	api.Post("/audit-logs", auditController.CreateAuditLog)

	// One-shot data import
	api.Post("/migrate", migrateController.Migrate)

	// AI agent routes, addressed by case_code and rate limited per IP
	ai := app.Group("/api/ai", middleware.AgentRateLimiter(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	ai.Post("/import", aiController.Import)
	ai.Get("/leads", aiController.GetLeads)
	ai.Put("/update", aiController.Update)
	ai.Delete("/delete", aiController.Delete)
	ai.Post("/cost", aiController.AddCosts)
	ai.Post("/profit", aiController.AddProfits)
	ai.Post("/attachment", aiController.AddAttachments)

	app.Get("/health", healthController.Check)

	// Catch-all for unknown routes
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Route not found",
		})
	})

	routeLogger.Println("Routes initialized successfully")
}
