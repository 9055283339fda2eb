package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type HealthController struct {
	DB *gorm.DB
}

func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{DB: db}
}

// Check pings the database and reports which tables are present.
func (hc *HealthController) Check(c *fiber.Ctx) error {
	sqlDB, err := hc.DB.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":    "unhealthy",
			"database":  "down",
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}

	tables := fiber.Map{}
	for _, table := range []string{"users", "leads", "audit_logs"} {
		tables[table] = hc.DB.Migrator().HasTable(table)
	}

	return c.JSON(fiber.Map{
		"status":    "ok",
		"database":  "up",
		"tables":    tables,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
