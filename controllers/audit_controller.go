package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"casedesk/models"
	"casedesk/utils"
)

type AuditController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAuditController(db *gorm.DB, logger *log.Logger) *AuditController {
	return &AuditController{
		DB:     db,
		Logger: logger,
	}
}

// GetAuditLogs lists audit entries, newest first, optionally scoped to one
// lead via ?leadId=.
func (ac *AuditController) GetAuditLogs(c *fiber.Ctx) error {
	limit := utils.ParseInt(c.Query("limit"), 100)
	if limit > 500 {
		limit = 500
	}

	query := ac.DB.WithContext(c.Context()).Order("created_at DESC").Limit(limit)
	if leadID := c.Query("leadId", c.Query("lead_id")); leadID != "" {
		query = query.Where("lead_id = ?", leadID)
	}

	var logs []models.AuditLog
	if err := query.Find(&logs).Error; err != nil {
		ac.Logger.Printf("Failed to list audit logs: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch audit logs", err)
	}

	return c.JSON(logs)
}

// CreateAuditLog writes a single audit entry.
func (ac *AuditController) CreateAuditLog(c *fiber.Ctx) error {
	var entry models.AuditLog
	if err := c.BodyParser(&entry); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if entry.Action == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "action is required", nil)
	}

	if err := ac.DB.WithContext(c.Context()).Create(&entry).Error; err != nil {
		ac.Logger.Printf("Failed to create audit log: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create audit log", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": entry.ID})
}
