package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"casedesk/lead"
	"casedesk/models"
	"casedesk/utils"
)

// MigrateController bulk-imports rows exported from another system. Rows are
// upserted by id, so re-running an import is safe.
type MigrateController struct {
	DB      *gorm.DB
	Service *lead.Service
	Logger  *log.Logger
}

func NewMigrateController(db *gorm.DB, service *lead.Service, logger *log.Logger) *MigrateController {
	return &MigrateController{
		DB:      db,
		Service: service,
		Logger:  logger,
	}
}

type migratePayload struct {
	Users     []map[string]interface{} `json:"users"`
	Leads     []map[string]interface{} `json:"leads"`
	AuditLogs []map[string]interface{} `json:"audit_logs"`
}

type migrateResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// Migrate imports users, leads and audit logs in one request. Each collection
// reports its own imported count and per-row errors.
func (mc *MigrateController) Migrate(c *fiber.Ctx) error {
	var payload migratePayload
	if err := c.BodyParser(&payload); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if len(payload.Users) == 0 && len(payload.Leads) == 0 && len(payload.AuditLogs) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Nothing to migrate: provide users, leads or audit_logs", nil)
	}

	results := fiber.Map{}
	if len(payload.Users) > 0 {
		results["users"] = mc.migrateUsers(c, payload.Users)
	}
	if len(payload.Leads) > 0 {
		results["leads"] = mc.migrateLeads(c, payload.Leads)
	}
	if len(payload.AuditLogs) > 0 {
		results["audit_logs"] = mc.migrateAuditLogs(c, payload.AuditLogs)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "遷移完成",
		"results": results,
	})
}

func (mc *MigrateController) migrateUsers(c *fiber.Ctx, rows []map[string]interface{}) migrateResult {
	result := migrateResult{Errors: []string{}}
	for i, row := range rows {
		var user models.User
		if err := remarshal(row, &user); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("users[%d]: %v", i, err))
			continue
		}
		err := mc.DB.WithContext(c.Context()).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
			Create(&user).Error
		if err != nil {
			mc.Logger.Printf("Failed to migrate user %d: %v", i, err)
			result.Errors = append(result.Errors, fmt.Sprintf("users[%d]: %v", i, err))
			continue
		}
		result.Imported++
	}
	return result
}

// migrateLeads routes each row through the same normalization as the live
// endpoints. Existing ids are patched, new ones created with their exported
// id and case_code intact.
func (mc *MigrateController) migrateLeads(c *fiber.Ctx, rows []map[string]interface{}) migrateResult {
	result := migrateResult{Errors: []string{}}
	for i, row := range rows {
		id := strField(row, "id")
		if id != "" {
			existing, err := mc.Service.Resolve(c.Context(), lead.Ref{ID: id})
			var nfe *lead.NotFoundError
			if err != nil && !errors.As(err, &nfe) {
				result.Errors = append(result.Errors, fmt.Sprintf("leads[%d]: %v", i, err))
				continue
			}
			if existing != nil {
				if _, err := mc.Service.Patch(c.Context(), id, row); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("leads[%d]: %v", i, err))
					continue
				}
				result.Imported++
				continue
			}
		}

		input := lead.CreateInput{
			ID:            id,
			Need:          strField(row, "need"),
			CreatedBy:     strField(row, "created_by", "createdBy"),
			CreatedByName: strField(row, "created_by_name", "createdByName"),
			CaseCode:      strField(row, "case_code", "caseCode"),
			Fields:        row,
		}
		// Snapshot rows keep their exported timestamps.
		if t, ok := lead.ParseTimestamp(firstValue(row, "created_at", "createdAt")); ok {
			input.CreatedAt = t
		}
		if t, ok := lead.ParseTimestamp(firstValue(row, "updated_at", "updatedAt")); ok {
			input.UpdatedAt = t
		}

		_, err := mc.Service.Create(c.Context(), input)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("leads[%d]: %v", i, err))
			continue
		}
		result.Imported++
	}
	return result
}

func (mc *MigrateController) migrateAuditLogs(c *fiber.Ctx, rows []map[string]interface{}) migrateResult {
	result := migrateResult{Errors: []string{}}
	for i, row := range rows {
		var entry models.AuditLog
		if err := remarshal(row, &entry); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("audit_logs[%d]: %v", i, err))
			continue
		}
		if entry.Action == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("audit_logs[%d]: action is required", i))
			continue
		}
		err := mc.DB.WithContext(c.Context()).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
			Create(&entry).Error
		if err != nil {
			mc.Logger.Printf("Failed to migrate audit log %d: %v", i, err)
			result.Errors = append(result.Errors, fmt.Sprintf("audit_logs[%d]: %v", i, err))
			continue
		}
		result.Imported++
	}
	return result
}

func firstValue(row map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := row[key]; ok {
			return v
		}
	}
	return nil
}

// remarshal maps a loose JSON object onto a model struct.
func remarshal(row map[string]interface{}, dst interface{}) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
