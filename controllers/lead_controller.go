package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"casedesk/lead"
	"casedesk/models"
	"casedesk/utils"
)

// AuditRecorder writes audit entries alongside lead mutations. Failures are
// logged, never propagated to the caller.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.AuditLog) error
}

// GormAuditRecorder persists audit entries to the audit_logs table.
type GormAuditRecorder struct {
	DB *gorm.DB
}

func (r *GormAuditRecorder) Record(ctx context.Context, entry *models.AuditLog) error {
	return r.DB.WithContext(ctx).Create(entry).Error
}

type LeadController struct {
	Service *lead.Service
	Audit   AuditRecorder
	Logger  *log.Logger
}

func NewLeadController(service *lead.Service, audit AuditRecorder, logger *log.Logger) *LeadController {
	return &LeadController{
		Service: service,
		Audit:   audit,
		Logger:  logger,
	}
}

// GetLeads returns all leads, newest first.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	views, err := lc.Service.List(c.Context(), lead.ListFilter{})
	if err != nil {
		return respondLeadError(c, err)
	}
	return c.JSON(views)
}

// GetLead returns a single lead by ID
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	view, err := lc.Service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondLeadError(c, err)
	}
	return c.JSON(view)
}

// CreateLead creates a new lead from a partial payload.
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	input := lead.CreateInput{
		ID:            strField(body, "id"),
		Need:          strField(body, "need"),
		CreatedBy:     strField(body, "created_by", "createdBy"),
		CreatedByName: strField(body, "created_by_name", "createdByName"),
		Fields:        body,
	}
	view, err := lc.Service.Create(c.Context(), input)
	if err != nil {
		return respondLeadError(c, err)
	}

	lc.recordAudit(c, &view.ID, "create_lead", nil, view, view.CreatedBy, view.CreatedByName)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": view.ID})
}

// UpdateLead patches lead fields. Immutable fields in the body are ignored.
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	id := c.Params("id")

	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	before, err := lc.Service.Resolve(c.Context(), lead.Ref{ID: id})
	if err != nil {
		return respondLeadError(c, err)
	}

	view, err := lc.Service.Patch(c.Context(), id, body)
	if err != nil {
		return respondLeadError(c, err)
	}

	actor := strField(body, "last_action_by", "lastActionBy")
	lc.recordAudit(c, &id, "update_lead", lead.Decode(before), view, nil, actor)

	return c.JSON(subDocumentEcho(view, fiber.Map{
		"success": true,
		"id":      id,
	}))
}

// DeleteLead deletes a lead. Deleting a missing id still succeeds.
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := lc.Service.Remove(c.Context(), id); err != nil {
		return respondLeadError(c, err)
	}

	lc.recordAudit(c, &id, "delete_lead", nil, nil, nil, "")

	return c.JSON(fiber.Map{"success": true})
}

// AddProgress appends a progress update to a lead.
func (lc *LeadController) AddProgress(c *fiber.Ctx) error {
	return lc.appendEntry(c, "progress_updates")
}

// AddCost appends a cost record to a lead.
func (lc *LeadController) AddCost(c *fiber.Ctx) error {
	return lc.appendEntry(c, "cost_records")
}

// AddProfit appends a profit record to a lead.
func (lc *LeadController) AddProfit(c *fiber.Ctx) error {
	return lc.appendEntry(c, "profit_records")
}

// AddAttachment appends an attachment (contract) entry to a lead. The data
// payload is stored opaque; nothing is validated or re-encoded.
func (lc *LeadController) AddAttachment(c *fiber.Ctx) error {
	return lc.appendEntry(c, "contracts")
}

func (lc *LeadController) appendEntry(c *fiber.Ctx, field string) error {
	id := c.Params("id")

	var entry map[string]interface{}
	if err := c.BodyParser(&entry); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	view, err := lc.Service.AppendSubDocument(c.Context(), id, field, entry)
	if err != nil {
		return respondLeadError(c, err)
	}

	return c.JSON(subDocumentEcho(view, fiber.Map{
		"success": true,
		"id":      id,
	}))
}

func (lc *LeadController) recordAudit(c *fiber.Ctx, leadID *string, action string, before, after interface{}, actorUID *string, actorName string) {
	entry := &models.AuditLog{
		LeadID:   leadID,
		ActorUID: actorUID,
		Action:   action,
	}
	if actorName != "" {
		entry.ActorName = &actorName
	}
	if before != nil {
		if raw, err := json.Marshal(before); err == nil {
			entry.Before = datatypes.JSON(raw)
		}
	}
	if after != nil {
		if raw, err := json.Marshal(after); err == nil {
			entry.After = datatypes.JSON(raw)
		}
	}
	if err := lc.Audit.Record(c.Context(), entry); err != nil {
		lc.Logger.Printf("Failed to record audit entry for %s: %v", action, err)
	}
}

// subDocumentEcho copies the lead's sub-document arrays into the response so
// the UI can refresh its panels without a second fetch.
func subDocumentEcho(view *lead.View, resp fiber.Map) fiber.Map {
	resp["progress_updates"] = view.ProgressUpdates
	resp["change_history"] = view.ChangeHistory
	resp["cost_records"] = view.CostRecords
	resp["profit_records"] = view.ProfitRecords
	resp["contracts"] = view.Contracts
	resp["links"] = view.Links
	return resp
}

// strField pulls the first non-empty string value under any of the given keys.
func strField(body map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := body[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// respondLeadError maps the lead error taxonomy onto HTTP statuses.
// Store failures are reported to sentry; batch endpoints handle their own
// per-item collection and never reach this for item errors.
func respondLeadError(c *fiber.Ctx, err error) error {
	var ve *lead.ValidationError
	var nfe *lead.NotFoundError
	var se *lead.StoreError
	switch {
	case errors.As(err, &ve):
		resp := fiber.Map{"success": false, "error": ve.Message}
		if ve.Example != "" {
			resp["example"] = json.RawMessage(ve.Example)
		}
		return c.Status(fiber.StatusBadRequest).JSON(resp)
	case errors.As(err, &nfe):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", err)
	case errors.As(err, &se):
		sentry.CaptureException(se)
		return utils.StoreErrorResponse(c, "Database operation failed", se.Err, se.Hint)
	default:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal error", err)
	}
}
