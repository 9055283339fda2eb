package controller

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"

	"casedesk/lead"
	"casedesk/utils"
)

// fallback author for agent-created records when the payload names nobody
const agentName = "AI助理"

// AIController serves the agent-facing endpoints. Leads are addressed by
// case_code (or lead_id when the agent has one), and every batch operation
// collects per-item errors instead of failing the whole request.
type AIController struct {
	Service *lead.Service
	Logger  *log.Logger
}

func NewAIController(service *lead.Service, logger *log.Logger) *AIController {
	return &AIController{
		Service: service,
		Logger:  logger,
	}
}

// Import creates one or many leads from a simplified payload and assigns each
// a case_code. Per-item failures are collected; the response is always
// success-shaped.
func (ac *AIController) Import(c *fiber.Ctx) error {
	items, err := parseItems(c.Body())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	hasNeed := false
	for _, item := range items {
		if strField(item, "need") != "" {
			hasNeed = true
			break
		}
	}
	if !hasNeed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "need is required",
			"example": json.RawMessage(`{"need":"需要網站","platform":"FB"}`),
		})
	}

	success := []fiber.Map{}
	errs := []fiber.Map{}
	for i, item := range items {
		createdByName := strField(item, "created_by_name", "createdByName")
		if createdByName == "" {
			createdByName = agentName
		}
		view, err := ac.Service.Create(c.Context(), lead.CreateInput{
			Need:           strField(item, "need"),
			CreatedBy:      strField(item, "created_by", "createdBy"),
			CreatedByName:  createdByName,
			AssignCaseCode: true,
			Fields:         item,
		})
		if err != nil {
			ac.Logger.Printf("Failed to import lead %d: %v", i, err)
			errs = append(errs, fiber.Map{"index": i, "error": err.Error()})
			continue
		}
		success = append(success, fiber.Map{"id": view.ID, "case_code": view.CaseCode})
	}

	return c.JSON(fiber.Map{
		"message":  "匯入完成",
		"imported": len(success),
		"results": fiber.Map{
			"success": success,
			"errors":  errs,
		},
	})
}

// GetLeads returns a filtered lead summary for agent consumption.
func (ac *AIController) GetLeads(c *fiber.Ctx) error {
	limit := utils.ParseInt(c.Query("limit"), 100)
	if limit > 500 {
		limit = 500
	}
	views, err := ac.Service.List(c.Context(), lead.ListFilter{
		Status:     c.Query("status"),
		Decision:   c.Query("decision"),
		AssignedTo: c.Query("assigned_to"),
		Keyword:    c.Query("keyword"),
		Limit:      limit,
	})
	if err != nil {
		return respondLeadError(c, err)
	}

	leads := make([]fiber.Map, 0, len(views))
	for _, v := range views {
		leads = append(leads, fiber.Map{
			"id":               v.ID,
			"case_code":        v.CaseCode,
			"need":             v.Need,
			"platform":         v.Platform,
			"budget":           v.Budget,
			"status":           v.Status,
			"decision":         v.Decision,
			"priority":         v.Priority,
			"contact_status":   v.ContactStatus,
			"assigned_to_name": v.AssignedToName,
			"created_at":       v.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"count": len(leads),
		"leads": leads,
	})
}

// Update patches a lead addressed by case_code or lead_id.
func (ac *AIController) Update(c *fiber.Ctx) error {
	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	row, err := ac.Service.Resolve(c.Context(), refFrom(body))
	if err != nil {
		return respondLeadError(c, err)
	}

	stripRefKeys(body)
	view, err := ac.Service.Patch(c.Context(), row.ID, body)
	if err != nil {
		return respondLeadError(c, err)
	}

	return c.JSON(subDocumentEcho(view, fiber.Map{
		"success":   true,
		"id":        row.ID,
		"case_code": view.CaseCode,
	}))
}

// Delete removes a lead addressed by case_code or lead_id. Unlike the human
// delete endpoint, an unresolvable reference here is a 404.
func (ac *AIController) Delete(c *fiber.Ctx) error {
	var body map[string]interface{}
	_ = c.BodyParser(&body)
	ref := refFrom(body)
	if ref.ID == "" && ref.CaseCode == "" {
		ref = lead.Ref{ID: c.Query("lead_id"), CaseCode: c.Query("case_code")}
	}

	row, err := ac.Service.Resolve(c.Context(), ref)
	if err != nil {
		return respondLeadError(c, err)
	}
	if err := ac.Service.Remove(c.Context(), row.ID); err != nil {
		return respondLeadError(c, err)
	}

	return c.JSON(fiber.Map{"success": true, "id": row.ID})
}

// AddCosts appends cost records, each resolved by lead_id or case_code.
func (ac *AIController) AddCosts(c *fiber.Ctx) error {
	return ac.appendRecords(c, "cost_records")
}

// AddProfits appends profit records, each resolved by lead_id or case_code.
func (ac *AIController) AddProfits(c *fiber.Ctx) error {
	return ac.appendRecords(c, "profit_records")
}

// AddAttachments appends attachment entries, each resolved by lead_id or
// case_code.
func (ac *AIController) AddAttachments(c *fiber.Ctx) error {
	return ac.appendRecords(c, "contracts")
}

func (ac *AIController) appendRecords(c *fiber.Ctx, field string) error {
	items, err := parseItems(c.Body())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	success := []fiber.Map{}
	errs := []fiber.Map{}
	for i, item := range items {
		row, err := ac.Service.Resolve(c.Context(), refFrom(item))
		if err != nil {
			errs = append(errs, fiber.Map{"index": i, "error": err.Error()})
			continue
		}
		entry := item
		stripRefKeys(entry)
		if name := strField(entry, "created_by_name", "createdByName", "uploaded_by", "uploadedBy"); name == "" {
			if field == "contracts" {
				entry["uploaded_by"] = agentName
			} else {
				entry["created_by_name"] = agentName
			}
		}
		view, err := ac.Service.AppendSubDocument(c.Context(), row.ID, field, entry)
		if err != nil {
			ac.Logger.Printf("Failed to append %s for lead %s: %v", field, row.ID, err)
			errs = append(errs, fiber.Map{"index": i, "error": err.Error()})
			continue
		}
		success = append(success, fiber.Map{"id": row.ID, "case_code": view.CaseCode})
	}

	return c.JSON(fiber.Map{
		"message":  "處理完成",
		"imported": len(success),
		"failed":   len(errs),
		"results": fiber.Map{
			"success": success,
			"errors":  errs,
		},
	})
}

// parseItems accepts a bare object, a bare array, or {"leads"/"items"/
// "records": [...]} and returns a flat item list.
func parseItems(raw []byte) ([]map[string]interface{}, error) {
	var items []map[string]interface{}
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}

	var single map[string]interface{}
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("expected a JSON object or array")
	}
	for _, key := range []string{"leads", "items", "records"} {
		arr, ok := single[key].([]interface{})
		if !ok {
			continue
		}
		for _, el := range arr {
			if m, ok := el.(map[string]interface{}); ok {
				items = append(items, m)
			}
		}
		return items, nil
	}
	return []map[string]interface{}{single}, nil
}

func refFrom(body map[string]interface{}) lead.Ref {
	return lead.Ref{
		ID:       strField(body, "lead_id", "leadId", "id"),
		CaseCode: strField(body, "case_code", "caseCode"),
	}
}

func stripRefKeys(body map[string]interface{}) {
	for _, key := range []string{"lead_id", "leadId", "id", "case_code", "caseCode"} {
		delete(body, key)
	}
}
