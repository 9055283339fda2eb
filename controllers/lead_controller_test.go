package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"casedesk/lead"
	"casedesk/models"
)

// fakeStore keeps leads in a map; just enough of the store contract for
// handler tests.
type fakeStore struct {
	leads map[string]*models.Lead
}

func newFakeStore() *fakeStore {
	return &fakeStore{leads: map[string]*models.Lead{}}
}

func (f *fakeStore) Insert(_ context.Context, columns map[string]interface{}) error {
	l := &models.Lead{CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if v, ok := columns["id"].(string); ok {
		l.ID = v
	}
	if v, ok := columns["need"].(string); ok {
		l.Need = v
	}
	if v, ok := columns["created_by_name"].(string); ok {
		l.CreatedByName = v
	}
	if v, ok := columns["case_code"].(string); ok {
		l.CaseCode = &v
	}
	if v, ok := columns["status"].(string); ok {
		l.Status = v
	}
	if v, ok := columns["platform"].(string); ok {
		l.Platform = &v
	}
	if v, ok := columns["created_at"].(time.Time); ok {
		l.CreatedAt = v
	}
	if v, ok := columns["updated_at"].(time.Time); ok {
		l.UpdatedAt = v
	}
	f.leads[l.ID] = l
	return nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*models.Lead, error) {
	return f.leads[id], nil
}

func (f *fakeStore) FindByCaseCode(_ context.Context, code string) (*models.Lead, error) {
	for _, l := range f.leads {
		if l.CaseCode != nil && *l.CaseCode == code {
			return l, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) List(_ context.Context, _ lead.ListFilter) ([]models.Lead, error) {
	out := make([]models.Lead, 0, len(f.leads))
	for _, l := range f.leads {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeStore) UpdateColumns(_ context.Context, id string, columns map[string]interface{}) (int64, error) {
	l, ok := f.leads[id]
	if !ok {
		return 0, nil
	}
	if v, ok := columns["status"].(string); ok {
		l.Status = v
	}
	if v, ok := columns["note"].(string); ok {
		l.Note = &v
	}
	l.UpdatedAt = time.Now()
	return 1, nil
}

func (f *fakeStore) AppendSubDocument(_ context.Context, id, column string, entry interface{}) (int64, error) {
	l, ok := f.leads[id]
	if !ok {
		return 0, nil
	}
	var entries []interface{}
	if column == "cost_records" && len(l.CostRecords) > 0 {
		_ = json.Unmarshal(l.CostRecords, &entries)
	}
	entries = append(entries, entry)
	raw, err := json.Marshal(entries)
	if err != nil {
		return 0, err
	}
	if column == "cost_records" {
		l.CostRecords = datatypes.JSON(raw)
	}
	l.UpdatedAt = time.Now()
	return 1, nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	delete(f.leads, id)
	return nil
}

func (f *fakeStore) Count(_ context.Context) (int64, error) {
	return int64(len(f.leads)), nil
}

// noopAudit swallows audit entries.
type noopAudit struct{}

func (noopAudit) Record(_ context.Context, _ *models.AuditLog) error { return nil }

func testApp(store *fakeStore) *fiber.App {
	service := lead.NewService(store)
	logger := log.New(io.Discard, "", 0)
	leadController := NewLeadController(service, noopAudit{}, logger)
	aiController := NewAIController(service, logger)

	app := fiber.New()
	api := app.Group("/api")
	api.Get("/leads", leadController.GetLeads)
	api.Post("/leads", leadController.CreateLead)
	api.Get("/leads/:id", leadController.GetLead)
	api.Put("/leads/:id", leadController.UpdateLead)
	api.Delete("/leads/:id", leadController.DeleteLead)
	api.Post("/leads/:id/costs", leadController.AddCost)

	ai := app.Group("/api/ai")
	ai.Post("/import", aiController.Import)
	ai.Get("/leads", aiController.GetLeads)
	ai.Put("/update", aiController.Update)
	ai.Post("/cost", aiController.AddCosts)
	return app
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seedLead(store *fakeStore, id, caseCode string) {
	code := caseCode
	l := &models.Lead{
		ID:            id,
		Need:          "需要網站",
		CreatedByName: "王小明",
		Status:        "待篩選",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if code != "" {
		l.CaseCode = &code
	}
	store.leads[id] = l
}

func TestCreateLeadRequiresNeed(t *testing.T) {
	app := testApp(newFakeStore())

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/leads", map[string]interface{}{
		"created_by_name": "王小明",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "need")
	assert.NotNil(t, body["example"])
}

func TestCreateLeadReturnsID(t *testing.T) {
	store := newFakeStore()
	app := testApp(store)

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/leads", map[string]interface{}{
		"need":          "需要網站",
		"createdByName": "王小明",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	assert.Contains(t, store.leads, id)
}

func TestUpdateLeadEchoesSubDocuments(t *testing.T) {
	store := newFakeStore()
	seedLead(store, "l1", "")
	app := testApp(store)

	resp, err := app.Test(jsonRequest(fiber.MethodPut, "/api/leads/l1", map[string]interface{}{
		"status": "已聯繫",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "l1", body["id"])
	for _, key := range []string{"progress_updates", "change_history", "cost_records", "profit_records", "contracts", "links"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, "已聯繫", store.leads["l1"].Status)
}

func TestUpdateMissingLeadIs404(t *testing.T) {
	app := testApp(newFakeStore())

	resp, err := app.Test(jsonRequest(fiber.MethodPut, "/api/leads/ghost", map[string]interface{}{
		"status": "已聯繫",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDeleteMissingLeadStillSucceeds(t *testing.T) {
	app := testApp(newFakeStore())

	req := httptest.NewRequest(fiber.MethodDelete, "/api/leads/ghost", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
}

func TestAddCostStampsEntry(t *testing.T) {
	store := newFakeStore()
	seedLead(store, "l1", "")
	app := testApp(store)

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/leads/l1/costs", map[string]interface{}{
		"item":   "網域",
		"amount": "300",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	records, ok := body["cost_records"].([]interface{})
	require.True(t, ok)
	require.Len(t, records, 1)
	entry := records[0].(map[string]interface{})
	assert.Equal(t, float64(300), entry["amount"])
	assert.Equal(t, "l1", entry["lead_id"])
	assert.NotEmpty(t, entry["id"])
}
