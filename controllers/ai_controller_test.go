package controller

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIImportSingleObject(t *testing.T) {
	store := newFakeStore()
	app := testApp(store)

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/ai/import", map[string]interface{}{
		"need":     "需要電商網站",
		"platform": "FB",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["imported"])

	results := body["results"].(map[string]interface{})
	success := results["success"].([]interface{})
	require.Len(t, success, 1)
	created := success[0].(map[string]interface{})
	assert.Equal(t, "aijob-001", created["case_code"])
	assert.NotEmpty(t, created["id"])
	assert.Empty(t, results["errors"])
}

func TestAIImportArrayPayload(t *testing.T) {
	store := newFakeStore()
	app := testApp(store)

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/ai/import", []map[string]interface{}{
		{"need": "案件一"},
		{"need": "案件二"},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(2), body["imported"])
	assert.Len(t, store.leads, 2)
}

func TestAIImportWithoutNeedIs400(t *testing.T) {
	app := testApp(newFakeStore())

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/ai/import", map[string]interface{}{
		"platform": "FB",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, false, body["success"])
	assert.NotNil(t, body["example"])
}

func TestAIUpdateByCaseCode(t *testing.T) {
	store := newFakeStore()
	seedLead(store, "l1", "aijob-001")
	app := testApp(store)

	resp, err := app.Test(jsonRequest(fiber.MethodPut, "/api/ai/update", map[string]interface{}{
		"case_code": "aijob-001",
		"status":    "已聯繫",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "l1", body["id"])
	assert.Equal(t, "已聯繫", store.leads["l1"].Status)
}

func TestAIUpdateUnknownCaseCodeIs404(t *testing.T) {
	app := testApp(newFakeStore())

	resp, err := app.Test(jsonRequest(fiber.MethodPut, "/api/ai/update", map[string]interface{}{
		"case_code": "aijob-999",
		"status":    "已聯繫",
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAIAddCostCollectsItemErrors(t *testing.T) {
	store := newFakeStore()
	seedLead(store, "l1", "aijob-001")
	app := testApp(store)

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/ai/cost", []map[string]interface{}{
		{"case_code": "aijob-001", "item": "網域", "amount": 300},
		{"case_code": "aijob-999", "item": "主機", "amount": 1500},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["imported"])
	assert.Equal(t, float64(1), body["failed"])

	results := body["results"].(map[string]interface{})
	errs := results["errors"].([]interface{})
	require.Len(t, errs, 1)
	itemErr := errs[0].(map[string]interface{})
	assert.Equal(t, float64(1), itemErr["index"])
	assert.Contains(t, itemErr["error"], "aijob-999")
}

func TestAIListLeadsSummary(t *testing.T) {
	store := newFakeStore()
	seedLead(store, "l1", "aijob-001")
	app := testApp(store)

	req := jsonRequest(fiber.MethodGet, "/api/ai/leads?limit=10", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["count"])
	leads := body["leads"].([]interface{})
	require.Len(t, leads, 1)
	summary := leads[0].(map[string]interface{})
	assert.Equal(t, "aijob-001", summary["case_code"])
	assert.Equal(t, "需要網站", summary["need"])
}
