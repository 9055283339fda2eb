package controller

import (
	"io"
	"log"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casedesk/lead"
)

func migrateApp(store *fakeStore) *fiber.App {
	service := lead.NewService(store)
	mc := NewMigrateController(nil, service, log.New(io.Discard, "", 0))

	app := fiber.New()
	app.Post("/api/migrate", mc.Migrate)
	return app
}

func TestMigrateEmptyPayloadIs400(t *testing.T) {
	app := migrateApp(newFakeStore())

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/migrate", map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMigrateLeadsCollectsRowErrors(t *testing.T) {
	store := newFakeStore()
	app := migrateApp(store)

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/migrate", map[string]interface{}{
		"leads": []map[string]interface{}{
			{"id": "l1", "need": "需要網站", "created_by_name": "王小明"},
			{"id": "l2", "created_by_name": "王小明"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["message"])

	results := body["results"].(map[string]interface{})
	leadsResult := results["leads"].(map[string]interface{})
	assert.Equal(t, float64(1), leadsResult["imported"])

	rowErrs := leadsResult["errors"].([]interface{})
	require.Len(t, rowErrs, 1)
	assert.Contains(t, rowErrs[0], "need")

	assert.Contains(t, store.leads, "l1")
	assert.NotContains(t, store.leads, "l2")
}

func TestMigrateLeadsKeepsSnapshotTimestamps(t *testing.T) {
	store := newFakeStore()
	app := migrateApp(store)

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/migrate", map[string]interface{}{
		"leads": []map[string]interface{}{
			{
				"id":              "l1",
				"need":            "需要網站",
				"created_by_name": "王小明",
				"case_code":       "aijob-012",
				"created_at":      "2023-01-15T08:00:00Z",
				"updated_at":      "2023-06-30T12:00:00Z",
			},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	row := store.leads["l1"]
	require.NotNil(t, row)
	assert.Equal(t, 2023, row.CreatedAt.Year())
	assert.Equal(t, 2023, row.UpdatedAt.Year())
	require.NotNil(t, row.CaseCode)
	assert.Equal(t, "aijob-012", *row.CaseCode)
}

func TestMigrateLeadsPatchesExistingRows(t *testing.T) {
	store := newFakeStore()
	seedLead(store, "l1", "aijob-001")
	app := migrateApp(store)

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/migrate", map[string]interface{}{
		"leads": []map[string]interface{}{
			{"id": "l1", "status": "已聯繫"},
		},
	}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	results := body["results"].(map[string]interface{})
	leadsResult := results["leads"].(map[string]interface{})
	assert.Equal(t, float64(1), leadsResult["imported"])
	assert.Equal(t, "已聯繫", store.leads["l1"].Status)
}
