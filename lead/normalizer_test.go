package lead

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"casedesk/models"
)

func TestCanonicalFieldAcceptsBothCasings(t *testing.T) {
	for external, want := range map[string]string{
		"assigned_to_name": "assigned_to_name",
		"assignedToName":   "assigned_to_name",
		"caseCode":         "case_code",
		"postedAt":         "posted_at",
		"need":             "need",
	} {
		col, ok := CanonicalField(external)
		require.True(t, ok, external)
		assert.Equal(t, want, col, external)
	}

	_, ok := CanonicalField("droptable")
	assert.False(t, ok)
}

func TestEncodeChangesTrimsAndNullsEmptyStrings(t *testing.T) {
	out := EncodeChanges(map[string]interface{}{
		"platform": "  FB  ",
		"note":     "   ",
		"budget":   "",
	})

	assert.Equal(t, "FB", out["platform"])

	val, ok := out["note"]
	require.True(t, ok)
	assert.Nil(t, val)

	val, ok = out["budget"]
	require.True(t, ok)
	assert.Nil(t, val)
}

func TestEncodeChangesDropsUnknownAndImmutableFields(t *testing.T) {
	out := EncodeChanges(map[string]interface{}{
		"status":          "已聯繫",
		"id":              "attacker-id",
		"created_at":      "2020-01-01",
		"created_by_name": "someone else",
		"case_code":       "aijob-999",
		"mystery":         "value",
	})

	assert.Equal(t, map[string]interface{}{"status": "已聯繫"}, out)
}

func TestEncodeFieldPostedAtLayouts(t *testing.T) {
	for _, input := range []string{
		"2025-03-01T10:00:00Z",
		"2025-03-01T10:00:00",
		"2025-03-01 10:00:00",
		"2025-03-01",
		"2025/03/01",
	} {
		got, ok := EncodeField("posted_at", input)
		require.True(t, ok, input)
		ts, isTime := got.(time.Time)
		require.True(t, isTime, input)
		assert.Equal(t, 2025, ts.Year(), input)
	}

	got, ok := EncodeField("posted_at", "not a date")
	require.True(t, ok)
	assert.Nil(t, got)

	got, ok = EncodeField("posted_at", "  ")
	require.True(t, ok)
	assert.Nil(t, got)
}

func TestEncodeFieldPriorityCoercion(t *testing.T) {
	got, ok := EncodeField("priority", float64(2))
	require.True(t, ok)
	assert.Equal(t, 2, got)

	got, ok = EncodeField("priority", "5")
	require.True(t, ok)
	assert.Equal(t, 5, got)

	_, ok = EncodeField("priority", "high")
	assert.False(t, ok)
}

func TestEncodeFieldPriorityRejectsNonPositive(t *testing.T) {
	_, ok := EncodeField("priority", float64(0))
	assert.False(t, ok)

	_, ok = EncodeField("priority", -1)
	assert.False(t, ok)

	out := EncodeChanges(map[string]interface{}{"priority": float64(0)})
	_, present := out["priority"]
	assert.False(t, present)
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp("2023-01-15T08:00:00Z")
	require.True(t, ok)
	assert.Equal(t, 2023, ts.Year())

	ts, ok = ParseTimestamp("2023-01-15")
	require.True(t, ok)
	assert.Equal(t, time.January, ts.Month())

	_, ok = ParseTimestamp("not a date")
	assert.False(t, ok)

	_, ok = ParseTimestamp(nil)
	assert.False(t, ok)
}

func TestEncodeFieldSubDocumentSerializes(t *testing.T) {
	got, ok := EncodeField("links", []interface{}{map[string]interface{}{"url": "https://example.com"}})
	require.True(t, ok)
	raw, isJSON := got.(datatypes.JSON)
	require.True(t, isJSON)
	assert.JSONEq(t, `[{"url":"https://example.com"}]`, string(raw))

	got, ok = EncodeField("links", nil)
	require.True(t, ok)
	assert.Nil(t, got)
}

func TestParseAmount(t *testing.T) {
	assert.Equal(t, 1500.5, ParseAmount(1500.5))
	assert.Equal(t, float64(300), ParseAmount("300"))
	assert.Equal(t, float64(0), ParseAmount("NT$300"))
	assert.Equal(t, float64(0), ParseAmount(nil))
	assert.Equal(t, float64(0), ParseAmount(map[string]interface{}{}))
}

func TestDecodeSubDocumentRecovery(t *testing.T) {
	entries := DecodeSubDocument("l1", "cost_records", nil)
	require.NotNil(t, entries)
	assert.Empty(t, entries)

	entries = DecodeSubDocument("l1", "cost_records", datatypes.JSON(`{"broken":`))
	require.NotNil(t, entries)
	assert.Empty(t, entries)

	entries = DecodeSubDocument("l1", "cost_records", datatypes.JSON(`{"not":"an array"}`))
	require.NotNil(t, entries)
	assert.Empty(t, entries)

	entries = DecodeSubDocument("l1", "cost_records", datatypes.JSON(`[{"item":"hosting","amount":300}]`))
	require.Len(t, entries, 1)
	assert.Equal(t, "hosting", entries[0]["item"])
}

func TestDecodeSubDocumentUnwrapsDoubleEncoding(t *testing.T) {
	raw := datatypes.JSON(`"[{\"item\":\"domain\"}]"`)
	entries := DecodeSubDocument("l1", "cost_records", raw)
	require.Len(t, entries, 1)
	assert.Equal(t, "domain", entries[0]["item"])
}

func TestDecodeSubstitutesDefaults(t *testing.T) {
	view := Decode(&models.Lead{ID: "l1", Need: "網站"})

	assert.Equal(t, DefaultStatus, view.Status)
	assert.Equal(t, DefaultDecision, view.Decision)
	assert.Equal(t, DefaultContactStatus, view.ContactStatus)
	assert.Equal(t, DefaultPriority, view.Priority)

	assert.Nil(t, view.PostedAt)
	assert.NotEmpty(t, view.CreatedAt)
	assert.NotEmpty(t, view.UpdatedAt)

	require.NotNil(t, view.ProgressUpdates)
	require.NotNil(t, view.Links)
	assert.Empty(t, view.ProgressUpdates)
}

func TestDecodeFormatsTimestamps(t *testing.T) {
	posted := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	created := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	view := Decode(&models.Lead{
		ID:        "l1",
		Need:      "網站",
		PostedAt:  &posted,
		CreatedAt: created,
		UpdatedAt: created,
	})

	require.NotNil(t, view.PostedAt)
	assert.Equal(t, "2025-03-01T08:00:00Z", *view.PostedAt)
	assert.Equal(t, "2025-03-02T09:30:00Z", view.CreatedAt)
}
