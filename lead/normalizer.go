package lead

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"casedesk/models"
)

// Creation-time defaults, also substituted at decode time when the stored
// column is null. A single policy shared by every read and write path.
const (
	DefaultStatus        = "待篩選"
	DefaultDecision      = "pending"
	DefaultContactStatus = "未回覆"
	DefaultPriority      = 3
)

// fieldAliases enumerates the legal external field names (both snake_case and
// camelCase) and maps them to storage columns. Keys outside this table are
// dropped, never spliced into SQL.
var fieldAliases = map[string]string{
	"case_code": "case_code", "caseCode": "case_code",
	"platform":    "platform",
	"platform_id": "platform_id", "platformId": "platform_id",
	"need":      "need",
	"budget":    "budget",
	"posted_at": "posted_at", "postedAt": "posted_at",
	"phone":    "phone",
	"email":    "email",
	"location": "location",
	"contact_method": "contact_method", "contactMethod": "contact_method",
	"estimated_duration": "estimated_duration", "estimatedDuration": "estimated_duration",
	"note":    "note",
	"remarks": "remarks",
	"remarks_by": "remarks_by", "remarksBy": "remarks_by",
	"status":   "status",
	"decision": "decision",
	"decision_by": "decision_by", "decisionBy": "decision_by",
	"reject_reason": "reject_reason", "rejectReason": "reject_reason",
	"review_note": "review_note", "reviewNote": "review_note",
	"assigned_to": "assigned_to", "assignedTo": "assigned_to",
	"assigned_to_name": "assigned_to_name", "assignedToName": "assigned_to_name",
	"priority":       "priority",
	"contact_status": "contact_status", "contactStatus": "contact_status",
	"created_by": "created_by", "createdBy": "created_by",
	"created_by_name": "created_by_name", "createdByName": "created_by_name",
	"last_action_by": "last_action_by", "lastActionBy": "last_action_by",
	"progress_updates": "progress_updates", "progressUpdates": "progress_updates",
	"change_history": "change_history", "changeHistory": "change_history",
	"cost_records": "cost_records", "costRecords": "cost_records",
	"profit_records": "profit_records", "profitRecords": "profit_records",
	"contracts": "contracts",
	"links":     "links",
	"id":         "id",
	"created_at": "created_at", "createdAt": "created_at",
	"updated_at": "updated_at", "updatedAt": "updated_at",
}

// immutableColumns are never accepted from a caller after creation.
// case_code is included: once assigned it is stable (it is set at creation or
// via the AI import path only).
var immutableColumns = map[string]bool{
	"id":              true,
	"created_at":      true,
	"created_by":      true,
	"created_by_name": true,
	"updated_at":      true,
	"case_code":       true,
}

var subDocumentColumns = map[string]bool{
	"progress_updates": true,
	"change_history":   true,
	"cost_records":     true,
	"profit_records":   true,
	"contracts":        true,
	"links":            true,
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// CanonicalField resolves an external field name to its storage column.
func CanonicalField(name string) (string, bool) {
	col, ok := fieldAliases[name]
	return col, ok
}

// IsSubDocumentField reports whether the external name maps to one of the
// jsonb array columns.
func IsSubDocumentField(name string) (string, bool) {
	col, ok := fieldAliases[name]
	if !ok || !subDocumentColumns[col] {
		return "", false
	}
	return col, true
}

// EncodeField applies the storage policy for one column: sub-document values
// are JSON-serialized (null stays null), posted_at becomes a timestamp or
// null, priority is coerced to an integer, and all other strings are trimmed
// with a trimmed-empty result stored as NULL rather than "".
func EncodeField(column string, value interface{}) (interface{}, bool) {
	switch {
	case subDocumentColumns[column]:
		if value == nil {
			return nil, true
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, false
		}
		return datatypes.JSON(raw), true
	case column == "posted_at":
		return encodeDate(value), true
	case column == "priority":
		// Priorities start at 1; 0 is indistinguishable from "unset" in storage.
		n, ok := toInt(value)
		if !ok || n < 1 {
			return nil, false
		}
		return n, true
	default:
		if value == nil {
			return nil, true
		}
		s, ok := value.(string)
		if !ok {
			// Tolerate numeric budgets and the like from loose clients.
			b, err := json.Marshal(value)
			if err != nil {
				return nil, false
			}
			s = strings.Trim(string(b), `"`)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, true
		}
		return s, true
	}
}

// EncodeChanges maps a caller-supplied change set to storage columns. Unknown
// and immutable fields are dropped silently; the same table serves the single
// update, AI update, import and migrate paths.
func EncodeChanges(changes map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(changes))
	for name, value := range changes {
		column, ok := fieldAliases[name]
		if !ok || immutableColumns[column] {
			continue
		}
		encoded, ok := EncodeField(column, value)
		if !ok {
			continue
		}
		out[column] = encoded
	}
	return out
}

func encodeDate(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v
	case *time.Time:
		if v == nil {
			return nil
		}
		return *v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		return nil
	default:
		return nil
	}
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ParseTimestamp reads a loose date value as a concrete time, reporting
// whether one was present.
func ParseTimestamp(value interface{}) (time.Time, bool) {
	t, ok := encodeDate(value).(time.Time)
	return t, ok
}

// ParseAmount reads a cost/profit amount from a loose JSON value, defaulting
// to 0 when it cannot be parsed.
func ParseAmount(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// View is the client-facing representation of a lead: ISO-8601 timestamps and
// sub-documents always present as arrays.
type View struct {
	ID                string                   `json:"id"`
	CaseCode          *string                  `json:"case_code"`
	Platform          *string                  `json:"platform"`
	PlatformID        *string                  `json:"platform_id"`
	Need              string                   `json:"need"`
	Budget            *string                  `json:"budget"`
	PostedAt          *string                  `json:"posted_at"`
	Phone             *string                  `json:"phone"`
	Email             *string                  `json:"email"`
	Location          *string                  `json:"location"`
	ContactMethod     *string                  `json:"contact_method"`
	EstimatedDuration *string                  `json:"estimated_duration"`
	Note              *string                  `json:"note"`
	Remarks           *string                  `json:"remarks"`
	RemarksBy         *string                  `json:"remarks_by"`
	Status            string                   `json:"status"`
	Decision          string                   `json:"decision"`
	DecisionBy        *string                  `json:"decision_by"`
	RejectReason      *string                  `json:"reject_reason"`
	ReviewNote        *string                  `json:"review_note"`
	AssignedTo        *string                  `json:"assigned_to"`
	AssignedToName    *string                  `json:"assigned_to_name"`
	Priority          int                      `json:"priority"`
	ContactStatus     string                   `json:"contact_status"`
	CreatedBy         *string                  `json:"created_by"`
	CreatedByName     string                   `json:"created_by_name"`
	LastActionBy      *string                  `json:"last_action_by"`
	ProgressUpdates   []map[string]interface{} `json:"progress_updates"`
	ChangeHistory     []map[string]interface{} `json:"change_history"`
	CostRecords       []map[string]interface{} `json:"cost_records"`
	ProfitRecords     []map[string]interface{} `json:"profit_records"`
	Contracts         []map[string]interface{} `json:"contracts"`
	Links             []map[string]interface{} `json:"links"`
	CreatedAt         string                   `json:"created_at"`
	UpdatedAt         string                   `json:"updated_at"`
}

// Decode maps a stored row to its client-facing representation. Malformed
// sub-document values decode to an empty array and are logged, never surfaced
// to the caller. created_at/updated_at default to now when absent; business
// dates such as posted_at stay null.
func Decode(l *models.Lead) *View {
	v := &View{
		ID:                l.ID,
		CaseCode:          l.CaseCode,
		Platform:          l.Platform,
		PlatformID:        l.PlatformID,
		Need:              l.Need,
		Budget:            l.Budget,
		Phone:             l.Phone,
		Email:             l.Email,
		Location:          l.Location,
		ContactMethod:     l.ContactMethod,
		EstimatedDuration: l.EstimatedDuration,
		Note:              l.Note,
		Remarks:           l.Remarks,
		RemarksBy:         l.RemarksBy,
		Status:            l.Status,
		Decision:          l.Decision,
		DecisionBy:        l.DecisionBy,
		RejectReason:      l.RejectReason,
		ReviewNote:        l.ReviewNote,
		AssignedTo:        l.AssignedTo,
		AssignedToName:    l.AssignedToName,
		Priority:          l.Priority,
		ContactStatus:     l.ContactStatus,
		CreatedBy:         l.CreatedBy,
		CreatedByName:     l.CreatedByName,
		LastActionBy:      l.LastActionBy,
		ProgressUpdates:   DecodeSubDocument(l.ID, "progress_updates", l.ProgressUpdates),
		ChangeHistory:     DecodeSubDocument(l.ID, "change_history", l.ChangeHistory),
		CostRecords:       DecodeSubDocument(l.ID, "cost_records", l.CostRecords),
		ProfitRecords:     DecodeSubDocument(l.ID, "profit_records", l.ProfitRecords),
		Contracts:         DecodeSubDocument(l.ID, "contracts", l.Contracts),
		Links:             DecodeSubDocument(l.ID, "links", l.Links),
	}

	if v.Status == "" {
		v.Status = DefaultStatus
	}
	if v.Decision == "" {
		v.Decision = DefaultDecision
	}
	if v.ContactStatus == "" {
		v.ContactStatus = DefaultContactStatus
	}
	if v.Priority == 0 {
		v.Priority = DefaultPriority
	}

	if l.PostedAt != nil {
		s := l.PostedAt.UTC().Format(time.RFC3339)
		v.PostedAt = &s
	}
	createdAt := l.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	updatedAt := l.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	v.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	v.UpdatedAt = updatedAt.UTC().Format(time.RFC3339)
	return v
}

// DecodeSubDocument reads a stored jsonb value as an array of records. Legacy
// rows sometimes hold a JSON string containing the array (double-encoded);
// those are unwrapped. Anything else malformed becomes an empty array.
func DecodeSubDocument(leadID, column string, raw datatypes.JSON) []map[string]interface{} {
	if len(raw) == 0 {
		return []map[string]interface{}{}
	}
	data := []byte(raw)

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		data = []byte(asString)
	}

	var entries []map[string]interface{}
	if err := json.Unmarshal(data, &entries); err != nil {
		logrus.WithFields(logrus.Fields{
			"lead_id": leadID,
			"column":  column,
		}).Warn("malformed sub-document value, substituting empty array")
		return []map[string]interface{}{}
	}
	if entries == nil {
		return []map[string]interface{}{}
	}
	return entries
}
