package lead

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"casedesk/models"
)

const caseCodeRetries = 5

const createExample = `{"need":"需要網站","created_by_name":"AI Agent"}`

// Service owns the lead mutation rules: creation defaults, the resolve-by-id-
// or-case_code lookup, immutable-field filtering on patches, and the
// sub-document append semantics shared by the web UI and the AI endpoints.
type Service struct {
	store Store
	log   *logrus.Entry
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		log:   logrus.WithField("component", "lead"),
	}
}

// Ref identifies a lead by internal id or by case_code. When ID is present it
// wins; CaseCode is only consulted otherwise.
type Ref struct {
	ID       string
	CaseCode string
}

func (r Ref) String() string {
	if r.ID != "" {
		return r.ID
	}
	return r.CaseCode
}

// CreateInput carries the required creation fields plus any optional fields,
// which go through the same encode policy as updates.
type CreateInput struct {
	ID             string
	Need           string
	CreatedBy      string
	CreatedByName  string
	CaseCode       string // pre-existing code (migrate path); kept as-is
	AssignCaseCode bool   // AI import path: server assigns the next aijob-NNN
	Fields         map[string]interface{}

	// Snapshot timestamps for ingested rows (migrate path). Zero means "now".
	// Once the row exists these stay immutable like every other patch.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Create validates required fields, applies creation defaults and inserts the
// row, returning the decoded lead.
func (s *Service) Create(ctx context.Context, input CreateInput) (*View, error) {
	need := strings.TrimSpace(input.Need)
	if need == "" {
		return nil, &ValidationError{Message: "need is required", Example: createExample}
	}
	creator := strings.TrimSpace(input.CreatedByName)
	if creator == "" {
		return nil, &ValidationError{Message: "created_by_name is required", Example: createExample}
	}

	columns := EncodeChanges(input.Fields)
	columns["need"] = need
	columns["created_by_name"] = creator
	if by := strings.TrimSpace(input.CreatedBy); by != "" {
		columns["created_by"] = by
	}
	if _, ok := columns["status"]; !ok {
		columns["status"] = DefaultStatus
	}
	if _, ok := columns["decision"]; !ok {
		columns["decision"] = DefaultDecision
	}
	if _, ok := columns["contact_status"]; !ok {
		columns["contact_status"] = DefaultContactStatus
	}
	if _, ok := columns["priority"]; !ok {
		columns["priority"] = DefaultPriority
	}

	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}
	columns["id"] = id

	if !input.CreatedAt.IsZero() {
		columns["created_at"] = input.CreatedAt
	}
	if !input.UpdatedAt.IsZero() {
		columns["updated_at"] = input.UpdatedAt
	}

	if input.CaseCode != "" {
		columns["case_code"] = input.CaseCode
	}

	if input.AssignCaseCode && input.CaseCode == "" {
		if err := s.insertWithCaseCode(ctx, columns); err != nil {
			return nil, err
		}
	} else if err := s.store.Insert(ctx, columns); err != nil {
		return nil, storeErr("create lead", err)
	}
	return s.Get(ctx, id)
}

// insertWithCaseCode derives the next aijob-NNN code from the current row
// count and retries with an incremented number when the unique index rejects
// it. Codes are unique but not guaranteed gap-free.
func (s *Service) insertWithCaseCode(ctx context.Context, columns map[string]interface{}) error {
	count, err := s.store.Count(ctx)
	if err != nil {
		return storeErr("count leads", err)
	}
	for attempt := 0; attempt < caseCodeRetries; attempt++ {
		code := fmt.Sprintf("aijob-%03d", count+1+int64(attempt))
		columns["case_code"] = code
		err = s.store.Insert(ctx, columns)
		if err == nil {
			return nil
		}
		if !isDuplicateKey(err) {
			return storeErr("create lead", err)
		}
		s.log.WithField("case_code", code).Warn("case code collision, retrying")
	}
	return storeErr("assign case code", err)
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key")
}

// Resolve locates a lead by id when one is supplied, otherwise by case_code.
func (s *Service) Resolve(ctx context.Context, ref Ref) (*models.Lead, error) {
	var (
		row *models.Lead
		err error
	)
	switch {
	case ref.ID != "":
		row, err = s.store.FindByID(ctx, ref.ID)
	case ref.CaseCode != "":
		row, err = s.store.FindByCaseCode(ctx, ref.CaseCode)
	default:
		return nil, &ValidationError{Message: "lead_id or case_code is required"}
	}
	if err != nil {
		return nil, storeErr("resolve lead", err)
	}
	if row == nil {
		return nil, &NotFoundError{Ref: ref.String()}
	}
	return row, nil
}

// Get fetches and decodes one lead by id.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	row, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr("fetch lead", err)
	}
	if row == nil {
		return nil, &NotFoundError{Ref: id}
	}
	return Decode(row), nil
}

// List returns decoded leads, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*View, error) {
	rows, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, storeErr("list leads", err)
	}
	views := make([]*View, 0, len(rows))
	for i := range rows {
		views = append(views, Decode(&rows[i]))
	}
	return views, nil
}

// Patch applies a partial update. Immutable and unknown fields are filtered
// silently; an effectively empty change set is a validation error. updated_at
// is refreshed by the store, never taken from the caller.
func (s *Service) Patch(ctx context.Context, id string, changes map[string]interface{}) (*View, error) {
	columns := EncodeChanges(changes)
	if len(columns) == 0 {
		return nil, &ValidationError{Message: "no updatable fields in request"}
	}
	rows, err := s.store.UpdateColumns(ctx, id, columns)
	if err != nil {
		return nil, storeErr("update lead", err)
	}
	if rows == 0 {
		return nil, &NotFoundError{Ref: id}
	}
	return s.Get(ctx, id)
}

// AppendSubDocument stamps the entry with a generated id (and a server
// timestamp where the record type carries one) and appends it atomically.
func (s *Service) AppendSubDocument(ctx context.Context, id, field string, entry map[string]interface{}) (*View, error) {
	column, ok := IsSubDocumentField(field)
	if !ok {
		return nil, &ValidationError{Message: "not an appendable field: " + field}
	}
	if entry == nil {
		entry = map[string]interface{}{}
	}
	if _, ok := entry["id"]; !ok {
		entry["id"] = uuid.New().String()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	switch column {
	case "cost_records", "profit_records":
		entry["lead_id"] = id
		entry["amount"] = ParseAmount(entry["amount"])
		if _, ok := entry["created_at"]; !ok {
			entry["created_at"] = now
		}
	case "contracts":
		if name, _ := entry["filename"].(string); strings.TrimSpace(name) == "" {
			entry["filename"] = "未命名附件"
		}
		if _, ok := entry["uploaded_at"]; !ok {
			entry["uploaded_at"] = now
		}
	default:
		if _, ok := entry["created_at"]; !ok {
			entry["created_at"] = now
		}
	}

	rows, err := s.store.AppendSubDocument(ctx, id, column, entry)
	if err != nil {
		return nil, storeErr("append "+column, err)
	}
	if rows == 0 {
		return nil, &NotFoundError{Ref: id}
	}
	return s.Get(ctx, id)
}

// Remove deletes the lead. Removing an already-removed id is not an error.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return storeErr("delete lead", err)
	}
	return nil
}
