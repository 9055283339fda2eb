package lead

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"casedesk/models"
)

// ListFilter narrows lead listings. Zero values mean "no filter".
type ListFilter struct {
	Status     string
	Decision   string
	AssignedTo string
	Keyword    string
	Limit      int
}

// Store is the row-fetch/row-write capability the mutator runs against. It is
// constructed explicitly and injected, so tests can swap in a double.
type Store interface {
	Insert(ctx context.Context, columns map[string]interface{}) error
	FindByID(ctx context.Context, id string) (*models.Lead, error)
	FindByCaseCode(ctx context.Context, code string) (*models.Lead, error)
	List(ctx context.Context, filter ListFilter) ([]models.Lead, error)
	UpdateColumns(ctx context.Context, id string, columns map[string]interface{}) (int64, error)
	AppendSubDocument(ctx context.Context, id, column string, entry interface{}) (int64, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// GormStore implements Store over the leads table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, columns map[string]interface{}) error {
	now := time.Now()
	if _, ok := columns["created_at"]; !ok {
		columns["created_at"] = now
	}
	if _, ok := columns["updated_at"]; !ok {
		columns["updated_at"] = now
	}
	return s.db.WithContext(ctx).Model(&models.Lead{}).Create(columns).Error
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.Lead, error) {
	var l models.Lead
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *GormStore) FindByCaseCode(ctx context.Context, code string) (*models.Lead, error) {
	var l models.Lead
	err := s.db.WithContext(ctx).Where("case_code = ?", code).First(&l).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *GormStore) List(ctx context.Context, filter ListFilter) ([]models.Lead, error) {
	query := s.db.WithContext(ctx).Model(&models.Lead{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Decision != "" {
		query = query.Where("decision = ?", filter.Decision)
	}
	if filter.AssignedTo != "" {
		query = query.Where("assigned_to = ?", filter.AssignedTo)
	}
	if filter.Keyword != "" {
		kw := "%" + filter.Keyword + "%"
		query = query.Where("need ILIKE ? OR note ILIKE ? OR location ILIKE ?", kw, kw, kw)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var leads []models.Lead
	if err := query.Order("created_at DESC").Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (s *GormStore) UpdateColumns(ctx context.Context, id string, columns map[string]interface{}) (int64, error) {
	// GORM refreshes updated_at itself on Updates; the caller never sets it.
	res := s.db.WithContext(ctx).Model(&models.Lead{}).Where("id = ?", id).Updates(columns)
	return res.RowsAffected, res.Error
}

// AppendSubDocument appends one entry to a jsonb array column in a single
// statement, so concurrent appends to the same lead cannot lose each other.
// Legacy rows holding a string-typed value (a JSON array encoded once more as
// a string) are unwrapped in place, matching what the read path shows; any
// other non-array value is replaced by an empty array first.
func (s *GormStore) AppendSubDocument(ctx context.Context, id, column string, entry interface{}) (int64, error) {
	if !subDocumentColumns[column] {
		return 0, fmt.Errorf("not an appendable column: %s", column)
	}
	raw, err := json.Marshal([]interface{}{entry})
	if err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Exec(appendSubDocumentSQL(column), string(raw), id)
	return res.RowsAffected, res.Error
}

func appendSubDocumentSQL(column string) string {
	return fmt.Sprintf(
		`UPDATE leads
		 SET %[1]s = (CASE
		       WHEN jsonb_typeof(%[1]s) = 'array' THEN %[1]s
		       WHEN jsonb_typeof(%[1]s) = 'string' AND (%[1]s #>> '{}') ~ '^\s*\[' THEN (%[1]s #>> '{}')::jsonb
		       ELSE '[]'::jsonb
		     END) || ?::jsonb,
		     updated_at = NOW()
		 WHERE id = ?`, column)
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	// Deleting a missing row is not an error; zero rows affected is fine.
	return s.db.WithContext(ctx).Delete(&models.Lead{}, "id = ?", id).Error
}

func (s *GormStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Lead{}).Count(&n).Error
	return n, err
}
