package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lead represents a prospective client case tracked through the
// intake/decision/assignment workflow. Array-valued history fields are stored
// as jsonb sub-documents on the row itself; they are never shared across leads.
type Lead struct {
	ID       string  `gorm:"type:uuid;primaryKey" json:"id"`
	CaseCode *string `gorm:"uniqueIndex" json:"case_code,omitempty"`

	// Descriptive fields
	Platform          *string    `json:"platform"`
	PlatformID        *string    `gorm:"column:platform_id" json:"platform_id"`
	Need              string     `gorm:"not null" json:"need"`
	Budget            *string    `json:"budget"`
	PostedAt          *time.Time `json:"posted_at"`
	Phone             *string    `json:"phone"`
	Email             *string    `json:"email"`
	Location          *string    `json:"location"`
	ContactMethod     *string    `json:"contact_method"`
	EstimatedDuration *string    `json:"estimated_duration"`
	Note              *string    `gorm:"type:text" json:"note"`
	Remarks           *string    `gorm:"type:text" json:"remarks"`
	RemarksBy         *string    `json:"remarks_by"`

	// Workflow fields
	Status         string  `gorm:"default:'待篩選'" json:"status"`
	Decision       string  `gorm:"default:'pending'" json:"decision"` // pending, approved, rejected
	DecisionBy     *string `json:"decision_by"`
	RejectReason   *string `json:"reject_reason"`
	ReviewNote     *string `json:"review_note"`
	AssignedTo     *string `gorm:"index" json:"assigned_to"`
	AssignedToName *string `json:"assigned_to_name"`
	Priority       int     `gorm:"default:3" json:"priority"`
	ContactStatus  string  `gorm:"default:'未回覆'" json:"contact_status"`

	// Provenance
	CreatedBy     *string `json:"created_by"`
	CreatedByName string  `gorm:"not null" json:"created_by_name"`
	LastActionBy  *string `json:"last_action_by"`

	// Sub-documents, append-only from the API's perspective
	ProgressUpdates datatypes.JSON `gorm:"type:jsonb" json:"progress_updates"`
	ChangeHistory   datatypes.JSON `gorm:"type:jsonb" json:"change_history"`
	CostRecords     datatypes.JSON `gorm:"type:jsonb" json:"cost_records"`
	ProfitRecords   datatypes.JSON `gorm:"type:jsonb" json:"profit_records"`
	Contracts       datatypes.JSON `gorm:"type:jsonb" json:"contracts"`
	Links           datatypes.JSON `gorm:"type:jsonb" json:"links"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// CostRecord is the shape of one cost_records / profit_records entry. Entries
// are created only by append and are never individually updated or deleted.
type CostRecord struct {
	ID            string  `json:"id"`
	LeadID        string  `json:"lead_id"`
	Item          string  `json:"item"`
	Amount        float64 `json:"amount"`
	CreatedBy     string  `json:"created_by,omitempty"`
	CreatedByName string  `json:"created_by_name,omitempty"`
	Note          string  `json:"note,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// Attachment is the shape of one contracts entry. Data is an opaque base64
// blob or URL; it is stored as-is, never validated or re-encoded.
type Attachment struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Data       string `json:"data"`
	UploadedBy string `json:"uploaded_by,omitempty"`
	UploadedAt string `json:"uploaded_at"`
}
