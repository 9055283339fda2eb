package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is immutable once written. Before/After are arbitrary JSON
// snapshots of the referenced lead, or null.
type AuditLog struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	LeadID    *string        `gorm:"index" json:"lead_id"`
	ActorUID  *string        `gorm:"column:actor_uid" json:"actor_uid"`
	ActorName *string        `json:"actor_name"`
	Action    string         `gorm:"not null" json:"action"`
	Before    datatypes.JSON `gorm:"type:jsonb" json:"before"`
	After     datatypes.JSON `gorm:"type:jsonb" json:"after"`
	CreatedAt time.Time      `json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
