package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the actor identity referenced by leads' created_by / assigned_to
// fields. Kept as a plain pass-through row; no auth is attached to it.
type User struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	Email       *string    `gorm:"uniqueIndex" json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `gorm:"default:'member'" json:"role"`
	Avatar      *string    `json:"avatar"`
	Status      *string    `json:"status"`
	IsActive    *bool      `gorm:"default:true" json:"is_active"`
	IsOnline    *bool      `gorm:"default:false" json:"is_online"`
	LastSeen    *time.Time `json:"last_seen"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}
