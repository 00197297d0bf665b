package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lead is a prospective buyer. Leads created by the public chat widget carry
// source "public_chat" and whatever metadata the widget captured (page URL,
// UTM params and so on).
type Lead struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name            string         `gorm:"type:text;not null" json:"name"`
	Email           *string        `gorm:"type:text" json:"email"`
	Phone           *string        `gorm:"type:text" json:"phone"`
	ProjectInterest *string        `gorm:"type:text" json:"project_interest"`
	Source          string         `gorm:"type:text;not null;default:'public_chat'" json:"source"`
	Metadata        datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
