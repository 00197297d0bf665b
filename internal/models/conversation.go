package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Conversation ties a lead to an optional assigned agent. AssignedAgentID is
// set at most once, through the claim flow; the AI fields are only written by
// the re-analysis pipeline.
type Conversation struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	LeadID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"lead_id"`
	AssignedAgentID *uuid.UUID     `gorm:"type:uuid;index" json:"assigned_agent_id"`
	ChatToken       *string        `gorm:"type:text;uniqueIndex" json:"-"`
	Status          string         `gorm:"type:text;not null;default:'active';index" json:"status"`
	AISummary       *string        `gorm:"type:text" json:"ai_summary"`
	AIPriority      string         `gorm:"type:text;not null;default:'medium'" json:"ai_priority"`
	AITags          pq.StringArray `gorm:"type:text[]" json:"ai_tags"`
	IsRead          bool           `gorm:"not null;default:true" json:"is_read"`
	LastMessageAt   *time.Time     `json:"last_message_at"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`

	Lead Lead `gorm:"foreignKey:LeadID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ConversationWithLead is the inbox row: conversation plus lead contact info,
// the latest message preview and unread counters.
type ConversationWithLead struct {
	Conversation
	LeadName     string  `json:"lead_name"`
	LeadEmail    *string `json:"lead_email"`
	LeadPhone    *string `json:"lead_phone"`
	LeadProject  *string `json:"lead_project"`
	LastMessage  *string `json:"last_message"`
	MessageCount int     `json:"message_count"`
	UnreadCount  int     `json:"unread_count"`
}
