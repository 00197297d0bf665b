package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SenderAgent = "agent"
	SenderLead  = "lead"
)

const (
	ContentText  = "text"
	ContentImage = "image"
)

// Message is immutable once created, except for the read flag.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`
	SenderType     string    `gorm:"type:text;not null" json:"sender_type"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	ContentType    string    `gorm:"type:text;not null;default:'text'" json:"content_type"`
	IsRead         bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MessageWithSender carries the resolved display name for broadcast payloads
// and message listings.
type MessageWithSender struct {
	Message
	SenderName string `json:"sender_name"`
}

// TranscriptEntry is one line of the analyzer transcript: who said what, with
// the sender resolved to a display name.
type TranscriptEntry struct {
	SenderType string `json:"sender_type"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
}
