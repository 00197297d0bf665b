package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/models"
)

type MessageRepo interface {
	Insert(ctx context.Context, msg *models.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.MessageWithSender, int, error)
	Transcript(ctx context.Context, conversationID uuid.UUID) ([]models.TranscriptEntry, error)
	SenderName(ctx context.Context, senderType string, senderID uuid.UUID) (string, error)
	MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerSenderType string) error
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepo{db: db}
}

// Insert writes the message and touches the parent conversation in the same
// transaction: last_message_at always reflects the newest message, and a lead
// message flips the conversation unread.
func (r *messageRepo) Insert(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		err := tx.Exec(`
			UPDATE conversations
			SET last_message_at = ?,
			    is_read = CASE WHEN ? = 'lead' THEN false ELSE is_read END,
			    updated_at = NOW()
			WHERE id = ?
		`, msg.CreatedAt, msg.SenderType, msg.ConversationID).Error
		if err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
		return nil
	})
}

const selectMessagesWithSender = `
	SELECT
		m.*,
		COALESCE(u.name, l.name, 'Unknown') AS sender_name
	FROM messages m
	LEFT JOIN users u ON m.sender_type = 'agent' AND u.id = m.sender_id
	LEFT JOIN leads l ON m.sender_type = 'lead'  AND l.id = m.sender_id
	WHERE m.conversation_id = ?
	ORDER BY m.created_at ASC
`

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.MessageWithSender, int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var rows []models.MessageWithSender
	err = r.db.WithContext(ctx).
		Raw(selectMessagesWithSender+" LIMIT ? OFFSET ?", conversationID, limit, offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return rows, int(total), nil
}

// Transcript returns every message in creation order with sender names
// resolved, ready to feed the analyzer.
func (r *messageRepo) Transcript(ctx context.Context, conversationID uuid.UUID) ([]models.TranscriptEntry, error) {
	var rows []models.TranscriptEntry
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			m.sender_type,
			COALESCE(u.name, l.name, 'Unknown') AS sender_name,
			m.content
		FROM messages m
		LEFT JOIN users u ON m.sender_type = 'agent' AND u.id = m.sender_id
		LEFT JOIN leads l ON m.sender_type = 'lead'  AND l.id = m.sender_id
		WHERE m.conversation_id = ?
		ORDER BY m.created_at ASC
	`, conversationID).Scan(&rows).Error
	return rows, err
}

func (r *messageRepo) SenderName(ctx context.Context, senderType string, senderID uuid.UUID) (string, error) {
	table := "leads"
	if senderType == models.SenderAgent {
		table = "users"
	}

	var name string
	res := r.db.WithContext(ctx).Raw(
		fmt.Sprintf("SELECT name FROM %s WHERE id = ?", table), senderID,
	).Scan(&name)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 || name == "" {
		return "Unknown", nil
	}
	return name, nil
}

// MarkConversationRead marks the other party's unread messages as read:
// an agent reading a conversation clears lead messages, not their own.
func (r *messageRepo) MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerSenderType string) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND is_read = false AND sender_type != ?", conversationID, readerSenderType).
		Update("is_read", true).Error
}
