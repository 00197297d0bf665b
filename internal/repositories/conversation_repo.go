package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/models"
)

// ConversationFilter narrows the inbox listing. AgentID scopes to one agent's
// assigned conversations; admins pass nil to see everything.
type ConversationFilter struct {
	AgentID  *uuid.UUID
	Status   string
	Priority string
	Tag      string
	Search   string
	Page     int
	Limit    int
}

type ConversationRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	FindByChatToken(ctx context.Context, token string) (*models.Conversation, error)
	List(ctx context.Context, filter ConversationFilter) ([]models.ConversationWithLead, int, error)
	FindWithLead(ctx context.Context, id uuid.UUID) (*models.ConversationWithLead, error)
	StartChat(ctx context.Context, lead *models.Lead, chatToken string, firstMessage string) (*models.Conversation, *models.Message, error)
	Claim(ctx context.Context, id, agentID uuid.UUID) (bool, error)
	UpdateAnalysis(ctx context.Context, id uuid.UUID, summary, priority string, tags []string) error
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	SetRead(ctx context.Context, id uuid.UUID, read bool) error
	ArchiveIdleBefore(ctx context.Context, cutoff time.Time) (int64, error)
	MissingAnalysis(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) FindByChatToken(ctx context.Context, token string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, "chat_token = ?", token).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

const selectConversationWithLead = `
	SELECT
		c.*,
		l.name             AS lead_name,
		l.email            AS lead_email,
		l.phone            AS lead_phone,
		l.project_interest AS lead_project,
		lm.content         AS last_message,
		COALESCE(mc.message_count, 0) AS message_count,
		COALESCE(mc.unread_count, 0)  AS unread_count
	FROM conversations c
	INNER JOIN leads l ON l.id = c.lead_id
	LEFT JOIN LATERAL (
		SELECT m.content
		FROM messages m
		WHERE m.conversation_id = c.id
		ORDER BY m.created_at DESC
		LIMIT 1
	) lm ON true
	LEFT JOIN LATERAL (
		SELECT
			COUNT(*) AS message_count,
			COUNT(*) FILTER (WHERE NOT m.is_read AND m.sender_type = 'lead') AS unread_count
		FROM messages m
		WHERE m.conversation_id = c.id
	) mc ON true
`

// List uses raw SQL: the lateral joins and the priority ordering are past the
// point where the query builder helps.
func (r *conversationRepo) List(ctx context.Context, filter ConversationFilter) ([]models.ConversationWithLead, int, error) {
	conditions := []string{"c.status = ?"}
	args := []interface{}{filter.Status}

	if filter.AgentID != nil {
		conditions = append(conditions, "c.assigned_agent_id = ?")
		args = append(args, *filter.AgentID)
	}
	if filter.Priority != "" {
		conditions = append(conditions, "c.ai_priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.Tag != "" {
		conditions = append(conditions, "? = ANY(c.ai_tags)")
		args = append(args, filter.Tag)
	}
	if filter.Search != "" {
		conditions = append(conditions, "(l.name ILIKE ? OR l.email ILIKE ? OR c.ai_summary ILIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countSQL := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM conversations c
		INNER JOIN leads l ON l.id = c.lead_id
		%s
	`, where)
	if err := r.db.WithContext(ctx).Raw(countSQL, args...).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	listSQL := fmt.Sprintf(`
		%s
		%s
		ORDER BY
			CASE c.ai_priority
				WHEN 'high'   THEN 1
				WHEN 'medium' THEN 2
				WHEN 'low'    THEN 3
			END,
			c.last_message_at DESC NULLS LAST,
			c.created_at DESC
		LIMIT ? OFFSET ?
	`, selectConversationWithLead, where)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	var rows []models.ConversationWithLead
	if err := r.db.WithContext(ctx).Raw(listSQL, args...).Scan(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, int(total), nil
}

func (r *conversationRepo) FindWithLead(ctx context.Context, id uuid.UUID) (*models.ConversationWithLead, error) {
	var row models.ConversationWithLead
	sql := selectConversationWithLead + " WHERE c.id = ? LIMIT 1"
	res := r.db.WithContext(ctx).Raw(sql, id).Scan(&row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &row, nil
}

// StartChat creates the lead, the conversation and its first message in one
// transaction so a half-created public chat can never exist.
func (r *conversationRepo) StartChat(ctx context.Context, lead *models.Lead, chatToken string, firstMessage string) (*models.Conversation, *models.Message, error) {
	now := time.Now()
	conv := &models.Conversation{
		ChatToken:     &chatToken,
		Status:        models.StatusActive,
		AIPriority:    models.PriorityMedium,
		IsRead:        false,
		LastMessageAt: &now,
	}
	var msg *models.Message

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(lead).Error; err != nil {
			return fmt.Errorf("create lead: %w", err)
		}

		conv.LeadID = lead.ID
		if err := tx.Create(conv).Error; err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}

		msg = &models.Message{
			ConversationID: conv.ID,
			SenderType:     models.SenderLead,
			SenderID:       lead.ID,
			Content:        firstMessage,
			ContentType:    models.ContentText,
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("create first message: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return conv, msg, nil
}

// Claim is a conditional update: it only wins while assigned_agent_id is still
// NULL, so two racing claims cannot both succeed.
func (r *conversationRepo) Claim(ctx context.Context, id, agentID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND assigned_agent_id IS NULL", id).
		Update("assigned_agent_id", agentID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *conversationRepo) UpdateAnalysis(ctx context.Context, id uuid.UUID, summary, priority string, tags []string) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ai_summary":  summary,
			"ai_priority": priority,
			"ai_tags":     pq.StringArray(tags),
		}).Error
}

func (r *conversationRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *conversationRepo) SetRead(ctx context.Context, id uuid.UUID, read bool) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("is_read", read).Error
}

func (r *conversationRepo) ArchiveIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("status = ? AND last_message_at IS NOT NULL AND last_message_at < ?", models.StatusActive, cutoff).
		Update("status", models.StatusArchived)
	return res.RowsAffected, res.Error
}

// MissingAnalysis returns active conversations that have messages but no
// summary yet, for the maintenance backfill.
func (r *conversationRepo) MissingAnalysis(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Raw(`
		SELECT c.id
		FROM conversations c
		WHERE c.status = 'active'
		  AND c.ai_summary IS NULL
		  AND EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = c.id)
		ORDER BY c.last_message_at DESC NULLS LAST
		LIMIT ?
	`, limit).Scan(&ids).Error
	return ids, err
}
