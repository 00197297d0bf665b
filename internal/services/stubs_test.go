package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/repositories"
)

// stubConvRepo backs the service tests with an in-memory conversation set.
type stubConvRepo struct {
	conversations map[uuid.UUID]*models.Conversation
	byToken       map[string]uuid.UUID

	lastFilter repositories.ConversationFilter
	claimCalls int
}

func newStubConvRepo(convs ...*models.Conversation) *stubConvRepo {
	r := &stubConvRepo{
		conversations: map[uuid.UUID]*models.Conversation{},
		byToken:       map[string]uuid.UUID{},
	}
	for _, c := range convs {
		r.add(c)
	}
	return r
}

func (r *stubConvRepo) add(c *models.Conversation) {
	r.conversations[c.ID] = c
	if c.ChatToken != nil {
		r.byToken[*c.ChatToken] = c.ID
	}
}

func (r *stubConvRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, ok := r.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *stubConvRepo) FindByChatToken(_ context.Context, token string) (*models.Conversation, error) {
	id, ok := r.byToken[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *r.conversations[id]
	return &copied, nil
}

func (r *stubConvRepo) List(_ context.Context, filter repositories.ConversationFilter) ([]models.ConversationWithLead, int, error) {
	r.lastFilter = filter
	return nil, 0, nil
}

func (r *stubConvRepo) FindWithLead(_ context.Context, id uuid.UUID) (*models.ConversationWithLead, error) {
	c, ok := r.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.ConversationWithLead{Conversation: *c, LeadName: "Budi"}, nil
}

func (r *stubConvRepo) StartChat(_ context.Context, lead *models.Lead, chatToken string, firstMessage string) (*models.Conversation, *models.Message, error) {
	lead.ID = uuid.New()
	now := time.Now()
	conv := &models.Conversation{
		ID:            uuid.New(),
		LeadID:        lead.ID,
		ChatToken:     &chatToken,
		Status:        models.StatusActive,
		AIPriority:    models.PriorityMedium,
		LastMessageAt: &now,
	}
	r.add(conv)
	msg := &models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderType:     models.SenderLead,
		SenderID:       lead.ID,
		Content:        firstMessage,
		ContentType:    models.ContentText,
	}
	return conv, msg, nil
}

func (r *stubConvRepo) Claim(_ context.Context, id, agentID uuid.UUID) (bool, error) {
	r.claimCalls++
	c, ok := r.conversations[id]
	if !ok || c.AssignedAgentID != nil {
		return false, nil
	}
	c.AssignedAgentID = &agentID
	return true, nil
}

func (r *stubConvRepo) UpdateAnalysis(_ context.Context, id uuid.UUID, summary, priority string, tags []string) error {
	c := r.conversations[id]
	c.AISummary = &summary
	c.AIPriority = priority
	c.AITags = tags
	return nil
}

func (r *stubConvRepo) SetStatus(_ context.Context, id uuid.UUID, status string) error {
	r.conversations[id].Status = status
	return nil
}

func (r *stubConvRepo) SetRead(_ context.Context, id uuid.UUID, read bool) error {
	r.conversations[id].IsRead = read
	return nil
}

func (r *stubConvRepo) ArchiveIdleBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *stubConvRepo) MissingAnalysis(_ context.Context, _ int) ([]uuid.UUID, error) {
	return nil, nil
}

type stubMsgRepo struct {
	inserted  []*models.Message
	readCalls []uuid.UUID
	names     map[uuid.UUID]string
}

func newStubMsgRepo() *stubMsgRepo {
	return &stubMsgRepo{names: map[uuid.UUID]string{}}
}

func (r *stubMsgRepo) Insert(_ context.Context, msg *models.Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()
	r.inserted = append(r.inserted, msg)
	return nil
}

func (r *stubMsgRepo) ListByConversation(_ context.Context, conversationID uuid.UUID, _, _ int) ([]models.MessageWithSender, int, error) {
	var rows []models.MessageWithSender
	for _, m := range r.inserted {
		if m.ConversationID == conversationID {
			rows = append(rows, models.MessageWithSender{Message: *m})
		}
	}
	return rows, len(rows), nil
}

func (r *stubMsgRepo) Transcript(_ context.Context, conversationID uuid.UUID) ([]models.TranscriptEntry, error) {
	var entries []models.TranscriptEntry
	for _, m := range r.inserted {
		if m.ConversationID != conversationID {
			continue
		}
		name, ok := r.names[m.SenderID]
		if !ok {
			name = "Unknown"
		}
		entries = append(entries, models.TranscriptEntry{
			SenderType: m.SenderType,
			SenderName: name,
			Content:    m.Content,
		})
	}
	return entries, nil
}

func (r *stubMsgRepo) SenderName(_ context.Context, _ string, senderID uuid.UUID) (string, error) {
	if name, ok := r.names[senderID]; ok {
		return name, nil
	}
	return "Unknown", nil
}

func (r *stubMsgRepo) MarkConversationRead(_ context.Context, conversationID uuid.UUID, _ string) error {
	r.readCalls = append(r.readCalls, conversationID)
	return nil
}

type recordingBroadcaster struct {
	conversationIDs []string
	events          []string
	payloads        []interface{}
}

func (b *recordingBroadcaster) Broadcast(conversationID, event string, data interface{}) {
	b.conversationIDs = append(b.conversationIDs, conversationID)
	b.events = append(b.events, event)
	b.payloads = append(b.payloads, data)
}

type recordingScheduler struct {
	scheduled []uuid.UUID
}

func (s *recordingScheduler) Schedule(conversationID uuid.UUID) {
	s.scheduled = append(s.scheduled, conversationID)
}

func activeConversation(agentID *uuid.UUID) *models.Conversation {
	return &models.Conversation{
		ID:              uuid.New(),
		LeadID:          uuid.New(),
		AssignedAgentID: agentID,
		Status:          models.StatusActive,
		AIPriority:      models.PriorityMedium,
	}
}

func agentPrincipal(name string) Principal {
	return Principal{ID: uuid.New(), Name: name, Role: models.RoleAgent}
}
