package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/core/realtime"
	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/repositories"
)

// AnalysisScheduler is the debounce entry point a message write feeds.
type AnalysisScheduler interface {
	Schedule(conversationID uuid.UUID)
}

type MessageService struct {
	convRepo    repositories.ConversationRepo
	msgRepo     repositories.MessageRepo
	access      *AccessPolicy
	broadcaster realtime.Broadcaster
	scheduler   AnalysisScheduler
}

func NewMessageService(
	convRepo repositories.ConversationRepo,
	msgRepo repositories.MessageRepo,
	access *AccessPolicy,
	broadcaster realtime.Broadcaster,
	scheduler AnalysisScheduler,
) *MessageService {
	return &MessageService{
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		access:      access,
		broadcaster: broadcaster,
		scheduler:   scheduler,
	}
}

// List returns the conversation's messages oldest-first and marks the lead's
// messages read as a side effect of the agent viewing them.
func (s *MessageService) List(ctx context.Context, principal Principal, conversationID uuid.UUID, limit, offset int) ([]models.MessageWithSender, int, error) {
	ok, err := s.access.CanAccessConversation(ctx, principal, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrForbidden
	}

	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, total, err := s.msgRepo.ListByConversation(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	if err := s.msgRepo.MarkConversationRead(ctx, conversationID, models.SenderAgent); err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

// Send persists an agent reply, pushes it to the conversation room and arms
// the debounce timer for re-analysis.
func (s *MessageService) Send(ctx context.Context, principal Principal, conversationID uuid.UUID, content, contentType string) (*models.MessageWithSender, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidInput
	}
	if contentType == "" {
		contentType = models.ContentText
	}
	if contentType != models.ContentText && contentType != models.ContentImage {
		return nil, ErrInvalidInput
	}

	ok, err := s.access.CanAccessConversation(ctx, principal, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if conv.Status == models.StatusArchived {
		return nil, ErrArchived
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderType:     models.SenderAgent,
		SenderID:       principal.ID,
		Content:        content,
		ContentType:    contentType,
	}
	if err := s.msgRepo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	out := &models.MessageWithSender{Message: *msg, SenderName: principal.Name}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(conversationID.String(), realtime.EventNewMessage, out)
	}
	if s.scheduler != nil {
		s.scheduler.Schedule(conversationID)
	}

	return out, nil
}
