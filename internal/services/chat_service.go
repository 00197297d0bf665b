package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/core/realtime"
	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/repositories"
	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

// StartChatInput is what the public widget submits to open a conversation.
type StartChatInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	ProjectInterest string `json:"project_interest"`
	Message         string `json:"message"`
	Metadata        []byte `json:"-"`
}

// StartChatResult is returned to the widget: the token is its only credential
// for the rest of the session.
type StartChatResult struct {
	ConversationID string `json:"conversation_id"`
	ChatToken      string `json:"chat_token"`
}

// ChatService is the unauthenticated public-chat surface. Everything is keyed
// by the conversation's chat token instead of a user session.
type ChatService struct {
	convRepo    repositories.ConversationRepo
	msgRepo     repositories.MessageRepo
	leadRepo    repositories.LeadRepo
	broadcaster realtime.Broadcaster
	scheduler   AnalysisScheduler
}

func NewChatService(
	convRepo repositories.ConversationRepo,
	msgRepo repositories.MessageRepo,
	leadRepo repositories.LeadRepo,
	broadcaster realtime.Broadcaster,
	scheduler AnalysisScheduler,
) *ChatService {
	return &ChatService{
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		leadRepo:    leadRepo,
		broadcaster: broadcaster,
		scheduler:   scheduler,
	}
}

// Start creates the lead, the conversation and its first message, then arms
// the first analysis run.
func (s *ChatService) Start(ctx context.Context, input StartChatInput) (*StartChatResult, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Message = strings.TrimSpace(input.Message)
	if input.Name == "" || input.Message == "" {
		return nil, ErrInvalidInput
	}

	lead := &models.Lead{
		Name:   input.Name,
		Source: "public_chat",
	}
	if input.Email != "" {
		lead.Email = &input.Email
	}
	if input.Phone != "" {
		lead.Phone = &input.Phone
	}
	if input.ProjectInterest != "" {
		lead.ProjectInterest = &input.ProjectInterest
	}
	if len(input.Metadata) > 0 {
		lead.Metadata = datatypes.JSON(input.Metadata)
	}

	chatToken := uuid.NewString()
	conv, _, err := s.convRepo.StartChat(ctx, lead, chatToken, input.Message)
	if err != nil {
		return nil, err
	}

	if s.scheduler != nil {
		s.scheduler.Schedule(conv.ID)
	}

	utils.LogInfo("public chat started", map[string]interface{}{
		"conversation_id": conv.ID.String(),
		"lead_id":         lead.ID.String(),
	})

	return &StartChatResult{
		ConversationID: conv.ID.String(),
		ChatToken:      chatToken,
	}, nil
}

// Resolve maps a chat token to its conversation. Used by the message
// endpoints and the public websocket handshake.
func (s *ChatService) Resolve(ctx context.Context, chatToken string) (*models.Conversation, error) {
	if chatToken == "" {
		return nil, ErrUnauthorized
	}

	conv, err := s.convRepo.FindByChatToken(ctx, chatToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return conv, nil
}

// SendMessage persists a lead message against the token's conversation,
// pushes it to the room and re-arms the analysis timer.
func (s *ChatService) SendMessage(ctx context.Context, chatToken, content string) (*models.MessageWithSender, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidInput
	}

	conv, err := s.Resolve(ctx, chatToken)
	if err != nil {
		return nil, err
	}
	if conv.Status == models.StatusArchived {
		return nil, ErrArchived
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderType:     models.SenderLead,
		SenderID:       conv.LeadID,
		Content:        content,
		ContentType:    models.ContentText,
	}
	if err := s.msgRepo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	senderName, err := s.msgRepo.SenderName(ctx, models.SenderLead, conv.LeadID)
	if err != nil {
		senderName = "Unknown"
	}

	out := &models.MessageWithSender{Message: *msg, SenderName: senderName}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(conv.ID.String(), realtime.EventNewMessage, out)
	}
	if s.scheduler != nil {
		s.scheduler.Schedule(conv.ID)
	}

	return out, nil
}

// Messages returns the token's conversation history for the widget.
func (s *ChatService) Messages(ctx context.Context, chatToken string, limit, offset int) ([]models.MessageWithSender, int, error) {
	conv, err := s.Resolve(ctx, chatToken)
	if err != nil {
		return nil, 0, err
	}

	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return s.msgRepo.ListByConversation(ctx, conv.ID, limit, offset)
}
