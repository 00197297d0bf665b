package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/core/realtime"
	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/repositories"
	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

// ClaimedEvent is pushed to the conversation room after a successful claim.
type ClaimedEvent struct {
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
	AgentName      string `json:"agent_name"`
}

type ConversationService struct {
	convRepo    repositories.ConversationRepo
	msgRepo     repositories.MessageRepo
	access      *AccessPolicy
	broadcaster realtime.Broadcaster
}

func NewConversationService(
	convRepo repositories.ConversationRepo,
	msgRepo repositories.MessageRepo,
	access *AccessPolicy,
	broadcaster realtime.Broadcaster,
) *ConversationService {
	return &ConversationService{
		convRepo:    convRepo,
		msgRepo:     msgRepo,
		access:      access,
		broadcaster: broadcaster,
	}
}

// List returns the inbox. Agents are always scoped to their own conversations;
// admins see everything unless they filter by agent themselves.
func (s *ConversationService) List(ctx context.Context, principal Principal, filter repositories.ConversationFilter) ([]models.ConversationWithLead, int, error) {
	if principal.Role != models.RoleAdmin {
		filter.AgentID = &principal.ID
	}

	if filter.Status == "" {
		filter.Status = models.StatusActive
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	return s.convRepo.List(ctx, filter)
}

func (s *ConversationService) Get(ctx context.Context, principal Principal, id uuid.UUID) (*models.ConversationWithLead, error) {
	ok, err := s.access.CanAccessConversation(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	conv, err := s.convRepo.FindWithLead(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

// Claim assigns an unclaimed conversation to the calling agent. The database
// update is conditional, so out of two racing agents exactly one wins; the
// loser gets ErrConflict.
func (s *ConversationService) Claim(ctx context.Context, principal Principal, id uuid.UUID) (*models.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if conv.AssignedAgentID != nil {
		return nil, ErrConflict
	}

	won, err := s.convRepo.Claim(ctx, id, principal.ID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrConflict
	}

	conv.AssignedAgentID = &principal.ID

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(id.String(), realtime.EventConversationClaimed, ClaimedEvent{
			ConversationID: id.String(),
			AgentID:        principal.ID.String(),
			AgentName:      principal.Name,
		})
	}

	utils.LogInfo("conversation claimed", map[string]interface{}{
		"conversation_id": id.String(),
		"agent_id":        principal.ID.String(),
	})

	return conv, nil
}

func (s *ConversationService) SetStatus(ctx context.Context, principal Principal, id uuid.UUID, status string) error {
	if status != models.StatusActive && status != models.StatusArchived {
		return ErrInvalidInput
	}

	ok, err := s.access.CanAccessConversation(ctx, principal, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	return s.convRepo.SetStatus(ctx, id, status)
}

// MarkRead flips the conversation read and clears the lead's unread messages.
func (s *ConversationService) MarkRead(ctx context.Context, principal Principal, id uuid.UUID) error {
	ok, err := s.access.CanAccessConversation(ctx, principal, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}

	if err := s.convRepo.SetRead(ctx, id, true); err != nil {
		return err
	}
	return s.msgRepo.MarkConversationRead(ctx, id, models.SenderAgent)
}
