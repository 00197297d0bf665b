package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/repositories"
)

// Principal is the authenticated caller: an agent or an admin. The zero value
// is unauthenticated and never authorized for anything.
type Principal struct {
	ID   uuid.UUID
	Name string
	Role string
}

// AccessPolicy decides whether a principal may see a conversation's events
// and messages. Admins see everything; agents only conversations assigned to
// them. One point read per check.
type AccessPolicy struct {
	convRepo repositories.ConversationRepo
}

func NewAccessPolicy(convRepo repositories.ConversationRepo) *AccessPolicy {
	return &AccessPolicy{convRepo: convRepo}
}

func (p *AccessPolicy) CanAccessConversation(ctx context.Context, principal Principal, conversationID uuid.UUID) (bool, error) {
	if principal.ID == uuid.Nil {
		return false, nil
	}

	if principal.Role == models.RoleAdmin {
		return true, nil
	}

	if principal.Role != models.RoleAgent {
		return false, nil
	}

	conv, err := p.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	return conv.AssignedAgentID != nil && *conv.AssignedAgentID == principal.ID, nil
}
