package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/models"
)

func TestCanAccessConversation(t *testing.T) {
	agentID := uuid.New()
	assigned := activeConversation(&agentID)
	unassigned := activeConversation(nil)
	repo := newStubConvRepo(assigned, unassigned)
	policy := NewAccessPolicy(repo)

	admin := Principal{ID: uuid.New(), Role: models.RoleAdmin}
	owner := Principal{ID: agentID, Role: models.RoleAgent}
	stranger := Principal{ID: uuid.New(), Role: models.RoleAgent}

	cases := []struct {
		name           string
		principal      Principal
		conversationID uuid.UUID
		want           bool
	}{
		{"admin sees any conversation", admin, assigned.ID, true},
		{"admin sees unassigned conversation", admin, unassigned.ID, true},
		{"assigned agent sees own conversation", owner, assigned.ID, true},
		{"other agent denied", stranger, assigned.ID, false},
		{"agent denied on unassigned conversation", owner, unassigned.ID, false},
		{"unknown conversation denied", owner, uuid.New(), false},
		{"unauthenticated principal denied", Principal{}, assigned.ID, false},
		{"unknown role denied", Principal{ID: uuid.New(), Role: "viewer"}, assigned.ID, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := policy.CanAccessConversation(context.Background(), tc.principal, tc.conversationID)
			if err != nil {
				t.Fatalf("CanAccessConversation: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %t, got %t", tc.want, got)
			}
		})
	}
}
