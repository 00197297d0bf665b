package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/core/analysis"
	"github.com/primaruang/realty-crm-be/internal/models"
	"github.com/primaruang/realty-crm-be/internal/repositories"
)

// AnalysisStore adapts the repositories to the pipeline's persistence needs.
type AnalysisStore struct {
	convRepo repositories.ConversationRepo
	msgRepo  repositories.MessageRepo
}

func NewAnalysisStore(convRepo repositories.ConversationRepo, msgRepo repositories.MessageRepo) *AnalysisStore {
	return &AnalysisStore{convRepo: convRepo, msgRepo: msgRepo}
}

func (s *AnalysisStore) Transcript(ctx context.Context, conversationID uuid.UUID) ([]models.TranscriptEntry, error) {
	return s.msgRepo.Transcript(ctx, conversationID)
}

func (s *AnalysisStore) SaveResult(ctx context.Context, conversationID uuid.UUID, result *analysis.Result) error {
	return s.convRepo.UpdateAnalysis(ctx, conversationID, result.Summary, result.Priority, result.Tags)
}
