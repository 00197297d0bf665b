package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/primaruang/realty-crm-be/internal/repositories"
	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

const sweepTimeout = 2 * time.Minute

// backfillBatch caps how many un-analyzed conversations a single sweep can
// enqueue, so a cold start does not flood the pipeline.
const backfillBatch = 100

// Scheduler is where the sweeper hands conversations needing analysis.
type Scheduler interface {
	Schedule(conversationID uuid.UUID)
}

// Sweeper is the nightly housekeeping job: archive conversations idle past
// the retention window and enqueue analysis for active ones that never got a
// summary (e.g. after downtime).
type Sweeper struct {
	cron      *cron.Cron
	convRepo  repositories.ConversationRepo
	scheduler Scheduler

	archiveAfter time.Duration
}

func NewSweeper(convRepo repositories.ConversationRepo, scheduler Scheduler, archiveAfter time.Duration) *Sweeper {
	return &Sweeper{
		cron:         cron.New(cron.WithSeconds()),
		convRepo:     convRepo,
		scheduler:    scheduler,
		archiveAfter: archiveAfter,
	}
}

// Start registers the sweep on the given cron schedule and starts the runner.
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	s.cron.Start()
	utils.LogInfo("maintenance sweeper started", map[string]interface{}{
		"schedule": schedule,
	})
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	utils.LogInfo("maintenance sweeper stopped", nil)
}

// Sweep runs one housekeeping pass. Also callable directly, e.g. from tests
// or an admin endpoint.
func (s *Sweeper) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	cutoff := time.Now().Add(-s.archiveAfter)
	archived, err := s.convRepo.ArchiveIdleBefore(ctx, cutoff)
	if err != nil {
		utils.LogError("sweep: archive idle conversations", err, nil)
	} else if archived > 0 {
		utils.LogInfo("sweep: archived idle conversations", map[string]interface{}{
			"count":  archived,
			"cutoff": cutoff.Format(time.RFC3339),
		})
	}

	ids, err := s.convRepo.MissingAnalysis(ctx, backfillBatch)
	if err != nil {
		utils.LogError("sweep: list conversations missing analysis", err, nil)
		return
	}

	for _, id := range ids {
		s.scheduler.Schedule(id)
	}
	if len(ids) > 0 {
		utils.LogInfo("sweep: enqueued analysis backfill", map[string]interface{}{
			"count": len(ids),
		})
	}
}
