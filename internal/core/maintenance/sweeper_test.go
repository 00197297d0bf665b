package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/repositories"
)

type stubConvRepo struct {
	repositories.ConversationRepo

	archivedCutoff time.Time
	archived       int64
	missing        []uuid.UUID
}

func (r *stubConvRepo) ArchiveIdleBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.archivedCutoff = cutoff
	return r.archived, nil
}

func (r *stubConvRepo) MissingAnalysis(_ context.Context, limit int) ([]uuid.UUID, error) {
	if len(r.missing) > limit {
		return r.missing[:limit], nil
	}
	return r.missing, nil
}

type recordingScheduler struct {
	scheduled []uuid.UUID
}

func (s *recordingScheduler) Schedule(conversationID uuid.UUID) {
	s.scheduled = append(s.scheduled, conversationID)
}

func TestSweepArchivesAndBackfills(t *testing.T) {
	missing := []uuid.UUID{uuid.New(), uuid.New()}
	repo := &stubConvRepo{archived: 3, missing: missing}
	scheduler := &recordingScheduler{}
	sweeper := NewSweeper(repo, scheduler, 30*24*time.Hour)

	before := time.Now()
	sweeper.Sweep()

	wantCutoff := before.Add(-30 * 24 * time.Hour)
	if repo.archivedCutoff.Before(wantCutoff.Add(-time.Minute)) || repo.archivedCutoff.After(wantCutoff.Add(time.Minute)) {
		t.Fatalf("unexpected archive cutoff: %s", repo.archivedCutoff)
	}

	if len(scheduler.scheduled) != len(missing) {
		t.Fatalf("expected %d backfill runs, got %d", len(missing), len(scheduler.scheduled))
	}
	for i, id := range missing {
		if scheduler.scheduled[i] != id {
			t.Fatalf("expected %s scheduled, got %s", id, scheduler.scheduled[i])
		}
	}
}

func TestSweepWithNothingToDo(t *testing.T) {
	repo := &stubConvRepo{}
	scheduler := &recordingScheduler{}
	sweeper := NewSweeper(repo, scheduler, 30*24*time.Hour)

	sweeper.Sweep()

	if len(scheduler.scheduled) != 0 {
		t.Fatalf("expected no backfill, got %d", len(scheduler.scheduled))
	}
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	sweeper := NewSweeper(&stubConvRepo{}, &recordingScheduler{}, time.Hour)
	if err := sweeper.Start("not a cron expression"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
