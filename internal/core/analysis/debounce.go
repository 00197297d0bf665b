package analysis

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

// Scheduler coalesces bursts of activity on a conversation into one pipeline
// run per quiet period. Each Schedule call re-arms the conversation's timer;
// only the last call within the window determines when the run fires.
//
// The pending set is capped. Past the cap the oldest entries are force-fired
// immediately (insertion order, re-arming keeps an entry's position) so a
// burst of distinct conversations cannot grow the map without bound.
type Scheduler struct {
	delay      time.Duration
	maxPending int
	run        func(conversationID uuid.UUID) error

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingEntry
	seq     uint64
	stopped bool
}

type pendingEntry struct {
	timer *time.Timer
	seq   uint64
	// gen invalidates a timer callback that lost the race against a re-arm.
	gen uint64
}

func NewScheduler(delay time.Duration, maxPending int, run func(conversationID uuid.UUID) error) *Scheduler {
	if maxPending <= 0 {
		maxPending = 5000
	}
	return &Scheduler{
		delay:      delay,
		maxPending: maxPending,
		run:        run,
		pending:    make(map[uuid.UUID]*pendingEntry),
	}
}

// Schedule (re)arms the single pending run for a conversation.
func (s *Scheduler) Schedule(conversationID uuid.UUID) {
	s.mu.Lock()

	if s.stopped {
		s.mu.Unlock()
		return
	}

	if entry, ok := s.pending[conversationID]; ok {
		entry.timer.Stop()
		entry.gen++
		gen := entry.gen
		entry.timer = time.AfterFunc(s.delay, func() { s.fired(conversationID, gen) })
		s.mu.Unlock()
		return
	}

	s.seq++
	entry := &pendingEntry{seq: s.seq}
	entry.timer = time.AfterFunc(s.delay, func() { s.fired(conversationID, 0) })
	s.pending[conversationID] = entry

	var evicted []uuid.UUID
	for len(s.pending) > s.maxPending {
		id, ok := s.oldestLocked()
		if !ok {
			break
		}
		s.pending[id].timer.Stop()
		delete(s.pending, id)
		evicted = append(evicted, id)
	}
	s.mu.Unlock()

	for _, id := range evicted {
		utils.LogWarn("debounce cap exceeded, forcing analysis", map[string]interface{}{
			"conversation_id": id.String(),
		})
		go s.invoke(id)
	}
}

// Pending reports the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending timer. Runs already started are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, entry := range s.pending {
		entry.timer.Stop()
		delete(s.pending, id)
	}
}

func (s *Scheduler) fired(conversationID uuid.UUID, gen uint64) {
	s.mu.Lock()
	entry, ok := s.pending[conversationID]
	if !ok || entry.gen != gen {
		// Re-armed or evicted after this timer was already queued to fire.
		s.mu.Unlock()
		return
	}
	delete(s.pending, conversationID)
	s.mu.Unlock()

	s.invoke(conversationID)
}

func (s *Scheduler) invoke(conversationID uuid.UUID) {
	if err := s.run(conversationID); err != nil {
		utils.LogError("analysis run failed", err, map[string]interface{}{
			"conversation_id": conversationID.String(),
		})
	}
}

func (s *Scheduler) oldestLocked() (uuid.UUID, bool) {
	var oldest uuid.UUID
	var oldestSeq uint64
	found := false
	for id, entry := range s.pending {
		if !found || entry.seq < oldestSeq {
			oldest = id
			oldestSeq = entry.seq
			found = true
		}
	}
	return oldest, found
}
