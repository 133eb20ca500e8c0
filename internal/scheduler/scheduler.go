// Package scheduler implements the Queue Scheduler (§4.3): it walks
// the Queue Buffer head to tail, offering each PENDING entry to the
// Worker Lifecycle Manager until the global connection cap is hit or
// the queue is exhausted, throttling full scans of a large queue so
// slow hosts cannot starve new work.
package scheduler

import (
	"context"
	"time"

	"github.com/hfs/afd-sub000/internal/qb"
	"github.com/hfs/afd-sub000/internal/statusarea"
	"github.com/hfs/afd-sub000/internal/worklife"
)

// Scheduler drives start_process across the queue on every wake-up.
type Scheduler struct {
	QB      *qb.Buffer
	Work    *worklife.Manager
	Status  *statusarea.AFDStatus
	Remover worklife.SpoolRemover

	// MaxQueuedBeforeChecked and ElapsedLoopsBeforeCheck throttle full
	// scans once the queue grows large (§4.3).
	MaxQueuedBeforeChecked int
	ElapsedLoopsBeforeCheck int

	elapsedLoops int
}

// Result summarizes one scheduling pass, for logging/metrics.
type Result struct {
	Started  int
	Removed  int
	Skipped  bool // true when this pass was throttled away entirely
}

// Run performs one scheduling pass over qbuf starting from the head,
// honoring the global connection cap. retryFlag mirrors the RETRY_FD
// event: when true, start_process's error-counter gate (§4.3 step 3)
// is bypassed for every host.
func (s *Scheduler) Run(ctx context.Context, now time.Time, retryFlag bool) Result {
	n := s.QB.Len()
	if n >= s.MaxQueuedBeforeChecked {
		s.elapsedLoops++
		if s.elapsedLoops < s.ElapsedLoopsBeforeCheck {
			return Result{Skipped: true}
		}
		s.elapsedLoops = 0
	}

	var res Result
	for i := 0; i < s.QB.Len(); i++ {
		if int(s.Status.NoOfTransfers()) >= s.Work.MaxConnections {
			break
		}
		entry := s.QB.At(i)
		if entry.PID != qb.Pending {
			continue
		}
		outcome := s.Work.StartProcess(ctx, s.QB, i, now, retryFlag, s.Remover)
		switch outcome {
		case worklife.OutcomeStarted:
			res.Started++
		case worklife.OutcomeRemovedAgeExpired:
			res.Removed++
			i-- // the entry at i was deleted; re-examine the new occupant
		}
	}
	return res
}
