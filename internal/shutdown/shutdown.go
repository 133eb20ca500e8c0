// Package shutdown implements the Shutdown Sequencer (§4.9): a
// two-phase termination that tries SIGINT with a bounded wait before
// escalating to SIGKILL, then detaches the external shared state.
package shutdown

import (
	"time"

	"github.com/hfs/afd-sub000/internal/conntab"
	"github.com/hfs/afd-sub000/internal/logging"
	"github.com/hfs/afd-sub000/internal/qb"
	"github.com/hfs/afd-sub000/internal/statusarea"
	"github.com/hfs/afd-sub000/internal/store"
	"github.com/hfs/afd-sub000/internal/worklife"
	"github.com/hfs/afd-sub000/internal/xferstatus"
)

// MaxPoliteWaits is the number of 1-second waitpid(WNOHANG) passes
// phase 1 allows before escalating to SIGKILL (§4.9: "repeat up to 15
// times").
const MaxPoliteWaits = 15

// Sequencer owns every handle the two-phase shutdown needs to touch.
type Sequencer struct {
	Conn   *conntab.Table
	QB     *qb.Buffer
	Work   *worklife.Manager
	Status *statusarea.AFDStatus
	FSA    *statusarea.FSA
	FRA    *statusarea.FRA
	Store  *store.Store
	Hub    *logging.Hub

	// Sleep is overridable by tests to avoid real 1-second waits.
	Sleep func(time.Duration)
}

// Run executes both shutdown phases and detaches the persistent and
// shared-memory backing files, returning once no_of_transfers == 0 or
// the worst case of MaxPoliteWaits elapses and every straggler has
// been force-killed.
func (s *Sequencer) Run(now time.Time) {
	sleep := s.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	s.Conn.ForEachInUse(func(pos int, slot conntab.Slot) {
		if handle, ok := s.Work.Handles[slot.PID]; ok {
			_ = handle.Signal(worklife.SigInt)
		}
	})

	for i := 0; i < MaxPoliteWaits && s.Status.NoOfTransfers() > 0; i++ {
		sleep(time.Second)
		s.reapAvailable(now)
	}

	s.Conn.ForEachInUse(func(pos int, slot conntab.Slot) {
		handle, ok := s.Work.Handles[slot.PID]
		if !ok {
			return
		}
		_ = handle.Signal(worklife.SigKill)
		if _, err := handle.Wait(); err != nil {
			return
		}
		// A worker FD itself killed is reaped via the GOT_KILLED
		// disposition regardless of the raw wait status (§5
		// "Cancellation semantics"), not as an abnormal-termination
		// failure — FD caused the exit, the host isn't at fault.
		s.Work.ZombieCheck(s.QB, worklife.Reaped{PID: slot.PID, Result: worklife.ExitResult{Code: int(xferstatus.GotKilled)}}, now)
	})

	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			s.Hub.SystemError(err, "Failed to close persistent store during shutdown.")
		}
	}
	if s.FSA != nil {
		if err := s.FSA.Detach(); err != nil {
			s.Hub.SystemError(err, "Failed to detach FSA during shutdown.")
		}
	}
	if s.FRA != nil {
		if err := s.FRA.Detach(); err != nil {
			s.Hub.SystemError(err, "Failed to detach FRA during shutdown.")
		}
	}
}

func (s *Sequencer) reapAvailable(now time.Time) {
	for pid, handle := range s.Work.Handles {
		result, done, err := handle.TryWait()
		if err != nil || !done {
			continue
		}
		s.Work.ZombieCheck(s.QB, worklife.Reaped{PID: pid, Result: result}, now)
	}
}
