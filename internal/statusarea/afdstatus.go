package statusarea

import "sync/atomic"

// AFDStatus is the daemon status area (§3): transfer counters and the
// handful of scalars the scheduler and UI both need. Unlike FSA/FRA it
// is small and entirely process-local counters, so it is kept as a
// plain in-memory struct with atomics rather than mmap'd — nothing in
// this rewrite's scope needs it to survive a crash.
type AFDStatus struct {
	noOfTransfers    int64
	jobsQueuedTotal  int64
	amgJobs          int64
	maxQueueLength   int64
	burst2Counter    int64
	forkCounter      int64
	fdOn             int32
}

// NewAFDStatus creates a status area with FD marked on.
func NewAFDStatus(maxQueueLength int64) *AFDStatus {
	s := &AFDStatus{maxQueueLength: maxQueueLength}
	atomic.StoreInt32(&s.fdOn, 1)
	return s
}

// NoOfTransfers returns the count of live worker processes, i.e. "count
// of QB entries with pid>0" (§8 invariant 3).
func (s *AFDStatus) NoOfTransfers() int64 { return atomic.LoadInt64(&s.noOfTransfers) }

// IncTransfers / DecTransfers adjust the live transfer counter.
func (s *AFDStatus) IncTransfers() { atomic.AddInt64(&s.noOfTransfers, 1) }
func (s *AFDStatus) DecTransfers() { atomic.AddInt64(&s.noOfTransfers, -1) }

// MaxQueueLength returns the configured max_queue_length.
func (s *AFDStatus) MaxQueueLength() int64 { return s.maxQueueLength }

// IncBurst2 bumps burst2_counter (§4.6).
func (s *AFDStatus) IncBurst2() { atomic.AddInt64(&s.burst2Counter, 1) }

// Burst2Counter returns the burst chain counter.
func (s *AFDStatus) Burst2Counter() int64 { return atomic.LoadInt64(&s.burst2Counter) }

// IncForks bumps the fork counter.
func (s *AFDStatus) IncForks() { atomic.AddInt64(&s.forkCounter, 1) }

// ForkCounter returns the cumulative number of workers forked.
func (s *AFDStatus) ForkCounter() int64 { return atomic.LoadInt64(&s.forkCounter) }

// SetFDOff flips the daemon status to off, e.g. on SIGSEGV/SIGBUS
// (§7) before the shutdown sequencer runs.
func (s *AFDStatus) SetFDOff() { atomic.StoreInt32(&s.fdOn, 0) }

// IsFDOn reports whether the daemon status is currently on.
func (s *AFDStatus) IsFDOn() bool { return atomic.LoadInt32(&s.fdOn) == 1 }
