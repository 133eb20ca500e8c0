// Package qb implements the Queue Buffer (QB): FD's persistent,
// priority-ordered queue of pending/running transfer units (§4.2).
package qb

import (
	"sort"
	"sync"
)

// PID sentinels distinguishing a queue entry's lifecycle state from a
// real child process id (§3, Queue-Buffer Entry).
type PID int64

const (
	// Pending means the entry is eligible to be scheduled.
	Pending PID = 0
	// Removed marks an entry logically deleted; it is filtered out
	// of iteration but may briefly remain in the backing slice.
	Removed PID = -1
)

// SpecialFlags are the per-entry bit flags (§3).
type SpecialFlags uint8

const (
	// ResendJob marks a manually resent job (-r flag, §6).
	ResendJob SpecialFlags = 1 << 0
)

// Entry is one Queue-Buffer record (§3, Queue-Buffer Entry).
type Entry struct {
	MsgName      string // empty ⇒ pull-side retrieve job
	MsgNumber    float64
	PID          PID
	CreationTime int64
	Pos          int // index into MDB (push) or directory table (pull)
	ConnectPos   int // index of owning connection slot, or -1
	Retries      int
	FilesToSend  int64
	BytesToSend  int64
	Flags        SpecialFlags
}

// ComputeKey derives the priority sort key from a priority digit
// ('0'-'9'), creation time, and the unique/split counters (§4.2):
//
//	(priority_char − '0') · (creation_time·10000 + unique_counter + split_counter)
func ComputeKey(priorityChar byte, creationTime int64, unique, split uint32) float64 {
	weight := float64(priorityChar - '0')
	return weight * (float64(creationTime)*10000 + float64(unique) + float64(split))
}

// RetryThreshold and the decay constants used by Decay (§4.2),
// mirroring original_source/src/fd/fd.c.
const (
	RetryThreshold  = 3
	decayFirstBump  = 60000000.0
)

// Buffer is the in-memory QB arena, kept strictly sorted by
// MsgNumber non-decreasing (§8 invariant 1). All mutation happens on
// the single scheduler goroutine; the mutex exists only to let
// read-only accessors (metrics, tests) observe a consistent snapshot.
type Buffer struct {
	mu          sync.RWMutex
	entries     []Entry
	maxThreshold float64
}

// New creates an empty Buffer. maxThreshold caps priority decay (§4.2,
// "Capped at a global max_threshold"); the original sets it to
// now*10000*20 at startup.
func New(maxThreshold float64) *Buffer {
	return &Buffer{maxThreshold: maxThreshold}
}

// Len returns the number of entries (including any not yet
// compacted-out Removed/Pending sentinel rows the caller chose to
// keep; callers that maintain the invariant in §3 should not leave
// Removed rows in the buffer, RemoveAt() excises them immediately).
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// At returns a copy of the entry at position i.
func (b *Buffer) At(i int) Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entries[i]
}

// Set overwrites the entry at position i (e.g. after zombie-check
// reschedules it to Pending, §4.4).
func (b *Buffer) Set(i int, e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[i] = e
}

// Snapshot returns a copy of every entry, for invariant checks and
// the periodic sanity pass.
func (b *Buffer) Snapshot() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Insert adds e in priority order, implementing the four-case
// algorithm of §4.2 (empty / before-head / after-tail / binary
// search), and returns the position it landed at.
func (b *Buffer) Insert(e Entry) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.insertLocked(e)
}

func (b *Buffer) insertLocked(e Entry) int {
	n := len(b.entries)
	switch {
	case n == 0:
		b.entries = append(b.entries, e)
		return 0
	case e.MsgNumber < b.entries[0].MsgNumber:
		b.entries = append(b.entries, Entry{})
		copy(b.entries[1:], b.entries[:n])
		b.entries[0] = e
		return 0
	case e.MsgNumber > b.entries[n-1].MsgNumber:
		b.entries = append(b.entries, e)
		return n
	default:
		// Binary search for the insertion point; Go's sort.Search
		// gives the same O(log N) comparison count the spec calls
		// for, with the slice insert performing the equivalent
		// O(N) memmove.
		idx := sort.Search(n, func(i int) bool {
			return b.entries[i].MsgNumber >= e.MsgNumber
		})
		b.entries = append(b.entries, Entry{})
		copy(b.entries[idx+1:], b.entries[idx:n])
		b.entries[idx] = e
		return idx
	}
}

// RemoveAt deletes the entry at position i, preserving order (§8
// invariant 1 implies this must not leave gaps or break ordering).
func (b *Buffer) RemoveAt(i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries[:i], b.entries[i+1:]...)
}

// Decay bumps the MsgNumber of the entry at position i following an
// auth-ish error (§4.2) and re-sorts it toward the tail in place,
// returning its new position. Entries at or beyond maxThreshold are
// left unchanged, "to prevent overflow-induced reordering failures".
func (b *Buffer) Decay(i int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entries[i]
	if e.MsgName == "" || e.MsgNumber >= b.maxThreshold {
		return i
	}
	if e.Retries < RetryThreshold {
		e.MsgNumber += decayFirstBump
	} else {
		e.MsgNumber += float64(e.CreationTime) * 10000 * float64(e.Retries-RetryThreshold-1)
	}
	j := i + 1
	for j < len(b.entries) && e.MsgNumber > b.entries[j].MsgNumber {
		j++
	}
	if j > i+1 {
		copy(b.entries[i:j-1], b.entries[i+1:j])
		b.entries[j-1] = e
		return j - 1
	}
	b.entries[i] = e
	return i
}

// FindByPID locates the entry currently bound to pid (a live worker's
// process id), used by zombie-check to map a reaped child back to its
// queue slot (§4.4).
func (b *Buffer) FindByPID(pid PID) (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i, e := range b.entries {
		if e.PID == pid {
			return i, true
		}
	}
	return -1, false
}

// IsSorted reports whether the buffer is currently sorted
// non-decreasingly by MsgNumber (§8 invariant 1) — used by tests.
func (b *Buffer) IsSorted() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for i := 1; i < len(b.entries); i++ {
		if b.entries[i].MsgNumber < b.entries[i-1].MsgNumber {
			return false
		}
	}
	return true
}
