// Package conntab implements the fixed-size Connection Table: one
// slot per in-flight worker, recording everything start_process needs
// to hand off to make_process and everything zombie_check needs to
// release (§3, Connection Slot).
package conntab

import (
	"fmt"
	"sync"

	"github.com/hfs/afd-sub000/internal/protocol"
)

// Slot is one connection-table entry (§3, Connection Slot).
type Slot struct {
	InUse       bool
	HostAlias   string
	FSAPos      int
	FRAPos      int // pull only; -1 for push
	Protocol    protocol.Variant
	JobNo       int // 0..allowed_transfers-1, the per-host job subindex (-1 until assigned)
	PID         int
	TempToggle  bool
	Resend      bool
	MsgName     string
	DirAlias    string
}

// Table is the fixed-size array of connection slots, sized to
// max_connections (§3, "Connection Table: Fixed-size array of worker
// slots").
type Table struct {
	mu    sync.Mutex
	slots []Slot
}

// New creates a Table with capacity for n concurrent workers.
func New(n int) *Table {
	slots := make([]Slot, n)
	for i := range slots {
		slots[i].FRAPos = -1
	}
	return &Table{slots: slots}
}

// ErrNoFreeSlot is returned by Acquire when every slot is in use.
var ErrNoFreeSlot = fmt.Errorf("conntab: no free connection slot")

// Acquire finds a free slot, marks it in use, and returns its index
// (get_free_connection, §4.3 step 5).
func (t *Table) Acquire() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if !t.slots[i].InUse {
			t.slots[i] = Slot{InUse: true, FRAPos: -1, JobNo: -1}
			return i, nil
		}
	}
	return -1, ErrNoFreeSlot
}

// Get returns a copy of the slot at pos.
func (t *Table) Get(pos int) Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[pos]
}

// Set overwrites the slot at pos.
func (t *Table) Set(pos int, s Slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[pos] = s
}

// Release frees the slot at pos, called synchronously by zombie-check
// before the scheduler runs again (§5, ordering guarantee: "no other
// work may steal that worker's connection slot").
func (t *Table) Release(pos int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[pos] = Slot{FRAPos: -1}
}

// Len returns the connection table's capacity (max_connections).
func (t *Table) Len() int {
	return len(t.slots)
}

// InUseCount returns how many slots are currently occupied.
func (t *Table) InUseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.slots {
		if s.InUse {
			n++
		}
	}
	return n
}

// FreeJobNo returns the lowest unused job subindex for a host among
// the slots currently bound to fsaPos (get_free_disp_pos, §4.3 step
// 5), up to allowedTransfers-1.
func (t *Table) FreeJobNo(fsaPos, allowedTransfers int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	used := make([]bool, allowedTransfers)
	for _, s := range t.slots {
		if s.InUse && s.FSAPos == fsaPos && s.JobNo >= 0 && s.JobNo < allowedTransfers {
			used[s.JobNo] = true
		}
	}
	for i, u := range used {
		if !u {
			return i, nil
		}
	}
	return -1, fmt.Errorf("conntab: no free job subindex for host %d", fsaPos)
}

// ForEachInUse calls fn for every occupied slot's index and a copy of
// its contents, e.g. for the shutdown sequencer to enumerate live
// workers.
func (t *Table) ForEachInUse(fn func(pos int, s Slot)) {
	t.mu.Lock()
	snap := make([]Slot, len(t.slots))
	copy(snap, t.slots)
	t.mu.Unlock()
	for i, s := range snap {
		if s.InUse {
			fn(i, s)
		}
	}
}
