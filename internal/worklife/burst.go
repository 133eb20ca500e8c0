package worklife

import (
	"github.com/hfs/afd-sub000/internal/conntab"
	"github.com/hfs/afd-sub000/internal/qb"
)

// BurstReady implements the fin-FIFO's negative-pid signal (§4.6,
// §4.10): a worker announcing it is ready for another job without
// exiting. It looks up the live entry bound to pid and attempts to
// chain it into a successor; if no PENDING entry matches, the worker
// is left running as-is (it is expected to exit on its own once its
// continuation sentinel tells it no more work is coming).
func (m *Manager) BurstReady(qbuf *qb.Buffer, pid int) bool {
	qbPos, ok := qbuf.FindByPID(qb.PID(pid))
	if !ok {
		return false
	}
	entry := qbuf.At(qbPos)
	connPos := entry.ConnectPos
	slot := m.Conn.Get(connPos)
	handle, ok := m.Handles[pid]
	if !ok {
		return false
	}
	return m.tryBurst(qbuf, qbPos, connPos, slot, handle)
}

// tryBurst implements §4.6: when a worker just finished one job on a
// connection and is still alive, look for another PENDING entry bound
// to the same host and protocol and hand it the same connection
// instead of reaping the worker and forking a new one. Returns true if
// it found and reassigned a continuation job, in which case the
// finished entry has already been removed from qbuf.
func (m *Manager) tryBurst(qbuf *qb.Buffer, finishedPos, connPos int, slot conntab.Slot, handle ProcessHandle) bool {
	if handle == nil {
		return false
	}
	n := qbuf.Len()
	nextPos := -1
	for i := 0; i < n; i++ {
		if i == finishedPos {
			continue
		}
		e := qbuf.At(i)
		if e.PID != qb.Pending {
			continue
		}
		tgt := m.resolveTarget(e)
		if tgt.fsaPos == slot.FSAPos && tgt.variant == slot.Protocol {
			nextPos = i
			break
		}
	}
	if nextPos == -1 {
		return false
	}

	next := qbuf.At(nextPos)
	next.PID = qb.PID(slot.PID)
	next.ConnectPos = connPos
	qbuf.Set(nextPos, next)

	if next.MsgName == "" {
		dir := m.FRA.Get(next.Pos)
		slot.FRAPos = next.Pos
		slot.MsgName = ""
		slot.DirAlias = dir.DirAlias
	} else {
		slot.FRAPos = -1
		slot.MsgName = next.MsgName
		slot.DirAlias = ""
	}
	m.Conn.Set(connPos, slot)

	qbuf.RemoveAt(finishedPos)

	_ = handle.Signal(SigUsr1)
	m.Status.IncBurst2()
	return true
}
