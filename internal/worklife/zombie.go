package worklife

import (
	"time"

	"github.com/hfs/afd-sub000/internal/qb"
	"github.com/hfs/afd-sub000/internal/statusarea"
	"github.com/hfs/afd-sub000/internal/xferstatus"
)

// Reaped is what the caller (the 45s sweep, or the fin-FIFO reader)
// observed about a worker that has exited.
type Reaped struct {
	PID    int
	Result ExitResult
}

// ZombieCheck implements §4.4: it maps a reaped worker back to its
// queue and connection slots, classifies the exit via
// internal/xferstatus, updates host error bookkeeping, and either
// drops the queue entry or reschedules it to Pending. It reports
// whether a matching live entry was found at all.
func (m *Manager) ZombieCheck(qbuf *qb.Buffer, r Reaped, now time.Time) bool {
	qbPos, ok := qbuf.FindByPID(qb.PID(r.PID))
	if !ok {
		return false
	}
	entry := qbuf.At(qbPos)
	connPos := entry.ConnectPos
	slot := m.Conn.Get(connPos)
	host := m.FSA.Get(slot.FSAPos)

	disp := xferstatus.Classify(xferstatus.Code(r.Result.Code), r.Result.Signaled)

	if host.ActiveTransfers > 0 {
		host.ActiveTransfers--
	}

	code := xferstatus.Code(r.Result.Code)
	if !r.Result.Signaled && (code == xferstatus.TransferSuccess || code == xferstatus.StillFilesToSend) {
		// Shared success-path bookkeeping for TRANSFER_SUCCESS and
		// STILL_FILES_TO_SEND (§4.4): switch a temp-toggled connection
		// back to its primary host, clear a backpressure lock the
		// error directory had tripped, and reset the error-time clock.
		if host.OriginalTogglePos != statusarea.NoTogglePos &&
			((slot.TempToggle && host.OriginalTogglePos != host.HostToggle) ||
				host.OriginalTogglePos == host.HostToggle) {
			slot.TempToggle = false
			host.SuccessfulRetries = 0
			host.HostToggle = host.OriginalTogglePos
			host.OriginalTogglePos = statusarea.NoTogglePos
			m.Hub.SystemInfo("Switching back to host <%s> after successful transfer.", host.HostAlias)
			m.Conn.Set(connPos, slot)
		}
		if host.HostStatus&statusarea.AutoPauseQueueLockStat != 0 {
			host.HostStatus ^= statusarea.AutoPauseQueueLockStat
			m.Hub.SystemInfo("Started input queue for host <%s>, due to too many jobs in the error directory.", host.HostAlias)
		}
		host.LastConnection = now.Unix()
		host.FirstErrorTime = 0
	}

	switch disp.Faulty {
	case xferstatus.FaultyNo:
		if !disp.QuietDrop {
			host.ErrorCounter = 0
			host.ErrorHistory = [statusarea.ErrorHistoryLength]byte{}
		} else if disp.ClearHistory {
			host.ErrorCounter = 0
			host.ErrorHistory = [statusarea.ErrorHistoryLength]byte{}
			if m.ErrorActionHook != nil {
				m.ErrorActionHook(host.HostAlias, "error_action_done")
			}
		}
		m.FSA.Set(slot.FSAPos, host)
		m.Conn.Release(connPos)
		delete(m.Handles, r.PID)
		qbuf.RemoveAt(qbPos)
		m.Status.DecTransfers()
		return true

	case xferstatus.FaultyNone:
		// Retried without touching error bookkeeping: a self-initiated
		// kill, or the worker reports it still has files queued up
		// (burst continuation picks this entry back up via BurstReady,
		// §4.6, once the running worker itself signals it).
		host.JobsQueued++
		m.FSA.Set(slot.FSAPos, host)
		m.Conn.Release(connPos)
		delete(m.Handles, r.PID)
		entry.PID = qb.Pending
		entry.ConnectPos = -1
		qbuf.Set(qbPos, entry)
		m.Status.DecTransfers()
		return true

	default: // FaultyYes
		statusarea.PushErrorHistory(&host.ErrorHistory, byte(r.Result.Code))
		host.ErrorCounter++
		if host.FirstErrorTime == 0 {
			host.FirstErrorTime = now.Unix()
		}
		host.LastRetryTime = now.Unix()
		host.JobsQueued++
		m.FSA.Set(slot.FSAPos, host)
		m.Conn.Release(connPos)
		delete(m.Handles, r.PID)

		entry.PID = qb.Pending
		entry.ConnectPos = -1
		entry.Retries++
		qbuf.Set(qbPos, entry)
		if disp.Decay {
			qbuf.Decay(qbPos)
		}
		m.Status.DecTransfers()
		return true
	}
}
