package worklife

import (
	"context"
	"time"

	"github.com/hfs/afd-sub000/internal/protocol"
	"github.com/hfs/afd-sub000/internal/qb"
	"github.com/hfs/afd-sub000/internal/statusarea"
)

// Outcome is what happened when the scheduler offered a QB entry to
// StartProcess (§4.3).
type Outcome int

const (
	OutcomeStarted Outcome = iota
	OutcomeRemovedAgeExpired
	OutcomeNotEligible
	OutcomeNoFreeSlot
	OutcomeForkFailed
)

// SpoolRemover deletes a push job's spool directory, logging to the
// delete log (§4.3 step 1, §4.8). The real implementation lives
// outside this package (it touches the filesystem layout under
// AFD_FILE_DIR); tests supply a fake.
type SpoolRemover interface {
	RemoveJobFiles(msgName string, fsaPos int, jobID uint32, reason string) error
}

// AgeOutput is the delete-log reason used for age-limit expiry.
const AgeOutput = "AGE_OUTPUT"

// target bundles the fields StartProcess needs once it has resolved
// which host and protocol a QB entry is bound to, whether it came from
// MDB (push) or FRA (pull).
type target struct {
	fsaPos   int
	variant  protocol.Variant
	name     string // msg_name (push) or dir_alias (pull)
	ageLimit int64
	jobID    uint32
}

// FSAPosOf returns the host status array index a queue entry is bound
// to, resolving through MDB (push) or FRA (pull) as StartProcess does.
// Exposed for periodic maintenance's jobs_queued sanity check.
func (m *Manager) FSAPosOf(e qb.Entry) int {
	return m.resolveTarget(e).fsaPos
}

func (m *Manager) resolveTarget(e qb.Entry) target {
	if e.MsgName != "" {
		md := m.MDB.Get(e.Pos)
		return target{fsaPos: md.FSAPos, variant: md.Protocol, name: e.MsgName, ageLimit: md.AgeLimit, jobID: uint32(md.JobID)}
	}
	dir := m.FRA.Get(e.Pos)
	return target{fsaPos: int(dir.FSAPos), variant: protocol.Variant(dir.Protocol), name: dir.DirAlias}
}

// StartProcess implements §4.3's eligibility checks and worker
// dispatch for the PENDING entry at qbPos. It mutates qbuf, the
// connection table, and FSA counters in place, and returns the
// terminal Outcome.
func (m *Manager) StartProcess(ctx context.Context, qbuf *qb.Buffer, qbPos int, now time.Time, retryFlag bool, remover SpoolRemover) Outcome {
	entry := qbuf.At(qbPos)
	tgt := m.resolveTarget(entry)

	// Step 1: push-side age-limit expiry.
	if entry.MsgName != "" && tgt.ageLimit > 0 && now.Unix() > entry.CreationTime &&
		now.Unix()-entry.CreationTime > tgt.ageLimit {
		if remover != nil {
			_ = remover.RemoveJobFiles(entry.MsgName, tgt.fsaPos, tgt.jobID, AgeOutput)
		}
		host := m.FSA.Get(tgt.fsaPos)
		if host.JobsQueued > 0 {
			host.JobsQueued--
		}
		m.FSA.Set(tgt.fsaPos, host)
		qbuf.RemoveAt(qbPos)
		return OutcomeRemovedAgeExpired
	}

	host := m.FSA.Get(tgt.fsaPos)

	// Step 2: host must not be stopped, nor locked by the error
	// directory's backpressure (§5 AUTO_PAUSE_QUEUE_LOCK_STAT).
	if host.HostStatus&(statusarea.StopTransferStat|statusarea.AutoPauseQueueLockStat) != 0 {
		return OutcomeNotEligible
	}

	// Step 3: error gating.
	eligible := host.ErrorCounter == 0 || retryFlag ||
		(host.ActiveTransfers == 0 && now.Unix() >= host.LastRetryTime+int64(host.RetryInterval))
	if !eligible {
		return OutcomeNotEligible
	}

	// Step 4: global + per-host concurrency caps.
	if int(m.Status.NoOfTransfers()) >= m.MaxConnections {
		return OutcomeNotEligible
	}
	if host.ActiveTransfers >= host.AllowedTransfers {
		return OutcomeNotEligible
	}

	// Step 5: acquire a free connection slot and job subindex.
	connPos, err := m.Conn.Acquire()
	if err != nil {
		m.Hub.SystemError(err, "Failed to get free connection.")
		return OutcomeNoFreeSlot
	}
	jobNo, err := m.Conn.FreeJobNo(tgt.fsaPos, int(host.AllowedTransfers))
	if err != nil {
		m.Conn.Release(connPos)
		m.Hub.SystemError(err, "Failed to get free job subindex for host <%s>.", host.HostAlias)
		return OutcomeNoFreeSlot
	}

	slot := m.Conn.Get(connPos)
	slot.InUse = true
	slot.HostAlias = host.HostAlias
	slot.FSAPos = tgt.fsaPos
	slot.Protocol = tgt.variant
	slot.JobNo = jobNo
	slot.Resend = entry.Flags&qb.ResendJob != 0
	slot.TempToggle = false
	if entry.MsgName == "" {
		slot.FRAPos = entry.Pos
		slot.MsgName = ""
		slot.DirAlias = tgt.name
	} else {
		slot.FRAPos = -1
		slot.MsgName = entry.MsgName
		slot.DirAlias = ""
	}

	// Step 6: auto-toggle.
	if host.ErrorCounter == 0 && host.AutoToggle &&
		host.OriginalTogglePos != statusarea.NoTogglePos && host.MaxSuccessfulRetries > 0 {
		switch {
		case host.OriginalTogglePos == host.TogglePos && host.SuccessfulRetries > 0:
			host.OriginalTogglePos = statusarea.NoTogglePos
			host.SuccessfulRetries = 0
		case host.SuccessfulRetries >= host.MaxSuccessfulRetries:
			slot.TempToggle = true
			host.SuccessfulRetries = 0
		default:
			host.SuccessfulRetries++
		}
	}

	// Step 7: recompute trl_per_process if rate limiting is active.
	if host.TransferRateLimit > 0 {
		m.limiterFor(tgt.fsaPos).Recalc(host.TransferRateLimit, int(host.ActiveTransfers)+1)
	}

	// Step 8: fork the worker.
	program := tgt.variant.PushProgram()
	if entry.MsgName == "" {
		program = tgt.variant.PullProgram()
	}
	req := SpawnRequest{
		Program:     program,
		WorkDir:     m.WorkDir,
		JobSubindex: jobNo,
		FSAID:       host.HostAlias,
		FSAPos:      tgt.fsaPos,
		Target:      tgt.name,
		Resend:      slot.Resend,
		TempToggle:  slot.TempToggle,
		AgeLimit:    tgt.ageLimit,
		RetryCount:  entry.Retries,
	}
	handle, err := m.Spawner.Start(ctx, req)
	if err != nil {
		m.Conn.Release(connPos)
		m.Hub.SystemError(err, "Failed to fork process for host <%s>.", host.HostAlias)
		return OutcomeForkFailed
	}

	pid := handle.PID()
	m.Handles[pid] = handle
	slot.PID = pid
	m.Conn.Set(connPos, slot)

	entry.PID = qb.PID(pid)
	entry.ConnectPos = connPos
	qbuf.Set(qbPos, entry)

	host.ActiveTransfers++
	if host.JobsQueued > 0 {
		host.JobsQueued--
	}
	m.FSA.Set(tgt.fsaPos, host)
	m.Status.IncTransfers()
	m.Status.IncForks()

	return OutcomeStarted
}
