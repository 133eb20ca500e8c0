// Package retrieve implements the Retrieve Poller (§4.5): on a timer
// it walks the directory status array and enqueues pull-side jobs
// whose schedule has fired.
package retrieve

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hfs/afd-sub000/internal/qb"
	"github.com/hfs/afd-sub000/internal/statusarea"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Poller owns the FRA and QB references needed to evaluate and enqueue
// retrieve jobs.
type Poller struct {
	FRA *statusarea.FRA
	FSA *statusarea.FSA
	QB  *qb.Buffer

	// Enabled mirrors the global "retrieve" toggle; when false the
	// poller still advances next_check_time for every directory so a
	// later re-enable does not cause a flood (§4.5).
	Enabled bool
}

// Result reports what one poll pass did, for logging/metrics.
type Result struct {
	Queued int
}

// Poll evaluates every directory's eligibility at now and enqueues
// those whose schedule fired.
func (p *Poller) Poll(now time.Time) Result {
	var res Result
	for pos := 0; pos < p.FRA.Len(); pos++ {
		dir := p.FRA.Get(pos)
		due := p.isDue(dir, now)
		if due {
			dir.NextCheckTime = p.nextCheckTime(dir, now)
		}
		if !due {
			continue
		}
		if !p.Enabled {
			p.FRA.Set(pos, dir)
			continue
		}
		if p.eligible(dir, now) {
			key := float64(dir.Priority-'0') * (float64(now.Unix()) * 10000)
			p.QB.Insert(qb.Entry{
				MsgNumber:    key,
				Pos:          pos,
				CreationTime: now.Unix(),
			})
			dir.Queued = true
			res.Queued++
		}
		p.FRA.Set(pos, dir)
	}
	return res
}

// isDue reports whether dir's schedule should be (re-)evaluated at
// now: either it has no schedule (time_option == NO, evaluated every
// pass) or its cron expression's next fire time has elapsed.
func (p *Poller) isDue(dir statusarea.DirEntry, now time.Time) bool {
	if dir.TimeOption == statusarea.TimeOptionNo {
		return true
	}
	return now.Unix() >= dir.NextCheckTime
}

func (p *Poller) nextCheckTime(dir statusarea.DirEntry, now time.Time) int64 {
	if dir.TimeOption == statusarea.TimeOptionNo || dir.Schedule == "" {
		return dir.NextCheckTime
	}
	sched, err := parser.Parse(dir.Schedule)
	if err != nil {
		return dir.NextCheckTime
	}
	return sched.Next(now).Unix()
}

// eligible implements §4.5's per-directory gating: a configured slot
// (non-empty alias), not already queued, not disabled, and its gateway
// host neither disabled nor stopped.
func (p *Poller) eligible(dir statusarea.DirEntry, now time.Time) bool {
	if dir.DirAlias == "" {
		return false
	}
	if dir.Queued {
		return false
	}
	if dir.DirStatus&statusarea.DirDisabled != 0 {
		return false
	}
	if p.FSA != nil && int(dir.FSAPos) < p.FSA.Len() {
		host := p.FSA.Get(int(dir.FSAPos))
		if host.HostStatus&(statusarea.StopTransferStat|statusarea.AutoPauseQueueStat) != 0 {
			return false
		}
	}
	return true
}
