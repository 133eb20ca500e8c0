// Package maint implements Periodic Maintenance (§2, §4.4): the
// 45-second zombie sweep, the jobs-queued sanity check, log-history
// rotation, and configuration re-read.
package maint

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hfs/afd-sub000/internal/config"
	"github.com/hfs/afd-sub000/internal/logging"
	"github.com/hfs/afd-sub000/internal/qb"
	"github.com/hfs/afd-sub000/internal/statusarea"
	"github.com/hfs/afd-sub000/internal/worklife"
)

// Maintainer runs the periodic sweep described in §2's "Periodic
// Maintenance" component.
type Maintainer struct {
	QB         *qb.Buffer
	FSA        *statusarea.FSA
	Work       *worklife.Manager
	Hub        *logging.Hub
	ConfigPath string
	LogDir     string

	Config config.Config
}

// Report summarizes one maintenance pass.
type Report struct {
	Reaped       int
	JobsQueuedFixed int
	LogFilesPruned  int
	ConfigReloaded  bool
}

// Sweep runs every maintenance concern once: reap any zombies the
// fin-FIFO missed (WNOHANG-equivalent via TryWait), recheck every
// host's jobs_queued counter against the live queue, rotate the
// output log directory, and re-read AFD_CONFIG.
func (m *Maintainer) Sweep(now time.Time) Report {
	var rep Report
	rep.Reaped = m.reapZombies(now)
	rep.JobsQueuedFixed = m.fixJobsQueued()
	rep.LogFilesPruned = m.rotateLogs()
	if cfg, err := config.Load(m.ConfigPath); err == nil {
		m.Config = cfg
		rep.ConfigReloaded = true
	} else {
		m.Hub.SystemError(err, "Failed to re-read configuration from <%s>.", m.ConfigPath)
	}
	return rep
}

// reapZombies polls every live worker handle non-blockingly and feeds
// any that have exited through ZombieCheck, catching completions the
// fin-FIFO reader missed (e.g. a worker that died before it could
// write its completion record).
func (m *Maintainer) reapZombies(now time.Time) int {
	reaped := 0
	for pid, handle := range m.Work.Handles {
		result, done, err := handle.TryWait()
		if err != nil || !done {
			continue
		}
		if m.Work.ZombieCheck(m.QB, worklife.Reaped{PID: pid, Result: result}, now) {
			reaped++
		}
	}
	return reaped
}

// fixJobsQueued recomputes jobs_queued per host directly from the
// queue buffer and corrects any host whose counter has drifted (§8
// invariant 2, and the "periodic sanity check resets any non-zero
// jobs_queued to 0" boundary case when the queue is empty).
func (m *Maintainer) fixJobsQueued() int {
	counts := make(map[int]int32)
	for _, e := range m.QB.Snapshot() {
		if e.PID != qb.Pending || e.MsgName == "" {
			continue
		}
		counts[m.Work.FSAPosOf(e)]++
	}
	fixed := 0
	for pos := 0; pos < m.FSA.Len(); pos++ {
		host := m.FSA.Get(pos)
		want := counts[pos]
		if host.JobsQueued != want {
			host.JobsQueued = want
			m.FSA.Set(pos, host)
			fixed++
		}
	}
	return fixed
}

// rotateLogs prunes the output-log directory down to
// Config.MaxOutputLogFiles, oldest first, mirroring the original's
// "MAX_OUTPUT_LOG_FILES" rotation policy.
func (m *Maintainer) rotateLogs() int {
	if m.LogDir == "" || m.Config.MaxOutputLogFiles <= 0 {
		return 0
	}
	entries, err := os.ReadDir(m.LogDir)
	if err != nil {
		return 0
	}
	type fileInfo struct {
		name    string
		modTime time.Time
	}
	var files []fileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{name: e.Name(), modTime: info.ModTime()})
	}
	if len(files) <= m.Config.MaxOutputLogFiles {
		return 0
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })
	pruned := 0
	for _, f := range files[:len(files)-m.Config.MaxOutputLogFiles] {
		if err := os.Remove(filepath.Join(m.LogDir, f.name)); err == nil {
			pruned++
		}
	}
	return pruned
}
