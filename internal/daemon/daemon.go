// Package daemon wires every FD component into the single
// long-lived supervisor process described in §2: one event-loop
// goroutine selects over the intake FIFOs' channels and a handful of
// tickers, and is the only goroutine that mutates QB, MDB, the
// connection table, or the status areas (§5).
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hfs/afd-sub000/internal/config"
	"github.com/hfs/afd-sub000/internal/conntab"
	"github.com/hfs/afd-sub000/internal/intake"
	"github.com/hfs/afd-sub000/internal/logging"
	"github.com/hfs/afd-sub000/internal/maint"
	"github.com/hfs/afd-sub000/internal/mdb"
	"github.com/hfs/afd-sub000/internal/metrics"
	"github.com/hfs/afd-sub000/internal/qb"
	"github.com/hfs/afd-sub000/internal/retrieve"
	"github.com/hfs/afd-sub000/internal/scheduler"
	"github.com/hfs/afd-sub000/internal/shutdown"
	"github.com/hfs/afd-sub000/internal/statusarea"
	"github.com/hfs/afd-sub000/internal/store"
	"github.com/hfs/afd-sub000/internal/worklife"
)

// linkMax mirrors FD's pathconf(work_dir, _PC_LINK_MAX) probe at
// startup: the number of subdirectories a single directory can hold
// before mkdir/rename starts failing with EMLINK, simplified here to
// ext4's ceiling rather than a filesystem probe.
// A var, not a const, so tests can lower it instead of creating tens
// of thousands of directories.
var linkMax uint64 = 65000

// WorkDir is the directory layout rooted at <workdir> described in §6.
type WorkDir struct {
	Root string
}

func (w WorkDir) fifodir() string          { return filepath.Join(w.Root, "fifodir") }
func (w WorkDir) path(name string) string { return filepath.Join(w.fifodir(), name) }

// Options configures a Daemon before Run is called.
type Options struct {
	WorkDir    WorkDir
	ConfigPath string
	MaxHosts   int // FSA/FRA capacity
	JobIDTable mdb.JobIDTable
	RetrieveOn bool
}

// Daemon owns every live component; Run starts the single event loop.
type Daemon struct {
	opts Options
	cfg  config.Config

	qb     *qb.Buffer
	mdbc   *mdb.Cache
	conn   *conntab.Table
	fsa    *statusarea.FSA
	fra    *statusarea.FRA
	status *statusarea.AFDStatus
	store  *store.Store

	hub        *logging.Hub
	work       *worklife.Manager
	sched      *scheduler.Scheduler
	poller     *retrieve.Poller
	maintainer *maint.Maintainer
	seq        *shutdown.Sequencer
	metrics    *metrics.Registry
	demux      *intake.Demux
}

// New assembles every component against opts, attaching the mmap'd
// status areas and opening the persistent store.
func New(opts Options) (*Daemon, error) {
	if err := os.MkdirAll(opts.WorkDir.fifodir(), 0o755); err != nil {
		return nil, fmt.Errorf("daemon: create fifodir: %w", err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		cfg = config.Defaults()
	}

	fsa, err := statusarea.Attach(opts.WorkDir.path("fsa_status"), opts.MaxHosts)
	if err != nil {
		return nil, fmt.Errorf("daemon: attach fsa: %w", err)
	}
	fra, err := statusarea.Attach(opts.WorkDir.path("fra_status"), opts.MaxHosts)
	if err != nil {
		return nil, fmt.Errorf("daemon: attach fra: %w", err)
	}

	st, err := store.Open(opts.WorkDir.path("queue_buffer"))
	if err != nil {
		return nil, fmt.Errorf("daemon: open store: %w", err)
	}

	qbuf := qb.New(float64(time.Now().Unix()) * 10000 * 20)
	mdbc := mdb.New(opts.JobIDTable)
	if err := restoreMDB(st, mdbc); err != nil {
		return nil, err
	}
	if err := restoreQB(st, qbuf); err != nil {
		return nil, err
	}

	conn := conntab.New(cfg.MaxConnections)
	status := statusarea.NewAFDStatus(int64(cfg.MaxConnections))
	hub := logging.NewHub(nil)

	work := worklife.NewManager(conn, fsa, fra, mdbc, status, hub, opts.WorkDir.Root, cfg.MaxConnections)

	d := &Daemon{
		opts:  opts,
		cfg:   cfg,
		qb:    qbuf,
		mdbc:  mdbc,
		conn:  conn,
		fsa:   fsa,
		fra:   fra,
		status: status,
		store: st,
		hub:   hub,
		work:  work,
		sched: &scheduler.Scheduler{
			QB:     qbuf,
			Work:   work,
			Status: status,
			MaxQueuedBeforeChecked:  config.MaxQueuedBeforeChecked,
			ElapsedLoopsBeforeCheck: config.ElapsedLoopsBeforeCheck,
		},
		poller: &retrieve.Poller{FRA: fra, FSA: fsa, QB: qbuf, Enabled: opts.RetrieveOn},
		maintainer: &maint.Maintainer{
			QB: qbuf, FSA: fsa, Work: work, Hub: hub,
			ConfigPath: opts.ConfigPath,
			LogDir:     filepath.Join(opts.WorkDir.Root, "log"),
			Config:     cfg,
		},
		seq: &shutdown.Sequencer{
			Conn: conn, QB: qbuf, Work: work, Status: status, FSA: fsa, FRA: fra, Store: st, Hub: hub,
		},
		metrics: metrics.New(),
		demux:   intake.NewDemux(),
	}
	return d, nil
}

func restoreMDB(st *store.Store, mdbc *mdb.Cache) error {
	return st.LoadAllMDB(func(i int, data []byte) error {
		var e mdb.Entry
		if err := store.Decode(data, &e); err != nil {
			return err
		}
		mdbc.Restore(e)
		return nil
	})
}

func restoreQB(st *store.Store, qbuf *qb.Buffer) error {
	return st.LoadAllQB(func(i int, data []byte) error {
		var e qb.Entry
		if err := store.Decode(data, &e); err != nil {
			return err
		}
		qbuf.Insert(e)
		return nil
	})
}

// Run starts the intake FIFO readers and drives the single event loop
// until ctx is cancelled, then performs the two-phase shutdown
// sequence.
func (d *Daemon) Run(ctx context.Context) error {
	paths := intake.Paths{
		Command: d.opts.WorkDir.path("fd_cmd_fifo"),
		Msg:     d.opts.WorkDir.path("msg_fifo"),
		Fin:     d.opts.WorkDir.path("sf_fin_fifo"),
		WakeUp:  d.opts.WorkDir.path("fd_wake_up_fifo"),
		Retry:   d.opts.WorkDir.path("retry_fd_fifo"),
		Delete:  d.opts.WorkDir.path("delete_jobs_fifo"),
	}
	if err := d.demux.Start(paths); err != nil {
		return err
	}

	rescan := time.NewTicker(config.RescanTime)
	defer rescan.Stop()
	zombieSweep := time.NewTicker(config.ZombieSweepInterval)
	defer zombieSweep.Stop()
	retrieveTick := time.NewTicker(d.cfg.RemoteFileCheckInterval)
	defer retrieveTick.Stop()

	retryFlag := false
	for {
		select {
		case <-ctx.Done():
			d.seq.Run(time.Now())
			return nil

		case cmd := <-d.demux.Commands:
			d.handleCommand(cmd)

		case msg := <-d.demux.Messages:
			d.handleMessage(msg)
			d.sched.Run(ctx, time.Now(), retryFlag)

		case fin := <-d.demux.Fins:
			d.handleFin(fin)
			d.sched.Run(ctx, time.Now(), retryFlag)

		case <-d.demux.WakeUps:
			d.sched.Run(ctx, time.Now(), retryFlag)

		case fsaPos := <-d.demux.Retries:
			retryFlag = true
			d.sched.Run(ctx, time.Now(), true)
			_ = fsaPos
			retryFlag = false

		case names := <-d.demux.Deletes:
			d.handleDelete(names)

		case err := <-d.demux.Errs():
			d.hub.SystemError(err, "Intake demultiplexer error.")

		case <-rescan.C:
			d.sched.Run(ctx, time.Now(), false)

		case <-zombieSweep.C:
			d.maintainer.Sweep(time.Now())

		case <-retrieveTick.C:
			d.poller.Poll(time.Now())
			d.sched.Run(ctx, time.Now(), false)
		}

		d.metrics.Observe(d.status, d.fsa, d.qb)
	}
}

func (d *Daemon) handleCommand(cmd intake.CommandOp) {
	switch cmd {
	case intake.ForceRemoteDirCheck:
		d.poller.Poll(time.Now())
	case intake.SaveStop, intake.Stop, intake.QuickStop:
		d.seq.Run(time.Now())
	case intake.CheckFileDir, intake.FSAAboutToChange:
		d.hub.SystemInfo("Command fifo opcode %d received.", cmd)
	}
}

func (d *Daemon) handleMessage(msg intake.IntakeMessage) {
	msgName := fmt.Sprintf("%x/%d/%d_%d_%d", msg.JobID, msg.DirNumber, msg.CreationTime, msg.UniqueNumber, msg.SplitCounter)
	idx, err := d.mdbc.LookupJobID(mdb.JobID(msg.JobID))
	if err != nil {
		d.hub.SystemError(err, "Dropping unresolvable job id %d.", msg.JobID)
		if rmErr := os.RemoveAll(filepath.Join(d.opts.WorkDir.Root, "files", "outgoing", msgName)); rmErr != nil {
			d.hub.SystemError(rmErr, "Failed to remove spool directory of <%s>.", msgName)
		}
		return
	}
	entry := d.mdbc.Get(idx)
	key := qb.ComputeKey(msg.Priority, msg.CreationTime, uint32(msg.UniqueNumber), msg.SplitCounter)

	d.qb.Insert(qb.Entry{
		MsgName:      msgName,
		MsgNumber:    key,
		Pos:          idx,
		ConnectPos:   -1,
		CreationTime: msg.CreationTime,
		FilesToSend:  int64(msg.FilesToSend),
	})

	host := d.fsa.Get(entry.FSAPos)
	host.JobsQueued++
	if host.HostStatus&statusarea.AutoPauseQueueLockStat == 0 && d.errorDirOverLimit(host.HostAlias) {
		host.HostStatus ^= statusarea.AutoPauseQueueLockStat
		d.hub.SystemInfo("Stopped input queue for host <%s>, since the number of jobs in the error directory is reaching a dangerous level.", host.HostAlias)
	}
	d.fsa.Set(entry.FSAPos, host)
}

// errorDirOverLimit implements §5's backpressure trigger: a host
// whose error-job spool directory has grown so many subdirectories
// that its link count is approaching linkMax gets its queue locked
// (§5, scenario S6) rather than risk mkdir/rename failing outright.
func (d *Daemon) errorDirOverLimit(hostAlias string) bool {
	dir := filepath.Join(d.opts.WorkDir.Root, "files", "error", hostAlias)
	var st unix.Stat_t
	if err := unix.Stat(dir, &st); err != nil {
		return false
	}
	return uint64(st.Nlink) >= linkMax-2
}

func (d *Daemon) handleFin(fin intake.FinSignal) {
	if fin.PID < 0 {
		d.work.BurstReady(d.qb, int(-fin.PID))
		return
	}
	handle, ok := d.work.Handles[int(fin.PID)]
	if !ok {
		return
	}
	result, err := handle.Wait()
	if err != nil {
		return
	}
	d.work.ZombieCheck(d.qb, worklife.Reaped{PID: int(fin.PID), Result: result}, time.Now())
}

func (d *Daemon) handleDelete(names []string) {
	for _, name := range names {
		n := d.qb.Len()
		for i := 0; i < n; i++ {
			e := d.qb.At(i)
			if e.MsgName != name {
				continue
			}
			if e.PID > 0 {
				if handle, ok := d.work.Handles[int(e.PID)]; ok {
					_ = handle.Signal(worklife.SigKill)
				}
			}
			d.qb.RemoveAt(i)
			break
		}
	}
}
