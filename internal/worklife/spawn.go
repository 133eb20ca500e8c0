// Package worklife implements the Worker Lifecycle Manager: spawning
// workers (start_process, §4.3), reaping them (zombie_check, §4.4),
// and burst-mode job chaining (§4.6).
package worklife

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/hfs/afd-sub000/internal/conntab"
	"github.com/hfs/afd-sub000/internal/logging"
	"github.com/hfs/afd-sub000/internal/mdb"
	"github.com/hfs/afd-sub000/internal/ratelimit"
	"github.com/hfs/afd-sub000/internal/statusarea"
)

// SpawnRequest carries everything needed to build a worker's argv
// (§6, "Worker invocation").
type SpawnRequest struct {
	Program     string
	WorkDir     string
	JobSubindex int
	FSAID       string
	FSAPos      int
	Target      string // msg_name (push) or dir_alias (pull)
	NoArchive   bool
	Resend      bool
	TempToggle  bool
	AgeLimit    int64
	SMTPFrom    string
	SMTPServer  string
	RetryCount  int
}

// Argv builds the child argument vector per §6: program, work_dir,
// job_subindex, fsa_id, fsa_pos, target, then the optional flags.
func (r SpawnRequest) Argv() []string {
	argv := []string{
		r.Program,
		r.WorkDir,
		fmt.Sprintf("%d", r.JobSubindex),
		r.FSAID,
		fmt.Sprintf("%d", r.FSAPos),
		r.Target,
	}
	if r.NoArchive {
		argv = append(argv, "-A")
	}
	if r.Resend {
		argv = append(argv, "-r")
	}
	if r.TempToggle {
		argv = append(argv, "-t")
	}
	if r.AgeLimit > 0 {
		argv = append(argv, "-a", fmt.Sprintf("%d", r.AgeLimit))
	}
	if r.SMTPFrom != "" {
		argv = append(argv, "-f", r.SMTPFrom)
	}
	if r.SMTPServer != "" {
		argv = append(argv, "-s", r.SMTPServer)
	}
	if r.RetryCount > 0 {
		argv = append(argv, "-o", fmt.Sprintf("%d", r.RetryCount))
	}
	return argv
}

// ProcessSpawner starts a worker process and returns a handle the
// Manager can later wait on. The default implementation shells out via
// os/exec; tests substitute a fake.
type ProcessSpawner interface {
	Start(ctx context.Context, req SpawnRequest) (ProcessHandle, error)
}

// ProcessHandle is anything the Manager can send a signal to and wait
// on for an exit status.
type ProcessHandle interface {
	PID() int
	Signal(sig SignalKind) error
	Wait() (ExitResult, error)
	TryWait() (ExitResult, bool, error) // non-blocking, for the 45s sweep (WNOHANG)
}

// SignalKind abstracts the handful of signals FD sends workers.
type SignalKind int

const (
	SigInt SignalKind = iota
	SigKill
	SigUsr1
)

// ExitResult is a reaped worker's outcome.
type ExitResult struct {
	Code     int
	Signaled bool
}

// ExecSpawner is the real ProcessSpawner, forking sf_xxx/gf_xxx
// binaries found on PATH (§1: they are opaque child programs; FD
// never imports their packages).
type ExecSpawner struct{}

type execHandle struct {
	cmd *exec.Cmd
}

func (s ExecSpawner) Start(ctx context.Context, req SpawnRequest) (ProcessHandle, error) {
	argv := req.Argv()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execHandle{cmd: cmd}, nil
}

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

func (h *execHandle) Signal(sig SignalKind) error {
	switch sig {
	case SigInt:
		return h.cmd.Process.Signal(osInterrupt)
	case SigKill:
		return h.cmd.Process.Kill()
	case SigUsr1:
		return h.cmd.Process.Signal(osUsr1)
	}
	return fmt.Errorf("worklife: unknown signal kind %d", sig)
}

func (h *execHandle) Wait() (ExitResult, error) {
	err := h.cmd.Wait()
	return exitResultFromError(err), nil
}

func (h *execHandle) TryWait() (ExitResult, bool, error) {
	// A simple non-blocking poll: os/exec has no native WNOHANG, so
	// callers that need true non-blocking reaping should prefer the
	// fin-FIFO signal path (§4.4) and reserve TryWait for the 45s
	// sweep's best-effort catch-up.
	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()
	select {
	case err := <-done:
		return exitResultFromError(err), true, nil
	default:
		return ExitResult{}, false, nil
	}
}

// Manager owns the connection table, status areas, and MDB references
// needed to spawn and reclassify workers.
type Manager struct {
	Conn        *conntab.Table
	FSA         *statusarea.FSA
	FRA         *statusarea.FRA
	MDB         *mdb.Cache
	Limiters    map[int]*ratelimit.HostLimiter
	Spawner     ProcessSpawner
	Status      *statusarea.AFDStatus
	Hub         *logging.Hub
	WorkDir     string
	MaxConnections int
	Handles     map[int]ProcessHandle // live pid -> handle, for Wait/Signal
	ErrorActionHook func(hostAlias, action string)
}

// NewManager wires a Manager with the real ExecSpawner.
func NewManager(conn *conntab.Table, fsa *statusarea.FSA, fra *statusarea.FRA, mdbc *mdb.Cache, status *statusarea.AFDStatus, hub *logging.Hub, workDir string, maxConnections int) *Manager {
	return &Manager{
		Conn:           conn,
		FSA:            fsa,
		FRA:            fra,
		MDB:            mdbc,
		Limiters:       make(map[int]*ratelimit.HostLimiter),
		Spawner:        ExecSpawner{},
		Status:         status,
		Hub:            hub,
		WorkDir:        workDir,
		MaxConnections: maxConnections,
		Handles:        make(map[int]ProcessHandle),
	}
}

func (m *Manager) limiterFor(fsaPos int) *ratelimit.HostLimiter {
	l, ok := m.Limiters[fsaPos]
	if !ok {
		l = ratelimit.NewHostLimiter()
		m.Limiters[fsaPos] = l
	}
	return l
}
