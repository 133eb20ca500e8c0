package shutdown

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hfs/afd-sub000/internal/conntab"
	"github.com/hfs/afd-sub000/internal/logging"
	"github.com/hfs/afd-sub000/internal/mdb"
	"github.com/hfs/afd-sub000/internal/protocol"
	"github.com/hfs/afd-sub000/internal/qb"
	"github.com/hfs/afd-sub000/internal/statusarea"
	"github.com/hfs/afd-sub000/internal/worklife"
)

type fakeTable struct{ entries map[mdb.JobID]mdb.Entry }

func (f fakeTable) Lookup(id mdb.JobID) (mdb.Entry, bool) { e, ok := f.entries[id]; return e, ok }

type hungHandle struct {
	pid      int
	signaled []worklife.SignalKind
	exited   bool
}

func (h *hungHandle) PID() int { return h.pid }
func (h *hungHandle) Signal(sig worklife.SignalKind) error {
	h.signaled = append(h.signaled, sig)
	if sig == worklife.SigKill {
		h.exited = true
	}
	return nil
}
func (h *hungHandle) Wait() (worklife.ExitResult, error) {
	return worklife.ExitResult{Signaled: true}, nil
}
func (h *hungHandle) TryWait() (worklife.ExitResult, bool, error) {
	if h.exited {
		return worklife.ExitResult{Signaled: true}, true, nil
	}
	return worklife.ExitResult{}, false, nil
}

type fakeSpawner struct{ handle *hungHandle }

func (s *fakeSpawner) Start(ctx context.Context, req worklife.SpawnRequest) (worklife.ProcessHandle, error) {
	return s.handle, nil
}

func TestSequencerEscalatesToSigkillOnHungWorker(t *testing.T) {
	dir := t.TempDir()
	fsa, err := statusarea.Attach(filepath.Join(dir, "fsa"), 1)
	require.NoError(t, err)
	fra, err := statusarea.Attach(filepath.Join(dir, "fra"), 1)
	require.NoError(t, err)

	table := fakeTable{entries: map[mdb.JobID]mdb.Entry{1: {JobID: 1, FSAPos: 0, Protocol: protocol.FTP}}}
	cache := mdb.New(table)
	idx, err := cache.LookupJobID(1)
	require.NoError(t, err)

	host := fsa.Get(0)
	host.AllowedTransfers = 1
	fsa.Set(0, host)

	conn := conntab.New(2)
	status := statusarea.NewAFDStatus(10)
	hub := logging.NewHub(nil)
	handle := &hungHandle{pid: 42}
	work := worklife.NewManager(conn, fsa, fra, cache, status, hub, dir, 1)
	work.Spawner = &fakeSpawner{handle: handle}

	buf := qb.New(1e18)
	pos := buf.Insert(qb.Entry{MsgName: "job1", MsgNumber: 1, Pos: idx})
	outcome := work.StartProcess(context.Background(), buf, pos, time.Now(), false, nil)
	require.Equal(t, worklife.OutcomeStarted, outcome)

	seq := &Sequencer{
		Conn: conn, QB: buf, Work: work, Status: status, FSA: fsa, FRA: fra, Hub: hub,
		Sleep: func(time.Duration) {},
	}
	seq.Run(time.Now())

	require.Contains(t, handle.signaled, worklife.SigInt)
	require.Contains(t, handle.signaled, worklife.SigKill)
	require.Equal(t, 1, buf.Len())
	require.Equal(t, qb.Pending, buf.At(0).PID)
	require.Equal(t, int64(0), status.NoOfTransfers())
}
