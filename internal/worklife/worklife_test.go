package worklife

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfs/afd-sub000/internal/conntab"
	"github.com/hfs/afd-sub000/internal/logging"
	"github.com/hfs/afd-sub000/internal/mdb"
	"github.com/hfs/afd-sub000/internal/protocol"
	"github.com/hfs/afd-sub000/internal/qb"
	"github.com/hfs/afd-sub000/internal/statusarea"
)

type fakeJobIDTable struct {
	entries map[mdb.JobID]mdb.Entry
}

func (f fakeJobIDTable) Lookup(id mdb.JobID) (mdb.Entry, bool) {
	e, ok := f.entries[id]
	return e, ok
}

type fakeHandle struct {
	pid     int
	signals []SignalKind
}

func (h *fakeHandle) PID() int { return h.pid }
func (h *fakeHandle) Signal(sig SignalKind) error {
	h.signals = append(h.signals, sig)
	return nil
}
func (h *fakeHandle) Wait() (ExitResult, error)          { return ExitResult{}, nil }
func (h *fakeHandle) TryWait() (ExitResult, bool, error) { return ExitResult{}, true, nil }

type fakeSpawner struct {
	nextPID int
	started []SpawnRequest
}

func (s *fakeSpawner) Start(ctx context.Context, req SpawnRequest) (ProcessHandle, error) {
	s.nextPID++
	s.started = append(s.started, req)
	return &fakeHandle{pid: s.nextPID}, nil
}

func newTestManager(t *testing.T) (*Manager, *fakeSpawner) {
	t.Helper()
	dir := t.TempDir()
	fsa, err := statusarea.Attach(filepath.Join(dir, "fsa"), 4)
	require.NoError(t, err)
	fra, err := statusarea.Attach(filepath.Join(dir, "fra"), 4)
	require.NoError(t, err)

	table := fakeJobIDTable{entries: map[mdb.JobID]mdb.Entry{
		1: {JobID: 1, FSAPos: 0, Protocol: protocol.FTP, Port: 21},
	}}
	cache := mdb.New(table)
	_, err = cache.LookupJobID(1)
	require.NoError(t, err)

	conn := conntab.New(2)
	hub := logging.NewHub(nil)
	status := statusarea.NewAFDStatus(100)
	spawner := &fakeSpawner{}

	m := NewManager(conn, fsa, fra, cache, status, hub, dir, 2)
	m.Spawner = spawner
	return m, spawner
}

func TestStartProcessSpawnsEligibleEntry(t *testing.T) {
	m, spawner := newTestManager(t)

	host := m.FSA.Get(0)
	host.HostAlias = "mars"
	host.AllowedTransfers = 1
	m.FSA.Set(0, host)

	buf := qb.New(1e18)
	pos := buf.Insert(qb.Entry{MsgName: "job1", MsgNumber: 10, Pos: 0, CreationTime: time.Now().Unix()})

	outcome := m.StartProcess(context.Background(), buf, pos, time.Now(), false, nil)
	assert.Equal(t, OutcomeStarted, outcome)
	assert.Len(t, spawner.started, 1)
	assert.Equal(t, "sf_ftp", spawner.started[0].Program)

	entry := buf.At(pos)
	assert.NotEqual(t, qb.Pending, entry.PID)
	assert.Equal(t, int32(1), m.FSA.Get(0).ActiveTransfers)
}

func TestStartProcessRejectsStoppedHost(t *testing.T) {
	m, spawner := newTestManager(t)
	host := m.FSA.Get(0)
	host.AllowedTransfers = 1
	host.HostStatus = statusarea.StopTransferStat
	m.FSA.Set(0, host)

	buf := qb.New(1e18)
	pos := buf.Insert(qb.Entry{MsgName: "job1", MsgNumber: 10, Pos: 0})

	outcome := m.StartProcess(context.Background(), buf, pos, time.Now(), false, nil)
	assert.Equal(t, OutcomeNotEligible, outcome)
	assert.Empty(t, spawner.started)
}

func TestStartProcessRemovesAgedOutEntry(t *testing.T) {
	m, _ := newTestManager(t)
	table := m.MDB
	idx, err := table.LookupJobID(1)
	require.NoError(t, err)
	e := table.Get(idx)
	e.AgeLimit = 10
	table.Apply(idx, e)

	host := m.FSA.Get(0)
	host.AllowedTransfers = 1
	host.JobsQueued = 1
	m.FSA.Set(0, host)

	buf := qb.New(1e18)
	old := time.Now().Add(-time.Hour).Unix()
	pos := buf.Insert(qb.Entry{MsgName: "stalejob", MsgNumber: 5, Pos: idx, CreationTime: old})

	outcome := m.StartProcess(context.Background(), buf, pos, time.Now(), false, nil)
	assert.Equal(t, OutcomeRemovedAgeExpired, outcome)
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, int32(0), m.FSA.Get(0).JobsQueued)
}

func TestZombieCheckSuccessDropsEntry(t *testing.T) {
	m, _ := newTestManager(t)
	host := m.FSA.Get(0)
	host.AllowedTransfers = 1
	host.ErrorCounter = 2
	host.JobsQueued = 1
	m.FSA.Set(0, host)

	buf := qb.New(1e18)
	pos := buf.Insert(qb.Entry{MsgName: "job1", MsgNumber: 10, Pos: 0})
	m.StartProcess(context.Background(), buf, pos, time.Now(), false, nil)
	entry := buf.At(pos)

	found := m.ZombieCheck(buf, Reaped{PID: int(entry.PID), Result: ExitResult{Code: 0}}, time.Now())
	assert.True(t, found)
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, int32(0), m.FSA.Get(0).ErrorCounter)
	assert.Equal(t, int32(0), m.FSA.Get(0).JobsQueued)
}

func TestZombieCheckFailureReschedulesToPending(t *testing.T) {
	m, _ := newTestManager(t)
	host := m.FSA.Get(0)
	host.AllowedTransfers = 1
	m.FSA.Set(0, host)

	buf := qb.New(1e18)
	pos := buf.Insert(qb.Entry{MsgName: "job1", MsgNumber: 10, Pos: 0})
	m.StartProcess(context.Background(), buf, pos, time.Now(), false, nil)
	entry := buf.At(pos)

	found := m.ZombieCheck(buf, Reaped{PID: int(entry.PID), Result: ExitResult{Code: 16 /* TimeoutError */}}, time.Now())
	assert.True(t, found)
	require.Equal(t, 1, buf.Len())
	rescheduled := buf.At(0)
	assert.Equal(t, qb.Pending, rescheduled.PID)
	assert.Equal(t, int32(1), m.FSA.Get(0).ErrorCounter)
}

func TestZombieCheckFailureIncrementsJobsQueued(t *testing.T) {
	m, _ := newTestManager(t)
	host := m.FSA.Get(0)
	host.AllowedTransfers = 1
	m.FSA.Set(0, host)

	buf := qb.New(1e18)
	pos := buf.Insert(qb.Entry{MsgName: "job1", MsgNumber: 10, Pos: 0})
	m.StartProcess(context.Background(), buf, pos, time.Now(), false, nil)
	entry := buf.At(pos)

	found := m.ZombieCheck(buf, Reaped{PID: int(entry.PID), Result: ExitResult{Code: 16 /* TimeoutError */}}, time.Now())
	assert.True(t, found)
	assert.Equal(t, int32(1), m.FSA.Get(0).JobsQueued)
}

func TestZombieCheckSuccessClearsAutoPauseQueueLock(t *testing.T) {
	m, _ := newTestManager(t)
	host := m.FSA.Get(0)
	host.AllowedTransfers = 1
	m.FSA.Set(0, host)

	buf := qb.New(1e18)
	pos := buf.Insert(qb.Entry{MsgName: "job1", MsgNumber: 10, Pos: 0})
	m.StartProcess(context.Background(), buf, pos, time.Now(), false, nil)
	entry := buf.At(pos)

	// The lock trips while the worker is already running.
	host = m.FSA.Get(0)
	host.HostStatus = statusarea.AutoPauseQueueLockStat
	m.FSA.Set(0, host)

	found := m.ZombieCheck(buf, Reaped{PID: int(entry.PID), Result: ExitResult{Code: 0}}, time.Now())
	assert.True(t, found)
	assert.Equal(t, statusarea.HostStatusBits(0), m.FSA.Get(0).HostStatus&statusarea.AutoPauseQueueLockStat)
}

func TestZombieCheckSuccessSwitchesBackFromTempToggle(t *testing.T) {
	m, _ := newTestManager(t)
	host := m.FSA.Get(0)
	host.AllowedTransfers = 1
	host.HostToggle = 1
	host.OriginalTogglePos = 0
	host.SuccessfulRetries = 2
	host.HostAlias = "mars"
	m.FSA.Set(0, host)

	buf := qb.New(1e18)
	pos := buf.Insert(qb.Entry{MsgName: "job1", MsgNumber: 10, Pos: 0})
	m.StartProcess(context.Background(), buf, pos, time.Now(), false, nil)
	entry := buf.At(pos)

	slot := m.Conn.Get(entry.ConnectPos)
	slot.TempToggle = true
	m.Conn.Set(entry.ConnectPos, slot)

	found := m.ZombieCheck(buf, Reaped{PID: int(entry.PID), Result: ExitResult{Code: 0}}, time.Now())
	assert.True(t, found)
	got := m.FSA.Get(0)
	assert.Equal(t, int32(0), got.HostToggle)
	assert.Equal(t, statusarea.NoTogglePos, int(got.OriginalTogglePos))
	assert.Equal(t, int32(0), got.SuccessfulRetries)
}

func TestZombieCheckUnknownPIDReturnsFalse(t *testing.T) {
	m, _ := newTestManager(t)
	buf := qb.New(1e18)
	found := m.ZombieCheck(buf, Reaped{PID: 99999}, time.Now())
	assert.False(t, found)
}
