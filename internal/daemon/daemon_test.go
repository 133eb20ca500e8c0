package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hfs/afd-sub000/internal/intake"
	"github.com/hfs/afd-sub000/internal/mdb"
	"github.com/hfs/afd-sub000/internal/protocol"
	"github.com/hfs/afd-sub000/internal/statusarea"
)

type fakeJobIDTable struct {
	entries map[mdb.JobID]mdb.Entry
}

func (f fakeJobIDTable) Lookup(id mdb.JobID) (mdb.Entry, bool) {
	e, ok := f.entries[id]
	return e, ok
}

func TestNewAssemblesEveryComponent(t *testing.T) {
	dir := t.TempDir()
	table := fakeJobIDTable{entries: map[mdb.JobID]mdb.Entry{
		1: {JobID: 1, FSAPos: 0, Protocol: protocol.FTP},
	}}

	d, err := New(Options{
		WorkDir:    WorkDir{Root: dir},
		ConfigPath: dir + "/AFD_CONFIG",
		MaxHosts:   4,
		JobIDTable: table,
	})
	require.NoError(t, err)
	require.NotNil(t, d.work)
	require.NotNil(t, d.sched)
	require.NotNil(t, d.poller)
	require.NotNil(t, d.maintainer)
	require.NotNil(t, d.seq)
	require.NotNil(t, d.metrics)
}

func TestHandleMessageLocksQueueWhenErrorDirOverLimit(t *testing.T) {
	dir := t.TempDir()
	table := fakeJobIDTable{entries: map[mdb.JobID]mdb.Entry{
		1: {JobID: 1, FSAPos: 0, Protocol: protocol.FTP},
	}}

	d, err := New(Options{
		WorkDir:    WorkDir{Root: dir},
		ConfigPath: dir + "/AFD_CONFIG",
		MaxHosts:   4,
		JobIDTable: table,
	})
	require.NoError(t, err)

	host := d.fsa.Get(0)
	host.HostAlias = "mars"
	d.fsa.Set(0, host)

	errDir := filepath.Join(dir, "files", "error", "mars")
	require.NoError(t, os.MkdirAll(errDir, 0o755))

	orig := linkMax
	linkMax = 3
	defer func() { linkMax = orig }()
	for i := 0; i < 3; i++ {
		require.NoError(t, os.Mkdir(filepath.Join(errDir, "sub"+string(rune('a'+i))), 0o755))
	}

	d.handleMessage(intake.IntakeMessage{JobID: 1, CreationTime: time.Now().Unix()})

	got := d.fsa.Get(0)
	require.NotEqual(t, statusarea.HostStatusBits(0), got.HostStatus&statusarea.AutoPauseQueueLockStat)
}

func TestHandleMessageLeavesQueueUnlockedUnderLimit(t *testing.T) {
	dir := t.TempDir()
	table := fakeJobIDTable{entries: map[mdb.JobID]mdb.Entry{
		1: {JobID: 1, FSAPos: 0, Protocol: protocol.FTP},
	}}

	d, err := New(Options{
		WorkDir:    WorkDir{Root: dir},
		ConfigPath: dir + "/AFD_CONFIG",
		MaxHosts:   4,
		JobIDTable: table,
	})
	require.NoError(t, err)

	host := d.fsa.Get(0)
	host.HostAlias = "mars"
	d.fsa.Set(0, host)

	d.handleMessage(intake.IntakeMessage{JobID: 1, CreationTime: time.Now().Unix()})

	got := d.fsa.Get(0)
	require.Equal(t, statusarea.HostStatusBits(0), got.HostStatus&statusarea.AutoPauseQueueLockStat)
	require.Equal(t, int32(1), got.JobsQueued)
}

func TestRunShutsDownOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	table := fakeJobIDTable{entries: map[mdb.JobID]mdb.Entry{}}

	d, err := New(Options{
		WorkDir:    WorkDir{Root: dir},
		ConfigPath: dir + "/AFD_CONFIG",
		MaxHosts:   2,
		JobIDTable: table,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down after context cancellation")
	}
}
