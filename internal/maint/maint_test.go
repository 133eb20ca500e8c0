package maint

import (
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

func TestFixJobsQueuedCorrectsDrift(t *testing.T) {
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
	host.JobsQueued = 5
	fsa.Set(0, host)

	conn := conntab.New(2)
	status := statusarea.NewAFDStatus(10)
	hub := logging.NewHub(nil)
	work := worklife.NewManager(conn, fsa, fra, cache, status, hub, dir, 2)

	buf := qb.New(1e18)
	buf.Insert(qb.Entry{MsgName: "job1", MsgNumber: 1, Pos: idx})

	m := &Maintainer{QB: buf, FSA: fsa, Work: work, Hub: hub}
	rep := m.Sweep(time.Now())
	require.Equal(t, 1, rep.JobsQueuedFixed)
	require.Equal(t, int32(1), fsa.Get(0).JobsQueued)
}
