package qb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeKey_S1NormalPush(t *testing.T) {
	// S1: job=0x2A, creation=1000, unique=7, split=0, prio='5'.
	key := ComputeKey('5', 1000, 7, 0)
	assert.Equal(t, 50000035.0, key)
}

func TestBuffer_InsertMaintainsOrder(t *testing.T) {
	b := New(1e18)
	keys := []float64{50, 10, 999, 1, 500, 500, 0}
	for _, k := range keys {
		pos := b.Insert(Entry{MsgNumber: k, MsgName: "x"})
		require.True(t, b.IsSorted(), "not sorted after inserting %v at %d", k, pos)
	}
	require.Equal(t, len(keys), b.Len())
	snap := b.Snapshot()
	for i := 1; i < len(snap); i++ {
		require.LessOrEqual(t, snap[i-1].MsgNumber, snap[i].MsgNumber)
	}
}

func TestBuffer_InsertBeforeHeadAndAfterTail(t *testing.T) {
	b := New(1e18)
	b.Insert(Entry{MsgNumber: 10})
	b.Insert(Entry{MsgNumber: 20})
	pos := b.Insert(Entry{MsgNumber: 1})
	assert.Equal(t, 0, pos)
	pos = b.Insert(Entry{MsgNumber: 30})
	assert.Equal(t, 3, pos)
}

func TestBuffer_RemoveAtPreservesOrder(t *testing.T) {
	b := New(1e18)
	b.Insert(Entry{MsgNumber: 1})
	b.Insert(Entry{MsgNumber: 2})
	b.Insert(Entry{MsgNumber: 3})
	b.RemoveAt(1)
	require.Equal(t, 2, b.Len())
	assert.Equal(t, 1.0, b.At(0).MsgNumber)
	assert.Equal(t, 3.0, b.At(1).MsgNumber)
}

func TestBuffer_Decay_S2FailureWithDecay(t *testing.T) {
	// S2: prio='5', creation=1000, exits with PASSWORD_ERROR. Expect
	// msg_number increased by 6e7 and re-sorted toward the tail, and
	// another pending entry for a different host now runs first.
	b := New(1e18)
	key := ComputeKey('5', 1000, 0, 0) // 50000000
	posA := b.Insert(Entry{MsgName: "a", MsgNumber: key, CreationTime: 1000})
	b.Insert(Entry{MsgName: "b", MsgNumber: key + 1})

	newPos := b.Decay(posA)
	require.True(t, b.IsSorted())
	entry := b.At(newPos)
	assert.Equal(t, key+decayFirstBump, entry.MsgNumber)
	// "a" must now sort after "b" since its key grew past it.
	assert.Equal(t, "b", b.At(0).MsgName)
}

func TestBuffer_Decay_LeavesEntryAtOrAboveCapUnchanged(t *testing.T) {
	b := New(1000.0) // tiny cap to exercise the saturation branch
	pos := b.Insert(Entry{MsgName: "x", MsgNumber: 2000, CreationTime: 5, Retries: RetryThreshold + 5})
	newPos := b.Decay(pos)
	// Already at/above maxThreshold: must not move or change.
	assert.Equal(t, pos, newPos)
	assert.Equal(t, 2000.0, b.At(newPos).MsgNumber)
}

func TestBuffer_Decay_EmptyMsgNameIsPullJobAndUntouched(t *testing.T) {
	b := New(1e18)
	pos := b.Insert(Entry{MsgName: "", MsgNumber: 5})
	newPos := b.Decay(pos)
	assert.Equal(t, pos, newPos)
	assert.Equal(t, 5.0, b.At(newPos).MsgNumber)
}
