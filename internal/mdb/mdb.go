// Package mdb implements the Message Cache (MDB): FD's local,
// persistent cache of per-job metadata (§4.1).
package mdb

import (
	"fmt"
	"sync"

	"github.com/hfs/afd-sub000/internal/protocol"
)

// JobID is the opaque 32-bit job identifier from the job-id master
// table (§3).
type JobID uint32

// Entry is one Message-Cache record (§3, Message-Cache Entry).
type Entry struct {
	JobID              JobID
	FSAPos             int // index into the host status array, stable once bound
	Protocol           protocol.Variant
	Port               int
	AgeLimit           int64 // seconds; 0 = no limit
	LastTransferTime   int64
	QualifiedHostName  string // for error messages
}

// JobIDTable is the external job-id master table (§1, out of scope):
// FD looks up job metadata from it on a cache miss and revalidates
// against it periodically (check_msg_time, §4.1).
type JobIDTable interface {
	Lookup(id JobID) (Entry, bool)
}

// Cache is the in-memory MDB arena. Index stability matches the
// Design Notes: "stable indices are the identity (not pointers)".
type Cache struct {
	mu      sync.RWMutex
	entries []Entry
	byJobID map[JobID]int
	table   JobIDTable
}

// New creates an empty MDB cache backed by table for cache-miss
// resolution.
func New(table JobIDTable) *Cache {
	return &Cache{
		byJobID: make(map[JobID]int),
		table:   table,
	}
}

// ErrUnresolvable is returned when a job id cannot be resolved against
// the job-id master table; per §4.1 the caller must drop the message
// and remove its spool directory.
var ErrUnresolvable = fmt.Errorf("mdb: job id not found in job-id master table")

// LookupJobID returns the cache slot index for id, appending and
// populating a new slot from the job-id master table on a miss.
func (c *Cache) LookupJobID(id JobID) (int, error) {
	c.mu.RLock()
	if idx, ok := c.byJobID[id]; ok {
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	entry, ok := c.table.Lookup(id)
	if !ok {
		return -1, ErrUnresolvable
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx, ok := c.byJobID[id]; ok {
		return idx, nil
	}
	c.entries = append(c.entries, entry)
	idx := len(c.entries) - 1
	c.byJobID[id] = idx
	return idx, nil
}

// Get returns a copy of the entry at idx.
func (c *Cache) Get(idx int) Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[idx]
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SetLastTransferTime updates the last successful transfer timestamp
// for the entry at idx.
func (c *Cache) SetLastTransferTime(idx int, t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[idx].LastTransferTime = t
}

// SetFSAPos rebinds the FSA index for the entry at idx, used when FSA
// is re-attached and every connection's position is recomputed (§3
// invariant).
func (c *Cache) SetFSAPos(idx int, fsaPos int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[idx].FSAPos = fsaPos
}

// StaleEntry describes an MDB entry whose authoritative job-id record
// has changed since it was cached.
type StaleEntry struct {
	Index int
	Old   Entry
	New   Entry
}

// CheckMsgTime revalidates every MDB entry against the job-id master
// table, returning entries whose host binding or age limit changed
// (§4.1, check_msg_time). It does not mutate the cache; the caller
// decides how to apply the update (e.g. logging before SetFSAPos).
func (c *Cache) CheckMsgTime() []StaleEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var stale []StaleEntry
	for i, e := range c.entries {
		fresh, ok := c.table.Lookup(e.JobID)
		if !ok {
			continue
		}
		if fresh.FSAPos != e.FSAPos || fresh.AgeLimit != e.AgeLimit || fresh.Protocol != e.Protocol || fresh.Port != e.Port {
			stale = append(stale, StaleEntry{Index: i, Old: e, New: fresh})
		}
	}
	return stale
}

// Apply writes a revalidated entry back into the cache at idx.
func (c *Cache) Apply(idx int, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[idx] = e
}

// Restore appends e as a new cache slot without consulting the job-id
// master table, used to repopulate the cache from the persistent
// journal on startup (§5, restart recovery).
func (c *Cache) Restore(e Entry) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	idx := len(c.entries) - 1
	c.byJobID[e.JobID] = idx
	return idx
}
