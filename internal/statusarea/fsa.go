// Package statusarea implements the two external shared-memory
// contracts FD reads and mutates but does not own the layout of: the
// Host Status Array (FSA) and the Directory Status Array (FRA) (§3,
// "External shared state"). Per the Design Notes, these remain raw
// mmap'd, fixed-layout files — bit-compatible with the upstream
// daemon and operator UI — rather than being folded into the
// bbolt-backed internal/store used for QB/MDB.
package statusarea

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	hostAliasLen   = 64
	hostDsdNameLen = 96
	// ErrorHistoryLength is the length of the per-host ring of
	// one-byte exit codes (§4.4).
	ErrorHistoryLength = 32
	hostRecordSize     = hostAliasLen + hostDsdNameLen + ErrorHistoryLength + 15*8
)

// HostStatusBits are flags carried in host_status.
type HostStatusBits uint32

const (
	StopTransferStat      HostStatusBits = 1 << 0
	AutoPauseQueueStat    HostStatusBits = 1 << 1
	AutoPauseQueueLockStat HostStatusBits = 1 << 2
)

// HostEntry is one FSA record (§3, Host status array).
type HostEntry struct {
	HostAlias            string
	HostDspName          string
	ActiveTransfers      int32
	AllowedTransfers     int32
	ErrorCounter         int32
	JobsQueued           int32
	LastRetryTime        int64
	FirstErrorTime       int64
	RetryInterval        int32
	HostStatus           HostStatusBits
	HostToggle           int32
	OriginalTogglePos    int32
	TogglePos            int32
	SuccessfulRetries    int32
	MaxSuccessfulRetries int32
	AutoToggle           bool
	TransferRateLimit    int64
	TRLPerProcess        int64
	LastConnection       int64
	ErrorHistory         [ErrorHistoryLength]byte
}

// NoTogglePos indicates the host has no configured secondary host.
const NoTogglePos = -1

// FSA is the mmap'd host status array.
type FSA struct {
	file    *os.File
	data    []byte
	entries []HostEntry
	dirty   map[int]bool
}

// Attach opens (creating if absent) the FSA backing file at path with
// room for n hosts, and mmaps it. Re-attachment (§4.7,
// FSA_ABOUT_TO_CHANGE) is done by calling Detach then Attach again; the
// caller is responsible for recomputing connection→host index bindings
// afterward (get_new_positions in the original).
func Attach(path string, n int) (*FSA, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("statusarea: open fsa: %w", err)
	}
	size := n * hostRecordSize
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: truncate fsa: %w", err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: mmap fsa: %w", err)
	}
	fsa := &FSA{
		file:    f,
		data:    data,
		entries: make([]HostEntry, n),
		dirty:   make(map[int]bool),
	}
	for i := 0; i < n; i++ {
		fsa.entries[i] = decodeHost(data[i*hostRecordSize : (i+1)*hostRecordSize])
	}
	return fsa, nil
}

// Detach flushes and unmaps the FSA, e.g. before a re-attach (§4.7).
func (a *FSA) Detach() error {
	if err := unix.Msync(a.data, unix.MS_SYNC); err != nil {
		return err
	}
	if err := unix.Munmap(a.data); err != nil {
		return err
	}
	return a.file.Close()
}

// Len returns the number of host entries.
func (a *FSA) Len() int { return len(a.entries) }

// Get returns a copy of the entry at pos.
func (a *FSA) Get(pos int) HostEntry { return a.entries[pos] }

// Set writes e back to pos in the mapped region; Sync flushes it.
func (a *FSA) Set(pos int, e HostEntry) {
	a.entries[pos] = e
	encodeHost(a.data[pos*hostRecordSize:(pos+1)*hostRecordSize], e)
}

// Sync msyncs the mapped region to disk (coarse; §5 notes FSA uses
// coarse writes with no fine locking except the LOCK_EC region).
func (a *FSA) Sync() error {
	return unix.Msync(a.data, unix.MS_ASYNC)
}

// IndexOf finds a host by alias, or -1.
func (a *FSA) IndexOf(alias string) int {
	for i, e := range a.entries {
		if e.HostAlias == alias {
			return i
		}
	}
	return -1
}

func encodeHost(b []byte, e HostEntry) {
	putString(b[0:hostAliasLen], e.HostAlias)
	off := hostAliasLen
	putString(b[off:off+hostDsdNameLen], e.HostDspName)
	off += hostDsdNameLen
	binary.LittleEndian.PutUint32(b[off:], uint32(e.ActiveTransfers))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.AllowedTransfers))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.ErrorCounter))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.JobsQueued))
	off += 4
	binary.LittleEndian.PutUint64(b[off:], uint64(e.LastRetryTime))
	off += 8
	binary.LittleEndian.PutUint64(b[off:], uint64(e.FirstErrorTime))
	off += 8
	binary.LittleEndian.PutUint32(b[off:], uint32(e.RetryInterval))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.HostStatus))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.HostToggle))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.OriginalTogglePos))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.TogglePos))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.SuccessfulRetries))
	off += 4
	binary.LittleEndian.PutUint32(b[off:], uint32(e.MaxSuccessfulRetries))
	off += 4
	var autoToggle uint32
	if e.AutoToggle {
		autoToggle = 1
	}
	binary.LittleEndian.PutUint32(b[off:], autoToggle)
	off += 4
	binary.LittleEndian.PutUint64(b[off:], uint64(e.TransferRateLimit))
	off += 8
	binary.LittleEndian.PutUint64(b[off:], uint64(e.TRLPerProcess))
	off += 8
	binary.LittleEndian.PutUint64(b[off:], uint64(e.LastConnection))
	off += 8
	copy(b[off:off+ErrorHistoryLength], e.ErrorHistory[:])
}

func decodeHost(b []byte) HostEntry {
	var e HostEntry
	e.HostAlias = getString(b[0:hostAliasLen])
	off := hostAliasLen
	e.HostDspName = getString(b[off : off+hostDsdNameLen])
	off += hostDsdNameLen
	e.ActiveTransfers = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.AllowedTransfers = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.ErrorCounter = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.JobsQueued = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.LastRetryTime = int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	e.FirstErrorTime = int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	e.RetryInterval = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.HostStatus = HostStatusBits(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.HostToggle = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.OriginalTogglePos = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.TogglePos = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.SuccessfulRetries = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.MaxSuccessfulRetries = int32(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	e.AutoToggle = binary.LittleEndian.Uint32(b[off:]) != 0
	off += 4
	e.TransferRateLimit = int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	e.TRLPerProcess = int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	e.LastConnection = int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	copy(e.ErrorHistory[:], b[off:off+ErrorHistoryLength])
	return e
}

func putString(b []byte, s string) {
	for i := range b {
		b[i] = 0
	}
	copy(b, s)
}

func getString(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// PushErrorHistory shifts the ring right and inserts code at the
// front, matching "shift-right-and-insert on every non-success" (§4.4).
func PushErrorHistory(hist *[ErrorHistoryLength]byte, code byte) {
	copy(hist[1:], hist[:len(hist)-1])
	hist[0] = code
}
