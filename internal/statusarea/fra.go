package statusarea

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const (
	dirAliasLen   = 64
	scheduleLen   = 64
	dirRecordSize = dirAliasLen + scheduleLen + 8*6
)

// DirStatusBits are flags carried in dir_status.
type DirStatusBits uint32

const (
	DirDisabled DirStatusBits = 1 << 0
)

// TimeOption selects whether a directory's retrieve schedule is
// evaluated at all (§4.5).
type TimeOption int

const (
	TimeOptionNo TimeOption = iota
	TimeOptionYes
)

// DirEntry is one FRA record (§3, Directory status array).
type DirEntry struct {
	DirAlias      string
	Schedule      string // cron expression, empty if TimeOption is No
	Queued        bool
	DirStatus     DirStatusBits
	TimeOption    TimeOption
	NextCheckTime int64
	Priority      byte
	FSAPos        int32 // gateway host's FSA index
	Protocol      int32 // protocol.Variant, stored as int32
}

// FRA is the mmap'd directory status array.
type FRA struct {
	file    *os.File
	data    []byte
	entries []DirEntry
}

// Attach opens/creates the FRA backing file with room for n
// directories and mmaps it.
func Attach(path string, n int) (*FRA, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("statusarea: open fra: %w", err)
	}
	size := n * dirRecordSize
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: truncate fra: %w", err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statusarea: mmap fra: %w", err)
	}
	fra := &FRA{file: f, data: data, entries: make([]DirEntry, n)}
	for i := 0; i < n; i++ {
		fra.entries[i] = decodeDir(data[i*dirRecordSize : (i+1)*dirRecordSize])
	}
	return fra, nil
}

// Detach flushes and unmaps the FRA.
func (a *FRA) Detach() error {
	if err := unix.Msync(a.data, unix.MS_SYNC); err != nil {
		return err
	}
	if err := unix.Munmap(a.data); err != nil {
		return err
	}
	return a.file.Close()
}

// Len returns the number of directory entries.
func (a *FRA) Len() int { return len(a.entries) }

// Get returns a copy of the entry at pos.
func (a *FRA) Get(pos int) DirEntry { return a.entries[pos] }

// Set writes e back to pos.
func (a *FRA) Set(pos int, e DirEntry) {
	a.entries[pos] = e
	encodeDir(a.data[pos*dirRecordSize:(pos+1)*dirRecordSize], e)
}

// Sync msyncs the mapped region to disk.
func (a *FRA) Sync() error {
	return unix.Msync(a.data, unix.MS_ASYNC)
}

func encodeDir(b []byte, e DirEntry) {
	putString(b[0:dirAliasLen], e.DirAlias)
	off := dirAliasLen
	putString(b[off:off+scheduleLen], e.Schedule)
	off += scheduleLen
	var queued, disabled uint64
	if e.Queued {
		queued = 1
	}
	if e.DirStatus&DirDisabled != 0 {
		disabled = 1
	}
	binary.LittleEndian.PutUint64(b[off:], queued)
	off += 8
	binary.LittleEndian.PutUint64(b[off:], disabled)
	off += 8
	binary.LittleEndian.PutUint64(b[off:], uint64(e.TimeOption))
	off += 8
	binary.LittleEndian.PutUint64(b[off:], uint64(e.NextCheckTime))
	off += 8
	binary.LittleEndian.PutUint64(b[off:], uint64(e.Priority))
	off += 8
	binary.LittleEndian.PutUint64(b[off:], uint64(e.FSAPos))
	off += 8
}

func decodeDir(b []byte) DirEntry {
	var e DirEntry
	e.DirAlias = getString(b[0:dirAliasLen])
	off := dirAliasLen
	e.Schedule = getString(b[off : off+scheduleLen])
	off += scheduleLen
	e.Queued = binary.LittleEndian.Uint64(b[off:]) != 0
	off += 8
	if binary.LittleEndian.Uint64(b[off:]) != 0 {
		e.DirStatus |= DirDisabled
	}
	off += 8
	e.TimeOption = TimeOption(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	e.NextCheckTime = int64(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	e.Priority = byte(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	e.FSAPos = int32(binary.LittleEndian.Uint64(b[off:]))
	off += 8
	return e
}
