// Package ratelimit implements the per-process transfer-rate limiting
// and throughput accounting used by §4.3 step 7 (trl_per_process
// recomputation) and by the worker binaries that perform the actual
// byte copying.
//
// The accounting half of this file is adapted from the teacher's
// legacy root-level accounting.go (rclone's original single-file
// Stats/Account reader): the same read-wrapper shape, reworked to use
// atomic counters instead of a mutex-guarded map, and to feed an EWMA
// instead of a point-in-time average.
package ratelimit

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/VividCortex/ewma"
)

// Tracker accounts bytes moved by one connection slot's worker and
// feeds an exponentially-weighted moving average of throughput, the
// signal calc_trl_per_process redistributes a host's
// transfer_rate_limit across active_transfers from.
type Tracker struct {
	bytes   int64 // atomic
	start   time.Time
	avgRate ewma.MovingAverage
}

// NewTracker creates a Tracker starting its EWMA window now.
func NewTracker() *Tracker {
	return &Tracker{
		start:   time.Now(),
		avgRate: ewma.NewMovingAverage(),
	}
}

// Bytes returns the total bytes accounted so far.
func (t *Tracker) Bytes() int64 {
	return atomic.LoadInt64(&t.bytes)
}

// Sample folds a bytes-per-second observation into the moving
// average. Call this once per periodic maintenance tick (§2,
// "Periodic Maintenance") per active connection.
func (t *Tracker) Sample() float64 {
	elapsed := time.Since(t.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	rate := float64(t.Bytes()) / elapsed
	t.avgRate.Add(rate)
	return t.avgRate.Value()
}

// AccountingReader wraps an io.Reader (a worker's local file handle or
// network response body), counting bytes as they are read so a
// Tracker can feed the rate-limit recomputation and the transfer log.
type AccountingReader struct {
	in      io.Reader
	tracker *Tracker
}

// NewAccountingReader wraps in with byte accounting against tracker.
func NewAccountingReader(in io.Reader, tracker *Tracker) *AccountingReader {
	return &AccountingReader{in: in, tracker: tracker}
}

// Read implements io.Reader, updating the tracker's byte count.
func (a *AccountingReader) Read(p []byte) (n int, err error) {
	n, err = a.in.Read(p)
	if n > 0 {
		atomic.AddInt64(&a.tracker.bytes, int64(n))
	}
	return n, err
}

// Close closes the underlying reader if it is an io.Closer.
func (a *AccountingReader) Close() error {
	if c, ok := a.in.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

var _ io.ReadCloser = &AccountingReader{}
