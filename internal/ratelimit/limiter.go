package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter holds the per-process token bucket(s) for one host, and
// recomputes them when the host's transfer_rate_limit or
// active_transfers changes (§4.3 step 7, calc_trl_per_process).
type HostLimiter struct {
	limiter *rate.Limiter
}

// NewHostLimiter builds a limiter for a host with no configured cap;
// Recalc must be called once allowed_transfers/transfer_rate_limit are
// known.
func NewHostLimiter() *HostLimiter {
	return &HostLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
}

// Recalc redistributes the host's overall transfer_rate_limit (bytes
// per second, 0 = unlimited) evenly across its current number of
// active transfers, matching the original's trl_per_process
// recomputation trigger conditions (host rate limit set, or any TRL
// group in use).
func (h *HostLimiter) Recalc(hostRateLimit int64, activeTransfers int) {
	if hostRateLimit <= 0 {
		h.limiter.SetLimit(rate.Inf)
		h.limiter.SetBurst(0)
		return
	}
	if activeTransfers < 1 {
		activeTransfers = 1
	}
	perProcess := hostRateLimit / int64(activeTransfers)
	if perProcess < 1 {
		perProcess = 1
	}
	h.limiter.SetLimit(rate.Limit(perProcess))
	h.limiter.SetBurst(int(perProcess))
}

// WaitN blocks until n bytes' worth of tokens are available, or ctx is
// cancelled — used by the worker binaries between read chunks.
func (h *HostLimiter) WaitN(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	return h.limiter.WaitN(ctx, n)
}

// Limit returns the currently configured bytes/sec cap, or rate.Inf
// for unlimited.
func (h *HostLimiter) Limit() rate.Limit {
	return h.limiter.Limit()
}

// RecalcInterval is how often the maintenance loop should re-derive
// trl_per_process from FSA, bounding churn when active_transfers
// fluctuates rapidly.
const RecalcInterval = 5 * time.Second
