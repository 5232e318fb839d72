package app

import (
	"sync"
	"time"

	"github.com/dkeye/Relay/internal/domain"
)

// CommandLimiter bounds how many control commands one session may issue
// inside a sliding window.
type CommandLimiter struct {
	mu       sync.Mutex
	history  map[domain.SessionID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewCommandLimiter(limit int, interval time.Duration) *CommandLimiter {
	return &CommandLimiter{
		history:  make(map[domain.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *CommandLimiter) Allow(sid domain.SessionID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[sid]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}

	rl.history[sid] = append(fresh, now)
	return true
}

// Forget drops the history of a disconnected session.
func (rl *CommandLimiter) Forget(sid domain.SessionID) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.history, sid)
}

// RetryIn reports how long sid must wait before its next command is allowed.
// Zero means a command would pass now.
func (rl *CommandLimiter) RetryIn(sid domain.SessionID) time.Duration {
	if rl == nil || rl.limit <= 0 {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	fresh := make([]time.Time, 0, len(rl.history[sid]))
	for _, t := range rl.history[sid] {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) < rl.limit {
		return 0
	}
	// The window frees up when the oldest attempt that keeps it full expires.
	return fresh[len(fresh)-rl.limit].Add(rl.interval).Sub(now)
}

func (rl *CommandLimiter) Limit() int {
	if rl == nil {
		return 0
	}
	return rl.limit
}
