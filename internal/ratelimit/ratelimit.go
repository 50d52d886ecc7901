package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"chatguard/internal/config"
)

// Limiter is a sliding-window admission controller keyed by caller
// identity. Only events within the trailing window count toward the limit,
// so a request from second 1 expires independently of one from second 59.
type Limiter struct {
	mu        sync.Mutex
	windows   map[string][]time.Time
	maxReq    int
	window    time.Duration
	sweep     time.Duration
	stopSweep chan struct{}
	stopOnce  sync.Once
	logger    *slog.Logger
	nowFn     func() time.Time
}

func New(cfg config.RateLimitConfig, logger *slog.Logger) *Limiter {
	l := &Limiter{
		windows:   make(map[string][]time.Time),
		maxReq:    cfg.MaxRequests,
		window:    cfg.Window,
		sweep:     cfg.SweepInterval,
		stopSweep: make(chan struct{}),
		logger:    logger,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
	if l.sweep > 0 {
		go l.sweepLoop()
	}
	return l
}

// Admit records and allows the request unless the identity already has
// maxRequests timestamps inside the window. A denied request is not
// recorded: denial is a pure admission signal.
func (l *Limiter) Admit(identity string) bool {
	now := l.nowFn()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.windows[identity]
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.maxReq {
		l.windows[identity] = kept
		return false
	}
	l.windows[identity] = append(kept, now)
	return true
}

// Stats reports tracked identities and in-window request totals.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, ts := range l.windows {
		total += len(ts)
	}
	return Stats{TrackedIdentities: len(l.windows), RequestsInWindow: total}
}

type Stats struct {
	TrackedIdentities int `json:"tracked_identities"`
	RequestsInWindow  int `json:"requests_in_window"`
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopSweep:
			return
		}
	}
}

// cleanup drops identities whose newest timestamp predates the window by a
// 2x safety margin, bounding growth with distinct-identity count.
func (l *Limiter) cleanup() {
	now := l.nowFn()
	cutoff := now.Add(-2 * l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, ts := range l.windows {
		if len(ts) == 0 || ts[len(ts)-1].Before(cutoff) {
			delete(l.windows, id)
			removed++
		}
	}
	if removed > 0 && l.logger != nil {
		l.logger.Debug("rate limiter cleanup", "removed", removed, "remaining", len(l.windows))
	}
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopSweep) })
}
