package security

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"chatguard/internal/config"
)

type attempt struct {
	at     time.Time
	reason string
}

type record struct {
	attempts     []attempt
	blockedUntil time.Time
	lastActivity time.Time
}

// Monitor tracks failed or suspicious attempts per caller identity and
// derives block state once the in-window count crosses the threshold.
type Monitor struct {
	mu          sync.Mutex
	records     map[string]*record
	maxAttempts int
	window      time.Duration
	blockFor    time.Duration
	recentLimit int
	totalSeen   uint64
	logger      *slog.Logger
	nowFn       func() time.Time
}

func NewMonitor(cfg config.SecurityConfig, logger *slog.Logger) *Monitor {
	return &Monitor{
		records:     make(map[string]*record),
		maxAttempts: cfg.MaxFailedAttempts,
		window:      cfg.FailureWindow,
		blockFor:    cfg.BlockDuration,
		recentLimit: cfg.RecentLimit,
		logger:      logger,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordFailedAttempt appends the attempt, prunes entries older than the
// failure window and recomputes the block horizon when the pruned count
// reaches the threshold.
func (m *Monitor) RecordFailedAttempt(identity, reason string) {
	now := m.nowFn()
	cutoff := now.Add(-m.window)

	m.mu.Lock()
	r, ok := m.records[identity]
	if !ok {
		r = &record{}
		m.records[identity] = r
	}
	r.attempts = append(r.attempts, attempt{at: now, reason: reason})
	kept := r.attempts[:0]
	for _, a := range r.attempts {
		if a.at.After(cutoff) {
			kept = append(kept, a)
		}
	}
	r.attempts = kept
	r.lastActivity = now
	m.totalSeen++
	count := len(r.attempts)
	blocked := false
	if count >= m.maxAttempts {
		r.blockedUntil = now.Add(m.blockFor)
		blocked = true
	}
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Warn("failed attempt recorded",
			"identity", identity,
			"reason", reason,
			"attempts", count,
			"blocked", blocked,
		)
	}
}

// IsBlocked reports whether identity has an active block. It never extends
// state; an expired block horizon is dropped here for memory hygiene.
func (m *Monitor) IsBlocked(identity string) bool {
	now := m.nowFn()
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[identity]
	if !ok {
		return false
	}
	if r.blockedUntil.IsZero() {
		return false
	}
	if !now.Before(r.blockedUntil) {
		r.blockedUntil = time.Time{}
		return false
	}
	return true
}

// ClearAttempts forgets the identity entirely.
func (m *Monitor) ClearAttempts(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, identity)
}

type IdentityActivity struct {
	Identity     string    `json:"identity"`
	Attempts     int       `json:"attempts"`
	LastActivity time.Time `json:"last_activity"`
	Blocked      bool      `json:"blocked"`
}

type Stats struct {
	TotalAttempts     uint64             `json:"total_attempts"`
	TrackedIdentities int                `json:"tracked_identities"`
	BlockedIdentities int                `json:"blocked_identities"`
	Recent            []IdentityActivity `json:"recent"`
}

// GetStats aggregates across all identities: lifetime attempt total,
// currently blocked count, and the most recently active identities first,
// bounded by the configured limit.
func (m *Monitor) GetStats() Stats {
	now := m.nowFn()
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		TotalAttempts:     m.totalSeen,
		TrackedIdentities: len(m.records),
	}
	st.Recent = make([]IdentityActivity, 0, len(m.records))
	for id, r := range m.records {
		blocked := !r.blockedUntil.IsZero() && now.Before(r.blockedUntil)
		if blocked {
			st.BlockedIdentities++
		}
		st.Recent = append(st.Recent, IdentityActivity{
			Identity:     id,
			Attempts:     len(r.attempts),
			LastActivity: r.lastActivity,
			Blocked:      blocked,
		})
	}
	sort.Slice(st.Recent, func(i, j int) bool {
		return st.Recent[i].LastActivity.After(st.Recent[j].LastActivity)
	})
	if m.recentLimit > 0 && len(st.Recent) > m.recentLimit {
		st.Recent = st.Recent[:m.recentLimit]
	}
	return st
}

// Sweep drops identities idle for twice the failure window with no active
// block. Call from a low-frequency background cycle.
func (m *Monitor) Sweep() int {
	now := m.nowFn()
	cutoff := now.Add(-2 * m.window)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, r := range m.records {
		if r.lastActivity.Before(cutoff) && (r.blockedUntil.IsZero() || !now.Before(r.blockedUntil)) {
			delete(m.records, id)
			removed++
		}
	}
	return removed
}
