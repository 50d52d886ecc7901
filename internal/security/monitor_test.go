package security

import (
	"testing"
	"time"

	"chatguard/internal/config"
)

func newTestMonitor(maxAttempts int, window, blockFor time.Duration) (*Monitor, *time.Time) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewMonitor(config.SecurityConfig{
		MaxFailedAttempts: maxAttempts,
		FailureWindow:     window,
		BlockDuration:     blockFor,
		RecentLimit:       20,
	}, nil)
	m.nowFn = func() time.Time { return now }
	return m, &now
}

func TestBlockDerivedAtThreshold(t *testing.T) {
	m, _ := newTestMonitor(3, time.Minute, 5*time.Minute)
	m.RecordFailedAttempt("chan-1", "validation_failure")
	m.RecordFailedAttempt("chan-1", "validation_failure")
	if m.IsBlocked("chan-1") {
		t.Fatalf("blocked below threshold")
	}
	m.RecordFailedAttempt("chan-1", "validation_failure")
	if !m.IsBlocked("chan-1") {
		t.Fatalf("expected block at threshold")
	}
}

func TestBlockExpires(t *testing.T) {
	m, now := newTestMonitor(2, time.Minute, 5*time.Minute)
	base := *now
	m.RecordFailedAttempt("chan-1", "x")
	m.RecordFailedAttempt("chan-1", "x")
	*now = base.Add(5*time.Minute - time.Second)
	if !m.IsBlocked("chan-1") {
		t.Fatalf("block should still be active just before the horizon")
	}
	*now = base.Add(5 * time.Minute)
	if m.IsBlocked("chan-1") {
		t.Fatalf("block should expire at the horizon")
	}
	// IsBlocked must not extend or re-create the block
	if m.IsBlocked("chan-1") {
		t.Fatalf("expired block came back")
	}
}

func TestAttemptsOutsideWindowDoNotCount(t *testing.T) {
	m, now := newTestMonitor(3, time.Minute, 5*time.Minute)
	base := *now
	m.RecordFailedAttempt("chan-1", "x")
	m.RecordFailedAttempt("chan-1", "x")
	// old attempts age out before the third arrives
	*now = base.Add(2 * time.Minute)
	m.RecordFailedAttempt("chan-1", "x")
	if m.IsBlocked("chan-1") {
		t.Fatalf("stale attempts must not trigger a block")
	}
}

func TestClearAttempts(t *testing.T) {
	m, _ := newTestMonitor(1, time.Minute, 5*time.Minute)
	m.RecordFailedAttempt("chan-1", "x")
	if !m.IsBlocked("chan-1") {
		t.Fatalf("expected block")
	}
	m.ClearAttempts("chan-1")
	if m.IsBlocked("chan-1") {
		t.Fatalf("cleared identity should not be blocked")
	}
}

func TestGetStatsOrdering(t *testing.T) {
	m, now := newTestMonitor(2, time.Hour, 5*time.Minute)
	base := *now
	m.RecordFailedAttempt("chan-1", "x")
	*now = base.Add(time.Minute)
	m.RecordFailedAttempt("chan-2", "x")
	*now = base.Add(2 * time.Minute)
	m.RecordFailedAttempt("chan-2", "x")

	st := m.GetStats()
	if st.TotalAttempts != 3 {
		t.Fatalf("total attempts = %d, want 3", st.TotalAttempts)
	}
	if st.TrackedIdentities != 2 {
		t.Fatalf("tracked identities = %d, want 2", st.TrackedIdentities)
	}
	if st.BlockedIdentities != 1 {
		t.Fatalf("blocked identities = %d, want 1", st.BlockedIdentities)
	}
	if len(st.Recent) != 2 || st.Recent[0].Identity != "chan-2" {
		t.Fatalf("recent should be most recent first, got %+v", st.Recent)
	}
	if !st.Recent[0].Blocked || st.Recent[1].Blocked {
		t.Fatalf("blocked flags wrong: %+v", st.Recent)
	}
}

func TestSweepKeepsActiveBlocks(t *testing.T) {
	m, now := newTestMonitor(1, time.Minute, time.Hour)
	base := *now
	m.RecordFailedAttempt("blocked", "x")
	m.RecordFailedAttempt("idle", "x")
	m.records["idle"].blockedUntil = time.Time{}

	*now = base.Add(10 * time.Minute)
	removed := m.Sweep()
	if removed != 1 {
		t.Fatalf("sweep removed %d, want 1", removed)
	}
	if _, ok := m.records["blocked"]; !ok {
		t.Fatalf("actively blocked identity must survive the sweep")
	}
}
