package engine

import (
	"testing"
	"time"

	"chatguard/internal/model"
)

func TestCooldownAllow(t *testing.T) {
	c := NewCooldown()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := time.Minute

	if !c.Allow("1|2", model.AlertHighRiskFraud, window, base) {
		t.Fatalf("first fire must be allowed")
	}
	if c.Allow("1|2", model.AlertHighRiskFraud, window, base.Add(30*time.Second)) {
		t.Fatalf("fire inside the window must be suppressed")
	}
	if !c.Allow("1|2", model.AlertHighRiskFraud, window, base.Add(window)) {
		t.Fatalf("fire at the window boundary must be allowed")
	}
}

func TestCooldownKeysIndependent(t *testing.T) {
	c := NewCooldown()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := time.Minute

	c.Allow("1|2", model.AlertHighRiskFraud, window, base)
	// same origin, different alert type
	if !c.Allow("1|2", model.AlertBrandMentionInfo, window, base) {
		t.Fatalf("alert types cool down independently")
	}
	// same alert type, different origin
	if !c.Allow("3|2", model.AlertHighRiskFraud, window, base) {
		t.Fatalf("origins cool down independently")
	}
	if c.Len() != 3 {
		t.Fatalf("tracked pairs = %d, want 3", c.Len())
	}
}

func TestCooldownDisabled(t *testing.T) {
	c := NewCooldown()
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if !c.Allow("1|2", model.AlertHighRiskFraud, 0, now) {
			t.Fatalf("window 0 disables suppression")
		}
	}
	if c.Len() != 0 {
		t.Fatalf("disabled cooldown must not record entries")
	}
}

func TestCooldownSuppressionDoesNotExtend(t *testing.T) {
	c := NewCooldown()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := time.Minute

	c.Allow("1|2", model.AlertHighRiskFraud, window, base)
	// repeated suppressed fires must not refresh the timestamp
	c.Allow("1|2", model.AlertHighRiskFraud, window, base.Add(30*time.Second))
	c.Allow("1|2", model.AlertHighRiskFraud, window, base.Add(59*time.Second))
	if !c.Allow("1|2", model.AlertHighRiskFraud, window, base.Add(61*time.Second)) {
		t.Fatalf("window measured from the last allowed fire, not the last attempt")
	}
}
