package alerts

import (
	"fmt"
	"testing"
	"time"

	"chatguard/internal/model"
)

func mkAlert(i int, at time.Time, typ model.AlertType) model.Alert {
	return model.Alert{
		ID:        fmt.Sprintf("a-%d", i),
		Timestamp: at,
		OriginID:  "1|2",
		AlertType: typ,
		Score:     0.5,
	}
}

func TestStoreBounded(t *testing.T) {
	s := NewStore(3)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s.Add(mkAlert(i, now, model.AlertHighRiskFraud))
	}
	got := s.List(0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "a-2" || got[2].ID != "a-4" {
		t.Fatalf("oldest entries should fall off, got %v..%v", got[0].ID, got[2].ID)
	}
}

func TestStoreListLimit(t *testing.T) {
	s := NewStore(10)
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s.Add(mkAlert(i, now, model.AlertHighRiskFraud))
	}
	got := s.List(2)
	if len(got) != 2 || got[1].ID != "a-4" {
		t.Fatalf("List(2) should return the newest two, got %+v", got)
	}
}

func TestStoreSince(t *testing.T) {
	s := NewStore(10)
	base := time.Now().UTC()
	s.Add(mkAlert(0, base.Add(-2*time.Hour), model.AlertHighRiskFraud))
	s.Add(mkAlert(1, base.Add(-time.Minute), model.AlertBrandMentionInfo))
	got := s.Since(base.Add(-time.Hour))
	if len(got) != 1 || got[0].ID != "a-1" {
		t.Fatalf("Since returned %+v", got)
	}
}

func TestStoreCountByType(t *testing.T) {
	s := NewStore(10)
	base := time.Now().UTC()
	s.Add(mkAlert(0, base.Add(-30*time.Hour), model.AlertHighRiskFraud))
	s.Add(mkAlert(1, base, model.AlertHighRiskFraud))
	s.Add(mkAlert(2, base, model.AlertHighRiskFraud))
	s.Add(mkAlert(3, base, model.AlertSuspiciousContent))

	counts := s.CountByType(base.Add(-24 * time.Hour))
	if counts[model.AlertHighRiskFraud] != 2 {
		t.Fatalf("high risk count = %d, want 2", counts[model.AlertHighRiskFraud])
	}
	if counts[model.AlertSuspiciousContent] != 1 {
		t.Fatalf("suspicious count = %d, want 1", counts[model.AlertSuspiciousContent])
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore(10)
	s.Add(mkAlert(0, time.Now().UTC(), model.AlertHighRiskFraud))
	s.Clear()
	if got := s.List(0); len(got) != 0 {
		t.Fatalf("store not empty after Clear: %+v", got)
	}
}
