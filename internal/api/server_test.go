package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatguard/internal/alerts"
	"chatguard/internal/config"
	"chatguard/internal/model"
	"chatguard/internal/stats"
)

type fakeEngine struct {
	resets int
}

func (f *fakeEngine) Reset()                            { f.resets++ }
func (f *fakeEngine) UpdateConfig(*config.Config) error { return nil }

func newTestServer() (*Server, *fakeEngine) {
	eng := &fakeEngine{}
	s := &Server{
		cfg:     config.NewStaticManager(nil),
		alerts:  alerts.NewStore(100),
		stats:   stats.NewStore(),
		engine:  eng,
		version: "test",
	}
	return s, eng
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["status"] != "ok" {
		t.Fatalf("body = %s, err = %v", rec.Body.String(), err)
	}

	rec = httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST should be rejected, got %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer()
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Version != "test" || len(resp.Detection.BrandKeywords) == 0 {
		t.Fatalf("unexpected status: %+v", resp)
	}
}

func TestHandleAlerts(t *testing.T) {
	s, _ := newTestServer()
	now := time.Now().UTC()
	s.alerts.Add(model.Alert{ID: "a-1", Timestamp: now.Add(-2 * time.Hour), AlertType: model.AlertBrandMentionInfo})
	s.alerts.Add(model.Alert{ID: "a-2", Timestamp: now, AlertType: model.AlertHighRiskFraud})

	rec := httptest.NewRecorder()
	s.handleAlerts(rec, httptest.NewRequest(http.MethodGet, "/alerts?limit=1", nil))
	var resp struct {
		Alerts []model.Alert `json:"alerts"`
		Count  int           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Alerts[0].ID != "a-2" {
		t.Fatalf("limit query failed: %+v", resp)
	}

	since := now.Add(-time.Hour).Format(time.RFC3339)
	rec = httptest.NewRecorder()
	s.handleAlerts(rec, httptest.NewRequest(http.MethodGet, "/alerts?since="+since, nil))
	resp.Alerts = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Alerts[0].ID != "a-2" {
		t.Fatalf("since query failed: %+v", resp)
	}

	rec = httptest.NewRecorder()
	s.handleAlerts(rec, httptest.NewRequest(http.MethodGet, "/alerts?since=garbage", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed since should 400, got %d", rec.Code)
	}
}

func TestHandleStats(t *testing.T) {
	s, _ := newTestServer()
	s.stats.MessageProcessed("text")
	s.alerts.Add(model.Alert{ID: "a-1", Timestamp: time.Now().UTC(), AlertType: model.AlertHighRiskFraud})

	rec := httptest.NewRecorder()
	s.handleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"process", "alerts_24h", "time"} {
		if _, ok := out[key]; !ok {
			t.Errorf("stats response missing %q", key)
		}
	}
}

func TestHandleClear(t *testing.T) {
	s, eng := newTestServer()
	s.alerts.Add(model.Alert{ID: "a-1", Timestamp: time.Now().UTC(), AlertType: model.AlertHighRiskFraud})
	s.stats.MessageProcessed("text")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/clear", strings.NewReader(`{"target":"all"}`))
	s.handleClear(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(s.alerts.List(0)) != 0 {
		t.Fatalf("alerts not cleared")
	}
	if s.stats.Snapshot().MessagesByType["text"] != 0 {
		t.Fatalf("stats not cleared")
	}
	if eng.resets != 1 {
		t.Fatalf("engine resets = %d, want 1", eng.resets)
	}

	rec = httptest.NewRecorder()
	s.handleClear(rec, httptest.NewRequest(http.MethodPost, "/admin/clear", strings.NewReader(`{"target":"bogus"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus target should 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.handleClear(rec, httptest.NewRequest(http.MethodGet, "/admin/clear", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET should be rejected, got %d", rec.Code)
	}
}
