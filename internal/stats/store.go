package stats

import (
	"sync"
	"time"

	"chatguard/internal/model"
)

// Store holds process-lifetime counters for the stats endpoint.
type Store struct {
	mu             sync.RWMutex
	started        time.Time
	messagesByType map[string]uint64
	alertsByType   map[model.AlertType]uint64
	ocrRuns        uint64
	ocrFailures    uint64
	rateLimited    uint64
	blockedDrops   uint64
	validationErrs uint64
}

func NewStore() *Store {
	return &Store{
		started:        time.Now().UTC(),
		messagesByType: make(map[string]uint64),
		alertsByType:   make(map[model.AlertType]uint64),
	}
}

func (s *Store) MessageProcessed(messageType string) {
	if messageType == "" {
		messageType = "other"
	}
	s.mu.Lock()
	s.messagesByType[messageType]++
	s.mu.Unlock()
}

func (s *Store) AlertRaised(t model.AlertType) {
	s.mu.Lock()
	s.alertsByType[t]++
	s.mu.Unlock()
}

func (s *Store) OCRProcessed(ok bool) {
	s.mu.Lock()
	s.ocrRuns++
	if !ok {
		s.ocrFailures++
	}
	s.mu.Unlock()
}

func (s *Store) RateLimited()       { s.bump(&s.rateLimited) }
func (s *Store) BlockedDropped()    { s.bump(&s.blockedDrops) }
func (s *Store) ValidationFailure() { s.bump(&s.validationErrs) }

func (s *Store) bump(field *uint64) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}

type Snapshot struct {
	StartedAt          time.Time                  `json:"started_at"`
	UptimeSec          float64                    `json:"uptime_sec"`
	MessagesByType     map[string]uint64          `json:"messages_by_type"`
	AlertsByType       map[model.AlertType]uint64 `json:"alerts_by_type"`
	OCRRuns            uint64                     `json:"ocr_runs"`
	OCRFailures        uint64                     `json:"ocr_failures"`
	RateLimited        uint64                     `json:"rate_limited"`
	BlockedDrops       uint64                     `json:"blocked_drops"`
	ValidationFailures uint64                     `json:"validation_failures"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		StartedAt:          s.started,
		UptimeSec:          time.Since(s.started).Seconds(),
		MessagesByType:     make(map[string]uint64, len(s.messagesByType)),
		AlertsByType:       make(map[model.AlertType]uint64, len(s.alertsByType)),
		OCRRuns:            s.ocrRuns,
		OCRFailures:        s.ocrFailures,
		RateLimited:        s.rateLimited,
		BlockedDrops:       s.blockedDrops,
		ValidationFailures: s.validationErrs,
	}
	for k, v := range s.messagesByType {
		snap.MessagesByType[k] = v
	}
	for k, v := range s.alertsByType {
		snap.AlertsByType[k] = v
	}
	return snap
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messagesByType = make(map[string]uint64)
	s.alertsByType = make(map[model.AlertType]uint64)
	s.ocrRuns, s.ocrFailures = 0, 0
	s.rateLimited, s.blockedDrops, s.validationErrs = 0, 0, 0
}
