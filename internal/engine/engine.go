package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"chatguard/internal/alerts"
	"chatguard/internal/config"
	"chatguard/internal/model"
)

// Notifier is the notification sink boundary. Failures are logged, never
// retried by the engine.
type Notifier interface {
	Notify(ctx context.Context, originID string, alertType model.AlertType, keywords []string, score float64) error
}

// Engine runs the scan → score → decide pipeline. Scan and Score hold no
// cross-message state; the only shared mutable state is the cooldown map,
// which guards its own lock. Safe for concurrent Analyze calls.
type Engine struct {
	logger   *slog.Logger
	alerts   *alerts.Store
	notifier Notifier
	matcher  atomic.Value // *Matcher
	cfg      atomic.Value // *config.Config
	cooldown *Cooldown
}

func NewEngine(cfg *config.Config, logger *slog.Logger, alertsStore *alerts.Store, notifier Notifier) (*Engine, error) {
	matcher, err := NewMatcher(cfg.Detection.BrandKeywords)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		logger:   logger,
		alerts:   alertsStore,
		notifier: notifier,
		cooldown: NewCooldown(),
	}
	e.matcher.Store(matcher)
	e.cfg.Store(cfg)
	return e, nil
}

// UpdateConfig rebuilds the rule table from cfg and swaps it in. Readers
// mid-scan keep the table they started with.
func (e *Engine) UpdateConfig(cfg *config.Config) error {
	matcher, err := NewMatcher(cfg.Detection.BrandKeywords)
	if err != nil {
		return err
	}
	e.matcher.Store(matcher)
	e.cfg.Store(cfg)
	return nil
}

func (e *Engine) config() *config.Config {
	if v := e.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

func (e *Engine) Matcher() *Matcher {
	return e.matcher.Load().(*Matcher)
}

func (e *Engine) Reset() {
	e.cooldown = NewCooldown()
}

// Decide maps a match set and score to an alert type. Evaluated as an
// ordered table, first match wins.
func Decide(ms model.MatchSet, score, floor float64) model.AlertType {
	switch {
	case ms.HasBrands() && ms.HasSuspicious():
		return model.AlertHighRiskFraud
	case ms.HasBrands():
		return model.AlertBrandMentionInfo
	case ms.HasSuspicious() && score > floor:
		return model.AlertSuspiciousContent
	default:
		return model.AlertNone
	}
}

// notifiable alert types interrupt the channel. Suspicious content without
// a brand match is store-only.
func notifiable(t model.AlertType) bool {
	return t == model.AlertHighRiskFraud || t == model.AlertBrandMentionInfo
}

// Analyze scans, scores and decides for one message. A validation failure
// returns a no-op result alongside an error wrapping ErrValidation; the
// caller decides whether to count it as a failed attempt. Cooldown lookup
// happens only when the decision is an alert, and the notification send
// runs after the cooldown transition, outside its lock.
func (e *Engine) Analyze(ctx context.Context, in model.AnalysisInput) (model.AnalysisResult, error) {
	cfg := e.config()
	if err := ValidateInput(in.Text, in.OriginID, cfg.Detection.MaxMessageLength); err != nil {
		return model.AnalysisResult{AlertType: model.AlertNone}, err
	}
	now := in.ObservedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ms := e.Matcher().Scan(in.Text)
	score := Score(ms, in.Text)
	alertType := Decide(ms, score, cfg.Detection.SuspiciousFloor)

	result := model.AnalysisResult{
		Matches:   ms,
		Score:     score,
		AlertType: alertType,
		Keywords:  ms.Keywords(),
	}
	if alertType == model.AlertNone {
		return result, nil
	}

	allowed := e.cooldown.Allow(in.OriginID, alertType, cfg.Detection.AlertCooldown, now)
	result.Notified = allowed && notifiable(alertType)

	alert := model.Alert{
		ID:         uuid.NewString(),
		Timestamp:  now,
		OriginID:   in.OriginID,
		AlertType:  alertType,
		Keywords:   result.Keywords,
		Score:      score,
		Notified:   result.Notified,
		Suppressed: !allowed,
	}
	result.Alert = &alert
	if e.alerts != nil {
		e.alerts.Add(alert)
	}
	if e.logger != nil {
		e.logger.Warn("alert decided",
			"origin_id", in.OriginID,
			"alert_type", alertType,
			"score", score,
			"keywords", result.Keywords,
			"notified", result.Notified,
			"suppressed", !allowed,
		)
	}

	if result.Notified && e.notifier != nil {
		if err := e.notifier.Notify(ctx, in.OriginID, alertType, result.Keywords, score); err != nil {
			if e.logger != nil {
				e.logger.Error("notification failed", "origin_id", in.OriginID, "alert_type", alertType, "err", err)
			}
		}
	}
	return result, nil
}
