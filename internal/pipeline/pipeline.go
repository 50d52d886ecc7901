package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"chatguard/internal/engine"
	"chatguard/internal/model"
	"chatguard/internal/ocr"
	"chatguard/internal/ratelimit"
	"chatguard/internal/security"
	"chatguard/internal/stats"
	"chatguard/internal/storage"
)

// Pipeline sequences one inbound message through admission control, the
// analysis engine and the collaborators. Admission failures are terminal
// for that message; collaborator failures are logged and never abort the
// remaining steps.
type Pipeline struct {
	engine  *engine.Engine
	limiter *ratelimit.Limiter
	monitor *security.Monitor
	store   storage.Store
	ocr     ocr.Extractor
	stats   *stats.Store
	logger  *slog.Logger
}

func New(eng *engine.Engine, limiter *ratelimit.Limiter, monitor *security.Monitor, store storage.Store, extractor ocr.Extractor, statsStore *stats.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		engine:  eng,
		limiter: limiter,
		monitor: monitor,
		store:   store,
		ocr:     extractor,
		stats:   statsStore,
		logger:  logger,
	}
}

// Start consumes messages from in until ctx is done.
func (p *Pipeline) Start(ctx context.Context, in <-chan model.InboundMessage) {
	go func() {
		for {
			select {
			case msg := <-in:
				p.Process(ctx, msg)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *Pipeline) Process(ctx context.Context, msg model.InboundMessage) {
	caller := msg.CallerID()

	if p.monitor != nil && p.monitor.IsBlocked(caller) {
		if p.stats != nil {
			p.stats.BlockedDropped()
		}
		if p.logger != nil {
			p.logger.Warn("blocked identity, skipping message", "caller", caller)
		}
		return
	}

	if p.limiter != nil && !p.limiter.Admit(caller) {
		if p.stats != nil {
			p.stats.RateLimited()
		}
		if p.logger != nil {
			p.logger.Warn("rate limit exceeded, skipping message", "caller", caller)
		}
		return
	}

	var messageID int64
	if p.store != nil {
		id, err := p.store.SaveMessage(ctx, storage.MessageRecord{
			ExternalMessageID: msg.ExternalMessageID,
			ChannelID:         msg.ChannelID,
			UserID:            msg.UserID,
			Username:          msg.Username,
			Text:              msg.Text,
			MessageType:       msg.MessageType,
		})
		if err != nil {
			if p.logger != nil {
				p.logger.Error("save message failed", "err", err, "channel_id", msg.ChannelID)
			}
		} else {
			messageID = id
		}
	}

	if msg.Text != "" {
		p.analyzeText(ctx, msg, messageID, msg.Text)
	}
	if len(msg.Image) > 0 {
		p.processImage(ctx, msg, messageID)
	}

	if p.stats != nil {
		p.stats.MessageProcessed(msg.MessageType)
	}
}

func (p *Pipeline) analyzeText(ctx context.Context, msg model.InboundMessage, messageID int64, text string) {
	in := model.AnalysisInput{
		Text:       text,
		OriginID:   msg.OriginID(),
		ObservedAt: msg.ReceivedAt,
	}
	result, err := p.engine.Analyze(ctx, in)
	if err != nil {
		if errors.Is(err, engine.ErrValidation) {
			// Oversized or injection-shaped input is the abuse signal the
			// monitor tracks.
			if p.stats != nil {
				p.stats.ValidationFailure()
			}
			if p.monitor != nil {
				p.monitor.RecordFailedAttempt(msg.CallerID(), "validation_failure")
			}
		}
		if p.logger != nil {
			p.logger.Warn("analysis rejected", "err", err, "channel_id", msg.ChannelID)
		}
		return
	}
	if result.AlertType == model.AlertNone {
		return
	}
	if p.stats != nil {
		p.stats.AlertRaised(result.AlertType)
	}
	if p.store != nil && result.Alert != nil {
		if _, err := p.store.SaveAnalysis(ctx, messageID, *result.Alert); err != nil {
			if p.logger != nil {
				p.logger.Error("save analysis failed", "err", err, "alert_type", result.AlertType)
			}
		}
	}
}

func (p *Pipeline) processImage(ctx context.Context, msg model.InboundMessage, messageID int64) {
	if p.ocr == nil {
		return
	}
	result, err := p.ocr.ExtractText(ctx, msg.Image)
	if err != nil {
		if p.stats != nil {
			p.stats.OCRProcessed(false)
		}
		if p.logger != nil {
			p.logger.Error("ocr failed", "err", err, "channel_id", msg.ChannelID)
		}
		return
	}
	if p.stats != nil {
		p.stats.OCRProcessed(result.OK)
	}
	if p.store != nil {
		fileID := msg.ImageFileID
		if fileID == "" {
			fileID = strconv.FormatInt(msg.ExternalMessageID, 10)
		}
		if _, err := p.store.SaveImage(ctx, storage.ImageRecord{
			MessageID:  messageID,
			FileID:     fileID,
			Text:       result.Text,
			Confidence: result.Confidence,
		}); err != nil {
			if p.logger != nil {
				p.logger.Error("save image failed", "err", err)
			}
		}
	}
	if result.OK && result.Text != "" {
		p.analyzeText(ctx, msg, messageID, result.Text)
	}
}
