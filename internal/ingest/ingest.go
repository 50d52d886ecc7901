package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"chatguard/internal/model"
)

// SendNonBlocking delivers ev to the pipeline channel, dropping with a
// warning when the buffer is full. Backpressure never blocks a source.
func SendNonBlocking(ctx context.Context, out chan<- model.InboundMessage, ev model.InboundMessage, logger *slog.Logger) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("message channel full, dropping message",
				"channel_id", ev.ChannelID,
				"external_message_id", ev.ExternalMessageID,
			)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// DecodeMessage parses one JSON-encoded inbound message and fills the
// fields sources commonly leave out.
func DecodeMessage(data []byte) (model.InboundMessage, error) {
	var msg model.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return model.InboundMessage{}, err
	}
	if msg.ExternalMessageID == 0 {
		return model.InboundMessage{}, errors.New("external_message_id is required")
	}
	if msg.ChannelID == 0 {
		return model.InboundMessage{}, errors.New("channel_id is required")
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}
	if msg.MessageType == "" {
		msg.MessageType = inferType(msg)
	}
	return msg, nil
}

func inferType(msg model.InboundMessage) string {
	switch {
	case len(msg.Image) > 0 || msg.ImageFileID != "":
		return "photo"
	case msg.Text != "":
		return "text"
	default:
		return "other"
	}
}
