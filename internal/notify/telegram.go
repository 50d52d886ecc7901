package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"chatguard/internal/config"
	"chatguard/internal/model"
)

// Telegram posts alert warnings back to the originating chat via the Bot
// API. Send failures are returned to the caller; nothing here retries.
type Telegram struct {
	token   string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func NewTelegram(cfg config.NotifyConfig, logger *slog.Logger) *Telegram {
	return &Telegram{
		token:   cfg.BotToken,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

func (t *Telegram) Notify(ctx context.Context, originID string, alertType model.AlertType, keywords []string, score float64) error {
	chatID, err := channelFromOrigin(originID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: FormatWarning(alertType, keywords, score)})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: %s", RedactToken(err.Error()))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("notify: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if t.logger != nil {
		t.logger.Info("warning sent", "chat_id", chatID, "alert_type", alertType, "score", score)
	}
	return nil
}

// channelFromOrigin recovers the channel component of the user|channel
// composite origin identity.
func channelFromOrigin(originID string) (int64, error) {
	parts := strings.Split(originID, "|")
	raw := parts[len(parts)-1]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("origin %q has no channel component: %w", originID, err)
	}
	return id, nil
}

var tokenPattern = regexp.MustCompile(`bot[^/\s]+`)

// RedactToken strips the bot token from URLs that leak into errors.
func RedactToken(s string) string {
	return tokenPattern.ReplaceAllString(s, "bot[REDACTED]")
}
