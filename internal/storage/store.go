package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"chatguard/internal/config"
	"chatguard/internal/model"
)

// MessageRecord is the durable form of an inbound message.
type MessageRecord struct {
	ExternalMessageID int64
	ChannelID         int64
	UserID            int64
	Username          string
	Text              string
	MessageType       string
}

// ImageRecord stores OCR output for an image attached to a message.
type ImageRecord struct {
	MessageID  int64
	FileID     string
	FileName   string
	Text       string
	Confidence float64
}

// Store is the persistence boundary. SaveMessage is idempotent on
// (external_message_id, channel_id); re-saving touches processed_at and
// returns the existing row id.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveMessage(ctx context.Context, msg MessageRecord) (int64, error)
	SaveImage(ctx context.Context, img ImageRecord) (int64, error)
	SaveAnalysis(ctx context.Context, messageID int64, alert model.Alert) (int64, error)
	RecentAlerts(ctx context.Context, since time.Time, limit int) ([]model.Alert, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func decodeKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
