package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"chatguard/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/chatguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			external_message_id BIGINT NOT NULL,
			channel_id BIGINT NOT NULL,
			user_id BIGINT,
			username VARCHAR(255),
			message_text TEXT,
			message_type VARCHAR(50) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			processed_at TIMESTAMPTZ,
			UNIQUE(external_message_id, channel_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at)`,
		`CREATE TABLE IF NOT EXISTS images (
			id BIGSERIAL PRIMARY KEY,
			message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			file_id VARCHAR(255) NOT NULL,
			file_name VARCHAR(500),
			ocr_text TEXT,
			ocr_confidence DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			alert_uid VARCHAR(64) NOT NULL,
			message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			origin_id TEXT NOT NULL,
			alert_type VARCHAR(100) NOT NULL,
			keywords_json JSONB NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			notified BOOLEAN NOT NULL,
			suppressed BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_type ON alerts(alert_type)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) SaveMessage(ctx context.Context, msg MessageRecord) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (external_message_id, channel_id, user_id, username, message_text, message_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_message_id, channel_id)
		DO UPDATE SET processed_at = NOW()
		RETURNING id`,
		msg.ExternalMessageID,
		msg.ChannelID,
		msg.UserID,
		msg.Username,
		msg.Text,
		msg.MessageType,
	).Scan(&id)
	return id, err
}

func (s *postgresStore) SaveImage(ctx context.Context, img ImageRecord) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO images (message_id, file_id, file_name, ocr_text, ocr_confidence)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		img.MessageID,
		img.FileID,
		img.FileName,
		img.Text,
		img.Confidence,
	).Scan(&id)
	return id, err
}

func (s *postgresStore) SaveAnalysis(ctx context.Context, messageID int64, alert model.Alert) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO alerts (alert_uid, message_id, origin_id, alert_type, keywords_json, score, notified, suppressed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		alert.ID,
		messageID,
		alert.OriginID,
		string(alert.AlertType),
		encodeJSON(alert.Keywords),
		alert.Score,
		alert.Notified,
		alert.Suppressed,
		alert.Timestamp.UTC(),
	).Scan(&id)
	return id, err
}

func (s *postgresStore) RecentAlerts(ctx context.Context, since time.Time, limit int) ([]model.Alert, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT alert_uid, origin_id, alert_type, keywords_json::text, score, notified, suppressed, created_at
		FROM alerts WHERE created_at > $1 ORDER BY created_at DESC LIMIT $2`,
		since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		var keywords, alertType string
		var created time.Time
		if err := rows.Scan(&a.ID, &a.OriginID, &alertType, &keywords, &a.Score, &a.Notified, &a.Suppressed, &created); err != nil {
			return nil, err
		}
		a.AlertType = model.AlertType(alertType)
		a.Keywords = decodeKeywords(keywords)
		a.Timestamp = created.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
