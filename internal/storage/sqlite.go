package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"chatguard/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:chatguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			external_message_id INTEGER NOT NULL,
			channel_id INTEGER NOT NULL,
			user_id INTEGER,
			username TEXT,
			message_text TEXT,
			message_type TEXT NOT NULL,
			created_at TEXT NOT NULL,
			processed_at TEXT,
			UNIQUE(external_message_id, channel_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at)`,
		`CREATE TABLE IF NOT EXISTS images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			file_id TEXT NOT NULL,
			file_name TEXT,
			ocr_text TEXT,
			ocr_confidence REAL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_uid TEXT NOT NULL,
			message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			origin_id TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			keywords_json TEXT NOT NULL,
			score REAL NOT NULL,
			notified INTEGER NOT NULL,
			suppressed INTEGER NOT NULL,
			created_at TEXT NOT NULL
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

func (s *sqliteStore) SaveMessage(ctx context.Context, msg MessageRecord) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (external_message_id, channel_id, user_id, username, message_text, message_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_message_id, channel_id)
		DO UPDATE SET processed_at = excluded.created_at
		RETURNING id`,
		msg.ExternalMessageID,
		msg.ChannelID,
		msg.UserID,
		msg.Username,
		msg.Text,
		msg.MessageType,
		nowUTC().Format(time.RFC3339Nano),
	).Scan(&id)
	return id, err
}

func (s *sqliteStore) SaveImage(ctx context.Context, img ImageRecord) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO images (message_id, file_id, file_name, ocr_text, ocr_confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		img.MessageID,
		img.FileID,
		img.FileName,
		img.Text,
		img.Confidence,
		nowUTC().Format(time.RFC3339Nano),
	).Scan(&id)
	return id, err
}

func (s *sqliteStore) SaveAnalysis(ctx context.Context, messageID int64, alert model.Alert) (int64, error) {
	if s.db == nil {
		return 0, nil
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO alerts (alert_uid, message_id, origin_id, alert_type, keywords_json, score, notified, suppressed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		alert.ID,
		messageID,
		alert.OriginID,
		string(alert.AlertType),
		encodeJSON(alert.Keywords),
		alert.Score,
		boolInt(alert.Notified),
		boolInt(alert.Suppressed),
		alert.Timestamp.UTC().Format(time.RFC3339Nano),
	).Scan(&id)
	return id, err
}

func (s *sqliteStore) RecentAlerts(ctx context.Context, since time.Time, limit int) ([]model.Alert, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT alert_uid, origin_id, alert_type, keywords_json, score, notified, suppressed, created_at
		FROM alerts WHERE created_at > ? ORDER BY created_at DESC LIMIT ?`,
		since.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func scanAlerts(rows *sql.Rows) ([]model.Alert, error) {
	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		var keywords, created string
		var alertType string
		var notified, suppressed int
		if err := rows.Scan(&a.ID, &a.OriginID, &alertType, &keywords, &a.Score, &notified, &suppressed, &created); err != nil {
			return nil, err
		}
		a.AlertType = model.AlertType(alertType)
		a.Keywords = decodeKeywords(keywords)
		a.Notified = notified != 0
		a.Suppressed = suppressed != 0
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			a.Timestamp = ts
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
