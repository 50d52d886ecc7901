package model

import (
	"strconv"
	"time"
)

type AlertType string

const (
	AlertNone              AlertType = ""
	AlertBrandMentionInfo  AlertType = "brand_mention_info"
	AlertSuspiciousContent AlertType = "suspicious_content"
	AlertHighRiskFraud     AlertType = "high_risk_fraud"
)

// PatternCategory distinguishes the two rule families the matcher knows.
type PatternCategory string

const (
	CategoryBrandKeyword      PatternCategory = "brand_keyword"
	CategorySuspiciousPattern PatternCategory = "suspicious_pattern"
)

// InboundMessage is what the message source delivers to the pipeline.
type InboundMessage struct {
	ExternalMessageID int64     `json:"external_message_id"`
	ChannelID         int64     `json:"channel_id"`
	UserID            int64     `json:"user_id,omitempty"`
	Username          string    `json:"username,omitempty"`
	Text              string    `json:"text,omitempty"`
	MessageType       string    `json:"message_type,omitempty"`
	Image             []byte    `json:"image,omitempty"`
	ImageFileID       string    `json:"image_file_id,omitempty"`
	ReceivedAt        time.Time `json:"received_at"`
	Source            string    `json:"source,omitempty"`
}

// OriginID is the composite identity cooldown decisions key on.
func (m InboundMessage) OriginID() string {
	return strconv.FormatInt(m.UserID, 10) + "|" + strconv.FormatInt(m.ChannelID, 10)
}

// CallerID is the identity rate limiting and failure tracking key on.
// Distinct from OriginID: admission control guards the channel, not the
// individual sender.
func (m InboundMessage) CallerID() string {
	return strconv.FormatInt(m.ChannelID, 10)
}

// AnalysisInput is the engine's sole required argument, one per inbound
// message. Not persisted itself.
type AnalysisInput struct {
	Text       string
	OriginID   string
	ObservedAt time.Time
}

// MatchSet is the deduplicated output of a single scan. A pattern firing
// several times in one message still counts once.
type MatchSet struct {
	Brands     []string
	Suspicious []string
}

func (m MatchSet) HasBrands() bool     { return len(m.Brands) > 0 }
func (m MatchSet) HasSuspicious() bool { return len(m.Suspicious) > 0 }

// Keywords returns brand matches followed by suspicious pattern names,
// the order alerts report them in.
func (m MatchSet) Keywords() []string {
	out := make([]string, 0, len(m.Brands)+len(m.Suspicious))
	out = append(out, m.Brands...)
	out = append(out, m.Suspicious...)
	return out
}

// AnalysisResult is what Analyze hands back to the orchestrator.
type AnalysisResult struct {
	Matches   MatchSet
	Score     float64
	AlertType AlertType
	Keywords  []string
	// Notified is false when the alert was suppressed by cooldown or the
	// alert type is store-only.
	Notified bool
	// Alert is set whenever AlertType is not AlertNone, for persistence.
	Alert *Alert
}

type Alert struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	OriginID   string    `json:"origin_id"`
	AlertType  AlertType `json:"alert_type"`
	Keywords   []string  `json:"keywords"`
	Score      float64   `json:"score"`
	Notified   bool      `json:"notified"`
	Suppressed bool      `json:"suppressed"`
}

// OCRResult is the OCR collaborator's output. Text is only trusted when
// OK is true.
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Words      int     `json:"words"`
	OK         bool    `json:"ok"`
}
