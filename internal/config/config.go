package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Detection DetectionConfig `json:"detection" yaml:"detection"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
	Security  SecurityConfig  `json:"security" yaml:"security"`
	OCR       OCRConfig       `json:"ocr" yaml:"ocr"`
	Notify    NotifyConfig    `json:"notify" yaml:"notify"`
	API       APIConfig       `json:"api" yaml:"api"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Alerts    AlertsConfig    `json:"alerts" yaml:"alerts"`
}

type IngestConfig struct {
	ChannelBuffer int         `json:"channel_buffer" yaml:"channel_buffer"`
	REST          RESTConfig  `json:"rest" yaml:"rest"`
	Kafka         KafkaConfig `json:"kafka" yaml:"kafka"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type DetectionConfig struct {
	BrandKeywords    []string      `json:"brand_keywords" yaml:"brand_keywords"`
	SuspiciousFloor  float64       `json:"suspicious_floor" yaml:"suspicious_floor"`
	MaxMessageLength int           `json:"max_message_length" yaml:"max_message_length"`
	AlertCooldown    time.Duration `json:"alert_cooldown" yaml:"alert_cooldown"`
}

type RateLimitConfig struct {
	MaxRequests   int           `json:"max_requests" yaml:"max_requests"`
	Window        time.Duration `json:"window" yaml:"window"`
	SweepInterval time.Duration `json:"sweep_interval" yaml:"sweep_interval"`
}

type SecurityConfig struct {
	MaxFailedAttempts int           `json:"max_failed_attempts" yaml:"max_failed_attempts"`
	FailureWindow     time.Duration `json:"failure_window" yaml:"failure_window"`
	BlockDuration     time.Duration `json:"block_duration" yaml:"block_duration"`
	RecentLimit       int           `json:"recent_limit" yaml:"recent_limit"`
}

type OCRConfig struct {
	Enabled             bool    `json:"enabled" yaml:"enabled"`
	Binary              string  `json:"binary" yaml:"binary"`
	Languages           string  `json:"languages" yaml:"languages"`
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
	MaxImageBytes       int64   `json:"max_image_bytes" yaml:"max_image_bytes"`
}

type NotifyConfig struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	BotToken string        `json:"bot_token" yaml:"bot_token"`
	BaseURL  string        `json:"base_url" yaml:"base_url"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Ingest: IngestConfig{
			ChannelBuffer: 10000,
			REST:          RESTConfig{Enabled: true, Addr: ":8080"},
			Kafka:         KafkaConfig{Enabled: false},
		},
		Detection: DetectionConfig{
			BrandKeywords:    []string{"visa", "mastercard", "paypal", "stripe"},
			SuspiciousFloor:  0.3,
			MaxMessageLength: 10000,
			AlertCooldown:    5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			MaxRequests:   100,
			Window:        1 * time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Security: SecurityConfig{
			MaxFailedAttempts: 5,
			FailureWindow:     15 * time.Minute,
			BlockDuration:     15 * time.Minute,
			RecentLimit:       20,
		},
		OCR: OCRConfig{
			Enabled:             false,
			Binary:              "tesseract",
			Languages:           "eng",
			ConfidenceThreshold: 60,
			MaxImageBytes:       10 << 20,
		},
		Notify: NotifyConfig{
			Enabled: false,
			BaseURL: "https://api.telegram.org",
			Timeout: 10 * time.Second,
		},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:chatguard.db?_pragma=busy_timeout(5000)"},
		Alerts:  AlertsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 10000
	}
	if len(cfg.Detection.BrandKeywords) == 0 {
		cfg.Detection.BrandKeywords = []string{"visa", "mastercard", "paypal", "stripe"}
	}
	if cfg.Detection.SuspiciousFloor <= 0 {
		cfg.Detection.SuspiciousFloor = 0.3
	}
	if cfg.Detection.MaxMessageLength <= 0 {
		cfg.Detection.MaxMessageLength = 10000
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		cfg.RateLimit.MaxRequests = 100
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = 1 * time.Hour
	}
	if cfg.RateLimit.SweepInterval <= 0 {
		cfg.RateLimit.SweepInterval = 5 * time.Minute
	}
	if cfg.Security.MaxFailedAttempts <= 0 {
		cfg.Security.MaxFailedAttempts = 5
	}
	if cfg.Security.FailureWindow <= 0 {
		cfg.Security.FailureWindow = 15 * time.Minute
	}
	if cfg.Security.BlockDuration <= 0 {
		cfg.Security.BlockDuration = 15 * time.Minute
	}
	if cfg.Security.RecentLimit <= 0 {
		cfg.Security.RecentLimit = 20
	}
	if cfg.OCR.Binary == "" {
		cfg.OCR.Binary = "tesseract"
	}
	if cfg.OCR.Languages == "" {
		cfg.OCR.Languages = "eng"
	}
	if cfg.OCR.MaxImageBytes <= 0 {
		cfg.OCR.MaxImageBytes = 10 << 20
	}
	if cfg.Notify.BaseURL == "" {
		cfg.Notify.BaseURL = "https://api.telegram.org"
	}
	if cfg.Notify.Timeout <= 0 {
		cfg.Notify.Timeout = 10 * time.Second
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Detection.AlertCooldown < 0 {
		return errors.New("detection.alert_cooldown must be >= 0")
	}
	if cfg.Detection.SuspiciousFloor < 0 || cfg.Detection.SuspiciousFloor > 1 {
		return errors.New("detection.suspicious_floor must be in [0,1]")
	}
	for _, kw := range cfg.Detection.BrandKeywords {
		if strings.TrimSpace(kw) == "" {
			return errors.New("detection.brand_keywords contains an empty keyword")
		}
	}
	if cfg.OCR.ConfidenceThreshold < 0 || cfg.OCR.ConfidenceThreshold > 100 {
		return errors.New("ocr.confidence_threshold must be in [0,100]")
	}
	if cfg.Notify.Enabled && cfg.Notify.BotToken == "" {
		return errors.New("notify.bot_token required when notify.enabled is true")
	}
	if cfg.Storage.Enabled {
		switch strings.ToLower(cfg.Storage.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return fmt.Errorf("storage.driver unsupported: %q", cfg.Storage.Driver)
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager wraps a fixed config, for tests and embedded use.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
