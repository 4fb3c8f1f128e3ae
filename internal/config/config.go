// Package config loads riskcam settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full riskcam configuration.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Stream  StreamConfig  `yaml:"stream"`
	Camera  CameraConfig  `yaml:"camera"`
	Overlay OverlayConfig `yaml:"overlay"`
	Scan    ScanConfig    `yaml:"scan"`
	Monitor MonitorConfig `yaml:"monitor"`
	Alert   AlertConfig   `yaml:"alert"`
	Journal JournalConfig `yaml:"journal"`
	Log     LogConfig     `yaml:"log"`
}

// ---- BACKEND ----

// BackendConfig points at the external detection service.
type BackendConfig struct {
	BaseURL    string `yaml:"base_url"`
	ChannelURL string `yaml:"channel_url"` // empty disables the bidirectional channel
	TimeoutMs  int    `yaml:"timeout_ms"`

	DetectPath string `yaml:"detect_path"`
	RiskPath   string `yaml:"risk_path"`
	UploadPath string `yaml:"upload_path"`
	SavePath   string `yaml:"save_path"`
}

// URL joins the base URL and an endpoint path.
func (b BackendConfig) URL(path string) string {
	return b.BaseURL + path
}

// Timeout returns the request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return Ms(b.TimeoutMs)
}

// ---- SOURCES ----

// StreamConfig is the raw frame broadcast socket.
type StreamConfig struct {
	URL string `yaml:"url"`
}

// CameraConfig is the local capture device.
type CameraConfig struct {
	DeviceID    int `yaml:"device_id"`
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	JPEGQuality int `yaml:"jpeg_quality"`
}

// ---- MODES ----

// OverlayConfig drives the interactive bounding-box view.
type OverlayConfig struct {
	Prompt        string `yaml:"prompt"`
	IntervalMs    int    `yaml:"interval_ms"`
	DisplayWidth  int    `yaml:"display_width"`
	DisplayHeight int    `yaml:"display_height"`
}

// ScanConfig drives the automatic risk-scan monitor.
type ScanConfig struct {
	IntervalMs       int     `yaml:"interval_ms"`
	InitialDelayMs   int     `yaml:"initial_delay_ms"`
	Threshold        float64 `yaml:"threshold"`
	SaveToGallery    *bool   `yaml:"save_to_gallery"`
	MinChangePercent float64 `yaml:"min_change_percent"` // 0 keeps exact-equality duplicate suppression
	Tray             bool    `yaml:"tray"`
}

// ---- SURFACES ----

// MonitorConfig is the local display server.
type MonitorConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// AlertConfig controls what happens on a HIGH classification.
type AlertConfig struct {
	Beep          *bool      `yaml:"beep"`
	HighlightMs   int        `yaml:"highlight_ms"`
	Hook          []string   `yaml:"hook"`     // command line run for every alert
	HookDir       string     `yaml:"hook_dir"` // directory of hooks with hook.json manifests
	HookImage     bool       `yaml:"hook_image"`
	HookTimeoutMs int        `yaml:"hook_timeout_ms"`
	SMTP          SMTPConfig `yaml:"smtp"`
}

// SMTPConfig configures e-mail notifications. All of Host, Username,
// Password and To must be set for mail to be sent.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	To       string `yaml:"to"`
	From     string `yaml:"from"`
	Subject  string `yaml:"subject"`
	UseSSL   bool   `yaml:"use_ssl"`
	UseTLS   *bool  `yaml:"use_tls"`
}

// Enabled reports whether every required SMTP field is present.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Username != "" && s.Password != "" && s.To != ""
}

// Sender returns the From address, falling back to the username and then the recipient.
func (s SMTPConfig) Sender() string {
	switch {
	case s.From != "":
		return s.From
	case s.Username != "":
		return s.Username
	default:
		return s.To
	}
}

// JournalConfig enables the local SQLite alert journal when Path is set.
type JournalConfig struct {
	Path   string `yaml:"path"`
	Images bool   `yaml:"images"` // keep the alert frame in the journal
}

// LogConfig controls the ambient logger.
type LogConfig struct {
	Level string `yaml:"level"`
	Color bool   `yaml:"color"`
}

// Load reads the YAML file at path (optional), applies environment
// overrides and defaults, then validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	ApplyEnv(cfg, os.Getenv)
	Normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a normalized configuration with no file and no environment.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}
