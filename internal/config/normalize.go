package config

import (
	"strconv"
	"strings"
	"time"
)

// Defaults mirror the behavior of the browser demo this client replaces.
const (
	DefaultBackendURL     = "http://localhost:5000"
	DefaultStreamURL      = "ws://localhost:8765"
	DefaultTimeoutMs      = 30000
	DefaultOverlayMs      = 1500
	DefaultScanMs         = 3000
	DefaultScanDelayMs    = 1000
	DefaultRiskThreshold  = 0.5
	DefaultHighlightMs    = 3000
	DefaultHookTimeoutMs  = 5000
	DefaultJPEGQuality    = 80
	DefaultCameraWidth    = 640
	DefaultCameraHeight   = 480
	DefaultMonitorAddr    = ":8090"
	DefaultSMTPPort       = 587
	DefaultOverlayPrompt  = "Detect objects."
	DefaultDetectPath     = "/api/detect_frame"
	DefaultRiskPath       = "/api/risk_frame"
	DefaultUploadPath     = "/api/upload_and_analyze"
	DefaultCaptureAndSave = "/api/capture_and_save"
)

// Normalize fills zero values with defaults. It mutates cfg.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	b := &cfg.Backend
	b.BaseURL = strings.TrimRight(orString(b.BaseURL, DefaultBackendURL), "/")
	b.TimeoutMs = orInt(b.TimeoutMs, DefaultTimeoutMs)
	b.DetectPath = orString(b.DetectPath, DefaultDetectPath)
	b.RiskPath = orString(b.RiskPath, DefaultRiskPath)
	b.UploadPath = orString(b.UploadPath, DefaultUploadPath)
	b.SavePath = orString(b.SavePath, DefaultCaptureAndSave)

	cfg.Stream.URL = orString(cfg.Stream.URL, DefaultStreamURL)

	c := &cfg.Camera
	c.Width = orInt(c.Width, DefaultCameraWidth)
	c.Height = orInt(c.Height, DefaultCameraHeight)
	c.JPEGQuality = orInt(c.JPEGQuality, DefaultJPEGQuality)

	o := &cfg.Overlay
	o.Prompt = orString(o.Prompt, DefaultOverlayPrompt)
	o.IntervalMs = orInt(o.IntervalMs, DefaultOverlayMs)

	s := &cfg.Scan
	s.IntervalMs = orInt(s.IntervalMs, DefaultScanMs)
	s.InitialDelayMs = orInt(s.InitialDelayMs, DefaultScanDelayMs)
	if s.Threshold == 0 {
		s.Threshold = DefaultRiskThreshold
	}
	if s.SaveToGallery == nil {
		s.SaveToGallery = boolPtr(true)
	}

	cfg.Monitor.Addr = orString(cfg.Monitor.Addr, DefaultMonitorAddr)

	a := &cfg.Alert
	if a.Beep == nil {
		a.Beep = boolPtr(true)
	}
	a.HighlightMs = orInt(a.HighlightMs, DefaultHighlightMs)
	a.HookTimeoutMs = orInt(a.HookTimeoutMs, DefaultHookTimeoutMs)
	a.SMTP.Port = orInt(a.SMTP.Port, DefaultSMTPPort)
	if a.SMTP.UseTLS == nil {
		a.SMTP.UseTLS = boolPtr(true)
	}

	cfg.Log.Level = orString(cfg.Log.Level, "info")
}

// ApplyEnv overrides fields from environment variables. Malformed numeric
// values are ignored and leave the field untouched.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("RISKCAM_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := getenv("RISKCAM_CHANNEL_URL"); v != "" {
		cfg.Backend.ChannelURL = v
	}
	if v := getenv("RISKCAM_STREAM_URL"); v != "" {
		cfg.Stream.URL = v
	}
	if v := getenv("ALERT_RISK_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scan.Threshold = f
		}
	}

	m := &cfg.Alert.SMTP
	if v := getenv("SMTP_HOST"); v != "" {
		m.Host = v
	}
	if v := getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			m.Port = n
		}
	}
	if v := getenv("SMTP_USERNAME"); v != "" {
		m.Username = v
	}
	if v := getenv("SMTP_PASSWORD"); v != "" {
		m.Password = v
	}
	if v := getenv("ALERT_EMAIL_TO"); v != "" {
		m.To = v
	}
	if v := getenv("ALERT_EMAIL_FROM"); v != "" {
		m.From = v
	}
	if v := getenv("ALERT_EMAIL_SUBJECT"); v != "" {
		m.Subject = v
	}
	if v := getenv("SMTP_USE_SSL"); v != "" {
		m.UseSSL = truthy(v)
	}
	if v := getenv("SMTP_USE_TLS"); v != "" {
		m.UseTLS = boolPtr(truthy(v))
	}
}

// Ms converts a millisecond setting into a duration.
func Ms(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func boolPtr(b bool) *bool { return &b }
