package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks a normalized configuration. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	var errs []error

	if err := checkURL("backend.base_url", cfg.Backend.BaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if cfg.Backend.ChannelURL != "" {
		if err := checkURL("backend.channel_url", cfg.Backend.ChannelURL, "ws", "wss"); err != nil {
			errs = append(errs, err)
		}
	}
	if err := checkURL("stream.url", cfg.Stream.URL, "ws", "wss"); err != nil {
		errs = append(errs, err)
	}

	if q := cfg.Camera.JPEGQuality; q < 1 || q > 100 {
		errs = append(errs, fmt.Errorf("camera.jpeg_quality must be in [1,100], got %d", q))
	}
	if t := cfg.Scan.Threshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("scan.threshold must be in [0,1], got %g", t))
	}
	if p := cfg.Scan.MinChangePercent; p < 0 || p > 100 {
		errs = append(errs, fmt.Errorf("scan.min_change_percent must be in [0,100], got %g", p))
	}
	if (cfg.Overlay.DisplayWidth > 0) != (cfg.Overlay.DisplayHeight > 0) {
		errs = append(errs, errors.New("overlay.display_width and overlay.display_height must be set together"))
	}
	if p := cfg.Alert.SMTP.Port; p < 1 || p > 65535 {
		errs = append(errs, fmt.Errorf("alert.smtp.port out of range: %d", p))
	}

	return errors.Join(errs...)
}

func checkURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s: %q must be an absolute %v URL", field, raw, schemes)
}
