package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Empty credential pools are not a
// load failure; they are reported when a session starts.
func (c *Config) Validate() error {
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateInference() error {
	if c.Inference.TimeoutMillis <= 0 {
		return errors.New("inference.timeout_ms must be positive")
	}
	if c.Inference.RotationCooldownMillis < 0 {
		return errors.New("inference.rotation_cooldown_ms must be >= 0")
	}
	if !strings.HasPrefix(c.Inference.StreamURL, "ws://") && !strings.HasPrefix(c.Inference.StreamURL, "wss://") {
		return fmt.Errorf("inference.stream_url must use ws:// or wss:// (got %q)", c.Inference.StreamURL)
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return errors.New("generation.temperature must be between 0 and 2")
	}
	if err := ensurePositiveMap(map[string]int{
		"generation.max_output_tokens": c.Generation.MaxOutputTokens,
		"generation.timeout_seconds":   c.Generation.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Generation.MinPoints < 0 {
		return errors.New("generation.min_points must be >= 0")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if err := ensurePositiveMap(map[string]int{
		"capture.interval_ms":        c.Capture.IntervalMillis,
		"capture.readiness_delay_ms": c.Capture.ReadinessDelayMillis,
		"capture.max_attempts":       c.Capture.MaxAttempts,
		"capture.series_capacity":    c.Capture.SeriesCapacity,
	}); err != nil {
		return err
	}
	if c.Capture.BackoffBaseMillis < 0 {
		return errors.New("capture.backoff_base_ms must be >= 0")
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return errors.New("capture.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.ProxyEnabled {
		if c.Server.ProxyRatePerSecond <= 0 {
			return errors.New("server.proxy_rate_per_second must be positive when server.proxy_enabled is true")
		}
		if c.Server.ProxyBurst <= 0 {
			return errors.New("server.proxy_burst must be positive when server.proxy_enabled is true")
		}
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" && c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive when notifications.ntfy_topic is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
