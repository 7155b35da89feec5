package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Inference contains configuration for the emotion-inference (Hume) service.
type Inference struct {
	APIKeys                []string `toml:"api_keys"`
	StreamURL              string   `toml:"stream_url"`
	BatchURL               string   `toml:"batch_url"`
	TimeoutMillis          int      `toml:"timeout_ms"`
	RotationCooldownMillis int      `toml:"rotation_cooldown_ms"`
}

// Generation contains configuration for the text-generation (Gemini) service.
type Generation struct {
	APIKeys         []string `toml:"api_keys"`
	BaseURL         string   `toml:"base_url"`
	Model           string   `toml:"model"`
	Temperature     float64  `toml:"temperature"`
	MaxOutputTokens int      `toml:"max_output_tokens"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	MinPoints       int      `toml:"min_points"`
}

// Capture contains configuration for the frame capture loop.
type Capture struct {
	Source               string `toml:"source"`
	IntervalMillis       int    `toml:"interval_ms"`
	ReadinessDelayMillis int    `toml:"readiness_delay_ms"`
	MaxAttempts          int    `toml:"max_attempts"`
	BackoffBaseMillis    int    `toml:"backoff_base_ms"`
	SeriesCapacity       int    `toml:"series_capacity"`
	JPEGQuality          int    `toml:"jpeg_quality"`
}

// Server contains configuration for the HTTP server and the analysis proxy.
type Server struct {
	Bind               string   `toml:"bind"`
	ProxyEnabled       bool     `toml:"proxy_enabled"`
	ProxyAPIKeys       []string `toml:"proxy_api_keys"`
	ProxySecretKey     string   `toml:"proxy_secret_key"`
	ProxyRatePerSecond float64  `toml:"proxy_rate_per_second"`
	ProxyBurst         int      `toml:"proxy_burst"`
	MaxBodyBytes       int      `toml:"max_body_bytes"`
}

// Live contains configuration for publishing live observations.
type Live struct {
	RedisURL      string `toml:"redis_url"`
	ChannelPrefix string `toml:"channel_prefix"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic        string `toml:"ntfy_topic"`
	RequestTimeout   int    `toml:"request_timeout"`
	SessionCompleted bool   `toml:"session_completed"`
	Errors           bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for emotrack.
//
// Configuration sections by subsystem:
//   - Paths: data (session archive, locks) and log directories
//   - Inference: Hume streaming credentials, endpoints, timeout, rotation cooldown
//   - Generation: Gemini credentials, model, generation parameters
//   - Capture: frame source, loop pacing, retry policy, series capacity
//   - Server: HTTP bind address and analysis proxy settings
//   - Live: optional Redis pub/sub for live observations
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Inference     Inference     `toml:"inference"`
	Generation    Generation    `toml:"generation"`
	Capture       Capture       `toml:"capture"`
	Server        Server        `toml:"server"`
	Live          Live          `toml:"live"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/emotrack/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and credential lists filtered.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("emotrack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SessionDBPath returns the location of the session archive database.
func (c *Config) SessionDBPath() string {
	return filepath.Join(c.Paths.DataDir, "sessions.db")
}

// RecorderLockPath returns the lock file guarding the single active recording.
func (c *Config) RecorderLockPath() string {
	return filepath.Join(c.Paths.DataDir, "recorder.lock")
}

// InferenceTimeout returns the per-exchange response timeout.
func (c *Config) InferenceTimeout() time.Duration {
	return millis(c.Inference.TimeoutMillis)
}

// RotationCooldown returns the minimum spacing between key rotations.
func (c *Config) RotationCooldown() time.Duration {
	return millis(c.Inference.RotationCooldownMillis)
}

// CaptureInterval returns the trailing delay between capture cycles.
func (c *Config) CaptureInterval() time.Duration {
	return millis(c.Capture.IntervalMillis)
}

// ReadinessDelay returns the wait applied while the frame source warms up.
func (c *Config) ReadinessDelay() time.Duration {
	return millis(c.Capture.ReadinessDelayMillis)
}

// BackoffBase returns the first retry backoff delay.
func (c *Config) BackoffBase() time.Duration {
	return millis(c.Capture.BackoffBaseMillis)
}

// GenerationTimeout returns the HTTP timeout for summary requests.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSeconds) * time.Second
}

func millis(value int) time.Duration {
	return time.Duration(value) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
