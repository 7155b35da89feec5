package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeInference()
	c.normalizeGeneration()
	c.normalizeCapture()
	c.normalizeServer()
	c.normalizeLive()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeInference() {
	c.Inference.APIKeys = FilterKeys(c.Inference.APIKeys)
	if len(c.Inference.APIKeys) == 0 {
		c.Inference.APIKeys = keysFromEnv(inferenceKeyEnvPrefix, inferenceKeyEnvSlots)
	}
	c.Inference.StreamURL = strings.TrimSpace(c.Inference.StreamURL)
	if c.Inference.StreamURL == "" {
		c.Inference.StreamURL = defaultInferenceStreamURL
	}
	c.Inference.BatchURL = strings.TrimSpace(c.Inference.BatchURL)
	if c.Inference.BatchURL == "" {
		c.Inference.BatchURL = defaultInferenceBatchURL
	}
}

func (c *Config) normalizeGeneration() {
	c.Generation.APIKeys = FilterKeys(c.Generation.APIKeys)
	if len(c.Generation.APIKeys) == 0 {
		c.Generation.APIKeys = keysFromEnv(generationKeyEnvPrefix, generationKeyEnvSlots)
	}
	c.Generation.BaseURL = strings.TrimRight(strings.TrimSpace(c.Generation.BaseURL), "/")
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = defaultGenerationBaseURL
	}
	c.Generation.Model = strings.TrimSpace(c.Generation.Model)
	if c.Generation.Model == "" {
		c.Generation.Model = defaultGenerationModel
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.Source = strings.TrimSpace(c.Capture.Source)
	if c.Capture.Source == "" {
		if value, ok := os.LookupEnv("EMOTRACK_SOURCE"); ok {
			c.Capture.Source = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.ProxyAPIKeys = FilterKeys(c.Server.ProxyAPIKeys)
	if len(c.Server.ProxyAPIKeys) == 0 {
		if value, ok := os.LookupEnv("HUME_API_KEY"); ok {
			c.Server.ProxyAPIKeys = FilterKeys([]string{value})
		}
	}
	c.Server.ProxySecretKey = strings.TrimSpace(c.Server.ProxySecretKey)
	if c.Server.ProxySecretKey == "" {
		if value, ok := os.LookupEnv("HUME_SECRET_KEY"); ok {
			c.Server.ProxySecretKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLive() {
	c.Live.RedisURL = strings.TrimSpace(c.Live.RedisURL)
	if c.Live.RedisURL == "" {
		if value, ok := os.LookupEnv("EMOTRACK_REDIS_URL"); ok {
			c.Live.RedisURL = strings.TrimSpace(value)
		}
	}
	c.Live.ChannelPrefix = strings.TrimSpace(c.Live.ChannelPrefix)
	if c.Live.ChannelPrefix == "" {
		c.Live.ChannelPrefix = defaultLiveChannelPrefix
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// FilterKeys trims credential entries and drops blanks. Order and duplicates are kept.
func FilterKeys(keys []string) []string {
	filtered := make([]string, 0, len(keys))
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}
	return filtered
}

func keysFromEnv(prefix string, slots int) []string {
	keys := make([]string, 0, slots)
	for i := 1; i <= slots; i++ {
		if value, ok := os.LookupEnv(prefix + strconv.Itoa(i)); ok {
			keys = append(keys, value)
		}
	}
	return FilterKeys(keys)
}
