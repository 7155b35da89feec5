package testsupport

import (
	"path/filepath"
	"testing"

	"emotrack/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Inference.APIKeys = []string{"hume-test"}
	cfgVal.Generation.APIKeys = []string{"gemini-test"}
	cfgVal.Server.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithInferenceKeys replaces the inference credential list.
func WithInferenceKeys(keys ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Inference.APIKeys = keys
	}
}

// WithGenerationKeys replaces the generation credential list.
func WithGenerationKeys(keys ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generation.APIKeys = keys
	}
}

// WithFrameDir writes count frames into a temp directory and points the
// capture source at it.
func WithFrameDir(count int) ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "frames")
		WriteFrames(b.t, dir, count)
		b.cfg.Capture.Source = dir
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

// WithFastCapture shrinks loop pacing so recordings collect points quickly.
func WithFastCapture() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.IntervalMillis = 5
		b.cfg.Capture.ReadinessDelayMillis = 1
		b.cfg.Capture.BackoffBaseMillis = 1
		b.cfg.Capture.MaxAttempts = 1
	}
}

// WithProxy enables the analysis proxy with the given key and secret.
func WithProxy(key, secret string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.ProxyEnabled = true
		b.cfg.Server.ProxyAPIKeys = []string{key}
		b.cfg.Server.ProxySecretKey = secret
	}
}
