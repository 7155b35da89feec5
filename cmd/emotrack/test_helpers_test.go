package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"emotrack/internal/config"
	"emotrack/internal/daemon"
	"emotrack/internal/notifications"
	"emotrack/internal/series"
	"emotrack/internal/services/hume"
	"emotrack/internal/testsupport"
)

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(context.Context, string) (hume.Result, error) {
	return hume.Result{Outcome: hume.Success, Emotions: []series.EmotionScore{
		{Name: "Joy", Score: 0.55},
		{Name: "Fear", Score: 0.15},
		{Name: "Sadness", Score: 0.1},
	}}, nil
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, string, string) (string, error) {
	return "The participant appeared relaxed throughout.", nil
}

type silentNotifier struct{}

func (silentNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	homeDir := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for i := 1; i <= 10; i++ {
		t.Setenv("HUME_API_KEY_"+strconv.Itoa(i), "")
	}
	for i := 1; i <= 3; i++ {
		t.Setenv("GEMINI_API_KEY_"+strconv.Itoa(i), "")
	}

	configPath := filepath.Join(homeDir, ".config", "emotrack", "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommandWith(
		daemon.WithAnalyzer(stubAnalyzer{}),
		daemon.WithGenerator(stubGenerator{}),
		daemon.WithNotifier(silentNotifier{}),
	)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
