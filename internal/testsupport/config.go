package testsupport

import (
	"path/filepath"
	"testing"

	"bindery/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Progress.SampleIntervalMS = 10
	cfg.OCR.Engine = "passthrough"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithErrorPolicy sets the default error policy for newly registered books.
func WithErrorPolicy(policy string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.ErrorPolicy = policy
	}
}

// WithOptimizeMode sets the default optimize mode for newly registered books.
func WithOptimizeMode(mode string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.OptimizeMode = mode
	}
}
