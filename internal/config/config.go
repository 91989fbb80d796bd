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

// Paths contains directory and bind address configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	InboxDir     string `toml:"inbox_dir"`
	LogDir       string `toml:"log_dir"`
	APIBind      string `toml:"api_bind"`
}

// Workflow contains worker timing configuration.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// OCR contains text-recognition engine configuration.
type OCR struct {
	Engine         string `toml:"engine"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Pipeline contains default conversion settings applied to new books.
type Pipeline struct {
	OptimizeMode string `toml:"optimize_mode"`
	ErrorPolicy  string `toml:"error_policy"`
}

// Progress contains limits for progress streaming sessions.
type Progress struct {
	SessionLimit      int `toml:"session_limit"`
	SessionMaxSeconds int `toml:"session_max_seconds"`
	SampleIntervalMS  int `toml:"sample_interval_ms"`
}

// Watcher contains inbox auto-import configuration.
type Watcher struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration document.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Workflow Workflow `toml:"workflow"`
	OCR      OCR      `toml:"ocr"`
	Pipeline Pipeline `toml:"pipeline"`
	Progress Progress `toml:"progress"`
	Watcher  Watcher  `toml:"watcher"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath is the location probed when no --config flag is given.
const DefaultConfigPath = "~/.config/bindery/config.toml"

// Load reads the TOML file at path, layering it over defaults. An empty
// path probes DefaultConfigPath. A missing file yields the defaults when
// allowMissing is true.
func Load(path string, allowMissing bool) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && allowMissing {
			if err := cfg.normalize(); err != nil {
				return nil, err
			}
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", expanded, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", expanded, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Clean(trimmed), nil
}

// PollInterval returns the worker idle sleep as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.QueuePollInterval) * time.Second
}

// SampleInterval returns the progress sampling period as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.Progress.SampleIntervalMS) * time.Millisecond
}

// SessionLifetime returns the maximum progress session duration.
func (c *Config) SessionLifetime() time.Duration {
	return time.Duration(c.Progress.SessionMaxSeconds) * time.Second
}

// OCRTimeout returns the per-run recognition timeout.
func (c *Config) OCRTimeout() time.Duration {
	return time.Duration(c.OCR.TimeoutSeconds) * time.Second
}

// BooksDir returns the directory holding per-book workspaces.
func (c *Config) BooksDir() string {
	return filepath.Join(c.Paths.WorkspaceDir, "books")
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.WorkspaceDir, "bindery.db")
}

// LockFilePath returns the worker run-lock location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.WorkspaceDir, "worker.lock")
}

// EnsureDirectories creates every directory the application writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.WorkspaceDir,
		c.BooksDir(),
		c.Paths.InboxDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.WorkspaceDir,
		&c.Paths.InboxDir,
		&c.Paths.LogDir,
	}
	for _, field := range pathFields {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := ExpandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		c.Paths.InboxDir = filepath.Join(c.Paths.WorkspaceDir, "inbox")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.WorkspaceDir, "logs")
	}
	c.Pipeline.OptimizeMode = strings.ToLower(strings.TrimSpace(c.Pipeline.OptimizeMode))
	c.Pipeline.ErrorPolicy = strings.ToLower(strings.TrimSpace(c.Pipeline.ErrorPolicy))
	c.OCR.Engine = strings.ToLower(strings.TrimSpace(c.OCR.Engine))
	return nil
}
