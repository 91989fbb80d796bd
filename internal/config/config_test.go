package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"bindery/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"), true)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.OptimizeMode != "basic" {
		t.Fatalf("expected default optimize mode, got %q", cfg.Pipeline.OptimizeMode)
	}
	if cfg.Progress.SessionLimit != 100 {
		t.Fatalf("expected default session limit, got %d", cfg.Progress.SessionLimit)
	}
}

func TestLoadOverridesAndDerivedPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "[paths]\nworkspace_dir = \"" + filepath.Join(dir, "ws") + "\"\n\n[pipeline]\noptimize_mode = \"max\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pipeline.OptimizeMode != "max" {
		t.Fatalf("expected optimize mode max, got %q", cfg.Pipeline.OptimizeMode)
	}
	if cfg.Paths.InboxDir != filepath.Join(dir, "ws", "inbox") {
		t.Fatalf("unexpected inbox dir %q", cfg.Paths.InboxDir)
	}
	if cfg.BooksDir() != filepath.Join(dir, "ws", "books") {
		t.Fatalf("unexpected books dir %q", cfg.BooksDir())
	}
	if cfg.DatabasePath() != filepath.Join(dir, "ws", "bindery.db") {
		t.Fatalf("unexpected db path %q", cfg.DatabasePath())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := "[pipeline]\nerror_policy = \"retry\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := config.Load(path, false); err == nil {
		t.Fatal("expected validation error for unknown error policy")
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(t.TempDir(), "ws")
	cfg.Paths.InboxDir = filepath.Join(cfg.Paths.WorkspaceDir, "inbox")
	cfg.Paths.LogDir = filepath.Join(cfg.Paths.WorkspaceDir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.BooksDir(), cfg.Paths.InboxDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist", dir)
		}
	}
}
