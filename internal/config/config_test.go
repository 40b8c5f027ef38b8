package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreate_WritesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if cfg.PreviewLimit != 500 {
		t.Errorf("preview limit = %d, want 500", cfg.PreviewLimit)
	}
	if cfg.Chat.Endpoint == "" {
		t.Error("default chat endpoint is empty")
	}

	// A second load reads the file it just wrote.
	again, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if again.Chat.Model != cfg.Chat.Model {
		t.Errorf("model changed across loads: %q vs %q", again.Chat.Model, cfg.Chat.Model)
	}
}

func TestLoadOrCreate_RejectsMissingEndpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[chat]\nendpoint = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadOrCreate(path); err == nil {
		t.Fatal("expected error for empty chat endpoint")
	}
}

func TestChatConfig_TimeoutDefaults(t *testing.T) {
	if got := (ChatConfig{}).Timeout().Seconds(); got != 300 {
		t.Errorf("default timeout = %vs, want 300", got)
	}
	if got := (ChatConfig{TimeoutSeconds: 30}).Timeout().Seconds(); got != 30 {
		t.Errorf("timeout = %vs, want 30", got)
	}
}
