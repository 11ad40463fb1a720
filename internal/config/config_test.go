package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider.APIKey != "${OPENAI_API_KEY}" {
		t.Error("expected provider API key placeholder")
	}
	if cfg.Provider.TimeoutSeconds != 60 {
		t.Errorf("expected 60s provider timeout, got %d", cfg.Provider.TimeoutSeconds)
	}
	if cfg.Batch.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Batch.Workers)
	}
	if !cfg.Quota.Enabled || cfg.Quota.Threshold != 0.8 {
		t.Errorf("unexpected quota defaults: %+v", cfg.Quota)
	}
	if cfg.Database.Overflow != 2 {
		t.Errorf("expected overflow 2, got %d", cfg.Database.Overflow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero workers", func(c *Config) { c.Batch.Workers = 0 }, "batch.workers"},
		{"zero timeout", func(c *Config) { c.Provider.TimeoutSeconds = 0 }, "provider.timeout_seconds"},
		{"threshold above one", func(c *Config) { c.Quota.Threshold = 80 }, "quota.threshold"},
		{"threshold zero", func(c *Config) { c.Quota.Threshold = 0 }, "quota.threshold"},
		{"negative daily limit", func(c *Config) { c.Quota.DailyLimit = -1 }, "quota.daily_limit"},
		{"port out of range", func(c *Config) { c.Database.Port = 70000 }, "database.port"},
		{"negative overflow", func(c *Config) { c.Database.Overflow = -1 }, "database.overflow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not name %q", err, tt.want)
			}
		})
	}
}

func TestProviderValidate(t *testing.T) {
	t.Run("missing prompt id", func(t *testing.T) {
		p := ProviderCfg{APIKey: "sk-literal"}
		if err := p.Validate(); err == nil {
			t.Error("expected error for missing prompt_id")
		}
	})

	t.Run("unresolvable api key", func(t *testing.T) {
		p := ProviderCfg{APIKey: "${DEFINITELY_NOT_SET_12345}", PromptID: "pmpt_abc"}
		if err := p.Validate(); err == nil {
			t.Error("expected error for empty resolved key")
		}
	})

	t.Run("valid", func(t *testing.T) {
		p := ProviderCfg{APIKey: "sk-literal", PromptID: "pmpt_abc"}
		if err := p.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestPoolConfig(t *testing.T) {
	os.Setenv("TEST_PGPASS", "p@ss")
	defer os.Unsetenv("TEST_PGPASS")

	cfg := DefaultConfig()
	cfg.Database.Password = "${TEST_PGPASS}"
	cfg.Database.DBName = "artists_prod"

	pc := cfg.PoolConfig(8, nil)
	if pc.Password != "p@ss" {
		t.Errorf("password not resolved: %q", pc.Password)
	}
	if pc.Database != "artists_prod" {
		t.Errorf("database = %q, want artists_prod", pc.Database)
	}
	if pc.Workers != 8 || pc.Overflow != 2 {
		t.Errorf("pool sizing = %d+%d, want 8+2", pc.Workers, pc.Overflow)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
provider:
  prompt_id: "pmpt_from_file"
batch:
  workers: 6
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Provider.PromptID != "pmpt_from_file" {
			t.Errorf("expected pmpt_from_file, got %s", cfg.Provider.PromptID)
		}
		if cfg.Batch.Workers != 6 {
			t.Errorf("expected 6 workers, got %d", cfg.Batch.Workers)
		}
		// File did not touch the provider timeout; defaults fill it.
		if cfg.Provider.TimeoutSeconds != 60 {
			t.Errorf("expected default timeout 60, got %d", cfg.Provider.TimeoutSeconds)
		}
	})

	t.Run("rejects invalid config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
batch:
  workers: 0
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		if _, err := NewManager(configFile); err == nil {
			t.Fatal("expected validation error for zero workers")
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("batch:\n  workers: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("batch:\n  workers: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Batch.Workers
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("provider:\n  prompt_id: \"pmpt_initial\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if got := mgr.Get().Provider.PromptID; got != "pmpt_initial" {
		t.Errorf("initial value mismatch: expected pmpt_initial, got %s", got)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Provider.PromptID)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("provider:\n  prompt_id: \"pmpt_updated\"\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Error("callback was not invoked after config file change")
	}

	if got := mgr.Get().Provider.PromptID; got != "pmpt_updated" {
		t.Errorf("config not updated: expected pmpt_updated, got %s", got)
	}

	if v := lastValue.Load(); v != "pmpt_updated" {
		t.Errorf("callback received wrong value: expected pmpt_updated, got %v", v)
	}
}

func TestWriteDefault(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# biograph configuration") {
		t.Error("missing header comment")
	}
	if !strings.Contains(string(data), "${OPENAI_API_KEY}") {
		t.Error("api key placeholder not written literally")
	}

	// The written file loads back to the defaults.
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("reloading written default failed: %v", err)
	}
	cfg := mgr.Get()
	if cfg.Batch.Workers != 4 || cfg.Provider.TimeoutSeconds != 60 {
		t.Errorf("round-trip mismatch: %+v", cfg)
	}
}
