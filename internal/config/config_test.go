package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvLLMAPIKey, EnvLLMBaseURL, EnvLLMModel, EnvRedisURL} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FetchTimeout() != 10*time.Second {
		t.Errorf("FetchTimeout() = %v, want 10s", cfg.FetchTimeout())
	}
	if cfg.PanelTimeout() != 5*time.Second {
		t.Errorf("PanelTimeout() = %v, want 5s", cfg.PanelTimeout())
	}
	if cfg.DailyLimit != 3 {
		t.Errorf("DailyLimit = %d, want 3", cfg.DailyLimit)
	}
	if cfg.UsageRetentionDays != 30 {
		t.Errorf("UsageRetentionDays = %d, want 30", cfg.UsageRetentionDays)
	}
	if cfg.LLMModel != "gpt-4o-mini" {
		t.Errorf("LLMModel = %q, want gpt-4o-mini", cfg.LLMModel)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"daily_limit": 5, "panel_timeout_ms": 250}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DailyLimit != 5 {
		t.Errorf("DailyLimit = %d, want 5", cfg.DailyLimit)
	}
	if cfg.PanelTimeout() != 250*time.Millisecond {
		t.Errorf("PanelTimeout() = %v, want 250ms", cfg.PanelTimeout())
	}
	// Untouched fields keep defaults
	if cfg.FetchTimeoutMS != 10000 {
		t.Errorf("FetchTimeoutMS = %d, want 10000", cfg.FetchTimeoutMS)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{not json}`)

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, `{"disabled_tools": ["summary_restore", "usage_cleanup"]}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "summary_restore" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "summary_restore")
	}
}

func TestLoadWithRepo_BothPresent(t *testing.T) {
	clearEnv(t)
	globalDir := t.TempDir()
	repoDir := t.TempDir()

	writeConfig(t, globalDir, `{"daily_limit": 4, "allowed_paths": ["/a"], "llm_model": "gpt-4o"}`)
	writeConfig(t, filepath.Join(repoDir, ".recap"), `{"daily_limit": 7, "allowed_paths": ["/a", "/b"]}`)

	cfg, err := LoadWithRepo(globalDir, repoDir)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.DailyLimit != 7 {
		t.Errorf("DailyLimit = %d, want 7 (repo wins)", cfg.DailyLimit)
	}
	if cfg.LLMModel != "gpt-4o" {
		t.Errorf("LLMModel = %q, want gpt-4o (from global)", cfg.LLMModel)
	}
	if len(cfg.AllowedPaths) != 2 {
		t.Errorf("AllowedPaths = %v, want [/a /b]", cfg.AllowedPaths)
	}
}

func TestLoadWithRepo_NeitherPresent(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadWithRepo(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.MaxSummaries != DefaultConfig().MaxSummaries {
		t.Errorf("MaxSummaries = %d, want default", cfg.MaxSummaries)
	}
}

func TestLoadWithRepo_EnvOverrides(t *testing.T) {
	globalDir := t.TempDir()
	writeConfig(t, globalDir, `{"llm_api_key": "sk-file", "llm_model": "file-model"}`)

	t.Setenv(EnvLLMAPIKey, "sk-env")
	t.Setenv(EnvLLMBaseURL, "http://localhost:11434/v1/")
	t.Setenv(EnvLLMModel, "")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")

	cfg, err := LoadWithRepo(globalDir, t.TempDir())
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.LLMAPIKey != "sk-env" {
		t.Errorf("LLMAPIKey = %q, want sk-env", cfg.LLMAPIKey)
	}
	if cfg.LLMBaseURL != "http://localhost:11434/v1" {
		t.Errorf("LLMBaseURL = %q, want trailing slash trimmed", cfg.LLMBaseURL)
	}
	if cfg.LLMModel != "file-model" {
		t.Errorf("LLMModel = %q, want file-model (empty env ignored)", cfg.LLMModel)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestLoadWithRepo_WalksUpward(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeConfig(t, filepath.Join(root, ".recap"), `{"cache_max_entries": 9}`)

	deep := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(deep, 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	cfg, err := LoadWithRepo(t.TempDir(), deep)
	if err != nil {
		t.Fatalf("LoadWithRepo() error = %v", err)
	}
	if cfg.CacheMaxEntries != 9 {
		t.Errorf("CacheMaxEntries = %d, want 9", cfg.CacheMaxEntries)
	}
}

func TestFindRepoConfig_NotFound(t *testing.T) {
	if got := FindRepoConfig(t.TempDir()); got != "" {
		t.Errorf("FindRepoConfig() = %q, want empty", got)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	got := Merge(&Config{AllowUnsafePaths: true}, &Config{})
	if !got.AllowUnsafePaths {
		t.Error("AllowUnsafePaths = false, want true")
	}
}

func TestMerge_ExplicitZeroTemperature(t *testing.T) {
	got := Merge(DefaultConfig(), &Config{LLMTemperature: Float64(0)})
	if got.LLMTemperature == nil || *got.LLMTemperature != 0 {
		t.Errorf("LLMTemperature = %v, want 0", got.LLMTemperature)
	}

	got = Merge(DefaultConfig(), &Config{})
	if got.LLMTemperature == nil || *got.LLMTemperature != 0.7 {
		t.Errorf("LLMTemperature = %v, want the 0.7 default", got.LLMTemperature)
	}

	var cfg Config
	if err := json.Unmarshal([]byte(`{"llm_temperature": 0}`), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.LLMTemperature == nil || *cfg.LLMTemperature != 0 {
		t.Errorf("decoded LLMTemperature = %v, want 0", cfg.LLMTemperature)
	}
}

func TestMerge_ArrayMergeDedup(t *testing.T) {
	got := Merge(
		&Config{DisabledTypes: []string{"usage", " summary "}},
		&Config{DisabledTypes: []string{"summary", "", "transcript"}},
	)
	want := []string{"usage", "summary", "transcript"}
	if len(got.DisabledTypes) != len(want) {
		t.Fatalf("DisabledTypes = %v, want %v", got.DisabledTypes, want)
	}
	for i := range want {
		if got.DisabledTypes[i] != want[i] {
			t.Errorf("DisabledTypes[%d] = %q, want %q", i, got.DisabledTypes[i], want[i])
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"openai key ok", func(c *Config) { c.LLMAPIKey = "sk-abc" }, false},
		{"openai key bad prefix", func(c *Config) { c.LLMAPIKey = "abc" }, true},
		{"custom endpoint any key", func(c *Config) {
			c.LLMBaseURL = "http://localhost:8080/v1"
			c.LLMAPIKey = "local"
		}, false},
		{"negative limit", func(c *Config) { c.DailyLimit = -1 }, true},
		{"negative timeout", func(c *Config) { c.FetchTimeoutMS = -5 }, true},
		{"temperature too high", func(c *Config) { c.LLMTemperature = Float64(3) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
