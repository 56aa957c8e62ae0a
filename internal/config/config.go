package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Environment variables that override file configuration.
const (
	EnvLLMAPIKey  = "RECAP_LLM_API_KEY"
	EnvLLMBaseURL = "RECAP_LLM_BASE_URL"
	EnvLLMModel   = "RECAP_LLM_MODEL"
	EnvRedisURL   = "RECAP_REDIS_URL"
)

// DefaultLLMBaseURL is the OpenAI-compatible endpoint used when none is configured.
const DefaultLLMBaseURL = "https://api.openai.com/v1"

// Config holds application configuration.
type Config struct {
	// FetchTimeoutMS bounds a single caption fetch. Expiry is reported as TIMEOUT.
	FetchTimeoutMS int `json:"fetch_timeout_ms,omitempty"`

	// PanelTimeoutMS bounds the wait for the transcript panel in the DOM fallback.
	PanelTimeoutMS int `json:"panel_timeout_ms,omitempty"`

	// MaxFetchBytes caps the caption response body that is read.
	MaxFetchBytes int64 `json:"max_fetch_bytes,omitempty"`

	// DailyLimit is the number of free summaries per UTC day.
	DailyLimit int `json:"daily_limit,omitempty"`

	// UsageRetentionDays is how long daily usage counters are kept before cleanup.
	UsageRetentionDays int `json:"usage_retention_days,omitempty"`

	// MaxSummaries is a hard ceiling on stored summaries.
	// The effective limit is the smaller of this and the user's setting.
	MaxSummaries int `json:"max_summaries,omitempty"`

	// LLMBaseURL is the OpenAI-compatible API root (".../v1").
	LLMBaseURL string `json:"llm_base_url,omitempty"`

	// LLMAPIKey is the bearer key for the summarization endpoint.
	// Prefer the RECAP_LLM_API_KEY environment variable over storing it on disk.
	LLMAPIKey string `json:"llm_api_key,omitempty"`

	// LLMModel is the chat model used for summaries.
	LLMModel string `json:"llm_model,omitempty"`

	// LLMTemperature is the sampling temperature sent with each request.
	// Nil means the default; an explicit 0 is kept.
	LLMTemperature *float64 `json:"llm_temperature,omitempty"`

	// LLMMaxTokens caps the completion length.
	LLMMaxTokens int `json:"llm_max_tokens,omitempty"`

	// LLMRequestsPerMinute throttles outgoing summarization calls.
	LLMRequestsPerMinute int `json:"llm_requests_per_minute,omitempty"`

	// CacheTTLMinutes is how long fetched transcripts stay cached.
	CacheTTLMinutes int `json:"cache_ttl_minutes,omitempty"`

	// CacheMaxEntries bounds the in-memory transcript cache.
	CacheMaxEntries int `json:"cache_max_entries,omitempty"`

	// RedisURL enables the shared L2 transcript cache (redis://host:port/db).
	// Empty means in-memory only.
	RedisURL string `json:"redis_url,omitempty"`

	// AllowedPaths is an allowlist of directories for backup/restore/export.
	// Paths outside ~/.recap/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for backup/restore/export.
	// When true, any directory is allowed (but symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of type names to disable entirely.
	// Known types: "transcript", "summary", "usage".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		FetchTimeoutMS:       10000,
		PanelTimeoutMS:       5000,
		MaxFetchBytes:        5 * 1024 * 1024,
		DailyLimit:           3,
		UsageRetentionDays:   30,
		MaxSummaries:         100,
		LLMBaseURL:           DefaultLLMBaseURL,
		LLMModel:             "gpt-4o-mini",
		LLMTemperature:       Float64(0.7),
		LLMMaxTokens:         1000,
		LLMRequestsPerMinute: 20,
		CacheTTLMinutes:      60,
		CacheMaxEntries:      256,
	}
}

// FetchTimeout returns the caption fetch bound as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// PanelTimeout returns the transcript panel wait bound as a duration.
func (c *Config) PanelTimeout() time.Duration {
	return time.Duration(c.PanelTimeoutMS) * time.Millisecond
}

// CacheTTL returns the transcript cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.FetchTimeoutMS < 0 || c.PanelTimeoutMS < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.MaxFetchBytes < 0 {
		return errors.New("max_fetch_bytes must not be negative")
	}
	if c.DailyLimit < 0 {
		return errors.New("daily_limit must not be negative")
	}
	if c.UsageRetentionDays < 0 {
		return errors.New("usage_retention_days must not be negative")
	}
	if c.MaxSummaries < 0 {
		return errors.New("max_summaries must not be negative")
	}
	if t := c.LLMTemperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("llm_temperature must be between 0 and 2, got %v", *t)
	}
	if c.LLMRequestsPerMinute < 0 {
		return errors.New("llm_requests_per_minute must not be negative")
	}
	// OpenAI-hosted keys always carry the sk- prefix.
	if c.LLMAPIKey != "" && strings.HasPrefix(c.LLMBaseURL, DefaultLLMBaseURL) && !strings.HasPrefix(c.LLMAPIKey, "sk-") {
		return errors.New(`invalid API key format: OpenAI keys start with "sk-"`)
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.recap.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.recap) and repo (.recap) directories.
// Repo config is found by walking upward from startDir to find the nearest .recap/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Environment overrides are applied last.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	ApplyEnv(cfg, os.Getenv)
	return cfg, nil
}

// ApplyEnv overlays RECAP_* environment variables onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvLLMAPIKey)); v != "" {
		cfg.LLMAPIKey = v
	}
	if v := strings.TrimSpace(getenv(EnvLLMBaseURL)); v != "" {
		cfg.LLMBaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(getenv(EnvLLMModel)); v != "" {
		cfg.LLMModel = v
	}
	if v := strings.TrimSpace(getenv(EnvRedisURL)); v != "" {
		cfg.RedisURL = v
	}
}

// FindRepoConfig walks upward from startDir to find the nearest .recap/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".recap", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.FetchTimeoutMS = pickInt(overlay.FetchTimeoutMS, base.FetchTimeoutMS)
	result.PanelTimeoutMS = pickInt(overlay.PanelTimeoutMS, base.PanelTimeoutMS)
	result.MaxFetchBytes = overlay.MaxFetchBytes
	if result.MaxFetchBytes == 0 {
		result.MaxFetchBytes = base.MaxFetchBytes
	}
	result.DailyLimit = pickInt(overlay.DailyLimit, base.DailyLimit)
	result.UsageRetentionDays = pickInt(overlay.UsageRetentionDays, base.UsageRetentionDays)
	result.MaxSummaries = pickInt(overlay.MaxSummaries, base.MaxSummaries)
	result.LLMBaseURL = pickString(overlay.LLMBaseURL, base.LLMBaseURL)
	result.LLMAPIKey = pickString(overlay.LLMAPIKey, base.LLMAPIKey)
	result.LLMModel = pickString(overlay.LLMModel, base.LLMModel)
	result.LLMTemperature = base.LLMTemperature
	if overlay.LLMTemperature != nil {
		result.LLMTemperature = overlay.LLMTemperature
	}
	result.LLMMaxTokens = pickInt(overlay.LLMMaxTokens, base.LLMMaxTokens)
	result.LLMRequestsPerMinute = pickInt(overlay.LLMRequestsPerMinute, base.LLMRequestsPerMinute)
	result.CacheTTLMinutes = pickInt(overlay.CacheTTLMinutes, base.CacheTTLMinutes)
	result.CacheMaxEntries = pickInt(overlay.CacheMaxEntries, base.CacheMaxEntries)
	result.RedisURL = pickString(overlay.RedisURL, base.RedisURL)
	result.DBMaxOpenConns = pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// Float64 returns a pointer to v, for optional config fields.
func Float64(v float64) *float64 { return &v }

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func pickString(overlay, base string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
