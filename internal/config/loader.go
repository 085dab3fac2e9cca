package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"modelmgrd/pkg/types"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and are replaced by defaults at construction.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// Rescan ModelsDir on filesystem changes and register new artifacts.
	WatchModelsDir bool `json:"watch_models_dir" yaml:"watch_models_dir" toml:"watch_models_dir"`
	// Explicitly declared models, merged with ModelsDir scan results.
	Models       []types.ModelDescriptor `json:"models" yaml:"models" toml:"models"`
	DefaultModel string                  `json:"default_model" yaml:"default_model" toml:"default_model"`
	Device       string                  `json:"device" yaml:"device" toml:"device"`

	// VRAM budget inputs.
	TotalCapacityMB int     `json:"total_capacity_mb" yaml:"total_capacity_mb" toml:"total_capacity_mb"`
	BudgetFraction  float64 `json:"budget_fraction" yaml:"budget_fraction" toml:"budget_fraction"`
	MinFreeMB       int     `json:"min_free_mb" yaml:"min_free_mb" toml:"min_free_mb"`

	// Idle reaping.
	DefaultIdleTimeoutSeconds  int `json:"default_idle_timeout_seconds" yaml:"default_idle_timeout_seconds" toml:"default_idle_timeout_seconds"`
	MemoryCheckIntervalSeconds int `json:"memory_check_interval_seconds" yaml:"memory_check_interval_seconds" toml:"memory_check_interval_seconds"`

	// How long an unload waits for in-flight generations before proceeding.
	DrainTimeoutSeconds int `json:"drain_timeout_seconds" yaml:"drain_timeout_seconds" toml:"drain_timeout_seconds"`

	// Usage prediction / prefetch.
	PredictionWindowSeconds  int `json:"prediction_window_seconds" yaml:"prediction_window_seconds" toml:"prediction_window_seconds"`
	LookaheadIntervalSeconds int `json:"lookahead_interval_seconds" yaml:"lookahead_interval_seconds" toml:"lookahead_interval_seconds"`

	// Conversation cache.
	MaxConversationCaches       int `json:"max_conversation_caches" yaml:"max_conversation_caches" toml:"max_conversation_caches"`
	CacheTTLSeconds             int `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
	CacheCleanupIntervalSeconds int `json:"cache_cleanup_interval_seconds" yaml:"cache_cleanup_interval_seconds" toml:"cache_cleanup_interval_seconds"`

	// Analytics sink. Empty disables the SQLite usage log.
	UsageLogPath string `json:"usage_log_path" yaml:"usage_log_path" toml:"usage_log_path"`

	// Logging.
	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile  string `json:"log_file" yaml:"log_file" toml:"log_file"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
