package cli

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/starchart-viz/starchart/pkg/cluster"
	"github.com/starchart-viz/starchart/pkg/cluster/openai"
)

// =============================================================================
// Constants
// =============================================================================

const (
	cacheBackendFile  = "file"
	cacheBackendRedis = "redis"
	cacheBackendNone  = "none"

	storeBackendFile  = "file"
	storeBackendMongo = "mongo"

	// apiKeyEnv is the environment variable holding the OpenAI API key.
	// The key is never read from the config file.
	apiKeyEnv = "OPENAI_API_KEY"
)

// =============================================================================
// Config
// =============================================================================

// Config holds the starchart configuration, loaded from a TOML file.
// Zero values fall back to sensible defaults at the point of use.
type Config struct {
	Cache    CacheConfig    `toml:"cache"`
	Store    StoreConfig    `toml:"store"`
	OpenAI   OpenAIConfig   `toml:"openai"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
}

// CacheConfig selects the cache backend for pipeline results.
type CacheConfig struct {
	// Backend is one of "file" (default), "redis", or "none".
	Backend string `toml:"backend"`

	// Dir overrides the file cache directory (default: ~/.cache/starchart).
	Dir string `toml:"dir"`

	Redis RedisConfig `toml:"redis"`
}

// RedisConfig holds connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// StoreConfig selects the document store backend for the serve command.
type StoreConfig struct {
	// Backend is one of "file" (default) or "mongo".
	Backend string `toml:"backend"`

	// Dir overrides the file store directory (default: ~/.config/starchart/documents).
	Dir string `toml:"dir"`

	Mongo MongoConfig `toml:"mongo"`
}

// MongoConfig holds connection settings for the mongo store backend.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// OpenAIConfig configures the concept clustering backend.
type OpenAIConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// PipelineConfig tunes scoring and grouping defaults.
type PipelineConfig struct {
	FrequencyWeight    float64 `toml:"frequency_weight"`
	SectionWeight      float64 `toml:"section_weight"`
	ConstellationCount int     `toml:"constellation_count"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// =============================================================================
// Loading
// =============================================================================

// defaultConfigPath returns ~/.config/starchart/config.toml, honoring
// XDG_CONFIG_HOME when set.
func defaultConfigPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// loadConfig reads the config file at path, or the default location when path
// is empty. A missing file is not an error; defaults apply.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}

	explicit := path != ""
	if !explicit {
		var err error
		path, err = defaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, err
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// =============================================================================
// Clusterer Factory
// =============================================================================

// newClusterer builds an OpenAI-backed clusterer from config and environment.
// It returns nil when no API key is available; callers fall back to
// degree-based grouping.
func newClusterer(cfg *Config, model string) cluster.Clusterer {
	if model == "" {
		model = cfg.OpenAI.Model
	}
	client := openai.NewClient(openai.Params{
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   model,
	})
	if client == nil {
		return nil
	}
	return client
}
