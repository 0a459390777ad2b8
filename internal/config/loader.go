package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		dataDir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dataDir, "config.json")
	}

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("CONTEXTMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Nested keys are only visible to Unmarshal once bound; AutomaticEnv
	// alone does not surface them
	for _, key := range []string{
		"data_dir", "active_project", "agent_dir",
		"embedding.api_key", "embedding.model", "embedding.dimension",
		"summarizer.api_key", "summarizer.model",
		"indexer.watch_depth", "indexer.reindex_schedule",
		"logging.level", "logging.file", "logging.pretty",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Remote credentials come from the environment when not in the file
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Summarizer.APIKey == "" {
		cfg.Summarizer.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.ActiveProject == "" {
		cfg.ActiveProject = os.Getenv("CONTEXTMEM_ACTIVE_PROJECT")
	}
	if cfg.AgentDir == "" {
		cfg.AgentDir = os.Getenv("CONTEXTMEM_AGENT_DIR")
	}

	if cfg.DataDir == "" {
		dataDir, err := defaultDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dataDir
	}

	if cfg.AgentDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.AgentDir = filepath.Join(home, ".agent", "projects")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "contextmem.log")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to file atomically
func (l *Loader) Save(cfg *Config) error {
	configPath := l.configPath
	if configPath == "" {
		dataDir, err := defaultDataDir()
		if err != nil {
			return err
		}
		configPath = filepath.Join(dataDir, "config.json")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomic.WriteFile(configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
