package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the main contextmem configuration
type Config struct {
	// Data directory holding the vector index and logs
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Active project path auto-indexed and watched at startup
	ActiveProject string `json:"active_project" mapstructure:"active_project"`

	// Root directory where the coding agent writes transcript projects
	AgentDir string `json:"agent_dir" mapstructure:"agent_dir"`

	// Embedding configuration
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Summarizer configuration
	Summarizer SummarizerConfig `json:"summarizer" mapstructure:"summarizer"`

	// Indexer configuration
	Indexer IndexerConfig `json:"indexer" mapstructure:"indexer"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// EmbeddingConfig holds remote embedding settings
type EmbeddingConfig struct {
	// APIKey enables the remote embedding strategy; empty means
	// the deterministic offline strategy is used exclusively.
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	Model     string `json:"model" mapstructure:"model"`
	Dimension int    `json:"dimension" mapstructure:"dimension"`
}

// SummarizerConfig holds remote summarization settings
type SummarizerConfig struct {
	APIKey string `json:"api_key" mapstructure:"api_key"`
	Model  string `json:"model" mapstructure:"model"`
}

// IndexerConfig holds transcript indexer settings
type IndexerConfig struct {
	// WatchDepth bounds the recursive filesystem watch
	WatchDepth int `json:"watch_depth" mapstructure:"watch_depth"`

	// ReindexSchedule is an optional cron expression for periodic
	// sweeps of the active project. Empty disables the schedule.
	ReindexSchedule string `json:"reindex_schedule" mapstructure:"reindex_schedule"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns a config populated with defaults
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 256,
		},
		Summarizer: SummarizerConfig{
			Model: "claude-3-5-haiku-latest",
		},
		Indexer: IndexerConfig{
			WatchDepth: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Indexer.WatchDepth < 1 {
		return fmt.Errorf("watch depth must be at least 1, got %d", c.Indexer.WatchDepth)
	}
	if c.ActiveProject != "" && !filepath.IsAbs(c.ActiveProject) {
		return fmt.Errorf("active project must be an absolute path: %s", c.ActiveProject)
	}
	return nil
}

// DBPath returns the location of the on-disk vector index
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "context.db")
}

// defaultDataDir resolves the per-user data directory
func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".contextmem"), nil
}
