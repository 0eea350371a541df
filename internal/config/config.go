package config

import "time"

// Config represents the full application configuration.
type Config struct {
	Git           GitConfig           `yaml:"git"`
	Review        ReviewConfig        `yaml:"review"`
	Store         StoreConfig         `yaml:"store"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type GitConfig struct {
	RepositoryDir string `yaml:"repositoryDir"`
}

// ReviewConfig configures review behavior.
type ReviewConfig struct {
	// BaseRef pins the base branch; empty means auto-detect.
	BaseRef string `yaml:"baseRef"`

	// Author overrides git user.name for new comments and replies.
	Author string `yaml:"author"`

	// PollInterval is how often the viewer refreshes, as a duration
	// string ("2s", "500ms").
	PollInterval string `yaml:"pollInterval"`
}

// ParsedPollInterval returns the configured interval, or zero when unset or
// unparseable so the caller falls back to its default.
func (r ReviewConfig) ParsedPollInterval() time.Duration {
	d, err := time.ParseDuration(r.PollInterval)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // debug, info, error
	Format  string `yaml:"format"` // json, human
}
