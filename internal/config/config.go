package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig
	Slack    SlackConfig
	Export   ExportConfig
	Weaviate WeaviateConfig
	MySQL    MySQLConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string
	Host string
}

// SlackConfig holds the credentials for the workspace being exported
type SlackConfig struct {
	// Token is the bot token used against the Slack Web API
	Token string

	// AdminSecretHash is the SHA-256 hex digest of the admin secret
	// that guards the export endpoint
	AdminSecretHash string
}

// ExportConfig tunes the export pipeline
type ExportConfig struct {
	WindowDays   int    // history window per channel
	ListLimit    int    // max channels/users enumerated
	MaxTransfers int    // concurrent file downloads across the run
	PacingMS     int    // delay between channel harvests
	ArchiveDir   string // where snapshot files are written
	Schedule     string // optional cron expression for periodic exports
}

// WeaviateConfig holds the optional snapshot indexing sink
type WeaviateConfig struct {
	Enabled bool
	Scheme  string
	Host    string
	APIKey  string
}

// MySQLConfig holds the optional run-history store
type MySQLConfig struct {
	DSN string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", ""),
		},
		Slack: SlackConfig{
			Token:           getEnv("SLACK_TOKEN", ""),
			AdminSecretHash: getEnv("ADMIN_SECRET_HASH", ""),
		},
		Export: ExportConfig{
			WindowDays:   getEnvInt("EXPORT_WINDOW_DAYS", 30),
			ListLimit:    getEnvInt("EXPORT_LIST_LIMIT", 1000),
			MaxTransfers: getEnvInt("EXPORT_MAX_TRANSFERS", 8),
			PacingMS:     getEnvInt("EXPORT_PACING_MS", 1000),
			ArchiveDir:   getEnv("EXPORT_ARCHIVE_DIR", "snapshots"),
			Schedule:     getEnv("EXPORT_SCHEDULE", ""),
		},
		Weaviate: WeaviateConfig{
			Enabled: getEnv("WEAVIATE_HOST", "") != "",
			Scheme:  getEnv("WEAVIATE_SCHEME", "http"),
			Host:    getEnv("WEAVIATE_HOST", ""),
			APIKey:  getEnv("WEAVIATE_API_KEY", ""),
		},
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server port
	if c.Server.Port != "" {
		port, err := strconv.Atoi(c.Server.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port: %s", c.Server.Port)
		}
	}

	if c.Slack.Token == "" {
		return fmt.Errorf("SLACK_TOKEN is required")
	}

	if c.Export.WindowDays < 1 {
		return fmt.Errorf("EXPORT_WINDOW_DAYS must be at least 1")
	}

	if c.Export.MaxTransfers < 1 {
		return fmt.Errorf("EXPORT_MAX_TRANSFERS must be at least 1")
	}

	if c.Weaviate.Enabled && c.Weaviate.Scheme != "http" && c.Weaviate.Scheme != "https" {
		return fmt.Errorf("WEAVIATE_SCHEME must be http or https")
	}

	return nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a fallback default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
