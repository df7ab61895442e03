package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Broker   BrokerConfig   `json:"broker"`
	Database DatabaseConfig `json:"database"`
	Relay    RelayConfig    `json:"relay"`
	Pipeline PipelineConfig `json:"pipeline"`
	Auth     AuthConfig     `json:"auth"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// BrokerConfig points at the AMQP broker carrying the task queue.
type BrokerConfig struct {
	URL   string `json:"url"`
	Queue string `json:"queue"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

// RelayConfig points at the Redis instance carrying progress events.
type RelayConfig struct {
	URL string `json:"url"`
}

// PipelineConfig holds the report pipeline's external API settings.
type PipelineConfig struct {
	Endpoint     string `json:"endpoint"`
	APIKey       string `json:"api_key"`
	Model        string `json:"model"`
	TavilyAPIKey string `json:"tavily_api_key"`
}

// AuthConfig configures the token endpoint. Protect additionally requires a
// bearer token on the analysis and stream routes.
type AuthConfig struct {
	Secret   string `json:"secret"`
	Username string `json:"username"`
	Password string `json:"password"`
	Protect  bool   `json:"protect"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Broker.Queue == "" {
		cfg.Broker.Queue = "jobscout.analysis"
	}
	return &cfg, nil
}
