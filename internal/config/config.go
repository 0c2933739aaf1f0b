// Package config provides configuration loading for nexkb-core.
//
// Configuration is read from an optional YAML file and overridden by
// environment variables, with defaults suitable for local development.
package config

import (
	"fmt"
	"time"
)

// Config holds the complete nexkb-core configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Auth      AuthConfig      `koanf:"auth"`
	Worker    WorkerConfig    `koanf:"worker"`
	Janitor   JanitorConfig   `koanf:"janitor"`
	Mcp       McpServerConfig `koanf:"mcp"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection pool configuration.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// RedisConfig holds the optional Redis connection. An empty URL leaves
// Redis out; the janitor then runs without a distributed lock unless
// lock_required forbids that.
type RedisConfig struct {
	URL string `koanf:"url"`
}

// RetrievalConfig holds the external retrieval engine endpoint.
type RetrievalConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

// WorkerConfig holds job worker settings. DequeueTimeout is in seconds
// to match the queue port.
type WorkerConfig struct {
	Concurrency    int `koanf:"concurrency"`
	DequeueTimeout int `koanf:"dequeue_timeout"`
}

// JanitorConfig holds queue maintenance settings.
type JanitorConfig struct {
	Enabled      bool          `koanf:"enabled"`
	LockRequired bool          `koanf:"lock_required"`
	Interval     time.Duration `koanf:"interval"`
	StaleAfter   time.Duration `koanf:"stale_after"`
	Retention    time.Duration `koanf:"retention"`
}

// McpServerConfig holds settings for the stdio MCP server mode. The
// scoped key identifies the folder the server answers for.
type McpServerConfig struct {
	APIKey string `koanf:"api_key"`
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}
	if c.Retrieval.URL == "" {
		return fmt.Errorf("retrieval url is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1: %d", c.Worker.Concurrency)
	}
	if c.Worker.DequeueTimeout < 1 {
		return fmt.Errorf("worker dequeue timeout must be at least 1s: %d", c.Worker.DequeueTimeout)
	}
	if c.Janitor.Interval < time.Second {
		return fmt.Errorf("janitor interval too short: %s", c.Janitor.Interval)
	}
	if c.Janitor.StaleAfter < time.Minute {
		return fmt.Errorf("janitor stale_after below one minute: %s", c.Janitor.StaleAfter)
	}
	return nil
}
