package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Sweep    SweepConfig
	N8N      N8NConfig
}

type ServerConfig struct {
	Port string
	Host string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RabbitMQConfig configures the optional delivery-notification publisher.
// The publisher is disabled when URL is empty.
type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// SweepConfig controls the background retry pass over unsent lead events.
// Interval 0 disables the built-in ticker; production deployments are
// expected to hit POST /api/facebook/process-unsent from cron instead.
type SweepConfig struct {
	Interval time.Duration
}

// N8NConfig holds process-level workflow-engine settings. Per-tenant
// base URL and webhook secret live in the settings table.
type N8NConfig struct {
	WorkflowsDir string
}

func Load() (*Config, error) {
	var missing []string

	get := func(key string) string {
		val := os.Getenv(key)
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}

	getDefault := func(key, def string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return def
	}

	config := &Config{
		Server: ServerConfig{
			Port: get("SERVER_PORT"),
			Host: get("SERVER_HOST"),
		},
		Database: DatabaseConfig{
			Host:     get("DB_HOST"),
			Port:     get("DB_PORT"),
			User:     get("DB_USER"),
			Password: get("DB_PASSWORD"),
			DBName:   get("DB_NAME"),
			SSLMode:  get("DB_SSLMODE"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        os.Getenv("RABBITMQ_URL"),
			Exchange:   getDefault("RABBITMQ_EXCHANGE", "lead.events"),
			RoutingKey: getDefault("RABBITMQ_ROUTING_KEY", "lead.delivery"),
		},
		N8N: N8NConfig{
			WorkflowsDir: getDefault("N8N_WORKFLOWS_DIR", "n8n_workflows"),
		},
	}

	sweepSeconds := getDefault("SWEEP_INTERVAL_SECONDS", "0")
	seconds, err := strconv.Atoi(sweepSeconds)
	if err != nil || seconds < 0 {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL_SECONDS: %q", sweepSeconds)
	}
	config.Sweep.Interval = time.Duration(seconds) * time.Second

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return config, nil
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrationURL returns the postgres:// URL used by golang-migrate.
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// Enabled reports whether the delivery-notification publisher is configured.
func (c *RabbitMQConfig) Enabled() bool {
	return c.URL != ""
}
