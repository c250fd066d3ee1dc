package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for both binaries
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Logger LoggerConfig `mapstructure:"logger"`
	Feed   FeedConfig   `mapstructure:"feed"`
	Ingest IngestConfig `mapstructure:"ingest"`
	Dynamo DynamoConfig `mapstructure:"dynamo"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Query  QueryConfig  `mapstructure:"query"`
}

type AppConfig struct {
	Port        string   `mapstructure:"port"`
	Env         string   `mapstructure:"env"` // e.g., "local", "prod"
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
	Env   string `mapstructure:"env"`
}

type FeedConfig struct {
	URL            string        `mapstructure:"url"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	APIPassword    string        `mapstructure:"api_password"`
	Symbols        []string      `mapstructure:"symbols"`
	Exchange       int           `mapstructure:"exchange"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	SimPort        string        `mapstructure:"sim_port"`
	SimInterval    time.Duration `mapstructure:"sim_interval"`
}

type IngestConfig struct {
	NumWorkers int `mapstructure:"num_workers"`
	QueueSize  int `mapstructure:"queue_size"`
}

type DynamoConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Table    string `mapstructure:"table"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

type QueryConfig struct {
	SizeBudgetBytes int `mapstructure:"size_budget_bytes"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the process environment first (if it exists) so the
	// variables below are visible as real env vars
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	v.SetDefault("app.port", ":8000")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.env", "local")

	v.SetDefault("feed.url", "ws://localhost:18080/kabusapi/websocket")
	v.SetDefault("feed.api_base_url", "http://localhost:18080/kabusapi")
	v.SetDefault("feed.api_password", "")
	v.SetDefault("feed.symbols", []string{})
	v.SetDefault("feed.exchange", 1)
	v.SetDefault("feed.reconnect_delay", 5*time.Second)
	v.SetDefault("feed.sim_port", ":18080")
	v.SetDefault("feed.sim_interval", time.Second)

	v.SetDefault("ingest.num_workers", 4)
	v.SetDefault("ingest.queue_size", 1024)

	v.SetDefault("dynamo.region", "ap-northeast-1")
	v.SetDefault("dynamo.endpoint", "")
	v.SetDefault("dynamo.table", "stock_data")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", 1*time.Hour)

	v.SetDefault("query.size_budget_bytes", 50*1024*1024)

	// Dot-notation keys map to underscore env vars (e.g. "feed.url" -> FEED_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.port", "app.env", "app.cors_origins")
	bindEnv(v, "logger.level", "logger.env")
	bindEnv(v, "feed.url", "feed.api_base_url", "feed.api_password", "feed.symbols", "feed.exchange", "feed.reconnect_delay", "feed.sim_port", "feed.sim_interval")
	bindEnv(v, "ingest.num_workers", "ingest.queue_size")
	bindEnv(v, "dynamo.region", "dynamo.endpoint", "dynamo.table")
	bindEnv(v, "redis.addr", "redis.password", "redis.db", "redis.snapshot_ttl")
	bindEnv(v, "query.size_budget_bytes")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	if cfg.Dynamo.Table == "" {
		return nil, fmt.Errorf("dynamo table cannot be empty")
	}
	if cfg.Ingest.NumWorkers <= 0 {
		return nil, fmt.Errorf("ingest num_workers must be positive")
	}

	return &cfg, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
