// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Archive backends.
const (
	ArchiveNone   = "none"
	ArchiveMemory = "memory"
	ArchiveLocal  = "local"
	ArchiveGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Collection CollectionConfig `mapstructure:"collection"`
	Events     EventsConfig     `mapstructure:"events"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Platforms  PlatformsConfig  `mapstructure:"platforms"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
}

// ServerConfig controls the operational HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CollectionConfig governs the fan-out, the keyword task and its pool.
type CollectionConfig struct {
	PageSize             int            `mapstructure:"page_size"`
	FetchTimeout         time.Duration  `mapstructure:"fetch_timeout"`
	MaxConcurrentFetches int            `mapstructure:"max_concurrent_fetches"`
	Schedule             ScheduleConfig `mapstructure:"schedule"`
	Pool                 PoolConfig     `mapstructure:"pool"`
}

// ScheduleConfig controls the periodic full collection.
type ScheduleConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
}

// PoolConfig sizes one bounded worker pool.
type PoolConfig struct {
	CoreWorkers     int           `mapstructure:"core_workers"`
	MaxWorkers      int           `mapstructure:"max_workers"`
	QueueCapacity   int           `mapstructure:"queue_capacity"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// EventsConfig sizes the event pool and bounds handlers.
type EventsConfig struct {
	Pool           PoolConfig    `mapstructure:"pool"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

// HTTPConfig configures the outbound platform client.
type HTTPConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// PlatformsConfig holds one section per platform adapter.
type PlatformsConfig struct {
	Naver  NaverConfig  `mapstructure:"naver"`
	Daum   DaumConfig   `mapstructure:"daum"`
	Google GoogleConfig `mapstructure:"google"`
}

// RateConfig is a token bucket per platform.
type RateConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// NaverConfig configures the Naver Open API adapter.
type NaverConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RateConfig   `mapstructure:",squash"`
}

// DaumConfig configures the Kakao search API adapter.
type DaumConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	APIKey     string `mapstructure:"api_key"`
	RateConfig `mapstructure:",squash"`
}

// GoogleConfig configures the Google News RSS adapter.
type GoogleConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Language   string `mapstructure:"language"`
	Region     string `mapstructure:"region"`
	RateConfig `mapstructure:",squash"`
}

// DatabaseConfig controls the Postgres store. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// ArchiveConfig selects where raw batches are written.
type ArchiveConfig struct {
	Backend string `mapstructure:"backend"`
	Bucket  string `mapstructure:"bucket"`
	BaseDir string `mapstructure:"base_dir"`
	Prefix  string `mapstructure:"prefix"`
}

// PubSubConfig holds the external event topic. An empty project selects the
// in-memory publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment. Environment variables use the
// NEWSFEED prefix, e.g. NEWSFEED_COLLECTION_PAGE_SIZE.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")

	v.SetDefault("collection.page_size", 10)
	v.SetDefault("collection.fetch_timeout", 10*time.Second)
	v.SetDefault("collection.max_concurrent_fetches", 15)
	v.SetDefault("collection.schedule.enabled", true)
	v.SetDefault("collection.schedule.interval", time.Hour)
	v.SetDefault("collection.schedule.initial_delay", 3*time.Second)
	setPoolDefaults(v, "collection.pool", 15)

	setPoolDefaults(v, "events.pool", 10)
	v.SetDefault("events.handler_timeout", 30*time.Second)

	v.SetDefault("http.user_agent", "keyword-news-collector/0.1")
	v.SetDefault("http.timeout", 15*time.Second)

	v.SetDefault("platforms.naver.enabled", false)
	v.SetDefault("platforms.naver.client_id", "")
	v.SetDefault("platforms.naver.client_secret", "")
	v.SetDefault("platforms.naver.rps", 5)
	v.SetDefault("platforms.naver.burst", 1)
	v.SetDefault("platforms.daum.enabled", false)
	v.SetDefault("platforms.daum.api_key", "")
	v.SetDefault("platforms.daum.rps", 5)
	v.SetDefault("platforms.daum.burst", 1)
	v.SetDefault("platforms.google.enabled", true)
	v.SetDefault("platforms.google.language", "ko")
	v.SetDefault("platforms.google.region", "KR")
	v.SetDefault("platforms.google.rps", 2)
	v.SetDefault("platforms.google.burst", 1)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.migrate", true)

	v.SetDefault("archive.backend", ArchiveNone)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("archive.prefix", "raw")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
}

func setPoolDefaults(v *viper.Viper, prefix string, maxWorkers int) {
	v.SetDefault(prefix+".core_workers", 5)
	v.SetDefault(prefix+".max_workers", maxWorkers)
	v.SetDefault(prefix+".queue_capacity", 50)
	v.SetDefault(prefix+".idle_timeout", 60*time.Second)
	v.SetDefault(prefix+".shutdown_timeout", 30*time.Second)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Collection.PageSize < 1 || c.Collection.PageSize > 100 {
		return errors.New("collection.page_size must be between 1 and 100")
	}
	if c.Collection.FetchTimeout <= 0 {
		return errors.New("collection.fetch_timeout must be > 0")
	}
	if c.Collection.MaxConcurrentFetches <= 0 {
		return errors.New("collection.max_concurrent_fetches must be > 0")
	}
	if c.Collection.Schedule.Enabled && c.Collection.Schedule.Interval <= 0 {
		return errors.New("collection.schedule.interval must be > 0 when scheduling is enabled")
	}
	if err := c.Collection.Pool.validate("collection.pool"); err != nil {
		return err
	}
	if err := c.Events.Pool.validate("events.pool"); err != nil {
		return err
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be > 0")
	}
	if c.Platforms.Naver.Enabled && (c.Platforms.Naver.ClientID == "" || c.Platforms.Naver.ClientSecret == "") {
		return errors.New("platforms.naver.client_id and client_secret must be set when naver is enabled")
	}
	if c.Platforms.Daum.Enabled && c.Platforms.Daum.APIKey == "" {
		return errors.New("platforms.daum.api_key must be set when daum is enabled")
	}
	switch c.Archive.Backend {
	case ArchiveNone, ArchiveMemory:
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return errors.New("archive.base_dir must be set for the local backend")
		}
	case ArchiveGCS:
		if c.Archive.Bucket == "" {
			return errors.New("archive.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend %q is not one of none, memory, local, gcs", c.Archive.Backend)
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return errors.New("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	return nil
}

func (p PoolConfig) validate(prefix string) error {
	if p.CoreWorkers < 1 {
		return fmt.Errorf("%s.core_workers must be >= 1", prefix)
	}
	if p.MaxWorkers < p.CoreWorkers {
		return fmt.Errorf("%s.max_workers must be >= core_workers", prefix)
	}
	if p.QueueCapacity < 0 {
		return fmt.Errorf("%s.queue_capacity must be >= 0", prefix)
	}
	return nil
}
