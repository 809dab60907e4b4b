package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.True(t, cfg.Logging.Development)
	require.Equal(t, 10, cfg.Collection.PageSize)
	require.Equal(t, 10*time.Second, cfg.Collection.FetchTimeout)
	require.Equal(t, 15, cfg.Collection.MaxConcurrentFetches)
	require.Equal(t, time.Hour, cfg.Collection.Schedule.Interval)
	require.Equal(t, 3*time.Second, cfg.Collection.Schedule.InitialDelay)
	require.Equal(t, PoolConfig{
		CoreWorkers:     5,
		MaxWorkers:      15,
		QueueCapacity:   50,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}, cfg.Collection.Pool)
	require.Equal(t, 10, cfg.Events.Pool.MaxWorkers)
	require.Equal(t, 30*time.Second, cfg.Events.HandlerTimeout)
	require.True(t, cfg.Platforms.Google.Enabled)
	require.Equal(t, "ko", cfg.Platforms.Google.Language)
	require.InDelta(t, 2, cfg.Platforms.Google.RPS, 0)
	require.False(t, cfg.Platforms.Naver.Enabled)
	require.Equal(t, ArchiveNone, cfg.Archive.Backend)
	require.Equal(t, "raw", cfg.Archive.Prefix)
	require.True(t, cfg.Database.Migrate)
	require.Empty(t, cfg.Database.DSN)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
server:
  port: 9090
logging:
  development: false
  level: debug
collection:
  page_size: 20
  fetch_timeout: 5s
  schedule:
    interval: 30m
  pool:
    core_workers: 2
    max_workers: 4
platforms:
  naver:
    enabled: true
    client_id: id
    client_secret: secret
    rps: 10
  google:
    enabled: false
database:
  dsn: postgres://localhost/news
  max_conns: 4
archive:
  backend: local
  base_dir: /tmp/archive
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, 20, cfg.Collection.PageSize)
	require.Equal(t, 5*time.Second, cfg.Collection.FetchTimeout)
	require.Equal(t, 30*time.Minute, cfg.Collection.Schedule.Interval)
	require.Equal(t, 2, cfg.Collection.Pool.CoreWorkers)
	require.Equal(t, 4, cfg.Collection.Pool.MaxWorkers)
	require.Equal(t, 50, cfg.Collection.Pool.QueueCapacity)
	require.True(t, cfg.Platforms.Naver.Enabled)
	require.Equal(t, "id", cfg.Platforms.Naver.ClientID)
	require.InDelta(t, 10, cfg.Platforms.Naver.RPS, 0)
	require.Equal(t, 1, cfg.Platforms.Naver.Burst)
	require.False(t, cfg.Platforms.Google.Enabled)
	require.Equal(t, int32(4), cfg.Database.MaxConns)
	require.Equal(t, "/tmp/archive", cfg.Archive.BaseDir)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NEWSFEED_SERVER_PORT", "7070")
	t.Setenv("NEWSFEED_COLLECTION_PAGE_SIZE", "25")
	t.Setenv("NEWSFEED_PLATFORMS_DAUM_ENABLED", "true")
	t.Setenv("NEWSFEED_PLATFORMS_DAUM_API_KEY", "kakao")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 25, cfg.Collection.PageSize)
	require.True(t, cfg.Platforms.Daum.Enabled)
	require.Equal(t, "kakao", cfg.Platforms.Daum.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"page size", func(c *Config) { c.Collection.PageSize = 101 }, "page_size"},
		{"fetch timeout", func(c *Config) { c.Collection.FetchTimeout = 0 }, "fetch_timeout"},
		{"core workers", func(c *Config) { c.Collection.Pool.CoreWorkers = 0 }, "collection.pool.core_workers"},
		{"max below core", func(c *Config) { c.Events.Pool.MaxWorkers = 1 }, "events.pool.max_workers"},
		{"queue", func(c *Config) { c.Events.Pool.QueueCapacity = -1 }, "queue_capacity"},
		{"naver creds", func(c *Config) { c.Platforms.Naver.Enabled = true }, "naver"},
		{"daum key", func(c *Config) { c.Platforms.Daum.Enabled = true }, "daum"},
		{"gcs bucket", func(c *Config) { c.Archive.Backend = ArchiveGCS }, "archive.bucket"},
		{"local dir", func(c *Config) { c.Archive.Backend = ArchiveLocal }, "archive.base_dir"},
		{"backend", func(c *Config) { c.Archive.Backend = "s3" }, "archive.backend"},
		{"topic", func(c *Config) { c.PubSub.ProjectID = "proj" }, "topic_name"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}
