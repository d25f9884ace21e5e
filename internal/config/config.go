// Package config loads edge settings from defaults, an optional YAML file,
// a .env file and MUSEUM_EDGE_* environment variables, in increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/museum-edge/pkg/cache"
	"github.com/Sternrassler/museum-edge/pkg/syncqueue"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: server.address is read
// from MUSEUM_EDGE_SERVER_ADDRESS.
const EnvPrefix = "MUSEUM_EDGE"

// Queue engines.
const (
	EngineRedis  = "redis"
	EngineSQLite = "sqlite"
)

// Config is the complete edge configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Origin    OriginConfig    `mapstructure:"origin"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type OriginConfig struct {
	URL       string        `mapstructure:"url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Version           string   `mapstructure:"version"`
	ShellName         string   `mapstructure:"shell_name"`
	ImageName         string   `mapstructure:"image_name"`
	APIName           string   `mapstructure:"api_name"`
	OfflinePage       string   `mapstructure:"offline_page"`
	Manifest          []string `mapstructure:"manifest"`
	ExternalResources []string `mapstructure:"external_resources"`
	Concurrency       int      `mapstructure:"concurrency"`
	// RefreshCron schedules the periodic shell refresh; empty disables it.
	RefreshCron string `mapstructure:"refresh_cron"`
}

type SyncConfig struct {
	AllowedEndpoints []string `mapstructure:"allowed_endpoints"`
	Engine           string   `mapstructure:"engine"`
	SQLitePath       string   `mapstructure:"sqlite_path"`
}

type ProbeConfig struct {
	Path     string        `mapstructure:"path"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window"`
	Max    int64         `mapstructure:"max"`
}

type WorkerConfig struct {
	SkipWaiting          bool          `mapstructure:"skip_waiting"`
	ControlCheckInterval time.Duration `mapstructure:"control_check_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	def := cache.DefaultConfig("")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("origin.url", "http://localhost:3000")
	v.SetDefault("origin.user_agent", "museum-edge/1.0")
	v.SetDefault("origin.timeout", "30s")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.version", def.Version)
	v.SetDefault("cache.shell_name", def.ShellName)
	v.SetDefault("cache.image_name", def.ImageName)
	v.SetDefault("cache.api_name", def.APIName)
	v.SetDefault("cache.offline_page", def.OfflinePage)
	v.SetDefault("cache.manifest", def.Manifest)
	v.SetDefault("cache.external_resources", def.ExternalResources)
	v.SetDefault("cache.concurrency", def.Concurrency)
	v.SetDefault("cache.refresh_cron", "@every 24h")

	v.SetDefault("sync.allowed_endpoints", syncqueue.DefaultAllowedEndpoints)
	v.SetDefault("sync.engine", EngineRedis)
	v.SetDefault("sync.sqlite_path", "museum-edge-sync.db")

	v.SetDefault("probe.path", "/")
	v.SetDefault("probe.interval", "15s")
	v.SetDefault("probe.timeout", "5s")

	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("rate_limit.max", 60)

	v.SetDefault("worker.skip_waiting", true)
	v.SetDefault("worker.control_check_interval", "1s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads the configuration into a fresh Config. configFile may be
// empty, in which case ./config.yaml and ./config/config.yaml are tried.
// A missing .env or config file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	origin, err := url.Parse(c.Origin.URL)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return fmt.Errorf("origin.url must be an absolute URL (got %q)", c.Origin.URL)
	}
	if c.Cache.Version == "" {
		return fmt.Errorf("cache.version is required")
	}
	switch c.Sync.Engine {
	case EngineRedis:
	case EngineSQLite:
		if c.Sync.SQLitePath == "" {
			return fmt.Errorf("sync.sqlite_path is required for the sqlite engine")
		}
	default:
		return fmt.Errorf("sync.engine must be %q or %q (got %q)", EngineRedis, EngineSQLite, c.Sync.Engine)
	}
	return nil
}

// OriginURL returns the parsed origin. Validate guarantees it parses.
func (c *Config) OriginURL() *url.URL {
	u, _ := url.Parse(c.Origin.URL)
	return u
}

// CacheManagerConfig maps the cache section onto cache.Config.
func (c *Config) CacheManagerConfig() cache.Config {
	return cache.Config{
		Version:           c.Cache.Version,
		ShellName:         c.Cache.ShellName,
		ImageName:         c.Cache.ImageName,
		APIName:           c.Cache.APIName,
		Origin:            c.Origin.URL,
		OfflinePage:       c.Cache.OfflinePage,
		Manifest:          c.Cache.Manifest,
		ExternalResources: c.Cache.ExternalResources,
		Concurrency:       c.Cache.Concurrency,
	}
}

// ProbeURL resolves the probe path against the origin.
func (c *Config) ProbeURL() string {
	return c.OriginURL().ResolveReference(&url.URL{Path: c.Probe.Path}).String()
}
