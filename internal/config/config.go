// Package config loads offsync settings: defaults, then an optional YAML
// file, then OFFSYNC_* environment variables. Command line flags are
// applied on top by the cli package.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/offsync/internal/models"
	"github.com/iudanet/offsync/internal/validation"
)

// Config holds every setting of the client processes
type Config struct {
	Server       string             `yaml:"server"` // базовый URL API
	DBPath       string             `yaml:"db"`
	EntityTypes  []string           `yaml:"entity_types"` // в дополнение к встроенным
	Log          LogConfig          `yaml:"log"`
	Auth         AuthConfig         `yaml:"auth"`
	Sync         SyncConfig         `yaml:"sync"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Proxy        ProxyConfig        `yaml:"proxy"`
	LockTimeout  time.Duration      `yaml:"lock_timeout"` // ожидание блокировки файла БД
}

// LogConfig настройки логирования
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text или json
}

// AuthConfig настройки сессии
type AuthConfig struct {
	// Secret encrypts stored credentials; empty stores them in plain text
	Secret        string        `yaml:"secret"`
	RefreshBefore time.Duration `yaml:"refresh_before"`
}

// SyncConfig настройки воспроизведения очереди
type SyncConfig struct {
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffCap     time.Duration `yaml:"backoff_cap"`
	JitterPercent  uint64        `yaml:"jitter_percent"`
	MaxAttempts    int           `yaml:"max_attempts"` // 0 = без ограничения
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
}

// ConnectivityConfig настройки проверки сети
type ConnectivityConfig struct {
	PingInterval         time.Duration `yaml:"ping_interval"` // <0 отключает проверки
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	RefreshCheckInterval time.Duration `yaml:"refresh_check_interval"`
}

// ProxyConfig настройки перехватывающего прокси
type ProxyConfig struct {
	Listen            string        `yaml:"listen"`
	Target            string        `yaml:"target"` // по умолчанию Server
	CacheGeneration   string        `yaml:"cache_generation"`
	APIPrefix         string        `yaml:"api_prefix"`
	AssetPrefixes     []string      `yaml:"asset_prefixes"`
	AssetExtensions   []string      `yaml:"asset_extensions"`
	PagePrefixes      []string      `yaml:"page_prefixes"`
	RevalidateTimeout time.Duration `yaml:"revalidate_timeout"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server:      "http://localhost:8080",
		DBPath:      "offsync.db",
		LockTimeout: time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Auth: AuthConfig{
			RefreshBefore: time.Minute,
		},
		Sync: SyncConfig{
			BackoffBase:    time.Second,
			BackoffCap:     5 * time.Minute,
			JitterPercent:  10,
			RequestTimeout: 15 * time.Second,
			RetryInterval:  30 * time.Second,
		},
		Connectivity: ConnectivityConfig{
			PingInterval:         15 * time.Second,
			PingTimeout:          5 * time.Second,
			RefreshCheckInterval: 20 * time.Second,
		},
		Proxy: ProxyConfig{
			Listen:            "127.0.0.1:8787",
			CacheGeneration:   "1",
			APIPrefix:         "/api/v1/",
			RevalidateTimeout: 30 * time.Second,
		},
	}
}

// Load reads path over the defaults and applies the environment.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// applyEnv overrides settings with OFFSYNC_* variables. Unparsable values
// are ignored.
func (c *Config) applyEnv() {
	c.Server = envOrDefault("OFFSYNC_SERVER", c.Server)
	c.DBPath = envOrDefault("OFFSYNC_DB", c.DBPath)
	c.Log.Level = envOrDefault("OFFSYNC_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOrDefault("OFFSYNC_LOG_FORMAT", c.Log.Format)
	c.Auth.Secret = envOrDefault("OFFSYNC_SECRET", c.Auth.Secret)
	c.Proxy.Listen = envOrDefault("OFFSYNC_PROXY_LISTEN", c.Proxy.Listen)
	c.Proxy.Target = envOrDefault("OFFSYNC_PROXY_TARGET", c.Proxy.Target)
	c.Proxy.CacheGeneration = envOrDefault("OFFSYNC_CACHE_GENERATION", c.Proxy.CacheGeneration)
	c.Sync.MaxAttempts = intOrDefault("OFFSYNC_MAX_ATTEMPTS", c.Sync.MaxAttempts)
	c.Sync.RetryInterval = durationOrDefault("OFFSYNC_RETRY_INTERVAL", c.Sync.RetryInterval)
	c.Sync.RequestTimeout = durationOrDefault("OFFSYNC_REQUEST_TIMEOUT", c.Sync.RequestTimeout)
	c.Connectivity.PingInterval = durationOrDefault("OFFSYNC_PING_INTERVAL", c.Connectivity.PingInterval)

	if v := os.Getenv("OFFSYNC_ENTITY_TYPES"); v != "" {
		c.EntityTypes = splitList(v)
	}
}

// Validate checks URLs, durations and entity names
func (c Config) Validate() error {
	var errs []error

	if err := validateURL(c.Server); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if c.Proxy.Target != "" {
		if err := validateURL(c.Proxy.Target); err != nil {
			errs = append(errs, fmt.Errorf("proxy.target: %w", err))
		}
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db: path cannot be empty"))
	}
	if c.Proxy.Listen == "" {
		errs = append(errs, errors.New("proxy.listen: address cannot be empty"))
	}
	if !strings.HasPrefix(c.Proxy.APIPrefix, "/") {
		errs = append(errs, fmt.Errorf("proxy.api_prefix: %q must start with /", c.Proxy.APIPrefix))
	}

	for _, et := range c.EntityTypes {
		if err := validation.ValidateEntityType(et); err != nil {
			errs = append(errs, fmt.Errorf("entity_types: %w", err))
		}
	}

	positive := map[string]time.Duration{
		"sync.backoff_base":                   c.Sync.BackoffBase,
		"sync.backoff_cap":                    c.Sync.BackoffCap,
		"sync.request_timeout":                c.Sync.RequestTimeout,
		"sync.retry_interval":                 c.Sync.RetryInterval,
		"connectivity.ping_timeout":           c.Connectivity.PingTimeout,
		"connectivity.refresh_check_interval": c.Connectivity.RefreshCheckInterval,
		"auth.refresh_before":                 c.Auth.RefreshBefore,
		"lock_timeout":                        c.LockTimeout,
	}
	for name, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %s", name, d))
		}
	}
	if c.Sync.BackoffCap < c.Sync.BackoffBase {
		errs = append(errs, fmt.Errorf("sync.backoff_cap: %s is below backoff_base %s", c.Sync.BackoffCap, c.Sync.BackoffBase))
	}
	if c.Sync.JitterPercent > 100 {
		errs = append(errs, fmt.Errorf("sync.jitter_percent: %d exceeds 100", c.Sync.JitterPercent))
	}
	if c.Sync.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("sync.max_attempts: cannot be negative"))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: %q is neither text nor json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// AllEntityTypes returns the built-in entity types followed by the
// configured ones, without duplicates
func (c Config) AllEntityTypes() []string {
	types := models.DefaultEntityTypes()
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		seen[t] = struct{}{}
	}
	for _, t := range c.EntityTypes {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	return types
}

// ProxyTarget returns the upstream of the interception proxy
func (c Config) ProxyTarget() string {
	if c.Proxy.Target != "" {
		return c.Proxy.Target
	}
	return c.Server
}

// NewLogger builds the slog logger described by c
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must be an http or https url", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func intOrDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
