package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration written as "15m" or "720h" in the config file.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	LogLevel   string           `toml:"logLevel"`
	HTTP       HTTPConfig       `toml:"http"`
	Admin      AdminConfig      `toml:"admin"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	Session    SessionConfig    `toml:"session"`
	Cache      CacheConfig      `toml:"cache"`
	Pagination PaginationConfig `toml:"pagination"`
}

type HTTPConfig struct {
	Addr           string   `toml:"address"`
	AllowedOrigins []string `toml:"allowedOrigins"`
	RequestTimeout Duration `toml:"requestTimeout"`
}

type AdminConfig struct {
	Addr string `toml:"address"`
}

type DatabaseConfig struct {
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"maxOpenConns"`
}

type RedisConfig struct {
	Addr          string   `toml:"address"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	DialTimeout   Duration `toml:"dialTimeout"`
	ReadTimeout   Duration `toml:"readTimeout"`
	WriteTimeout  Duration `toml:"writeTimeout"`
	PingInterval  Duration `toml:"pingInterval"`
	BackoffCap    Duration `toml:"backoffCap"`
	KeyspaceNotes bool     `toml:"configureKeyspaceEvents"`
}

type SessionConfig struct {
	TTL             Duration `toml:"ttl"`
	MaxUserSessions int      `toml:"maxUserSessions"`
	CookieName      string   `toml:"cookieName"`
	CookieSecure    bool     `toml:"cookieSecure"`
	CookieDomain    string   `toml:"cookieDomain"`
	CookieSameSite  string   `toml:"cookieSameSite"`
}

type CacheConfig struct {
	TTL     Duration `toml:"ttl"`
	Workers int      `toml:"workers"`
}

type PaginationConfig struct {
	MaxLimit int `toml:"maxLimit"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			RequestTimeout: Duration{30 * time.Second},
		},
		Admin: AdminConfig{
			Addr: "127.0.0.1:9090",
		},
		Database: DatabaseConfig{
			DSN:          "file:ratewise.db?cache=shared",
			MaxOpenConns: 4,
		},
		Redis: RedisConfig{
			Addr:          "127.0.0.1:6379",
			DialTimeout:   Duration{5 * time.Second},
			ReadTimeout:   Duration{3 * time.Second},
			WriteTimeout:  Duration{3 * time.Second},
			PingInterval:  Duration{5 * time.Second},
			BackoffCap:    Duration{30 * time.Second},
			KeyspaceNotes: true,
		},
		Session: SessionConfig{
			TTL:             Duration{24 * time.Hour},
			MaxUserSessions: 3,
			CookieName:      "ratewise_sid",
			CookieSecure:    true,
			CookieSameSite:  "lax",
		},
		Cache: CacheConfig{
			TTL:     Duration{10 * time.Minute},
			Workers: 8,
		},
		Pagination: PaginationConfig{
			MaxLimit: 100,
		},
	}
}

// Load decodes the file at path over the defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		_, err := toml.DecodeFile(path, cfg)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config '%s': %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.HTTP.Addr == "" {
		errs = append(errs, "http.address is required")
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	if c.Redis.Addr == "" {
		errs = append(errs, "redis.address is required")
	}
	if c.Session.TTL.Duration <= 0 {
		errs = append(errs, "session.ttl must be positive")
	}
	if c.Session.MaxUserSessions < 0 {
		errs = append(errs, "session.maxUserSessions must not be negative")
	}
	if c.Session.CookieName == "" {
		errs = append(errs, "session.cookieName is required")
	}
	switch strings.ToLower(c.Session.CookieSameSite) {
	case "lax", "strict", "none":
	default:
		errs = append(errs, "session.cookieSameSite must be one of lax, strict, none")
	}
	if c.Cache.Workers <= 0 {
		errs = append(errs, "cache.workers must be positive")
	}
	if c.Pagination.MaxLimit <= 0 {
		errs = append(errs, "pagination.maxLimit must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
