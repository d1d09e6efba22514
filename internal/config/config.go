package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	SessionBackendFile     = "file"
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
	SessionBackendMemory   = "memory"
)

type Config struct {
	HTTP         HTTPConfig
	API          APIConfig
	Session      SessionConfig
	DatabaseURL  string
	Redis        RedisConfig
	AuditLogFile string
	LogLevel     string
	Location     *time.Location
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type APIConfig struct {
	BaseURL string
	// Timeout of zero means outbound calls are not time limited.
	Timeout time.Duration
}

type SessionConfig struct {
	Backend       string
	StateFile     string
	CookieName    string
	CookieSecure  bool
	PruneInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

var defaults = map[string]any{
	"HTTP_ADDR":                  ":8080",
	"HTTP_READ_TIMEOUT_SEC":      10,
	"HTTP_WRITE_TIMEOUT_SEC":     15,
	"HTTP_SHUTDOWN_TIMEOUT_SEC":  20,
	"API_BASE_URL":               "http://localhost:3000",
	"API_TIMEOUT_SEC":            0,
	"SESSION_BACKEND":            SessionBackendFile,
	"SESSION_STATE_FILE":         "./data/console_sessions.json",
	"DATABASE_URL":               "",
	"REDIS_ADDR":                 "localhost:6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   0,
	"SESSION_COOKIE_NAME":        "projectdesk_client",
	"SESSION_COOKIE_SECURE":      false,
	"SESSION_PRUNE_INTERVAL_SEC": 300,
	"AUDIT_LOG_FILE":             "./data/audit.log",
	"LOG_LEVEL":                  "info",
	"TIMEZONE":                   "Local",
}

// Load reads defaults, then the optional config file at path, then the
// environment. Keys in the file use the same names as the environment
// variables.
func Load(path string) (Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		HTTP: HTTPConfig{
			Addr:            strings.TrimSpace(v.GetString("HTTP_ADDR")),
			ReadTimeout:     seconds(v, "HTTP_READ_TIMEOUT_SEC"),
			WriteTimeout:    seconds(v, "HTTP_WRITE_TIMEOUT_SEC"),
			ShutdownTimeout: seconds(v, "HTTP_SHUTDOWN_TIMEOUT_SEC"),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("API_BASE_URL")), "/"),
			Timeout: seconds(v, "API_TIMEOUT_SEC"),
		},
		Session: SessionConfig{
			Backend:       strings.ToLower(strings.TrimSpace(v.GetString("SESSION_BACKEND"))),
			StateFile:     v.GetString("SESSION_STATE_FILE"),
			CookieName:    strings.TrimSpace(v.GetString("SESSION_COOKIE_NAME")),
			CookieSecure:  v.GetBool("SESSION_COOKIE_SECURE"),
			PruneInterval: seconds(v, "SESSION_PRUNE_INTERVAL_SEC"),
		},
		DatabaseURL: v.GetString("DATABASE_URL"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       intValue(v, "REDIS_DB"),
		},
		AuditLogFile: v.GetString("AUDIT_LOG_FILE"),
		LogLevel:     v.GetString("LOG_LEVEL"),
	}

	loc, err := time.LoadLocation(strings.TrimSpace(v.GetString("TIMEZONE")))
	if err != nil {
		return Config{}, fmt.Errorf("TIMEZONE is invalid: %w", err)
	}
	cfg.Location = loc

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute http(s) URL")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("API_TIMEOUT_SEC must be >= 0")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	if c.Session.PruneInterval <= 0 {
		return fmt.Errorf("SESSION_PRUNE_INTERVAL_SEC must be > 0")
	}
	switch c.Session.Backend {
	case SessionBackendFile:
		if c.Session.StateFile == "" {
			return fmt.Errorf("SESSION_STATE_FILE must not be empty")
		}
	case SessionBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must not be empty when SESSION_BACKEND=postgres")
		}
	case SessionBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR must not be empty when SESSION_BACKEND=redis")
		}
	case SessionBackendMemory:
	default:
		return fmt.Errorf("SESSION_BACKEND must be one of file, postgres, redis, memory")
	}
	return nil
}

// intValue falls back to the default when the configured value is not a
// number.
func intValue(v *viper.Viper, key string) int {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		n, _ = defaults[key].(int)
	}
	return n
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(intValue(v, key)) * time.Second
}
