// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package config loads Gatekeep configuration from defaults, an optional YAML
// file, the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/strategy"
)

// Session record backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Session  SessionConfig  `koanf:"session"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Mongo    MongoConfig    `koanf:"mongo"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the metrics and health endpoint. An empty
// address disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
	// PIIFields overrides the redacted attribute names.
	PIIFields []string `koanf:"pii_fields"`
}

// AuthConfig selects the strategy and password hasher.
type AuthConfig struct {
	Type          string   `koanf:"type"`
	Hasher        string   `koanf:"hasher"`
	ExcludedPaths []string `koanf:"excluded_paths"`
}

// SessionConfig configures session cookies and storage.
type SessionConfig struct {
	Name string `koanf:"name"`
	// Duration is a number of seconds or a Go duration string.
	Duration string `koanf:"duration"`
	// Store selects the durable record backend of session_db_auth.
	Store string `koanf:"store"`
}

// DatabaseConfig configures PostgreSQL. An empty URL keeps users in memory.
type DatabaseConfig struct {
	URL             string `koanf:"url"`
	ConnectAttempts uint64 `koanf:"connect_attempts"`
}

// RedisConfig configures the redis session record backend.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// MongoConfig configures the MongoDB session record backend.
type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

func defaults() map[string]any {
	return map[string]any{
		"server":  map[string]any{"addr": ":8080"},
		"metrics": map[string]any{"addr": "127.0.0.1:9100"},
		"log":     map[string]any{"format": "json", "level": "info"},
		"auth": map[string]any{
			"type":   string(strategy.KindBasic),
			"hasher": auth.HasherArgon2id,
		},
		"session": map[string]any{
			"name":  strategy.DefaultCookieName,
			"store": StoreMemory,
		},
		"database": map[string]any{"connect_attempts": 5},
		"mongo":    map[string]any{"database": "gatekeep"},
	}
}

// envKeys maps environment variables onto configuration keys.
var envKeys = map[string]string{
	"AUTH_TYPE":        "auth.type",
	"SESSION_NAME":     "session.name",
	"SESSION_DURATION": "session.duration",
	"SESSION_STORE":    "session.store",
	"DATABASE_URL":     "database.url",
	"REDIS_ADDR":       "redis.addr",
	"REDIS_PASSWORD":   "redis.password",
	"MONGO_URI":        "mongo.uri",
	"LOG_LEVEL":        "log.level",
	"LOG_FORMAT":       "log.format",
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"addr":           "server.addr",
	"metrics-addr":   "metrics.addr",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"auth-type":      "auth.type",
	"session-name":   "session.name",
	"session-store":  "session.store",
	"session-ttl":    "session.duration",
	"database-url":   "database.url",
	"redis-addr":     "redis.addr",
	"mongo-uri":      "mongo.uri",
	"mongo-database": "mongo.database",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", "", "HTTP listen address")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("auth-type", "", "auth strategy (basic_auth, session_auth, session_exp_auth, session_db_auth)")
	fs.String("session-name", "", "session cookie name")
	fs.String("session-store", "", "session record backend (memory, postgres, redis, mongo)")
	fs.String("session-ttl", "", "session lifetime in seconds or as a duration; 0 disables expiry")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("redis-addr", "", "redis address for session records")
	fs.String("mongo-uri", "", "MongoDB URI for session records")
	fs.String("mongo-database", "", "MongoDB database for session records")
}

// LoadOptions control where Load reads from.
type LoadOptions struct {
	// File is an optional YAML file. A named file that does not exist is an error.
	File string
	// EnvFile is an optional dotenv file; variables already set win.
	EnvFile string
	// Flags are applied last; only flags the user changed override.
	Flags *pflag.FlagSet
}

// Load reads and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("source", "defaults").Wrap(err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("file", opts.File).Wrap(err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_INVALID").With("env_file", opts.EnvFile).Wrap(err)
		}
	}
	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("source", "environment").Wrap(err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps a known, non-empty environment variable onto its
// configuration key. Everything else is skipped.
func envKey(name, value string) (string, any) {
	key, ok := envKeys[name]
	if !ok || value == "" {
		return "", nil
	}
	return key, value
}

// Validate reports the first invalid setting as a CONFIG_INVALID error.
func (c *Config) Validate() error {
	invalid := func(key string, value any, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Errorf(format, args...)
	}

	if c.Server.Addr == "" {
		return invalid("server.addr", c.Server.Addr, "server address is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", c.Log.Format, "log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if !strategy.Kind(c.Auth.Type).Valid() {
		return invalid("auth.type", c.Auth.Type, "unknown auth type %q", c.Auth.Type)
	}
	if c.Auth.Hasher != auth.HasherArgon2id && c.Auth.Hasher != auth.HasherBcrypt {
		return invalid("auth.hasher", c.Auth.Hasher, "unknown password hasher %q", c.Auth.Hasher)
	}

	switch c.Session.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "", "the postgres session store needs database.url")
		}
	case StoreRedis:
		if c.Redis.Addr == "" {
			return invalid("redis.addr", "", "the redis session store needs redis.addr")
		}
	case StoreMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return invalid("mongo.uri", c.Mongo.URI, "the mongo session store needs mongo.uri and mongo.database")
		}
	default:
		return invalid("session.store", c.Session.Store, "unknown session store %q", c.Session.Store)
	}
	return nil
}

// TTL parses session.duration. Whole numbers are seconds; Go duration
// strings are also accepted. Second counts too large for a Duration clamp to
// the longest one. ok is false when the value is present but malformed.
// Absent, zero, negative and malformed values all yield 0, which disables
// expiry.
func (s SessionConfig) TTL() (ttl time.Duration, ok bool) {
	raw := strings.TrimSpace(s.Duration)
	if raw == "" {
		return 0, true
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		if strings.HasPrefix(raw, "-") {
			return 0, true
		}
		return time.Duration(math.MaxInt64), true
	case err == nil:
		if secs <= 0 {
			return 0, true
		}
		if secs > math.MaxInt64/int64(time.Second) {
			return time.Duration(math.MaxInt64), true
		}
		return time.Duration(secs) * time.Second, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	if d <= 0 {
		return 0, true
	}
	return d, true
}
