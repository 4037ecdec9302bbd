// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package main

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/core"
	"github.com/craftsmenplatform/craftsmen/internal/notify"
)

// envPrefix namespaces environment overrides, e.g. CRAFTSMEN_HTTP_ADDR.
const envPrefix = "CRAFTSMEN_"

// Config is the full process configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	Events   EventsConfig   `koanf:"events"`
	Log      LogConfig      `koanf:"log"`
	Retry    RetryConfig    `koanf:"retry"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	TrustProxy      bool          `koanf:"trust_proxy"`
	RateLimitRPS    float64       `koanf:"rate_limit_rps"`
	RateLimitBurst  int           `koanf:"rate_limit_burst"`
}

// MetricsConfig configures the metrics and health listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
}

// AuthConfig holds token signing settings and the account security policy.
type AuthConfig struct {
	JWTSecret          string        `koanf:"jwt_secret"`
	Issuer             string        `koanf:"issuer"`
	AccessTokenTTL     time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `koanf:"refresh_token_ttl"`
	LockoutThreshold   int           `koanf:"lockout_threshold"`
	LockoutDuration    time.Duration `koanf:"lockout_duration"`
	MaxActiveTokens    int           `koanf:"max_active_tokens"`
	RevokeChainOnReuse bool          `koanf:"revoke_chain_on_reuse"`
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers         []string      `koanf:"brokers"`
	TopicPrefix     string        `koanf:"topic_prefix"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// EventsConfig sizes the queue between repositories and event sinks.
type EventsConfig struct {
	QueueCapacity int `koanf:"queue_capacity"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// RetryConfig bounds optimistic-concurrency retries.
type RetryConfig struct {
	Attempts  uint64        `koanf:"attempts"`
	BaseDelay time.Duration `koanf:"base_delay"`
}

func defaults() map[string]any {
	policy := auth.DefaultPolicy()
	retry := core.DefaultRetryPolicy()
	kafka := notify.DefaultKafkaConfig(nil)
	return map[string]any{
		"http.addr":                  ":8080",
		"http.request_timeout":       30 * time.Second,
		"http.shutdown_timeout":      10 * time.Second,
		"http.trust_proxy":           false,
		"http.rate_limit_rps":        5.0,
		"http.rate_limit_burst":      10,
		"metrics.addr":               "127.0.0.1:9100",
		"database.url":               "",
		"database.max_conns":         int32(10),
		"database.min_conns":         int32(0),
		"database.max_conn_lifetime": time.Hour,
		"database.connect_timeout":   5 * time.Second,
		"auth.jwt_secret":            "",
		"auth.issuer":                "craftsmen",
		"auth.access_token_ttl":      policy.AccessTokenTTL,
		"auth.refresh_token_ttl":     policy.RefreshTokenTTL,
		"auth.lockout_threshold":     policy.LockoutThreshold,
		"auth.lockout_duration":      policy.LockoutDuration,
		"auth.max_active_tokens":     policy.MaxActiveTokens,
		"auth.revoke_chain_on_reuse": policy.RevokeChainOnReuse,
		"kafka.brokers":              []string{},
		"kafka.topic_prefix":         kafka.TopicPrefix,
		"kafka.write_timeout":        kafka.WriteTimeout,
		"kafka.breaker_failures":     kafka.BreakerFailures,
		"kafka.breaker_timeout":      kafka.BreakerTimeout,
		"events.queue_capacity":      core.DefaultQueueCapacity,
		"log.format":                 "json",
		"log.level":                  "info",
		"retry.attempts":             retry.Attempts,
		"retry.base_delay":           retry.BaseDelay,
	}
}

// flagKeys maps command-line flags to config keys. Flags not listed here,
// such as --config, are not configuration values.
var flagKeys = map[string]string{
	"addr":          "http.addr",
	"metrics-addr":  "metrics.addr",
	"database-url":  "database.url",
	"log-format":    "log.format",
	"log-level":     "log.level",
	"kafka-brokers": "kafka.brokers",
}

// loadConfig layers defaults, the optional YAML file at path, CRAFTSMEN_*
// environment variables and explicitly set flags, in that order.
func loadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	return &cfg, nil
}

// envKey turns CRAFTSMEN_AUTH_JWT_SECRET into auth.jwt_secret. Only the first
// underscore separates section from key.
func envKey(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, envPrefix))
	key = strings.Replace(key, "_", ".", 1)
	if key == "kafka.brokers" {
		return key, splitList(value)
	}
	return key, value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks settings needed to serve.
func (c *Config) Validate() error {
	switch {
	case c.HTTP.Addr == "":
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	case c.Database.URL == "":
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	case len(c.Auth.JWTSecret) < 32:
		return oops.Code("CONFIG_INVALID").Errorf("auth.jwt_secret must be at least 32 bytes")
	case c.Log.Format != "json" && c.Log.Format != "text":
		return oops.Code("CONFIG_INVALID").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	case c.HTTP.RateLimitRPS < 0:
		return oops.Code("CONFIG_INVALID").Errorf("http.rate_limit_rps cannot be negative")
	case c.Events.QueueCapacity < 1:
		return oops.Code("CONFIG_INVALID").Errorf("events.queue_capacity must be positive")
	}
	if err := c.Policy().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Errorf("auth policy: %v", err)
	}
	return nil
}

// Policy returns the account security policy.
func (c *Config) Policy() auth.Policy {
	return auth.Policy{
		LockoutThreshold:   c.Auth.LockoutThreshold,
		LockoutDuration:    c.Auth.LockoutDuration,
		MaxActiveTokens:    c.Auth.MaxActiveTokens,
		AccessTokenTTL:     c.Auth.AccessTokenTTL,
		RefreshTokenTTL:    c.Auth.RefreshTokenTTL,
		RevokeChainOnReuse: c.Auth.RevokeChainOnReuse,
	}
}

// RetryPolicy returns the conflict retry policy.
func (c *Config) RetryPolicy() core.RetryPolicy {
	return core.RetryPolicy{Attempts: c.Retry.Attempts, BaseDelay: c.Retry.BaseDelay}
}

// KafkaSettings returns the publisher configuration.
func (c *Config) KafkaSettings() notify.KafkaConfig {
	kc := notify.DefaultKafkaConfig(c.Kafka.Brokers)
	kc.TopicPrefix = c.Kafka.TopicPrefix
	kc.WriteTimeout = c.Kafka.WriteTimeout
	kc.BreakerFailures = c.Kafka.BreakerFailures
	kc.BreakerTimeout = c.Kafka.BreakerTimeout
	return kc
}
