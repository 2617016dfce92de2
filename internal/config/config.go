package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// Database
	SQLiteDBPath string

	// AMQP. An empty URL disables event publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Recurring worker
	RecurringInterval time.Duration

	LogLevel  string
	LogFormat string

	// Net worth memoization
	NetWorthCacheSize int
	NetWorthCacheTTL  time.Duration
}

const (
	defaultDBPath            = "./data/finledger.db"
	defaultExchange          = "finledger"
	defaultQueue             = "transactions_posted"
	defaultRecurringInterval = time.Hour
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
	defaultCacheSize         = 64
	defaultCacheTTL          = 10 * time.Minute
)

// Load reads configuration from the environment and, when FINLEDGER_CONFIG
// points at one, a config file. Environment values win over the file.
// Malformed numbers and durations fall back to their defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("sqlite_db_path", defaultDBPath)
	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", defaultExchange)
	v.SetDefault("amqp_queue", defaultQueue)
	v.SetDefault("recurring_interval", defaultRecurringInterval.String())
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("log_format", defaultLogFormat)
	v.SetDefault("networth_cache_size", strconv.Itoa(defaultCacheSize))
	v.SetDefault("networth_cache_ttl", defaultCacheTTL.String())

	if path := os.Getenv("FINLEDGER_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		SQLiteDBPath:      v.GetString("sqlite_db_path"),
		AMQPURL:           v.GetString("amqp_url"),
		AMQPExchange:      v.GetString("amqp_exchange"),
		AMQPQueue:         v.GetString("amqp_queue"),
		RecurringInterval: getDuration(v, "recurring_interval", defaultRecurringInterval),
		LogLevel:          strings.ToLower(v.GetString("log_level")),
		LogFormat:         strings.ToLower(v.GetString("log_format")),
		NetWorthCacheSize: getInt(v, "networth_cache_size", defaultCacheSize),
		NetWorthCacheTTL:  getDuration(v, "networth_cache_ttl", defaultCacheTTL),
	}, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RecurringInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 second", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.NetWorthCacheSize < 1 || c.NetWorthCacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid net worth cache size %d: must be between 1 and 10000", c.NetWorthCacheSize))
	}
	if c.NetWorthCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid net worth cache ttl %v: cannot be negative", c.NetWorthCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// PublishingEnabled reports whether postings should be announced over AMQP.
func (c *Config) PublishingEnabled() bool {
	return c.AMQPURL != ""
}

func getInt(v *viper.Viper, key string, defaultValue int) int {
	if i, err := strconv.Atoi(strings.TrimSpace(v.GetString(key))); err == nil {
		return i
	}
	return defaultValue
}

func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key))); err == nil {
		return d
	}
	return defaultValue
}
