// Package config resolves the listener configuration. The store path is the
// one required setting; it resolves from a session-scoped value, then the
// environment, then an optional YAML config file, then the stock Beeper
// location.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/subjective-project/beeper-source/beeper"
)

// Session carries values scoped to one host-framework session, e.g. the
// connection form the user filled in. May be nil.
type Session map[string]string

// Config holds the listener configuration
type Config struct {
	StorePath    string
	PollInterval time.Duration
	QueryLimit   int
	LogLevel     string
	SentryDSN    string
}

const (
	// SessionKeyDatabasePath is the session field naming the index.db path.
	SessionKeyDatabasePath = "database_path"

	defaultPollInterval = time.Second
	defaultQueryLimit   = 50
)

// fileConfig mirrors the optional YAML config file.
type fileConfig struct {
	DatabasePath string `yaml:"database_path"`
	PollInterval string `yaml:"poll_interval"`
	QueryLimit   int    `yaml:"query_limit"`
	LogLevel     string `yaml:"log_level"`
	SentryDSN    string `yaml:"sentry_dsn"`
}

// DefaultConfigPath returns the default YAML config location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "beeper-source", "config.yaml")
}

// Load resolves the configuration. Priority per setting: session value,
// then BEEPER_* environment variable, then config file, then default.
func Load(session Session) *Config {
	file := loadFile()

	cfg := &Config{
		StorePath:    resolve(session[SessionKeyDatabasePath], os.Getenv("BEEPER_DATABASE_PATH"), file.DatabasePath, beeper.DefaultStorePath()),
		PollInterval: defaultPollInterval,
		QueryLimit:   defaultQueryLimit,
		LogLevel:     resolve(os.Getenv("BEEPER_LOG_LEVEL"), file.LogLevel, "info"),
		SentryDSN:    resolve(os.Getenv("BEEPER_SENTRY_DSN"), file.SentryDSN),
	}

	if d, ok := parseInterval(resolve(session["poll_interval"], os.Getenv("BEEPER_POLL_INTERVAL"), file.PollInterval)); ok {
		cfg.PollInterval = d
	}
	if n, err := strconv.Atoi(resolve(session["query_limit"], os.Getenv("BEEPER_QUERY_LIMIT"))); err == nil && n > 0 {
		cfg.QueryLimit = n
	} else if file.QueryLimit > 0 {
		cfg.QueryLimit = file.QueryLimit
	}

	cfg.StorePath = os.ExpandEnv(cfg.StorePath)
	return cfg
}

// Validate reports whether the required settings are usable.
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("store path is not set (provide database_path or BEEPER_DATABASE_PATH)")
	}
	return nil
}

func loadFile() fileConfig {
	path := os.Getenv("BEEPER_CONFIG_FILE")
	if path == "" {
		path = DefaultConfigPath()
	}

	var fc fileConfig
	if path == "" {
		return fc
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		// Missing config file is the common case, not an error
		return fc
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fileConfig{}
	}
	return fc
}

// resolve returns the first non-empty candidate.
func resolve(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// parseInterval accepts either a Go duration ("1s") or bare milliseconds.
func parseInterval(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	if ms, err := strconv.Atoi(s); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond, true
	}
	return 0, false
}
