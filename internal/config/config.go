// Package config reads server settings from a .env file, the environment
// and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const NoDatabase = "none"

type Config struct {
	Port        string
	DBDriver    string // sqlite3, postgres or none
	DBDSN       string
	FrontendURL string

	// Empty service URLs run the server standalone: scores are kept in the
	// local database and any non-empty token is accepted.
	ScoreServiceURL string
	AuthServiceURL  string
	ServiceRetries  int

	IdleTimeout time.Duration
	LogDev      bool
}

// Standalone reports whether no external score service is configured
func (c *Config) Standalone() bool {
	return c.ScoreServiceURL == ""
}

// Load reads envFiles (".env" when none are given; missing files are
// skipped), then the environment, then args.
func Load(args []string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return Parse(args, os.Getenv)
}

// Parse builds a Config from getenv defaults overridden by flags in args
func Parse(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	retries, err := strconv.Atoi(env("SERVICE_RETRIES", "2"))
	if err != nil {
		return nil, fmt.Errorf("config: SERVICE_RETRIES: %w", err)
	}
	idle, err := time.ParseDuration(env("SESSION_IDLE_TIMEOUT", "30m"))
	if err != nil {
		return nil, fmt.Errorf("config: SESSION_IDLE_TIMEOUT: %w", err)
	}

	cfg := &Config{}
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Port, "port", env("PORT", "8080"), "Server port")
	fs.StringVar(&cfg.DBDriver, "db-driver", env("DB_DRIVER", "sqlite3"), "Database driver: sqlite3, postgres or none")
	fs.StringVar(&cfg.DBDSN, "db", env("DB_DSN", "./data/minigames.db"), "Database DSN or SQLite path")
	fs.StringVar(&cfg.FrontendURL, "frontend", env("FRONTEND_URL", "http://localhost:8081"), "Frontend URL for CORS")
	fs.StringVar(&cfg.ScoreServiceURL, "score-url", env("SCORE_SERVICE_URL", ""), "External score service base URL")
	fs.StringVar(&cfg.AuthServiceURL, "auth-url", env("AUTH_SERVICE_URL", ""), "External token validator base URL")
	fs.IntVar(&cfg.ServiceRetries, "retries", retries, "Retries for external service calls")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", idle, "Discard sessions idle for this long")
	fs.BoolVar(&cfg.LogDev, "dev", asBool(getenv("LOG_DEV")), "Human-readable development logging")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres", NoDatabase:
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDriver == NoDatabase && c.Standalone() {
		return errors.New("config: standalone mode needs a database for scores")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("config: idle timeout must be positive")
	}
	return nil
}

func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
