package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Storage drivers accepted by DATABASE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

const defaultJWTSecret = "default-super-secret-key"

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort        string
	DatabaseDriver  string
	DatabaseURL     string
	SQLitePath      string
	JWTSecret       string
	TokenExpiration time.Duration

	// AgentsFile optionally replaces the built-in agent catalog.
	AgentsFile string

	RelayMaxRetries int
	RelayRetryDelay time.Duration
	RelayTimeout    time.Duration

	SessionCookieName   string
	SessionCookieSecure bool
	SessionIdleTTL      time.Duration
	SessionMaxCount     int

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string

	// Warnings collects non-fatal problems found while loading, such as a
	// missing .env file or an unparsable number that fell back to its default.
	Warnings []string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := godotenv.Load(); err != nil {
		cfg.Warnings = append(cfg.Warnings, "could not load .env file, using environment variables only")
	}

	cfg.HTTPPort = getEnv("HTTP_PORT", "8080")
	cfg.DatabaseDriver = strings.ToLower(getEnv("DATABASE_DRIVER", DriverPostgres))
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.SQLitePath = getEnv("SQLITE_PATH", "data/agentchat.db")
	cfg.JWTSecret = getEnv("JWT_SECRET", defaultJWTSecret)
	cfg.TokenExpiration = time.Hour * time.Duration(cfg.getInt("JWT_EXPIRATION_HOURS", 24))
	cfg.AgentsFile = getEnv("AGENTS_FILE", "")

	cfg.RelayMaxRetries = cfg.getInt("RELAY_MAX_RETRIES", 3)
	cfg.RelayRetryDelay = time.Millisecond * time.Duration(cfg.getInt("RELAY_RETRY_DELAY_MS", 1000))
	cfg.RelayTimeout = time.Second * time.Duration(cfg.getInt("RELAY_TIMEOUT_SECONDS", 15))

	cfg.SessionCookieName = getEnv("SESSION_COOKIE_NAME", "sessionId")
	cfg.SessionCookieSecure = cfg.getBool("SESSION_COOKIE_SECURE", false)
	cfg.SessionIdleTTL = time.Minute * time.Duration(cfg.getInt("SESSION_IDLE_TTL_MINUTES", 30))
	cfg.SessionMaxCount = cfg.getInt("SESSION_MAX_COUNT", 10000)

	cfg.CORSAllowedOrigins = splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"))

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == defaultJWTSecret {
		cfg.Warnings = append(cfg.Warnings, "JWT_SECRET is not set, using the insecure default")
	}
	return cfg, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, err := strconv.Atoi(c.HTTPPort); err != nil {
		result = multierror.Append(result, fmt.Errorf("HTTP_PORT %q is not a number", c.HTTPPort))
	}

	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			result = multierror.Append(result, errors.New("DATABASE_URL is required when DATABASE_DRIVER=postgres"))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			result = multierror.Append(result, errors.New("SQLITE_PATH is required when DATABASE_DRIVER=sqlite"))
		}
	case DriverMemory:
	default:
		result = multierror.Append(result, fmt.Errorf("unknown DATABASE_DRIVER %q (want postgres, sqlite or memory)", c.DatabaseDriver))
	}

	if c.JWTSecret == "" {
		result = multierror.Append(result, errors.New("JWT_SECRET must not be empty"))
	}
	if c.TokenExpiration <= 0 {
		result = multierror.Append(result, errors.New("JWT_EXPIRATION_HOURS must be positive"))
	}
	if c.RelayMaxRetries < 0 {
		result = multierror.Append(result, errors.New("RELAY_MAX_RETRIES must not be negative"))
	}
	if c.RelayRetryDelay < 0 {
		result = multierror.Append(result, errors.New("RELAY_RETRY_DELAY_MS must not be negative"))
	}
	if c.RelayTimeout <= 0 {
		result = multierror.Append(result, errors.New("RELAY_TIMEOUT_SECONDS must be positive"))
	}
	if c.SessionCookieName == "" {
		result = multierror.Append(result, errors.New("SESSION_COOKIE_NAME must not be empty"))
	}
	if c.SessionIdleTTL < 0 {
		result = multierror.Append(result, errors.New("SESSION_IDLE_TTL_MINUTES must not be negative"))
	}
	if c.SessionMaxCount < 0 {
		result = multierror.Append(result, errors.New("SESSION_MAX_COUNT must not be negative"))
	}
	for _, origin := range c.CORSAllowedOrigins {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("CORS origin %q is not an absolute url", origin))
		}
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		result = multierror.Append(result, fmt.Errorf("LOG_FORMAT %q must be json or text", c.LogFormat))
	}

	return result.ErrorOrNil()
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func (c *Config) getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using default %d", key, raw, fallback))
		return fallback
	}
	return v
}

func (c *Config) getBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using default %t", key, raw, fallback))
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
