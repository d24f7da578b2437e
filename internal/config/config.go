package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the portal gateway
type Config struct {
	Port        string
	Origin      string
	Environment string
	LogLevel    string
	JWTSecret   string
	// Timezone is the clinic's zone; dates and times on appointments are read in it.
	Timezone *time.Location
	Backend  BackendConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Listing  ListingConfig
	Payment  PaymentConfig
	// SessionTTL is how long an untouched reschedule session is kept.
	SessionTTL time.Duration
}

// BackendConfig points at the scheduling REST backend
type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

// RedisConfig enables the availability cache when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DatabaseConfig holds the audit database connection details
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// ListingConfig selects how appointment lists are backed
type ListingConfig struct {
	Mode string
}

// PaymentConfig bounds payment status polling
type PaymentConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	var errs []string
	intEnv := func(key string, def int) int {
		raw := getEnv(key, strconv.Itoa(def))
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %q", key, raw))
			return def
		}
		return n
	}
	boolEnv := func(key string, def bool) bool {
		raw := getEnv(key, strconv.FormatBool(def))
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %s: %q", key, raw))
			return def
		}
		return b
	}

	dbConfig := DatabaseConfig{
		Enabled:  boolEnv("AUDIT_ENABLED", false),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "portal"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	zone := getEnv("TIMEZONE", "Local")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TIMEZONE: %q", zone))
		loc = time.Local
	}

	backendURL := strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8080"), "/")
	if backendURL == "" {
		errs = append(errs, "BACKEND_URL must not be empty")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "3001"),
		Origin:      getEnv("ORIGIN", "http://localhost:4200"),
		Environment: getEnv("NODE_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		JWTSecret:   getEnv("JWT_SECRET", "default_jwt_secret"),
		Timezone:    loc,
		Backend: BackendConfig{
			URL:     backendURL,
			Timeout: time.Duration(intEnv("BACKEND_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intEnv("REDIS_DB", 0),
			TTL:      time.Duration(intEnv("AVAILABILITY_CACHE_TTL_SECONDS", 300)) * time.Second,
		},
		Database: dbConfig,
		Listing: ListingConfig{
			Mode: strings.ToLower(getEnv("LIST_MODE", "paginated")),
		},
		Payment: PaymentConfig{
			MaxAttempts: intEnv("PAYMENT_POLL_ATTEMPTS", 10),
			Interval:    time.Duration(intEnv("PAYMENT_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		},
		SessionTTL: time.Duration(intEnv("SESSION_TTL_MINUTES", 30)) * time.Minute,
	}

	switch cfg.Listing.Mode {
	case "paginated", "static":
	default:
		errs = append(errs, fmt.Sprintf("invalid LIST_MODE: %q", cfg.Listing.Mode))
	}
	if cfg.Backend.Timeout <= 0 {
		errs = append(errs, "BACKEND_TIMEOUT_SECONDS must be positive")
	}
	if cfg.Payment.MaxAttempts <= 0 {
		errs = append(errs, "PAYMENT_POLL_ATTEMPTS must be positive")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// IsProduction reports whether the gateway runs with NODE_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
