package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings, read from the environment.
type Config struct {
	Port string

	DBDriver       string
	DBDSN          string
	DBMaxOpenConns int
	DBMaxIdleConns int

	ReportTable string
	ItemTable   string

	UploadDir      string
	MaxUploadBytes int64

	// FormTimezone is the IANA zone for form timestamps that carry no offset.
	FormTimezone string

	NAV NAVConfig

	RedisAddress string

	AuthEnabled bool
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTExpiry   time.Duration

	EnableMetrics bool
	LogLevel      string
}

// NAVConfig describes the ERP OData endpoint.
type NAVConfig struct {
	BaseURL           string
	Username          string
	Password          string
	Domain            string
	SerialEntitySet   string
	CustomerEntitySet string
	Timeout           time.Duration
	CacheTTL          time.Duration
}

var allowedDrivers = map[string]bool{
	"pgx":      true,
	"postgres": true,
	"sqlite":   true,
}

// placeholderSecrets are sample values from docs and .env templates.
var placeholderSecrets = map[string]bool{
	"your-secret-key-change-in-production": true,
}

func Load() *Config {
	config := &Config{
		Port:           getEnv("PORT", "8080"),
		DBDriver:       getEnv("DB_DRIVER", "pgx"),
		DBDSN:          os.Getenv("DB_DSN"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ReportTable:    getEnv("FLK_TABLE", "flk"),
		ItemTable:      getEnv("BRG_TABLE", "flk_brg"),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),
		FormTimezone:   getEnv("FORM_TIMEZONE", "UTC"),
		NAV: NAVConfig{
			BaseURL:           strings.TrimRight(os.Getenv("NAV_BASE_URL"), "/"),
			Username:          os.Getenv("NAV_USERNAME"),
			Password:          os.Getenv("NAV_PASSWORD"),
			Domain:            os.Getenv("NAV_DOMAIN"),
			SerialEntitySet:   getEnv("NAV_SERIAL_ENTITY_SET", "ServiceItems"),
			CustomerEntitySet: getEnv("NAV_CUSTOMER_ENTITY_SET", "Customers"),
			Timeout:           getEnvDuration("NAV_TIMEOUT", 30*time.Second),
			CacheTTL:          getEnvDuration("NAV_CACHE_TTL", 5*time.Minute),
		},
		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		AuthEnabled:   os.Getenv("AUTH_ENABLED") == "true",
		JWTSecret:     os.Getenv("JWT_SECRET"),
		JWTIssuer:     getEnv("JWT_ISS", "flk-api"),
		JWTAudience:   getEnv("JWT_AUD", "flk-api"),
		JWTExpiry:     getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		EnableMetrics: os.Getenv("ENABLE_METRICS") == "true",
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if config.DBDSN == "" {
		config.DBDSN = buildDSN(config.DBDriver)
	}

	return config
}

// LoadAndValidate loads the configuration and rejects unusable combinations.
func LoadAndValidate() (*Config, error) {
	cfg := Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !allowedDrivers[c.DBDriver] {
		return fmt.Errorf("DB_DRIVER %q is not supported (use pgx, postgres or sqlite)", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.ReportTable == "" || c.ItemTable == "" {
		return errors.New("FLK_TABLE and BRG_TABLE must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if _, err := c.FormLocation(); err != nil {
		return fmt.Errorf("FORM_TIMEZONE %q: %w", c.FormTimezone, err)
	}
	if c.AuthEnabled {
		switch {
		case c.JWTSecret == "":
			return errors.New("JWT_SECRET is required when AUTH_ENABLED=true")
		case placeholderSecrets[c.JWTSecret]:
			return errors.New("JWT_SECRET is a published placeholder; generate a random secret")
		case len(c.JWTSecret) < 32:
			return errors.New("JWT_SECRET must be at least 32 characters when AUTH_ENABLED=true")
		}
	}
	return nil
}

// FormLocation resolves FormTimezone. An empty name means UTC.
func (c *Config) FormLocation() (*time.Location, error) {
	return time.LoadLocation(c.FormTimezone)
}

// buildDSN assembles a connection string from the discrete DB_* variables.
func buildDSN(driver string) string {
	if driver == "sqlite" {
		return getEnv("DB_NAME", "flk.db")
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		host,
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "flk"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
