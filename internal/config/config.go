package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Log      LogConfig
	Store    StoreConfig
	Cache    CacheConfig
	Ledger   LedgerConfig
	Settings SettingsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name           string   `envconfig:"APP_NAME" default:"cellar-api"`
	Environment    string   `envconfig:"APP_ENV" default:"development"`
	Debug          bool     `envconfig:"APP_DEBUG" default:"false"`
	Version        string   `envconfig:"APP_VERSION" default:"1.0.0"`
	APIKeys        []string `envconfig:"API_KEYS"` // comma separated; empty disables auth
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
}

// StoreConfig selects and configures the inventory backend.
type StoreConfig struct {
	Type     string `envconfig:"STORE_TYPE" default:"sqlite"` // sqlite, postgres, mysql or memory
	Path     string `envconfig:"STORE_PATH" default:"./data/cellar.db"`
	// PostgreSQL / MySQL settings
	Host     string `envconfig:"STORE_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_PORT" default:"0"`
	Name     string `envconfig:"STORE_NAME" default:"cellar"`
	User     string `envconfig:"STORE_USER" default:""`
	Password string `envconfig:"STORE_PASS" default:""`
	SSLMode  string `envconfig:"STORE_SSLMODE" default:"disable"`
}

// CacheConfig holds cache and event relay settings.
type CacheConfig struct {
	Type      string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL       time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	KeyPrefix string        `envconfig:"CACHE_KEY_PREFIX" default:"cellar:cache"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	Channel       string `envconfig:"REDIS_EVENTS_CHANNEL" default:"cellar:events"`
}

// LedgerConfig controls how history running totals are computed.
type LedgerConfig struct {
	TotalsMode      string `envconfig:"LEDGER_TOTALS_MODE" default:"live"` // live or fold
	BackfillOnStart bool   `envconfig:"LEDGER_BACKFILL_ON_START" default:"true"`
}

// SettingsConfig holds the defaults used until the user changes them.
type SettingsConfig struct {
	Currency           string `envconfig:"DEFAULT_CURRENCY" default:"EUR (€)"`
	BottleSizeUnit     string `envconfig:"DEFAULT_BOTTLE_SIZE_UNIT" default:"ml"`
	ImportWithQuantity bool   `envconfig:"DEFAULT_IMPORT_WITH_QUANTITY" default:"false"`
	TimeZone           string `envconfig:"TIME_ZONE" default:"UTC"`
}

// Location resolves TimeZone, falling back to UTC.
func (s *SettingsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// Kind returns the normalized backend type.
func (s *StoreConfig) Kind() string {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case "postgres", "postgresql":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "memory":
		return "memory"
	default:
		return "sqlite"
	}
}

// DSN returns the connection string for the configured backend. SQLite uses Path.
func (s *StoreConfig) DSN() string {
	switch s.Kind() {
	case "postgres":
		port := s.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(s.User, s.Password),
			Host:     fmt.Sprintf("%s:%d", s.Host, port),
			Path:     s.Name,
			RawQuery: "sslmode=" + url.QueryEscape(s.SSLMode),
		}
		return u.String()
	case "mysql":
		port := s.Port
		if port == 0 {
			port = 3306
		}
		// clientFoundRows makes UPDATE report matched rows, so an unchanged item is not "missing".
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&clientFoundRows=true",
			s.User, s.Password, s.Host, port, s.Name)
	default:
		return s.Path
	}
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Cache.Type = strings.ToLower(strings.TrimSpace(cfg.Cache.Type))
	switch cfg.Cache.Type {
	case "memory", "redis", "none":
	default:
		return nil, fmt.Errorf("failed to load config: unknown CACHE_TYPE %q", cfg.Cache.Type)
	}
	switch cfg.Ledger.TotalsMode {
	case "live", "fold":
	default:
		return nil, fmt.Errorf("failed to load config: unknown LEDGER_TOTALS_MODE %q", cfg.Ledger.TotalsMode)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
