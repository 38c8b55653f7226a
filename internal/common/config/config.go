package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Site        SiteConfig
	Cache       CacheConfig
	Database    DatabaseConfig
	Server      ServerConfig
	Logging     LoggingConfig
	Alerts      AlertsConfig
	Maintenance MaintenanceConfig
	Watch       WatchConfig
}

// SiteConfig controls requests to the transit site
type SiteConfig struct {
	BaseURL           string        `validate:"required,url"`
	UserAgent         string        `validate:"required"`
	AcceptLanguage    string
	Timeout           time.Duration `validate:"gt=0"`
	MaxRetries        int           `validate:"gte=0,lte=10"`
	RequestsPerMinute int           `validate:"gte=0"`
}

type CacheConfig struct {
	Backend       string        `validate:"oneof=memory file redis none"`
	TTL           time.Duration `validate:"gt=0"`
	Dir           string
	MaxEntries    int `validate:"gt=0"`
	RedisAddress  string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`
}

// DatabaseConfig is optional; an empty host disables search history.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type ServerConfig struct {
	ListenAddress string `validate:"required"`
	ParseWorkers  int    `validate:"gt=0"`
}

type LoggingConfig struct {
	Level    string `validate:"oneof=debug info warn warning error fatal critical"`
	Console  bool
	FilePath string
}

type AlertsConfig struct {
	DiscordWebhookURL string `validate:"omitempty,url"`
}

type MaintenanceConfig struct {
	Interval         time.Duration `validate:"gt=0"`
	HistoryRetention time.Duration `validate:"gt=0"`
}

type WatchConfig struct {
	Interval time.Duration
	Routes   []WatchRoute `validate:"dive"`
}

type WatchRoute struct {
	From string `validate:"required"`
	To   string `validate:"required"`
}

func (r WatchRoute) String() string {
	return r.From + ">" + r.To
}

func Load() (*Config, error) {
	routes, err := ParseWatchRoutes(getEnv("WATCH_ROUTES", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Site: SiteConfig{
			BaseURL:           getEnv("SITE_BASE_URL", "https://transit.yahoo.co.jp"),
			UserAgent:         getEnv("SITE_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/137.0.0.0 Safari/537.36"),
			AcceptLanguage:    getEnv("SITE_ACCEPT_LANGUAGE", "ja,en-US;q=0.9,en;q=0.8"),
			Timeout:           getDurationEnv("SITE_TIMEOUT", 30*time.Second),
			MaxRetries:        getIntEnv("SITE_MAX_RETRIES", 3),
			RequestsPerMinute: getIntEnv("SITE_REQUESTS_PER_MINUTE", 30),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(getEnv("CACHE_BACKEND", "file")),
			TTL:           getDurationEnv("CACHE_TTL", time.Hour),
			Dir:           getEnv("CACHE_DIR", ""),
			MaxEntries:    getIntEnv("CACHE_MAX_ENTRIES", 100),
			RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getIntEnv("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "transitsearch"),
		},
		Server: ServerConfig{
			ListenAddress: getEnv("LISTEN_ADDRESS", ":8080"),
			ParseWorkers:  getIntEnv("PARSE_WORKERS", 4),
		},
		Logging: LoggingConfig{
			Level:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Console:  getBoolEnv("LOG_CONSOLE", true),
			FilePath: getEnv("LOG_FILE", ""),
		},
		Alerts: AlertsConfig{
			DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		},
		Maintenance: MaintenanceConfig{
			Interval:         getDurationEnv("MAINTENANCE_INTERVAL", time.Hour),
			HistoryRetention: getDurationEnv("HISTORY_RETENTION", 30*24*time.Hour),
		},
		Watch: WatchConfig{
			Interval: getDurationEnv("WATCH_INTERVAL", 15*time.Minute),
			Routes:   routes,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

// ParseWatchRoutes reads a comma separated list of from>to pairs.
func ParseWatchRoutes(value string) ([]WatchRoute, error) {
	var routes []WatchRoute
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		from, to, ok := strings.Cut(pair, ">")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid watch route %q, expected from>to", pair)
		}
		routes = append(routes, WatchRoute{From: from, To: to})
	}
	return routes, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
