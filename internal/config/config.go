package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	Port string

	DBDriver        string
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	Location           *time.Location
	DefaultDailyTarget int

	GeminiAPIKey string
	GeminiModel  string
	AIRateLimit  float64
	AIRateBurst  int

	Passcode       string
	AllowedOrigins []string

	LogLevel  string
	LogFormat string

	GmailCredentialsFile string
	GmailTokenFile       string
	GmailSyncSchedule    string
}

// Load reads the configuration from the environment. Call godotenv.Load
// beforehand to pick up a local .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		DBDriver:             strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		Passcode:             os.Getenv("APP_PASSCODE"),
		AllowedOrigins:       splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
		GmailCredentialsFile: os.Getenv("GMAIL_CREDENTIALS_FILE"),
		GmailTokenFile:       getEnv("GMAIL_TOKEN_FILE", "token.json"),
		GmailSyncSchedule:    getEnv("GMAIL_SYNC_SCHEDULE", "@every 15m"),
	}

	var err error
	if cfg.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.ConnMaxLifetime, err = getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DefaultDailyTarget, err = getInt("DEFAULT_DAILY_TARGET", 10); err != nil {
		return nil, err
	}
	if cfg.DefaultDailyTarget < 0 {
		return nil, fmt.Errorf("DEFAULT_DAILY_TARGET must not be negative")
	}
	if cfg.AIRateBurst, err = getInt("AI_RATE_BURST", 3); err != nil {
		return nil, err
	}
	if cfg.AIRateLimit, err = getFloat("AI_RATE_LIMIT", 1); err != nil {
		return nil, err
	}

	tz := getEnv("APP_TIMEZONE", "UTC")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE: %w", err)
	}

	switch cfg.DBDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case "sqlite":
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "tracker.db"
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	return cfg, nil
}

// AIEnabled reports whether the generative language endpoints can be served.
func (c *Config) AIEnabled() bool { return c.GeminiAPIKey != "" }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
