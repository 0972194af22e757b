package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Provider settings. When ProviderBaseURL is empty the service falls back
	// to the synthetic in-process provider.
	ProviderName    string
	ProviderBaseURL string
	ProviderAPIKey  string

	// Orchestration knobs.
	PollInterval        time.Duration
	MaxPollInterval     time.Duration
	MaxWait             time.Duration
	TransportErrorLimit int
	HandleTTL           time.Duration

	// Pricing: credits charged per generated unit.
	CreditCostPerUnit int64
	// Starting balance handed to unknown users when running without a database.
	DevStartingCredits int64

	StoragePath    string
	GeoIPDBPath    string
	DefaultLocale  string
	AllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from the environment, reading optional .env
// files first, and applies defaults where needed. DATABASE_URL may be empty;
// the service then runs with in-memory collaborators for development.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		ProviderName:    getEnv("PROVIDER_NAME", "synthetic"),
		ProviderBaseURL: os.Getenv("PROVIDER_BASE_URL"),
		ProviderAPIKey:  os.Getenv("PROVIDER_API_KEY"),

		PollInterval:        getEnvDuration("POLL_INTERVAL", 2*time.Second),
		MaxPollInterval:     getEnvDuration("MAX_POLL_INTERVAL", 30*time.Second),
		MaxWait:             getEnvDuration("JOB_MAX_WAIT", 5*time.Minute),
		TransportErrorLimit: getEnvInt("TRANSPORT_ERROR_LIMIT", 3),
		HandleTTL:           getEnvDuration("JOB_HANDLE_TTL", time.Hour),

		CreditCostPerUnit:  int64(getEnvInt("CREDIT_COST_PER_UNIT", 10)),
		DevStartingCredits: int64(getEnvInt("DEV_STARTING_CREDITS", 500)),

		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		GeoIPDBPath:    os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:  getEnv("DEFAULT_LOCALE", "en"),
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.ProviderBaseURL == "" && cfg.ProviderAPIKey != "" {
		return nil, fmt.Errorf("PROVIDER_API_KEY is set but PROVIDER_BASE_URL is empty")
	}
	if cfg.CreditCostPerUnit < 0 {
		return nil, fmt.Errorf("CREDIT_COST_PER_UNIT must not be negative")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
