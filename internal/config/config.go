package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Env               string
	HTTPPort          int
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration

	DataBackend string

	DatabaseDriver    string
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration

	RedisURL         string
	InsightsCacheTTL time.Duration

	JWTSecret string
	JWTExpiry time.Duration

	CORSOrigins []string

	GeminiProject  string
	GeminiLocation string
	GeminiModel    string
	AITimeout      time.Duration

	AIRateLimitRPS     float64
	AIRateLimitBurst   int
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int

	OverdueSweepSchedule string
}

const (
	defaultEnv               = "development"
	defaultHTTPPort          = 5000
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second

	defaultDataBackend = "memory"

	defaultDatabaseDriver    = "postgres"
	defaultDBMaxOpenConns    = 10
	defaultDBMaxIdleConns    = 5
	defaultDBConnMaxLifetime = time.Hour
	defaultDBConnMaxIdleTime = 30 * time.Minute

	defaultInsightsCacheTTL = 10 * time.Minute

	defaultJWTExpiry = 7 * 24 * time.Hour

	defaultGeminiLocation = "us-central1"
	defaultGeminiModel    = "gemini-1.5-flash"
	defaultAITimeout      = 30 * time.Second

	defaultAIRateLimitRPS     = 1
	defaultAIRateLimitBurst   = 5
	defaultAuthRateLimitRPS   = 2
	defaultAuthRateLimitBurst = 10

	defaultOverdueSweepSchedule = "@hourly"
)

var defaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:80"}

// Load reads configuration values from the environment, applying defaults where necessary.
// A .env file in the working directory is loaded first when present; variables already set
// in the process environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:               getEnv("APP_ENV", defaultEnv),
		HTTPPort:          getInt("HTTP_PORT", getInt("PORT", defaultHTTPPort)),
		ShutdownTimeout:   getDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		ReadHeaderTimeout: getDuration("READ_HEADER_TIMEOUT", defaultReadHeaderTimeout),

		DataBackend: getEnv("DATA_BACKEND", defaultDataBackend),

		DatabaseDriver:    getEnv("DATABASE_DRIVER", defaultDatabaseDriver),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", defaultDBMaxOpenConns),
		DBMaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", defaultDBMaxIdleConns),
		DBConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", defaultDBConnMaxLifetime),
		DBConnMaxIdleTime: getDuration("DB_CONN_MAX_IDLE_TIME", defaultDBConnMaxIdleTime),

		RedisURL:         os.Getenv("REDIS_URL"),
		InsightsCacheTTL: getDuration("INSIGHTS_CACHE_TTL", defaultInsightsCacheTTL),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTExpiry: getDuration("JWT_EXPIRY", defaultJWTExpiry),

		CORSOrigins: corsOrigins(),

		GeminiProject:  getEnv("GEMINI_PROJECT", os.Getenv("GOOGLE_CLOUD_PROJECT")),
		GeminiLocation: getEnv("GEMINI_LOCATION", defaultGeminiLocation),
		GeminiModel:    getEnv("GEMINI_MODEL", defaultGeminiModel),
		AITimeout:      getDuration("AI_TIMEOUT", defaultAITimeout),

		AIRateLimitRPS:     getFloat("AI_RATE_LIMIT_RPS", defaultAIRateLimitRPS),
		AIRateLimitBurst:   getInt("AI_RATE_LIMIT_BURST", defaultAIRateLimitBurst),
		AuthRateLimitRPS:   getFloat("AUTH_RATE_LIMIT_RPS", defaultAuthRateLimitRPS),
		AuthRateLimitBurst: getInt("AUTH_RATE_LIMIT_BURST", defaultAuthRateLimitBurst),

		OverdueSweepSchedule: getEnvAllowEmpty("OVERDUE_SWEEP_SCHEDULE", defaultOverdueSweepSchedule),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.DataBackend {
	case "memory":
		// no-op
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when DATA_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown DATA_BACKEND value: %s", cfg.DataBackend)
	}

	switch cfg.DatabaseDriver {
	case "postgres", "pgx":
	default:
		return Config{}, fmt.Errorf("unknown DATABASE_DRIVER value: %s", cfg.DatabaseDriver)
	}

	return cfg, nil
}

// AIEnabled reports whether a Gemini project has been configured.
func (c Config) AIEnabled() bool {
	return c.GeminiProject != ""
}

func corsOrigins() []string {
	origins := append([]string(nil), defaultCORSOrigins...)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins = origins[:0]
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}
	if client := strings.TrimSpace(os.Getenv("CLIENT_URL")); client != "" {
		origins = append(origins, client)
	}
	return origins
}

func getEnv(key string, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAllowEmpty(key string, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
