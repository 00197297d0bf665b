package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string
	Env         string

	JWTSecret string

	// Analyzer selection: "http" calls the external AI service, "openai"
	// runs the analysis prompt directly against the OpenAI API.
	AIProvider       string
	AIServiceURL     string
	AIServiceAPIKey  string
	AIRequestTimeout time.Duration
	OpenAIKey        string
	OpenAIModel      string

	AnalysisDebounce    time.Duration
	AnalysisMaxPending  int
	AnalysisRetryBase   time.Duration
	AnalysisMaxAttempts int

	// Optional redis pub/sub bridge for multi-instance broadcast.
	RedisAddr    string
	RedisChannel string

	SweepSchedule    string
	ArchiveAfterDays int

	// Per-IP sliding window on the unauthenticated routes.
	RateLimitMax    int
	RateLimitWindow time.Duration
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using system environment variables")
	}

	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        os.Getenv("PORT"),
		Env:         os.Getenv("ENV"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		AIProvider:       os.Getenv("AI_PROVIDER"),
		AIServiceURL:     os.Getenv("AI_SERVICE_URL"),
		AIServiceAPIKey:  os.Getenv("AI_SERVICE_API_KEY"),
		AIRequestTimeout: envDuration("AI_REQUEST_TIMEOUT_MS", 30*time.Second),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),

		AnalysisDebounce:    envDuration("ANALYSIS_DEBOUNCE_MS", 2000*time.Millisecond),
		AnalysisMaxPending:  envInt("ANALYSIS_MAX_PENDING", 5000),
		AnalysisRetryBase:   envDuration("ANALYSIS_RETRY_BASE_MS", 2000*time.Millisecond),
		AnalysisMaxAttempts: envInt("ANALYSIS_MAX_ATTEMPTS", 3),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RedisChannel: os.Getenv("REDIS_CHANNEL"),

		SweepSchedule:    os.Getenv("SWEEP_SCHEDULE"),
		ArchiveAfterDays: envInt("ARCHIVE_AFTER_DAYS", 30),

		RateLimitMax:    envInt("RATE_LIMIT_MAX", 20),
		RateLimitWindow: envDuration("RATE_LIMIT_WINDOW_MS", time.Minute),
	}

	// Default values
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.AIProvider == "" {
		cfg.AIProvider = "http"
	}
	if cfg.AIServiceURL == "" {
		cfg.AIServiceURL = "http://localhost:8000"
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.RedisChannel == "" {
		cfg.RedisChannel = "realty:broadcast"
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = "0 0 3 * * *"
	}

	return cfg
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("⚠️  invalid %s=%q, using default %d", key, raw, fallback)
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		log.Printf("⚠️  invalid %s=%q, using default %s", key, raw, fallback)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
