package config

import (
	"os"
	"strconv"
	"strings"
)

// Config centralizes runtime settings for the API, worker and ingestor.
type Config struct {
	Port string

	DatabaseURL string

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	OpenAITimeoutMS int
	OpenAIRetries   int
	AIDemoMode      bool

	UploadDir      string
	MaxUploadBytes int64

	WorkerEnabled   bool
	WorkerPollMS    int
	JobStaleAfterMS int

	InlineAnalysisEnabled bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
	RedisGroup    string
	RedisConsumer string

	ScorerMode string

	FeedURLs        []string
	IngestIntervalS int

	RateLimitRPS   float64
	RateLimitBurst int
}

func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAITimeoutMS: getEnvInt("OPENAI_TIMEOUT_MS", 45000),
		OpenAIRetries:   getEnvInt("OPENAI_MAX_RETRIES", 2),
		AIDemoMode:      getEnvBool("AI_DEMO_MODE", false),

		UploadDir:      getEnv("UPLOAD_DIR", "data/uploads"),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),

		WorkerEnabled:   getEnvBool("WORKER_ENABLED", true),
		WorkerPollMS:    getEnvInt("WORKER_POLL_MS", 1000),
		JobStaleAfterMS: getEnvInt("JOB_STALE_AFTER_MS", 0),

		InlineAnalysisEnabled: getEnvBool("INLINE_ANALYSIS_ENABLED", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisStream:   getEnv("REDIS_STREAM", "tender_jobs"),
		RedisGroup:    getEnv("REDIS_GROUP", "tender_workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "api-1"),

		ScorerMode: getEnv("SCORER_MODE", "heuristic"),

		FeedURLs:        getEnvList("FEED_URLS", nil),
		IngestIntervalS: getEnvInt("INGEST_INTERVAL_S", 0),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
