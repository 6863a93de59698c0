package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port      int
	LogLevel  string
	NatsURL   string
	NatsToken string

	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	AnthropicModel  string

	KobisAPIKey     string
	KobisBaseURL    string
	KobisRatePerSec float64
	TMDBAPIKey      string
	TMDBBaseURL     string

	TurnMode          string
	LookupTimeout     time.Duration
	GenerationTimeout time.Duration
	APIToken          string
	TurnRateLimit     int
	CreateRateLimit   int

	SessionTTL  time.Duration
	MaxSessions int
}

func Load() Config {
	return Config{
		Port:      envInt("MARQUEE_PORT", 8760),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		NatsURL:   envStr("NATS_URL", ""),
		NatsToken: envStr("NATS_TOKEN", ""),

		LLMProvider:     envStr("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:    envStr("OPENAI_API_KEY", ""),
		OpenAIModel:     envStr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("MARQUEE_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),

		KobisAPIKey:     envStr("KOBIS_API_KEY", ""),
		KobisBaseURL:    envStr("KOBIS_BASE_URL", "https://www.kobis.or.kr/kobisopenapi/webservice/rest"),
		KobisRatePerSec: envFloat("KOBIS_RATE_PER_SEC", 5),
		TMDBAPIKey:      envStr("TMDB_API_KEY", ""),
		TMDBBaseURL:     envStr("TMDB_BASE_URL", "https://api.themoviedb.org/3"),

		TurnMode:          envStr("MARQUEE_TURN_MODE", "sourced"),
		LookupTimeout:     envDuration("LOOKUP_TIMEOUT", 10*time.Second),
		GenerationTimeout: envDuration("GENERATION_TIMEOUT", 60*time.Second),
		APIToken:          envStr("MARQUEE_API_TOKEN", ""),
		TurnRateLimit:     envInt("MARQUEE_TURN_RATE_LIMIT", 30),
		CreateRateLimit:   envInt("MARQUEE_CREATE_RATE_LIMIT", 10),

		SessionTTL:  envDuration("MARQUEE_SESSION_TTL", 2*time.Hour),
		MaxSessions: envInt("MARQUEE_MAX_SESSIONS", 10000),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("15s") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
