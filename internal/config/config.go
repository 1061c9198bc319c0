// Package config loads Aragora's runtime configuration from environment
// variables into one composed struct, read once at process start (spec
// §6 "Configuration").
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/an0mium/aragora/internal/models"
)

// Config composes every configurable subsystem.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Providers map[string]ProviderConfig
	Debate    models.DebateConfig
	Storage   StorageConfig
	Embedding EmbeddingConfig
	Logging   LoggingConfig
}

// ServerConfig controls the HTTP/WS listener.
type ServerConfig struct {
	Port           string
	BindAddr       string
	AllowedOrigins []string
	WSMaxFrame     int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// AuthConfig controls the bearer-token auth gate (spec §4.8).
type AuthConfig struct {
	HMACKey  []byte
	Enabled  bool
	TokenTTL time.Duration
}

// RateLimitConfig controls the token-bucket rate limiter (spec §4.8).
type RateLimitConfig struct {
	PerMinutePerToken int
	PerMinutePerIP    int
}

// ProviderConfig is one LLM provider's credentials/endpoint.
type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Enabled bool
}

// StorageConfig points at the embedded relational store.
type StorageConfig struct {
	Path string
}

// EmbeddingProvider selects the backend used for similarity computation.
type EmbeddingProvider string

const (
	EmbeddingOpenAI              EmbeddingProvider = "openai"
	EmbeddingGemini              EmbeddingProvider = "gemini"
	EmbeddingSentenceTransformer EmbeddingProvider = "sentence-transformers"
	EmbeddingAuto                EmbeddingProvider = "auto"
)

// EmbeddingConfig holds the EMBEDDING_PROVIDER setting. It is loaded and
// validated, but no component reads it: convergence detection and flip
// classification always use ranking's HashingEmbedder.
type EmbeddingConfig struct {
	Provider EmbeddingProvider
}

// LoggingConfig controls the ambient logrus logger.
type LoggingConfig struct {
	Level string
}

// Load reads every environment variable named in spec §6 into a Config.
// Unset provider API keys leave that provider disabled; there is no
// other startup-time validation here, callers decide what is fatal.
func Load() (*Config, error) {
	debateCfg := models.DefaultDebateConfig()
	debateCfg.RoundsPlanned = getIntEnv("DEBATE_DEFAULT_ROUNDS", debateCfg.RoundsPlanned)
	debateCfg.ConsensusPolicy = models.ConsensusPolicy(getEnv("DEBATE_DEFAULT_CONSENSUS", string(debateCfg.ConsensusPolicy)))
	debateCfg.ConsensusThreshold = getFloatEnv("DEBATE_CONSENSUS_THRESHOLD", debateCfg.ConsensusThreshold)
	debateCfg.Convergence.SimilarityThreshold = getFloatEnv("DEBATE_CONVERGENCE_SIMILARITY", debateCfg.Convergence.SimilarityThreshold)
	debateCfg.MinParticipants = getIntEnv("DEBATE_MIN_PARTICIPANTS", debateCfg.MinParticipants)

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			BindAddr:       getEnv("BIND_ADDR", "0.0.0.0"),
			AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{}),
			WSMaxFrame:     getIntEnv("WS_MAX_FRAME", 64*1024),
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   300 * time.Second, // generous for SSE/WS-adjacent long writes
		},
		Auth: AuthConfig{
			HMACKey:  []byte(getEnv("AUTH_TOKEN_HMAC_KEY", "")),
			Enabled:  getEnv("AUTH_TOKEN_HMAC_KEY", "") != "",
			TokenTTL: getDurationEnv("TOKEN_TTL_SECONDS", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			PerMinutePerToken: getIntEnv("RATE_LIMIT_PER_MINUTE", 60),
			PerMinutePerIP:    getIntEnv("IP_RATE_LIMIT_PER_MINUTE", 120),
		},
		Providers: loadProviders(),
		Debate:    debateCfg,
		Storage: StorageConfig{
			Path: getEnv("STORAGE_PATH", "aragora.db"),
		},
		Embedding: EmbeddingConfig{
			Provider: EmbeddingProvider(getEnv("EMBEDDING_PROVIDER", string(EmbeddingAuto))),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	return cfg, nil
}

// knownProviders lists the providers whose API key env var, when set,
// enables that provider (spec §6: "provider API keys (enable provider)").
var knownProviders = []string{"anthropic", "openai", "gemini"}

func loadProviders() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig)
	for _, name := range knownProviders {
		envKey := strings.ToUpper(name) + "_API_KEY"
		key := os.Getenv(envKey)
		out[name] = ProviderConfig{
			Name:    name,
			APIKey:  key,
			BaseURL: getEnv(strings.ToUpper(name)+"_BASE_URL", ""),
			Model:   getEnv(strings.ToUpper(name)+"_MODEL", ""),
			Enabled: key != "",
		}
	}
	return out
}

// TokenTTLSeconds exposes AuthConfig.TokenTTL in seconds, matching the
// TOKEN_TTL_SECONDS env var's units.
func (a AuthConfig) TokenTTLSeconds() int64 {
	return int64(a.TokenTTL.Seconds())
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnv parses a raw seconds count (spec names vars like
// TOKEN_TTL_SECONDS explicitly in seconds rather than Go duration strings).
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate performs the startup-time checks that are fatal rather than
// merely defaulted: an auth key that is set but too short, for instance.
func (c *Config) Validate() error {
	if c.Auth.Enabled && len(c.Auth.HMACKey) < 16 {
		return fmt.Errorf("AUTH_TOKEN_HMAC_KEY must be at least 16 bytes when set")
	}
	return nil
}
