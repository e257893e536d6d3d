// Package config provides environment configuration for the API server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/capitalize-ai/medical-assistant/internal/llm"
	"github.com/capitalize-ai/medical-assistant/internal/model"
)

// DefaultGreeting seeds every new session.
const DefaultGreeting = "Hello! I'm your Medical Assistant. How can I help you today?"

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Chat settings
	Strategy        model.StrategyKind
	Greeting        string
	IntentsFile     string
	MaxHistoryTurns int

	// Completion settings
	Backend           llm.Provider
	EndpointURL       string
	APIKey            string
	Model             string
	Temperature       float64
	MaxTokens         int
	SystemPrompt      string
	CompletionTimeout time.Duration

	// NATS settings; the turn journal is disabled when NATSURL is empty
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Browser origins allowed by CORS; empty allows any http(s) origin
	CORSAllowedOrigins []string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	strategy, ok := model.ParseStrategyKind(getEnv("REPLY_STRATEGY", string(model.StrategyRuleBased)))
	if !ok {
		strategy = model.StrategyKind(getEnv("REPLY_STRATEGY", ""))
	}

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Chat
		Strategy:        strategy,
		Greeting:        getEnv("GREETING", DefaultGreeting),
		IntentsFile:     getEnv("INTENTS_FILE", ""),
		MaxHistoryTurns: getIntEnv("MAX_HISTORY_TURNS", 40),

		// Completion
		Backend:           llm.Provider(getEnv("COMPLETION_BACKEND", string(llm.ProviderOpenAI))),
		EndpointURL:       getEnv("ENDPOINT_URL", ""),
		APIKey:            getEnv("API_KEY", ""),
		Model:             getEnv("MODEL", ""),
		Temperature:       getFloatEnv("TEMPERATURE", 0.7),
		MaxTokens:         getIntEnv("MAX_TOKENS", 500),
		SystemPrompt:      getEnv("SYSTEM_PROMPT", ""),
		CompletionTimeout: getDurationEnv("COMPLETION_TIMEOUT", 30*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// CORS
		CORSAllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate reports configuration that cannot produce a working server.
func (c *Config) Validate() error {
	if _, ok := model.ParseStrategyKind(string(c.Strategy)); !ok {
		return fmt.Errorf("unknown REPLY_STRATEGY %q", c.Strategy)
	}
	if c.MaxHistoryTurns < 0 {
		return errors.New("MAX_HISTORY_TURNS must not be negative")
	}
	if c.Strategy != model.StrategyRemote {
		return nil
	}

	switch c.Backend {
	case llm.ProviderOpenAI, llm.ProviderAnthropic:
		if c.APIKey == "" {
			return fmt.Errorf("API_KEY is required for the %s backend", c.Backend)
		}
	case llm.ProviderProxy:
		if c.EndpointURL == "" {
			return errors.New("ENDPOINT_URL is required for the proxy backend")
		}
	default:
		return fmt.Errorf("unknown COMPLETION_BACKEND %q", c.Backend)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.New("TEMPERATURE must be between 0 and 2")
	}
	if c.MaxTokens <= 0 {
		return errors.New("MAX_TOKENS must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping blank entries.
func getListEnv(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
