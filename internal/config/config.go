package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
	Provider        string
	GroqAPIKey      string
	GroqBaseURL     string
	GroqModel       string
	AnthropicAPIKey string
	AnthropicModel  string
	SlackBotToken   string
	SlackChannel    string
	APIToken        string
	RunTimeout      time.Duration
}

func Load() Config {
	return Config{
		Port:            envInt("RAPPORT_PORT", 8760),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		Provider:        envStr("RAPPORT_PROVIDER", ProviderGroq),
		GroqAPIKey:      envStr("GROQ_API_KEY", ""),
		GroqBaseURL:     envStr("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:       envStr("RAPPORT_MODEL", "llama-3.3-70b-versatile"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		SlackBotToken:   envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:    envStr("SLACK_ALERTS_CHANNEL", ""),
		APIToken:        envStr("RAPPORT_API_TOKEN", ""),
		RunTimeout:      envDuration("RAPPORT_RUN_TIMEOUT", 90*time.Second),
	}
}

// Validate checks that the selected narrative provider has credentials.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required for provider %s", c.Provider)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider %s", c.Provider)
		}
	default:
		return fmt.Errorf("unknown RAPPORT_PROVIDER %q", c.Provider)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("RAPPORT_RUN_TIMEOUT must be positive")
	}
	return nil
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

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
