package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	PlatformSlack    = "slack"
	PlatformTelegram = "telegram"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Env      string
	LogLevel string
	Platform string

	SlackBotToken  string
	SlackAppToken  string
	TelegramToken  string
	AdminUserIDs   []int64
	AllowedUserIDs []int64

	LLMProvider string
	LLMAPIKey   string
	LLMBaseURL  string
	Model       string
	MaxTokens   int

	ThreadHistoryLimit   int
	ChannelHistoryLimit  int
	StreamUpdateInterval time.Duration

	ContextLimit     int
	ContextTTL       time.Duration
	RedisURL         string
	ThreadContextTTL time.Duration

	Persona Persona
}

// Load reads the configuration from the environment, after filling it from
// the given .env file. Variables already set in the process win.
func Load(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil {
		slog.Debug("could not read .env", "path", path, "error", err)
	}

	cfg := Config{
		Env:                  getenvDefault("APP_ENV", "development"),
		LogLevel:             os.Getenv("LOG_LEVEL"),
		Platform:             strings.ToLower(getenvDefault("CHAT_PLATFORM", PlatformSlack)),
		SlackBotToken:        os.Getenv("SLACK_BOT_TOKEN"),
		SlackAppToken:        os.Getenv("SLACK_APP_TOKEN"),
		TelegramToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		LLMProvider:          strings.ToLower(getenvDefault("LLM_PROVIDER", ProviderOpenAI)),
		LLMAPIKey:            getenvFirst("LLM_API_KEY", "GEMINI_API_KEY"),
		LLMBaseURL:           getenvFirst("LLM_BASE_URL", "GEMINI_API_BASE_URL"),
		Model:                getenvDefault("LLM_MODEL", getenvDefault("GEMINI_MODEL", "gemini-2.5-flash")),
		MaxTokens:            getenvIntDefault("MAX_TOKENS", 16384),
		ThreadHistoryLimit:   getenvIntDefault("THREAD_HISTORY_LIMIT", 10),
		ChannelHistoryLimit:  getenvIntDefault("CHANNEL_HISTORY_LIMIT", 50),
		StreamUpdateInterval: time.Duration(getenvIntDefault("STREAM_UPDATE_INTERVAL_MS", 1000)) * time.Millisecond,
		ContextLimit:         getenvIntDefault("CONTEXT_MESSAGE_LIMIT", 20),
		ContextTTL:           time.Duration(getenvIntDefault("CONTEXT_TTL_MINUTES", 120)) * time.Minute,
		RedisURL:             os.Getenv("REDIS_URL"),
		ThreadContextTTL:     time.Duration(getenvIntDefault("THREAD_CONTEXT_TTL_HOURS", 168)) * time.Hour,
	}

	cfg.AdminUserIDs = parseIDs(os.Getenv("ADMIN_USER_IDS"))
	cfg.AllowedUserIDs = parseIDs(os.Getenv("ALLOWED_TELEGRAM_USER_IDS"))

	persona, err := LoadPersona(os.Getenv("PERSONA_FILE"))
	if err != nil {
		return cfg, err
	}
	cfg.Persona = persona

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks what the process needs to start. LLM credentials are not
// checked here: a missing key fails each turn instead.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformSlack:
		if c.SlackBotToken == "" || c.SlackAppToken == "" {
			return fmt.Errorf("SLACK_BOT_TOKEN and SLACK_APP_TOKEN are required")
		}
	case PlatformTelegram:
		if c.TelegramToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
		}
	default:
		return fmt.Errorf("unknown CHAT_PLATFORM %q", c.Platform)
	}

	switch c.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.Model == "" {
		return fmt.Errorf("LLM_MODEL is required")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("MAX_TOKENS must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func parseIDs(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			slog.Warn("skipping user id", "value", p, "error", err)
			continue
		}
		ids = append(ids, v)
	}
	return ids
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvFirst(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}
