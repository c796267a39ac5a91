package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"APP_ENV", "LOG_LEVEL", "CHAT_PLATFORM",
	"SLACK_BOT_TOKEN", "SLACK_APP_TOKEN", "TELEGRAM_BOT_TOKEN",
	"ADMIN_USER_IDS", "ALLOWED_TELEGRAM_USER_IDS",
	"LLM_PROVIDER", "LLM_API_KEY", "GEMINI_API_KEY", "LLM_BASE_URL", "GEMINI_API_BASE_URL",
	"LLM_MODEL", "GEMINI_MODEL", "MAX_TOKENS",
	"THREAD_HISTORY_LIMIT", "CHANNEL_HISTORY_LIMIT", "STREAM_UPDATE_INTERVAL_MS",
	"CONTEXT_MESSAGE_LIMIT", "CONTEXT_TTL_MINUTES", "REDIS_URL", "THREAD_CONTEXT_TTL_HOURS",
	"PERSONA_FILE",
}

// unsetEnv clears every variable Load reads and restores them after the test.
func unsetEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t)
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-1")
	t.Setenv("SLACK_APP_TOKEN", "xapp-1")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, PlatformSlack, cfg.Platform)
	assert.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model)
	assert.Equal(t, 16384, cfg.MaxTokens)
	assert.Equal(t, 10, cfg.ThreadHistoryLimit)
	assert.Equal(t, 50, cfg.ChannelHistoryLimit)
	assert.Equal(t, time.Second, cfg.StreamUpdateInterval)
	assert.Equal(t, 168*time.Hour, cfg.ThreadContextTTL)
	assert.Empty(t, cfg.LLMAPIKey)
	assert.Equal(t, DefaultPersona(), cfg.Persona)
}

func TestLoad_GeminiFallbacks(t *testing.T) {
	unsetEnv(t)
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-1")
	t.Setenv("SLACK_APP_TOKEN", "xapp-1")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("GEMINI_API_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "gem-key", cfg.LLMAPIKey)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/openai/", cfg.LLMBaseURL)
	assert.Equal(t, "gemini-2.5-pro", cfg.Model)

	t.Setenv("LLM_API_KEY", "primary")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	cfg, err = Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.LLMAPIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	unsetEnv(t)
	t.Setenv("MAX_TOKENS", "2048")

	path := filepath.Join(t.TempDir(), ".env")
	content := "CHAT_PLATFORM=telegram\nTELEGRAM_BOT_TOKEN=123:abc\nMAX_TOKENS=99\nSTREAM_UPDATE_INTERVAL_MS=750\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, PlatformTelegram, cfg.Platform)
	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, 750*time.Millisecond, cfg.StreamUpdateInterval)
	// variables already in the process win over the file
	assert.Equal(t, 2048, cfg.MaxTokens)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	unsetEnv(t)
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-1")
	t.Setenv("SLACK_APP_TOKEN", "xapp-1")
	t.Setenv("THREAD_HISTORY_LIMIT", "lots")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ThreadHistoryLimit)
}

func TestLoad_PersonaFile(t *testing.T) {
	unsetEnv(t)
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-1")
	t.Setenv("SLACK_APP_TOKEN", "xapp-1")

	path := filepath.Join(t.TempDir(), "persona.yaml")
	require.NoError(t, os.WriteFile(path, []byte("greeting: Hi there!\n"), 0o600))
	t.Setenv("PERSONA_FILE", path)

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", cfg.Persona.Greeting)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Platform:      PlatformSlack,
		SlackBotToken: "xoxb-1",
		SlackAppToken: "xapp-1",
		LLMProvider:   ProviderOpenAI,
		Model:         "m",
		MaxTokens:     10,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"slack without app token", func(c *Config) { c.SlackAppToken = "" }},
		{"telegram without token", func(c *Config) { c.Platform = PlatformTelegram }},
		{"unknown platform", func(c *Config) { c.Platform = "irc" }},
		{"unknown provider", func(c *Config) { c.LLMProvider = "cohere" }},
		{"no model", func(c *Config) { c.Model = "" }},
		{"no max tokens", func(c *Config) { c.MaxTokens = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_AllowsMissingLLMKey(t *testing.T) {
	cfg := Config{
		Platform:      PlatformTelegram,
		TelegramToken: "123:abc",
		LLMProvider:   ProviderAnthropic,
		Model:         "claude-sonnet-4-5",
		MaxTokens:     10,
	}
	assert.NoError(t, cfg.Validate())
}

func TestParseIDs(t *testing.T) {
	assert.Nil(t, parseIDs(""))
	assert.Equal(t, []int64{1, 2, 3}, parseIDs("1, 2,,3"))
	assert.Equal(t, []int64{42}, parseIDs("42,abc"))
}

func TestEnvHelpers(t *testing.T) {
	assert.True(t, Config{Env: "production"}.IsProduction())
	assert.False(t, Config{Env: "production"}.IsDevelopment())
	assert.True(t, Config{Env: "development"}.IsDevelopment())
}
