package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func required() map[string]string {
	return map[string]string{
		"ELEVENLABS_API_KEY":  "xi-key",
		"ELEVENLABS_AGENT_ID": "agent-1",
		"TWILIO_ACCOUNT_SID":  "AC123",
		"TWILIO_AUTH_TOKEN":   "token",
		"TWILIO_PHONE_NUMBER": "+15005550006",
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(required()))
	require.NoError(t, err)

	assert.Equal(t, "xi-key", cfg.ElevenLabsAPIKey)
	assert.Equal(t, "agent-1", cfg.ElevenLabsAgentID)
	assert.Equal(t, "+15005550006", cfg.TwilioPhoneNumber)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, 5*time.Minute, cfg.ContextTTL)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.ContextURL)
	assert.Empty(t, cfg.PublicHost)
}

func TestFromEnvOverrides(t *testing.T) {
	m := required()
	m["PORT"] = "9090"
	m["CONTEXT_TTL"] = "90s"
	m["CONTEXT_FETCH_TIMEOUT"] = "2s"
	m["LOG_LEVEL"] = "debug"
	m["SUPABASE_URL"] = "https://ctx.example.com"
	m["SUPABASE_ANON_KEY"] = "anon"
	m["PUBLIC_HOST"] = "agent.example.com"

	cfg, err := FromEnv(env(m))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, 90*time.Second, cfg.ContextTTL)
	assert.Equal(t, 2*time.Second, cfg.FetchTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "https://ctx.example.com", cfg.ContextURL)
	assert.Equal(t, "anon", cfg.ContextToken)
	assert.Equal(t, "agent.example.com", cfg.PublicHost)
}

func TestFromEnvMissingRequired(t *testing.T) {
	m := required()
	delete(m, "ELEVENLABS_AGENT_ID")
	m["TWILIO_AUTH_TOKEN"] = "   "

	_, err := FromEnv(env(m))
	require.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), "ELEVENLABS_AGENT_ID, TWILIO_AUTH_TOKEN")
}

func TestFromEnvInvalidValues(t *testing.T) {
	for key, val := range map[string]string{
		"PORT":                  "eighty",
		"CONTEXT_TTL":           "soon",
		"CONTEXT_FETCH_TIMEOUT": "-1s",
		"LOG_LEVEL":             "loud",
	} {
		m := required()
		m[key] = val
		_, err := FromEnv(env(m))
		assert.Error(t, err, key)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
