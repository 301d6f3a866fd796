// Package config reads the outbound agent's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/callcontext"
)

// ErrMissingEnv is returned when a required variable is unset.
var ErrMissingEnv = errors.New("required environment variable not set")

// DefaultPort is used when PORT is unset.
const DefaultPort = 8000

// Config holds everything main needs to wire the server.
type Config struct {
	ElevenLabsAPIKey  string
	ElevenLabsAgentID string
	ElevenLabsBaseURL string

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// Context service. An empty URL disables lookups and every call uses
	// placeholder variables.
	ContextURL   string
	ContextToken string

	Port         int
	PublicHost   string
	PromptFile   string
	ContextTTL   time.Duration
	FetchTimeout time.Duration
	LogLevel     slog.Level
}

// Addr is the listen address derived from Port.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// FromEnv builds a Config using getenv, usually os.Getenv. All missing
// required variables are reported together.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := &Config{
		ElevenLabsAPIKey:  get("ELEVENLABS_API_KEY"),
		ElevenLabsAgentID: get("ELEVENLABS_AGENT_ID"),
		ElevenLabsBaseURL: get("ELEVENLABS_BASE_URL"),
		TwilioAccountSID:  get("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   get("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: get("TWILIO_PHONE_NUMBER"),
		ContextURL:        get("SUPABASE_URL"),
		ContextToken:      get("SUPABASE_ANON_KEY"),
		PublicHost:        get("PUBLIC_HOST"),
		PromptFile:        get("PROMPT_FILE"),
		Port:              DefaultPort,
		ContextTTL:        callcontext.DefaultTTL,
		FetchTimeout:      callcontext.DefaultFetchTimeout,
		LogLevel:          slog.LevelInfo,
	}

	var missing []string
	for key, val := range map[string]string{
		"ELEVENLABS_API_KEY":  cfg.ElevenLabsAPIKey,
		"ELEVENLABS_AGENT_ID": cfg.ElevenLabsAgentID,
		"TWILIO_ACCOUNT_SID":  cfg.TwilioAccountSID,
		"TWILIO_AUTH_TOKEN":   cfg.TwilioAuthToken,
		"TWILIO_PHONE_NUMBER": cfg.TwilioPhoneNumber,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	if v := get("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}

	var err error
	if cfg.ContextTTL, err = duration(get, "CONTEXT_TTL", cfg.ContextTTL); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = duration(get, "CONTEXT_FETCH_TIMEOUT", cfg.FetchTimeout); err != nil {
		return nil, err
	}

	if v := get("LOG_LEVEL"); v != "" {
		if cfg.LogLevel, err = ParseLevel(v); err != nil {
			return nil, err
		}
	}

	if cfg.ContextURL != "" && cfg.ContextToken == "" {
		slog.Warn("SUPABASE_URL set without SUPABASE_ANON_KEY; context requests will be unauthenticated")
	}
	return cfg, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func duration(get func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := get(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
