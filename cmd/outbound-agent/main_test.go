package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/config"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/prompt"
)

type unusedSigner struct{}

func (unusedSigner) SignedURL(context.Context) (string, error) { return "", context.Canceled }

func TestServeReturnsListenError(t *testing.T) {
	cfg := &config.Config{
		TwilioAccountSID:  "AC00000000000000000000000000000000",
		TwilioAuthToken:   "token",
		TwilioPhoneNumber: "+15005550006",
		ContextTTL:        time.Minute,
		FetchTimeout:      time.Second,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan error, 1)
	go func() { done <- serve(cfg, "127.0.0.1:-1", prompt.SystemPrompt, unusedSigner{}, logger) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "serve:")
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the listener failed")
	}
}
