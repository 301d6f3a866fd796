// Outbound voice agent: Twilio Media Streams bridged to ElevenLabs
// Conversational AI.
//
// A POST to /outbound-call looks up the callee's context, stores it for a
// few minutes under a fresh call id, and asks Twilio to dial the number.
// When the callee answers, Twilio fetches TwiML that opens a media stream
// carrying the call id. Each stream is bridged to a new conversation whose
// system prompt and greeting are personalized from the stored context.
//
// Architecture:
//
//	┌──────────┐        ┌─────────────────┐         ┌──────────────────────┐         ┌──────────────────┐
//	│  Callee  │◄──────►│     Twilio      │◄───────►│    outbound-agent    │◄───────►│   ElevenLabs     │
//	│  (PSTN)  │  PSTN  │  Media Streams  │WebSocket│                      │WebSocket│ Conversational AI│
//	└──────────┘        └─────────────────┘ (μ-law) │  context store (TTL) │ (μ-law) └──────────────────┘
//	                                                │  session bridge      │
//	                                                └──────────┬───────────┘
//	                                                           │ HTTPS
//	                                                           ▼
//	                                                 ┌──────────────────┐
//	                                                 │ context service  │
//	                                                 └──────────────────┘
//
// Audio is passed through untouched in both directions; Twilio and the
// agent both speak 8 kHz μ-law.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/bridge"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/callcontext"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/config"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/elevenlabs"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/prompt"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/server"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/twilio"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envFile := pflag.String("env-file", ".env", "file of KEY=value pairs loaded into the environment if present")
	addr := pflag.String("addr", "", "listen address (default \":$PORT\")")
	logLevel := pflag.String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("No %s file loaded, using process environment", *envFile)
	}

	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *logLevel != "" {
		if cfg.LogLevel, err = config.ParseLevel(*logLevel); err != nil {
			log.Fatalf("Invalid --log-level: %v", err)
		}
	}
	if *addr == "" {
		*addr = cfg.Addr()
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	systemPrompt, err := prompt.Load(cfg.PromptFile)
	if err != nil {
		log.Fatalf("Failed to load system prompt: %v", err)
	}

	// Create ElevenLabs client for signed conversation URLs
	agentClient, err := elevenlabs.NewClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsAgentID,
		elevenlabs.WithBaseURL(cfg.ElevenLabsBaseURL),
	)
	if err != nil {
		log.Fatalf("Failed to create ElevenLabs client: %v", err)
	}

	if err := serve(cfg, *addr, systemPrompt, agentClient, logger); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains active
// sessions. Every resource it opens is released before it returns.
func serve(cfg *config.Config, addr, systemPrompt string, signer bridge.URLSigner, logger *slog.Logger) error {
	store := callcontext.NewStore(cfg.ContextTTL)
	defer store.Close()

	resolver := callcontext.NewResolver(cfg.ContextURL, cfg.ContextToken,
		callcontext.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout}),
		callcontext.WithLogger(logger),
	)

	srv := server.New(server.Config{
		Store:    store,
		Resolver: resolver,
		Placer:   twilio.NewRESTPlacer(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber),
		Bridge: bridge.Config{
			Signer:   signer,
			Contexts: store,
			Template: systemPrompt,
		},
		PublicHost: cfg.PublicHost,
		Logger:     logger,
	})

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Handle shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting server on %s", addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Stop accepting requests first, then end the bridged calls still
		// holding hijacked connections.
		err := httpServer.Shutdown(shutdownCtx)
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			slog.Error("sessions did not finish before shutdown deadline", "error", serr, "active", srv.ActiveSessions())
		}
		return err
	})

	return g.Wait()
}
