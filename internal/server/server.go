// Package server exposes the HTTP surface of the outbound agent: placing
// calls, answering Twilio's call webhook with TwiML, and accepting Media
// Streams connections that are bridged to the conversational AI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/bridge"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/callcontext"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/twilio"
)

// Routes.
const (
	OutboundCallPath  = "/outbound-call"
	OutboundTwiMLPath = "/outbound-call-twiml"
	MediaStreamPath   = "/outbound-media-stream"
)

// Resolver resolves call variables before a call is placed.
type Resolver interface {
	Resolve(ctx context.Context, callID, patientID string) callcontext.Variables
}

// Config wires the server's collaborators.
type Config struct {
	Store    *callcontext.Store
	Resolver Resolver
	Placer   twilio.Placer
	Bridge   bridge.Config

	// PublicHost is the host Twilio should call back on. Empty uses the
	// Host header of the triggering request.
	PublicHost string

	Logger *slog.Logger
}

// Server handles outbound call placement and the media streams it spawns.
type Server struct {
	cfg      Config
	log      *slog.Logger
	upgrader websocket.Upgrader

	// ctx outlives individual requests; cancelling it ends every session.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
	active   atomic.Int64
}

// New creates a server. Call Shutdown to end active sessions.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Bridge.Contexts == nil {
		cfg.Bridge.Contexts = cfg.Store
	}
	if cfg.Bridge.Logger == nil {
		cfg.Bridge.Logger = cfg.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg: cfg,
		log: cfg.Logger.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Twilio does not send an Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("POST "+OutboundCallPath, s.handleOutboundCall)
	mux.HandleFunc(OutboundTwiMLPath, s.handleOutboundTwiML)
	mux.HandleFunc("GET "+MediaStreamPath, s.handleMediaStream)
	return mux
}

// ActiveSessions reports how many media streams are being bridged.
func (s *Server) ActiveSessions() int64 { return s.active.Load() }

// Shutdown ends every active session and waits for them to finish or for
// ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleHealth reports liveness and current load.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "Server is running",
		"active_sessions": s.ActiveSessions(),
		"stored_contexts": s.cfg.Store.Len(),
	})
}

type outboundCallRequest struct {
	Number    string `json:"number"`
	PatientID string `json:"patient_id"`
}

// handleOutboundCall resolves the callee's context, stores it under a new
// call id, and asks Twilio to place the call.
func (s *Server) handleOutboundCall(w http.ResponseWriter, r *http.Request) {
	req, err := decodeOutboundCall(w, r)
	if err != nil {
		s.log.Warn("invalid outbound call request", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Number) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Phone number is required"})
		return
	}

	ctx := r.Context()
	callID := uuid.NewString()
	log := s.log.With("call_id", callID)

	vars := s.cfg.Resolver.Resolve(ctx, callID, req.PatientID)
	s.cfg.Store.Put(callID, vars)

	callbackURL := fmt.Sprintf("https://%s%s?call_id=%s", s.host(r), OutboundTwiMLPath, url.QueryEscape(callID))
	callSid, err := s.cfg.Placer.PlaceCall(ctx, req.Number, callbackURL)
	if err != nil {
		s.cfg.Store.Delete(callID)
		log.Error("failed to initiate outbound call", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "Failed to initiate call",
		})
		return
	}

	log.Info("outbound call initiated", "call_sid", callSid)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Call initiated",
		"callSid": callSid,
		"callId":  callID,
	})
}

func decodeOutboundCall(w http.ResponseWriter, r *http.Request) (outboundCallRequest, error) {
	var req outboundCallRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("parse form: %w", err)
		}
		req.Number = r.PostForm.Get("number")
		req.PatientID = r.PostForm.Get("patient_id")
		return req, nil
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, nil
		}
		return req, fmt.Errorf("decode json: %w", err)
	}
	return req, nil
}

// handleOutboundTwiML answers Twilio's call webhook with TwiML that opens
// a media stream tagged with the call id.
func (s *Server) handleOutboundTwiML(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")

	wsURL := fmt.Sprintf("wss://%s%s", s.host(r), MediaStreamPath)
	twiml, err := twilio.StreamTwiML(wsURL, map[string]string{bridge.CallIDParameter: callID})
	if err != nil {
		s.log.Error("failed to build TwiML", "error", err, "call_id", callID)
		http.Error(w, "failed to build TwiML", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	if _, err := w.Write([]byte(twiml)); err != nil {
		s.log.Error("failed to write TwiML", "error", err)
	}
}

// handleMediaStream upgrades to WebSocket and bridges the stream until
// either side hangs up.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	if s.isClosing() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.sessions.Add(1)
	s.mu.Unlock()

	s.active.Add(1)
	defer func() {
		s.active.Add(-1)
		s.sessions.Done()
	}()

	session := bridge.New(s.cfg.Bridge, conn)
	if _, err := session.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("session failed", "error", err, "session", session.ID())
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) host(r *http.Request) string {
	if s.cfg.PublicHost != "" {
		return s.cfg.PublicHost
	}
	return r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
