// Package bridge relays one phone call between a Twilio Media Streams
// socket and an ElevenLabs Conversational AI socket.
//
// Each Session is owned by the goroutine that calls Run. That goroutine
// holds all per-call state and performs every socket write; one reader
// goroutine per socket and one dialer goroutine hand it events over an
// unbuffered channel, so frames from a given socket are handled in the
// order they arrived.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/callcontext"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/elevenlabs"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/prompt"
	"github.com/agentplexus/omnivoice-examples/twilio-elevenlabs-outbound-agent/internal/twilio"
)

// DefaultWriteTimeout bounds each socket write.
const DefaultWriteTimeout = 10 * time.Second

// CallIDParameter is the stream parameter carrying the call identifier.
const CallIDParameter = "call_id"

// State is the lifecycle position of a Session.
type State int

const (
	// AwaitingStreamStart is the state before the telephony start event.
	AwaitingStreamStart State = iota
	// Active relays audio between the two sockets.
	Active
	// Closed means the session is over and both sockets are closing.
	Closed
)

// String returns the state's log name.
func (s State) String() string {
	switch s {
	case AwaitingStreamStart:
		return "awaiting_stream_start"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// URLSigner hands out a signed conversation URL for the AI socket.
type URLSigner interface {
	SignedURL(ctx context.Context) (string, error)
}

// ContextSource looks up call variables by call identifier. It must not
// fail; a missing entry yields defaults.
type ContextSource interface {
	Get(callID string) callcontext.Variables
}

// Config holds the collaborators shared by every session.
type Config struct {
	Signer   URLSigner
	Contexts ContextSource

	// Template is the system prompt template. Empty selects prompt.SystemPrompt.
	Template string

	// Dialer opens the AI socket. Nil selects websocket.DefaultDialer.
	Dialer *websocket.Dialer

	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Stats counts frames relayed by a session.
type Stats struct {
	CallerFrames  int
	CallerDropped int
	AgentFrames   int
	AgentDropped  int
	Pongs         int
}

// Session bridges one Media Streams connection to one AI conversation.
type Session struct {
	id        string
	cfg       Config
	log       *slog.Logger
	dialer    *websocket.Dialer
	telephony *websocket.Conn

	events chan event
	done   chan struct{}

	// Owned by the Run goroutine.
	state     State
	ai        *websocket.Conn
	streamSid string
	callSid   string
	callID    string
	initiated bool
	stats     Stats
}

// New creates a session for an accepted Media Streams socket.
func New(cfg Config, telephony *websocket.Conn) *Session {
	if cfg.Template == "" {
		cfg.Template = prompt.SystemPrompt
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	id := uuid.NewString()
	return &Session{
		id:        id,
		cfg:       cfg,
		log:       cfg.Logger.With("component", "bridge", "session", id),
		dialer:    dialer,
		telephony: telephony,
		events:    make(chan event),
		done:      make(chan struct{}),
		state:     AwaitingStreamStart,
	}
}

// ID returns the session's log identifier.
func (s *Session) ID() string { return s.id }

// Run relays frames until either socket closes, the stream stops, or ctx
// is cancelled. Both sockets are closed when Run returns. The returned
// Stats must only be read after Run returns.
func (s *Session) Run(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(s.done)
	defer s.shutdown()

	s.log.Info("media stream connected")

	go s.readTelephony()
	go s.dialAI(ctx)

	for {
		select {
		case <-ctx.Done():
			s.state = Closed
			return s.stats, ctx.Err()
		case ev := <-s.events:
			s.handle(ev)
			if s.state == Closed {
				return s.stats, nil
			}
		}
	}
}

type event any

type (
	telephonyFrame  struct{ data []byte }
	telephonyClosed struct{ err error }
	aiDialed        struct{ conn *websocket.Conn }
	aiDialFailed    struct{ err error }
	aiFrame         struct{ data []byte }
	aiClosed        struct{ err error }
)

// emit hands ev to the owner, or reports false once Run has returned.
func (s *Session) emit(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) readTelephony() {
	for {
		_, data, err := s.telephony.ReadMessage()
		if err != nil {
			s.emit(telephonyClosed{err: err})
			return
		}
		if !s.emit(telephonyFrame{data: data}) {
			return
		}
	}
}

func (s *Session) readAI(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.emit(aiClosed{err: err})
			return
		}
		if !s.emit(aiFrame{data: data}) {
			return
		}
	}
}

func (s *Session) dialAI(ctx context.Context) {
	signedURL, err := s.cfg.Signer.SignedURL(ctx)
	if err != nil {
		s.emit(aiDialFailed{err: fmt.Errorf("get signed url: %w", err)})
		return
	}

	conn, resp, err := s.dialer.DialContext(ctx, signedURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		s.emit(aiDialFailed{err: fmt.Errorf("dial conversation: %w", err)})
		return
	}

	if !s.emit(aiDialed{conn: conn}) {
		_ = conn.Close()
	}
}

func (s *Session) handle(ev event) {
	switch ev := ev.(type) {
	case telephonyFrame:
		s.handleTelephony(ev.data)
	case telephonyClosed:
		if isUnexpectedClose(ev.err) {
			s.log.Warn("media stream closed unexpectedly", "error", ev.err)
		} else {
			s.log.Info("media stream disconnected")
		}
		s.state = Closed
	case aiDialed:
		s.ai = ev.conn
		s.log.Info("connected to conversational AI")
		go s.readAI(ev.conn)
		s.maybeInitiate()
	case aiDialFailed:
		// Only the AI side is abandoned; caller audio is dropped from here on.
		s.log.Error("conversational AI setup failed", "error", ev.err)
	case aiFrame:
		s.handleAI(ev.data)
	case aiClosed:
		if isUnexpectedClose(ev.err) {
			s.log.Warn("conversational AI closed unexpectedly", "error", ev.err)
		} else {
			s.log.Info("conversational AI disconnected")
		}
		s.state = Closed
	}
}

func (s *Session) handleTelephony(data []byte) {
	msg, err := twilio.ParseEvent(data)
	if err != nil {
		s.log.Warn("dropping malformed media stream message", "error", err)
		return
	}

	switch m := msg.(type) {
	case twilio.ConnectedEvent:
		s.log.Debug("media stream handshake", "protocol", m.Protocol, "version", m.Version)
	case twilio.StartEvent:
		if s.state != AwaitingStreamStart {
			s.log.Warn("ignoring repeated start event", "stream_sid", m.StreamSid)
			return
		}
		s.streamSid = m.StreamSid
		s.callSid = m.CallSid
		s.callID = m.CustomParameters[CallIDParameter]
		s.state = Active
		s.log = s.log.With("stream_sid", s.streamSid, "call_sid", s.callSid)
		s.log.Info("stream started", "call_id", s.callID)
		s.maybeInitiate()
	case twilio.MediaEvent:
		if s.state != Active || s.ai == nil {
			s.stats.CallerDropped++
			return
		}
		audio, err := m.Audio()
		if err != nil {
			s.stats.CallerDropped++
			s.log.Warn("dropping undecodable caller audio", "error", err)
			return
		}
		if s.sendAI(elevenlabs.NewUserAudioChunk(audio)) {
			s.stats.CallerFrames++
		}
	case twilio.StopEvent:
		s.log.Info("stream stopped")
		s.closeAI()
		s.state = Closed
	case twilio.MarkEvent:
		s.log.Debug("mark", "name", m.Name)
	default:
		s.log.Info("unhandled media stream event", "event", twilio.NameOf(msg))
	}
}

func (s *Session) handleAI(data []byte) {
	msg, err := elevenlabs.ParseMessage(data)
	if err != nil {
		s.log.Warn("dropping malformed AI message", "error", err)
		return
	}

	switch m := msg.(type) {
	case elevenlabs.InitiationMetadata:
		s.log.Info("conversation initiated", "conversation_id", m.ConversationID, "audio_format", m.AudioFormat)
	case elevenlabs.Audio:
		if s.streamSid == "" || m.Payload == "" {
			s.stats.AgentDropped++
			s.log.Debug("dropping agent audio before stream start")
			return
		}
		if s.sendTelephony(twilio.NewMediaMessage(s.streamSid, m.Payload)) {
			s.stats.AgentFrames++
		}
	case elevenlabs.Interruption:
		if s.streamSid == "" {
			return
		}
		s.sendTelephony(twilio.NewClearMessage(s.streamSid))
	case elevenlabs.Ping:
		if !m.HasEventID() {
			s.log.Warn("ping without event id")
			return
		}
		if s.sendAI(elevenlabs.NewPong(m.EventID)) {
			s.stats.Pongs++
		}
	case elevenlabs.AgentResponse:
		s.log.Info("agent response", "text", m.Text)
	case elevenlabs.UserTranscript:
		s.log.Info("user transcript", "text", m.Text)
	case elevenlabs.Unhandled:
		s.log.Debug("unhandled AI message", "type", m.Type)
	}
}

// maybeInitiate sends the conversation override once the AI socket is open
// and the stream has started, so the call identifier is known when the
// context is looked up.
func (s *Session) maybeInitiate() {
	if s.initiated || s.ai == nil || s.state != Active {
		return
	}
	s.initiated = true

	vars := s.cfg.Contexts.Get(s.callID)
	filled := prompt.Render(s.cfg.Template, vars)
	first := prompt.FirstMessage(vars.Name())

	s.log.Info("sending conversation overrides", "call_id", s.callID, "name", vars.Name())
	s.sendAI(elevenlabs.NewInitiationClientData(filled, first))
}

func (s *Session) sendAI(v any) bool {
	if s.ai == nil {
		return false
	}
	return s.write(s.ai, "ai", v)
}

func (s *Session) sendTelephony(v any) bool {
	return s.write(s.telephony, "telephony", v)
}

func (s *Session) write(conn *websocket.Conn, side string, v any) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteJSON(v); err != nil {
		s.log.Warn("socket write failed", "side", side, "error", err)
		return false
	}
	return true
}

func (s *Session) closeAI() {
	if s.ai == nil {
		return
	}
	closeConn(s.ai, s.cfg.WriteTimeout)
	s.ai = nil
}

func (s *Session) shutdown() {
	s.closeAI()
	closeConn(s.telephony, s.cfg.WriteTimeout)
	s.log.Info("session ended",
		"caller_frames", s.stats.CallerFrames,
		"caller_dropped", s.stats.CallerDropped,
		"agent_frames", s.stats.AgentFrames,
		"agent_dropped", s.stats.AgentDropped,
		"pongs", s.stats.Pongs,
	)
}

// closeConn sends a normal close frame, best effort, and closes conn.
func closeConn(conn *websocket.Conn, timeout time.Duration) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeout))
	_ = conn.Close()
}

func isUnexpectedClose(err error) bool {
	if err == nil || errors.Is(err, websocket.ErrCloseSent) {
		return false
	}
	return websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
