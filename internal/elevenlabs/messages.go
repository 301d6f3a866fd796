package elevenlabs

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Inbound message types.
const (
	TypeInitiationMetadata = "conversation_initiation_metadata"
	TypeAudio              = "audio"
	TypeInterruption       = "interruption"
	TypePing               = "ping"
	TypeAgentResponse      = "agent_response"
	TypeUserTranscript     = "user_transcript"
)

// Message is one decoded inbound server message. The concrete type is one
// of InitiationMetadata, Audio, Interruption, Ping, AgentResponse,
// UserTranscript or Unhandled.
type Message interface {
	messageType() string
}

// InitiationMetadata confirms the conversation and its audio format.
type InitiationMetadata struct {
	ConversationID string
	AudioFormat    string
}

// Audio carries one base64 agent audio chunk, already in the output
// format configured on the agent.
type Audio struct {
	Payload string
}

// Interruption reports that the caller spoke over the agent.
type Interruption struct{}

// Ping must be answered with NewPong(EventID). EventID is kept verbatim
// so numeric and string ids round-trip unchanged.
type Ping struct {
	EventID json.RawMessage
	PingMs  int
}

// HasEventID reports whether the ping carried a usable event id.
func (p Ping) HasEventID() bool {
	return len(p.EventID) > 0 && string(p.EventID) != "null"
}

// AgentResponse is the text of an agent turn.
type AgentResponse struct {
	Text string
}

// UserTranscript is the recognised text of a caller turn.
type UserTranscript struct {
	Text string
}

// Unhandled is any message whose type is not listed above.
type Unhandled struct {
	Type string
}

func (InitiationMetadata) messageType() string { return TypeInitiationMetadata }
func (Audio) messageType() string              { return TypeAudio }
func (Interruption) messageType() string       { return TypeInterruption }
func (Ping) messageType() string               { return TypePing }
func (AgentResponse) messageType() string      { return TypeAgentResponse }
func (UserTranscript) messageType() string     { return TypeUserTranscript }
func (u Unhandled) messageType() string        { return u.Type }

type envelope struct {
	Type string `json:"type"`

	InitiationMetadata *struct {
		ConversationID   string `json:"conversation_id"`
		AgentOutputAudio string `json:"agent_output_audio_format"`
	} `json:"conversation_initiation_metadata_event,omitempty"`

	Audio *struct {
		Chunk string `json:"chunk"`
	} `json:"audio,omitempty"`

	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
	} `json:"audio_event,omitempty"`

	PingEvent *struct {
		EventID json.RawMessage `json:"event_id"`
		PingMs  int             `json:"ping_ms"`
	} `json:"ping_event,omitempty"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`

	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`
}

// ParseMessage decodes one inbound text frame.
func ParseMessage(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode elevenlabs message: %w", err)
	}

	switch env.Type {
	case TypeInitiationMetadata:
		var m InitiationMetadata
		if env.InitiationMetadata != nil {
			m.ConversationID = env.InitiationMetadata.ConversationID
			m.AudioFormat = env.InitiationMetadata.AgentOutputAudio
		}
		return m, nil
	case TypeAudio:
		var m Audio
		switch {
		case env.Audio != nil && env.Audio.Chunk != "":
			m.Payload = env.Audio.Chunk
		case env.AudioEvent != nil && env.AudioEvent.AudioBase64 != "":
			m.Payload = env.AudioEvent.AudioBase64
		}
		return m, nil
	case TypeInterruption:
		return Interruption{}, nil
	case TypePing:
		var m Ping
		if env.PingEvent != nil {
			m.EventID = env.PingEvent.EventID
			m.PingMs = env.PingEvent.PingMs
		}
		return m, nil
	case TypeAgentResponse:
		var m AgentResponse
		if env.AgentResponseEvent != nil {
			m.Text = env.AgentResponseEvent.AgentResponse
		}
		return m, nil
	case TypeUserTranscript:
		var m UserTranscript
		if env.UserTranscriptionEvent != nil {
			m.Text = env.UserTranscriptionEvent.UserTranscript
		}
		return m, nil
	default:
		return Unhandled{Type: env.Type}, nil
	}
}

// InitiationClientData overrides the agent prompt and opening line for a
// conversation. It must be the first message sent on a new socket.
type InitiationClientData struct {
	Type     string         `json:"type"`
	Override ConfigOverride `json:"conversation_config_override"`
}

// ConfigOverride holds per-conversation overrides.
type ConfigOverride struct {
	Agent AgentOverride `json:"agent"`
}

// AgentOverride replaces the agent's prompt and opening line.
type AgentOverride struct {
	Prompt       PromptOverride `json:"prompt"`
	FirstMessage string         `json:"first_message"`
}

// PromptOverride carries the system prompt text.
type PromptOverride struct {
	Prompt string `json:"prompt"`
}

// NewInitiationClientData builds the conversation initiation payload.
func NewInitiationClientData(prompt, firstMessage string) InitiationClientData {
	return InitiationClientData{
		Type: "conversation_initiation_client_data",
		Override: ConfigOverride{
			Agent: AgentOverride{
				Prompt:       PromptOverride{Prompt: prompt},
				FirstMessage: firstMessage,
			},
		},
	}
}

// UserAudioChunk streams caller audio to the agent.
type UserAudioChunk struct {
	Chunk string `json:"user_audio_chunk"`
}

// NewUserAudioChunk encodes raw caller audio.
func NewUserAudioChunk(audio []byte) UserAudioChunk {
	return UserAudioChunk{Chunk: base64.StdEncoding.EncodeToString(audio)}
}

// Pong answers a Ping.
type Pong struct {
	Type    string          `json:"type"`
	EventID json.RawMessage `json:"event_id"`
}

// NewPong echoes eventID back to the server.
func NewPong(eventID json.RawMessage) Pong {
	return Pong{Type: "pong", EventID: eventID}
}
