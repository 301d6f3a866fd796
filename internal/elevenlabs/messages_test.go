package elevenlabs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Message
	}{
		{
			name: "initiation metadata",
			in:   `{"type":"conversation_initiation_metadata","conversation_initiation_metadata_event":{"conversation_id":"conv_1","agent_output_audio_format":"ulaw_8000"}}`,
			want: InitiationMetadata{ConversationID: "conv_1", AudioFormat: "ulaw_8000"},
		},
		{
			name: "audio chunk shape",
			in:   `{"type":"audio","audio":{"chunk":"AAEC"}}`,
			want: Audio{Payload: "AAEC"},
		},
		{
			name: "audio event shape",
			in:   `{"type":"audio","audio_event":{"audio_base_64":"AwQF","event_id":3}}`,
			want: Audio{Payload: "AwQF"},
		},
		{
			name: "audio without payload",
			in:   `{"type":"audio"}`,
			want: Audio{},
		},
		{
			name: "interruption",
			in:   `{"type":"interruption","interruption_event":{"event_id":7}}`,
			want: Interruption{},
		},
		{
			name: "agent response",
			in:   `{"type":"agent_response","agent_response_event":{"agent_response":"Hello!"}}`,
			want: AgentResponse{Text: "Hello!"},
		},
		{
			name: "user transcript",
			in:   `{"type":"user_transcript","user_transcription_event":{"user_transcript":"Hi there"}}`,
			want: UserTranscript{Text: "Hi there"},
		},
		{
			name: "unknown type",
			in:   `{"type":"internal_tentative_agent_response"}`,
			want: Unhandled{Type: "internal_tentative_agent_response"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePingKeepsEventIDVerbatim(t *testing.T) {
	for _, id := range []string{`"abc"`, `42`} {
		msg, err := ParseMessage([]byte(`{"type":"ping","ping_event":{"event_id":` + id + `,"ping_ms":120}}`))
		require.NoError(t, err)

		ping, ok := msg.(Ping)
		require.True(t, ok)
		assert.True(t, ping.HasEventID())
		assert.Equal(t, 120, ping.PingMs)

		out, err := json.Marshal(NewPong(ping.EventID))
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"pong","event_id":`+id+`}`, string(out))
	}
}

func TestParsePingWithoutEventID(t *testing.T) {
	for _, in := range []string{`{"type":"ping"}`, `{"type":"ping","ping_event":{"event_id":null}}`} {
		msg, err := ParseMessage([]byte(in))
		require.NoError(t, err)
		assert.False(t, msg.(Ping).HasEventID(), in)
	}
}

func TestParseMessageMalformed(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestOutboundShapes(t *testing.T) {
	out, err := json.Marshal(NewInitiationClientData("Be kind to Alice", "Hey Alice!"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "conversation_initiation_client_data",
		"conversation_config_override": {
			"agent": {
				"prompt": {"prompt": "Be kind to Alice"},
				"first_message": "Hey Alice!"
			}
		}
	}`, string(out))

	out, err = json.Marshal(NewUserAudioChunk([]byte{0xff, 0x7f, 0x00}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_audio_chunk":"/38A"}`, string(out))
}
