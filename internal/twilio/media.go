// Package twilio covers the Twilio side of an outbound call: the Media
// Streams WebSocket protocol, TwiML for the call webhook, and placing the
// call over the REST API.
package twilio

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound Media Streams event names.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
	EventMark      = "mark"
)

// Event is one decoded Media Streams message. The concrete type is one of
// ConnectedEvent, StartEvent, MediaEvent, StopEvent, MarkEvent or
// UnknownEvent.
type Event interface {
	eventName() string
}

// ConnectedEvent is the first message on a new stream.
type ConnectedEvent struct {
	Protocol string
	Version  string
}

// StartEvent opens the stream. CustomParameters carries the <Parameter>
// values from the TwiML that created the stream.
type StartEvent struct {
	StreamSid        string
	CallSid          string
	AccountSid       string
	Tracks           []string
	MediaFormat      MediaFormat
	CustomParameters map[string]string
}

// MediaFormat describes the stream's audio encoding.
type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// MediaEvent carries one base64 audio frame from the caller.
type MediaEvent struct {
	StreamSid string
	Track     string
	Chunk     string
	Timestamp string
	Payload   string
}

// Audio decodes the frame payload.
func (m MediaEvent) Audio() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return b, nil
}

// StopEvent ends the stream.
type StopEvent struct {
	StreamSid string
	CallSid   string
}

// MarkEvent reports that playback reached a named mark.
type MarkEvent struct {
	StreamSid string
	Name      string
}

// UnknownEvent is any event not listed above.
type UnknownEvent struct {
	Name string
}

func (ConnectedEvent) eventName() string { return EventConnected }
func (StartEvent) eventName() string     { return EventStart }
func (MediaEvent) eventName() string     { return EventMedia }
func (StopEvent) eventName() string      { return EventStop }
func (MarkEvent) eventName() string      { return EventMark }
func (u UnknownEvent) eventName() string { return u.Name }

// NameOf returns the wire event name of e.
func NameOf(e Event) string { return e.eventName() }

type message struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Protocol  string `json:"protocol"`
	Version   string `json:"version"`

	Start *struct {
		StreamSid        string            `json:"streamSid"`
		CallSid          string            `json:"callSid"`
		AccountSid       string            `json:"accountSid"`
		Tracks           []string          `json:"tracks"`
		MediaFormat      MediaFormat       `json:"mediaFormat"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start,omitempty"`

	Media *struct {
		Track     string `json:"track"`
		Chunk     string `json:"chunk"`
		Timestamp string `json:"timestamp"`
		Payload   string `json:"payload"`
	} `json:"media,omitempty"`

	Stop *struct {
		AccountSid string `json:"accountSid"`
		CallSid    string `json:"callSid"`
	} `json:"stop,omitempty"`

	Mark *struct {
		Name string `json:"name"`
	} `json:"mark,omitempty"`
}

// ParseEvent decodes one inbound text frame.
func ParseEvent(data []byte) (Event, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode media stream event: %w", err)
	}

	switch msg.Event {
	case EventConnected:
		return ConnectedEvent{Protocol: msg.Protocol, Version: msg.Version}, nil
	case EventStart:
		if msg.Start == nil {
			return nil, errors.New("start event without start body")
		}
		ev := StartEvent{
			StreamSid:        msg.Start.StreamSid,
			CallSid:          msg.Start.CallSid,
			AccountSid:       msg.Start.AccountSid,
			Tracks:           msg.Start.Tracks,
			MediaFormat:      msg.Start.MediaFormat,
			CustomParameters: msg.Start.CustomParameters,
		}
		if ev.StreamSid == "" {
			ev.StreamSid = msg.StreamSid
		}
		return ev, nil
	case EventMedia:
		if msg.Media == nil {
			return nil, errors.New("media event without media body")
		}
		return MediaEvent{
			StreamSid: msg.StreamSid,
			Track:     msg.Media.Track,
			Chunk:     msg.Media.Chunk,
			Timestamp: msg.Media.Timestamp,
			Payload:   msg.Media.Payload,
		}, nil
	case EventStop:
		ev := StopEvent{StreamSid: msg.StreamSid}
		if msg.Stop != nil {
			ev.CallSid = msg.Stop.CallSid
		}
		return ev, nil
	case EventMark:
		ev := MarkEvent{StreamSid: msg.StreamSid}
		if msg.Mark != nil {
			ev.Name = msg.Mark.Name
		}
		return ev, nil
	default:
		return UnknownEvent{Name: msg.Event}, nil
	}
}

// MediaMessage plays base64 audio to the caller.
type MediaMessage struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     MediaPayload `json:"media"`
}

// MediaPayload is the body of an outbound media message.
type MediaPayload struct {
	Payload string `json:"payload"`
}

// NewMediaMessage addresses payload to streamSid.
func NewMediaMessage(streamSid, payload string) MediaMessage {
	return MediaMessage{
		Event:     EventMedia,
		StreamSid: streamSid,
		Media:     MediaPayload{Payload: payload},
	}
}

// ClearMessage discards audio Twilio has buffered but not yet played.
type ClearMessage struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
}

// NewClearMessage addresses a clear to streamSid.
func NewClearMessage(streamSid string) ClearMessage {
	return ClearMessage{Event: "clear", StreamSid: streamSid}
}
