package twilio

import (
	"slices"

	"github.com/twilio/twilio-go/twiml"
)

// StreamTwiML returns a <Response> that connects the call to a
// bidirectional media stream at wsURL. Each entry in params becomes a
// <Parameter> and is echoed back in the stream's start event.
func StreamTwiML(wsURL string, params map[string]string) (string, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	slices.Sort(names)

	inner := make([]twiml.Element, 0, len(names))
	for _, name := range names {
		inner = append(inner, twiml.VoiceParameter{Name: name, Value: params[name]})
	}

	stream := twiml.VoiceStream{
		Url:           wsURL,
		InnerElements: inner,
	}
	connect := twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}
	return twiml.Voice([]twiml.Element{connect})
}
