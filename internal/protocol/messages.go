// Package protocol defines the tagged wire messages exchanged over a
// streaming transcription connection. Variants are keyed by an explicit
// lowercase "type" field; unknown or missing tags are a protocol error,
// never fatal to the connection.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Client message tags.
const (
	TypeAudio = "audio"
	TypeEnd   = "end"
	TypeReset = "reset"
)

// Server message tags.
const (
	TypePartial = "partial"
	TypeFinal   = "final"
	TypeError   = "error"
	TypeReady   = "ready"
)

// DefaultSampleRate is the only sample rate the service accepts.
const DefaultSampleRate = 16000

// ClientMessage is an inbound frame: an audio chunk, an end-of-stream
// marker, or a buffer reset.
type ClientMessage struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// DecodeClientMessage parses an inbound text frame and validates its tag.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("invalid message format: %w", err)
	}
	switch msg.Type {
	case TypeAudio:
		if msg.SampleRate == 0 {
			msg.SampleRate = DefaultSampleRate
		}
	case TypeEnd, TypeReset:
	case "":
		return ClientMessage{}, fmt.Errorf("missing message type")
	default:
		return ClientMessage{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return msg, nil
}

// AudioBytes decodes the base64 PCM payload of an audio message.
func (m ClientMessage) AudioBytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	return data, nil
}

// ServerMessage is an outbound frame. Partial and Final carry a
// transcript with an epoch-millisecond timestamp; Error and Ready carry
// a human-readable message.
type ServerMessage struct {
	Type    string  `json:"type"`
	Text    *string `json:"text,omitempty"`
	TS      int64   `json:"ts,omitempty"`
	Message string  `json:"message,omitempty"`
}

func Partial(text string, now time.Time) ServerMessage {
	return ServerMessage{Type: TypePartial, Text: &text, TS: now.UnixMilli()}
}

func Final(text string, now time.Time) ServerMessage {
	return ServerMessage{Type: TypeFinal, Text: &text, TS: now.UnixMilli()}
}

func Error(message string) ServerMessage {
	return ServerMessage{Type: TypeError, Message: message}
}

func Ready(message string) ServerMessage {
	return ServerMessage{Type: TypeReady, Message: message}
}

// Encode serializes an outbound frame.
func (m ServerMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}
