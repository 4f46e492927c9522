// Package protocol defines the JSON messages exchanged with the speech
// service over the streaming channel.
package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeGreetings   MessageType = "greetings"
	TypeASRResult   MessageType = "asr_result"
	TypeQueryResult MessageType = "query_result"
	TypeError       MessageType = "error"
)

// Server error names with dedicated client handling.
const (
	ErrorNameTimeout = "timeout_error"
	ErrorNameToken   = "token_error"
)

type Envelope struct {
	Type MessageType `json:"type"`
}

// Message is one decoded inbound message. The concrete type is one of
// Greetings, ASRResult, QueryResult, ServerError or Unknown.
type Message interface {
	MessageType() MessageType
}

// Greetings acknowledges the client greeting.
type Greetings struct {
	Type MessageType     `json:"type"`
	Code int             `json:"code,omitempty"`
	Info json.RawMessage `json:"info,omitempty"`
}

// ASRResult carries a partial or final transcript.
type ASRResult struct {
	Type         MessageType `json:"type"`
	Code         int         `json:"code,omitempty"`
	Transcript   string      `json:"transcript"`
	IsFinal      bool        `json:"is_final"`
	Alternatives []string    `json:"alternatives,omitempty"`
}

// QueryResult carries the query service answer. Data is nil when absent.
type QueryResult struct {
	Type MessageType `json:"type"`
	Code int         `json:"code,omitempty"`
	Data *QueryData  `json:"data"`
}

// ServerError is a server-reported failure.
type ServerError struct {
	Type    MessageType `json:"type"`
	Code    int         `json:"code,omitempty"`
	Name    string      `json:"name"`
	Message string      `json:"message"`
}

// Unknown is any message whose type the client does not recognize.
type Unknown struct {
	Type MessageType
	Raw  json.RawMessage
}

func (Greetings) MessageType() MessageType   { return TypeGreetings }
func (ASRResult) MessageType() MessageType   { return TypeASRResult }
func (QueryResult) MessageType() MessageType { return TypeQueryResult }
func (ServerError) MessageType() MessageType { return TypeError }
func (u Unknown) MessageType() MessageType   { return u.Type }

// Parse decodes one inbound text frame. Unrecognized types are returned as
// Unknown; only malformed JSON is an error.
func Parse(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeGreetings:
		var msg Greetings
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	case TypeASRResult:
		var msg ASRResult
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	case TypeQueryResult:
		var msg QueryResult
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	case TypeError:
		var msg ServerError
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	default:
		return Unknown{Type: env.Type, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
