package remote

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope types exchanged with the browser.
const (
	TypeRPCRequest    = "rpc_request"
	TypeRPCResponse   = "rpc_response"
	TypeCommand       = "command"
	TypeUserInput     = "user_input"
	TypeUserState     = "user_state"
	TypeTranscript    = "transcript"
	TypeAgentState    = "agent_state"
	TypeSessionClosed = "session_closed"
	TypePing          = "ping"
	TypePong          = "pong"
)

// RPC methods implemented by the storefront.
const (
	MethodRedirectToPage          = "redirectToPage"
	MethodSyncProductOptions      = "syncProductOptions"
	MethodToggleOptionSelection   = "toggleOptionSelection"
	MethodIncreaseProductQuantity = "increaseProductQuantity"
	MethodDecreaseProductQuantity = "decreaseProductQuantity"
	MethodAddToCart               = "addToCart"
)

// Envelope is the single wire message on the session socket.
type Envelope struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func newEnvelope(typ string, payload any, now time.Time) (Envelope, error) {
	env := Envelope{Type: typ, Timestamp: now.UnixMilli()}
	if payload == nil {
		env.Payload = json.RawMessage("{}")
		return env, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		env.Payload = raw
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	env.Payload = data
	return env, nil
}

func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

// UserInput is the payload of a user_input envelope.
type UserInput struct {
	Text string `json:"text"`
}

// UserState is the payload of a user_state envelope (listening, speaking, away).
type UserState struct {
	State string `json:"state"`
}

// Transcript is the payload of a transcript envelope.
type Transcript struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Topics of transcript envelopes.
const (
	TopicUserInput              = "user_input"
	TopicAssistantTranscription = "assistant_transcription"
	TopicAssistantSpeech        = "assistant_speech"
)

// AgentState is the payload of an agent_state envelope, sent after every role change.
type AgentState struct {
	Role        string   `json:"role"`
	ProductID   int64    `json:"product_id,omitempty"`
	ProductType string   `json:"product_type,omitempty"`
	ProductName string   `json:"product_name,omitempty"`
	Tools       []string `json:"tools"`
}
