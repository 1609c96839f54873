package domain

import "encoding/json"

// Envelope type tags exchanged over the live channel, both directions.
const (
	EnvelopeAuth         = "auth"
	EnvelopeAuthSuccess  = "auth_success"
	EnvelopeAuthError    = "auth_error"
	EnvelopeJoinGroups   = "join_groups"
	EnvelopeGroupsJoined = "groups_joined"
	EnvelopeSendMessage  = "send_message"
	EnvelopeNewMessage   = "new_message"
	EnvelopeMarkRead     = "mark_read"
	EnvelopeMessageRead  = "message_read"
	EnvelopeError        = "error"
)

// Envelope is the structured unit exchanged over a live connection.
// Data carries the typed payload, Message carries human-readable error text.
type Envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// NewEnvelope builds an envelope of the given type around a payload.
func NewEnvelope(envelopeType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: envelopeType, Data: data}, nil
}

// ErrorEnvelope builds a payload-less envelope carrying only a message,
// used for the auth_error and error types.
func ErrorEnvelope(envelopeType, message string) Envelope {
	return Envelope{Type: envelopeType, Message: message}
}
