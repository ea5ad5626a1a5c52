// Package v1 defines the Plume realtime notification protocol.
//
// This package is intentionally stable and dependency-light.
// It is shared between server and clients to keep the wire protocol authoritative.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is the protocol version identifier embedded into every envelope.
const Version = "v1"

// Type constants (wire-stable).
const (
	// TypeHello starts a connection handshake (client -> server).
	TypeHello = "hello"
	// TypeHelloAck acknowledges the handshake (server -> client).
	TypeHelloAck = "hello_ack"

	// TypeAuthenticate binds the connection to a user by presenting an
	// access token (client -> server).
	TypeAuthenticate = "authenticate"
	// TypeAuthenticateAck confirms the binding (server -> client).
	TypeAuthenticateAck = "authenticate_ack"

	// TypeEvent carries a server-initiated notification (server -> client).
	// The Event field of the envelope names the notification.
	TypeEvent = "event"

	// TypeError is a generic error envelope (server -> client).
	TypeError = "error"
)

// Event names carried by TypeEvent envelopes (wire-stable).
const (
	// EventForceLogout tells every connection of a user to drop its
	// credentials and return to the login screen.
	EventForceLogout = "forceLogout"

	// EventPasswordResetExpired announces that a previously issued password
	// reset window has closed.
	EventPasswordResetExpired = "passwordResetTokenExpired"
)

var allowedTypes = map[string]struct{}{
	TypeHello:           {},
	TypeHelloAck:        {},
	TypeAuthenticate:    {},
	TypeAuthenticateAck: {},
	TypeEvent:           {},
	TypeError:           {},
}

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Event   string          `json:"event,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %s", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}
	if _, ok := allowedTypes[e.Type]; !ok {
		return fmt.Errorf("unsupported type: %s", e.Type)
	}
	if e.Type == TypeEvent && strings.TrimSpace(e.Event) == "" {
		return errors.New("missing field: event")
	}
	if e.Type != TypeEvent && e.Event != "" {
		return fmt.Errorf("unexpected field: event on type %s", e.Type)
	}
	return nil
}

// HelloPayload opens the handshake.
type HelloPayload struct {
	// Agent optionally names the client build for diagnostics.
	Agent string `json:"agent,omitempty"`
}

// HelloAckPayload confirms the handshake and assigns a connection ID.
type HelloAckPayload struct {
	ConnID string `json:"conn_id"`
}

// AuthenticatePayload presents an access token to bind the connection to
// its user. The token is the same JWT used on HTTP requests.
type AuthenticatePayload struct {
	AccessToken string `json:"access_token"`
}

// AuthenticateAckPayload confirms the binding.
type AuthenticateAckPayload struct {
	UserID string `json:"user_id"`
}

// ForceLogoutPayload accompanies EventForceLogout.
type ForceLogoutPayload struct {
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// PasswordResetExpiredPayload accompanies EventPasswordResetExpired.
type PasswordResetExpiredPayload struct {
	UserID string `json:"user_id"`
}

// ErrorPayload is the body of a TypeError envelope.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEnvelope builds a non-event envelope with the current protocol version.
func NewEnvelope(typ, id string, ts time.Time, payload any) (Envelope, error) {
	return newEnvelope(typ, "", id, ts, payload)
}

// NewEventEnvelope builds a TypeEvent envelope for the named notification.
func NewEventEnvelope(event, id string, ts time.Time, payload any) (Envelope, error) {
	return newEnvelope(TypeEvent, event, id, ts, payload)
}

func newEnvelope(typ, event, id string, ts time.Time, payload any) (Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal payload: %w", err)
		}
		raw = b
	}
	env := Envelope{
		V:       Version,
		Type:    typ,
		ID:      id,
		Event:   event,
		TS:      ts,
		Payload: raw,
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
