package v1

import (
	"testing"
	"time"
)

func TestEnvelopeValidate(t *testing.T) {
	now := time.Now().UTC()

	env, err := NewEventEnvelope(EventForceLogout, "n-1", now, ForceLogoutPayload{
		Reason:    "password changed",
		Timestamp: now,
	})
	if err != nil {
		t.Fatalf("NewEventEnvelope: %v", err)
	}
	if env.Type != TypeEvent || env.Event != EventForceLogout {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	cases := []struct {
		name string
		env  Envelope
	}{
		{"missing version", Envelope{Type: TypeHello}},
		{"wrong version", Envelope{V: "v2", Type: TypeHello}},
		{"missing type", Envelope{V: Version}},
		{"unknown type", Envelope{V: Version, Type: "message_send"}},
		{"event without name", Envelope{V: Version, Type: TypeEvent}},
		{"event name on hello", Envelope{V: Version, Type: TypeHello, Event: EventForceLogout}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.env.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
