package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewEnvelope builds an envelope of type t with payload marshalled to JSON.
// The envelope is stamped with the current time and a fresh message id.
// A nil payload produces an envelope without a payload field.
func NewEnvelope(t MessageType, payload any) (Envelope, error) {
	env := Envelope{
		Type:      t,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		MessageID: uuid.NewString(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		env.Payload = data
	}

	return env, nil
}

// Authenticate builds the authentication request for token.
func Authenticate(token string) Envelope {
	env, _ := NewEnvelope(TypeAuthenticate, AuthenticatePayload{Token: token})
	return env
}

// JoinRoom builds a join request for room.
func JoinRoom(room string) Envelope {
	env, _ := NewEnvelope(TypeJoinRoom, RoomPayload{Room: room})
	env.Room = room
	return env
}

// LeaveRoom builds a leave request for room.
func LeaveRoom(room string) Envelope {
	env, _ := NewEnvelope(TypeLeaveRoom, RoomPayload{Room: room})
	env.Room = room
	return env
}

// Ping builds a liveness probe.
func Ping() Envelope {
	env, _ := NewEnvelope(TypePing, nil)
	return env
}

// WithRoom returns a copy of e addressed to room.
func (e Envelope) WithRoom(room string) Envelope {
	e.Room = room
	return e
}

// WithMission returns a copy of e tagged with a mission id.
func (e Envelope) WithMission(id int64) Envelope {
	e.MissionID = id
	return e
}

// WithUser returns a copy of e tagged with a user id.
func (e Envelope) WithUser(id int64) Envelope {
	e.UserID = id
	return e
}

// Time parses the envelope timestamp. The zero time is returned when the
// field is absent or unparseable.
func (e Envelope) Time() time.Time {
	if e.Timestamp == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// Encode serializes e to a text frame.
func Encode(e Envelope) ([]byte, error) {
	if e.Type == "" {
		return nil, ErrMissingType
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses a text frame. Anything that is not a JSON object with a
// non-empty "type" is reported as ErrMalformedFrame.
func Decode(data []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: not a JSON object", ErrMalformedFrame)
	}

	var e Envelope
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedFrame, ErrMissingType)
	}

	return e, nil
}

// DecodePayload narrows the payload of e to T.
func DecodePayload[T any](e Envelope) (T, error) {
	var v T
	if len(e.Payload) == 0 || bytes.Equal(e.Payload, []byte("null")) {
		return v, ErrEmptyPayload
	}
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return v, nil
}
