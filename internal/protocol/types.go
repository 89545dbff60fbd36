package protocol

import (
	"encoding/json"
	"errors"
)

// Errors
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingType    = errors.New("frame has no type")
	ErrEmptyPayload   = errors.New("envelope has no payload")
)

// MessageType is the routing tag of an Envelope.
type MessageType string

// Control message types.
const (
	TypeAuthenticate          MessageType = "authenticate"
	TypeAuthenticationSuccess MessageType = "authentication_success"
	TypeAuthenticationFailed  MessageType = "authentication_failed"
	TypeJoinRoom              MessageType = "join_room"
	TypeLeaveRoom             MessageType = "leave_room"
	TypePing                  MessageType = "ping"
	TypePong                  MessageType = "pong"
)

// Domain event types. The set is open; the router only looks at the tag.
const (
	TypeStatusChanged  MessageType = "status_changed"
	TypeLocationUpdate MessageType = "location_update"
	TypeNotification   MessageType = "notification"
	TypeAlert          MessageType = "alert"
	TypeChatMessage    MessageType = "chat_message"
	TypeMissionUpdate  MessageType = "mission_update"
	TypeLeadUpdate     MessageType = "lead_update"
)

// IsControl reports whether t belongs to the connection protocol itself
// rather than to the application.
func (t MessageType) IsControl() bool {
	switch t {
	case TypeAuthenticate, TypeAuthenticationSuccess, TypeAuthenticationFailed,
		TypeJoinRoom, TypeLeaveRoom, TypePing, TypePong:
		return true
	}
	return false
}

// Envelope is a single frame exchanged over the connection.
// Treat it as immutable once built; the With* helpers return copies.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"` // RFC 3339
	UserID    int64           `json:"user_id,omitempty"`
	MissionID int64           `json:"mission_id,omitempty"`
	Room      string          `json:"room,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
}

// Payload shapes for the well-known types.

// AuthenticatePayload is sent with TypeAuthenticate.
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// RoomPayload is sent with TypeJoinRoom and TypeLeaveRoom.
type RoomPayload struct {
	Room string `json:"room"`
}

// AuthSuccess is the payload of TypeAuthenticationSuccess.
type AuthSuccess struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// AuthFailure is the payload of TypeAuthenticationFailed.
type AuthFailure struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

// StatusChanged reports an entity status transition (mission, lead, agent).
type StatusChanged struct {
	Entity    string `json:"entity"`
	EntityID  int64  `json:"entity_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	ChangedBy int64  `json:"changed_by,omitempty"`
}

// LocationUpdate is a position report from a field agent.
type LocationUpdate struct {
	UserID    int64   `json:"user_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"` // metres
	Heading   float64 `json:"heading,omitempty"`
	Speed     float64 `json:"speed,omitempty"`
}

// Notification is a user-facing informational message.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level,omitempty"` // "info", "success", "warning", "error"
	Link    string `json:"link,omitempty"`
}

// Alert is an urgent message that should stay visible until acknowledged.
type Alert struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"` // "low", "medium", "high", "critical"
}

// ChatMessage is a chat line posted to a room.
type ChatMessage struct {
	From     int64  `json:"from"`
	FromName string `json:"from_name,omitempty"`
	Text     string `json:"text"`
}
