package connection

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/mission-realtime/internal/protocol"
)

// Errors
var (
	ErrNotConnected       = errors.New("not connected")
	ErrStaleConnection    = errors.New("connection stale (no ping)")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrInvalidOrigin      = errors.New("invalid origin")
	ErrConnectAborted     = errors.New("connect aborted by disconnect")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrAuthenticationFail = errors.New("authentication failed")
	ErrAuthTimeout        = errors.New("authentication timed out")
	ErrEmptyRoom          = errors.New("room name is empty")
	ErrReconnectDisabled  = errors.New("connection lost and reconnect is disabled")
	ErrNoCredentialSource = errors.New("no credential supplied and no credential source configured")
	ErrUnexpectedClose    = errors.New("connection closed unexpectedly")
	ErrEmptyToken         = errors.New("empty token")
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAuthenticated
	StateReconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText lets State render as a string in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CredentialSource supplies a bearer token when Connect is called without
// one. An empty token with a nil error means "no credential available".
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func(ctx context.Context) (string, error)

func (f CredentialFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// StatusEvent is emitted on every state transition.
type StatusEvent struct {
	State         State
	Previous      State
	Authenticated bool
	Attempt       int           // reconnect attempt number (Reconnecting only)
	Delay         time.Duration // wait before that attempt (Reconnecting only)
	Err           error         // cause, when the transition was caused by a failure
	At            time.Time
}

// Notice levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notice is a user-facing notification derived from status changes and from
// inbound notification, alert and authentication_failed frames.
type Notice struct {
	Level      string
	Title      string
	Message    string
	Persistent bool                 // stays visible until the condition clears
	Type       protocol.MessageType // source frame type, empty for status notices
	At         time.Time
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State         State
	Authenticated bool
	Attempts      int
	Rooms         int
	Queued        int
	QueueDropped  int64
	Sessions      int64 // transports successfully opened
}

// Hooks lets an observer (metrics) follow outbound traffic. Nil fields are
// skipped.
type Hooks struct {
	OnFrameSent  func(t protocol.MessageType)
	OnQueued     func(t protocol.MessageType)
	OnQueueDrop  func(t protocol.MessageType)
	OnSendFailed func(t protocol.MessageType, err error)
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // ws:// or wss:// address, including any token query
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	ReadLimit        int64         // Max inbound frame size in bytes (0 = unlimited)
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ReadLimit:        1 << 20,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Origin               string        // page origin, e.g. https://app.example.com
	Path                 string        // socket path appended to the origin
	ReconnectEnabled     bool          // reconnect after unexpected closes
	ReconnectBaseDelay   time.Duration // delay(n) = base * 2^n
	ReconnectMaxAttempts int           // give up after this many attempts (0 = never)
	ReconnectMaxDelay    time.Duration // optional cap on a single delay (0 = uncapped)
	HeartbeatInterval    time.Duration // ping envelope interval while authenticated
	AuthTimeout          time.Duration // close and retry if auth is not answered (0 = wait forever)
	CredentialTimeout    time.Duration // bound on a CredentialSource lookup
	QueueSize            int           // Offline Queue bound (0 = unbounded)
	Client               ClientConfig
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Path:                 "/ws",
		ReconnectEnabled:     true,
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxAttempts: 5,
		HeartbeatInterval:    30 * time.Second,
		AuthTimeout:          30 * time.Second,
		CredentialTimeout:    10 * time.Second,
		QueueSize:            1000,
		Client:               DefaultClientConfig(),
	}
}
