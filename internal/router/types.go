package router

import (
	"github.com/rickgao/mission-realtime/internal/listener"
	"github.com/rickgao/mission-realtime/internal/protocol"
)

// Listener receives a decoded envelope.
type Listener func(protocol.Envelope)

// Handle identifies a registration so it can be removed later.
type Handle struct {
	ID   listener.ID
	Type protocol.MessageType // empty for catch-all registrations
}

// Stats contains runtime statistics.
type Stats struct {
	FramesReceived    int64 // raw frames handed to Decode or DispatchRaw
	ParseErrors       int64 // frames dropped as malformed
	Dispatched        int64 // envelopes dispatched (one per frame, not per listener)
	Unhandled         int64 // envelopes with no type listener and no catch-all
	ListenerPanics    int64
	PayloadErrors     int64 // typed listeners that could not narrow the payload
	TypeListeners     int
	CatchAllListeners int
}

// Hooks lets an observer (metrics) follow routing outcomes without the
// router depending on it. Nil fields are skipped.
type Hooks struct {
	OnDispatch   func(t protocol.MessageType)
	OnParseError func(err error)
	OnPanic      func(t protocol.MessageType, err error)
}
