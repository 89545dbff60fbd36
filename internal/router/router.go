package router

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rickgao/mission-realtime/internal/listener"
	"github.com/rickgao/mission-realtime/internal/protocol"
)

// Router dispatches decoded envelopes to listeners registered per message
// type and to catch-all listeners.
type Router struct {
	logger *slog.Logger
	hooks  Hooks

	mu       sync.RWMutex
	byType   map[protocol.MessageType]*listener.List[protocol.Envelope]
	catchAll listener.List[protocol.Envelope]

	received      atomic.Int64
	parseErrors   atomic.Int64
	dispatched    atomic.Int64
	unhandled     atomic.Int64
	panics        atomic.Int64
	payloadErrors atomic.Int64
}

// Option configures a Router.
type Option func(*Router)

// WithHooks installs routing hooks.
func WithHooks(h Hooks) Option {
	return func(r *Router) {
		r.hooks = h
	}
}

// New creates a new Message Router.
func New(logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		logger: logger,
		byType: make(map[protocol.MessageType]*listener.List[protocol.Envelope]),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// On appends fn to the listeners for message type t.
func (r *Router) On(t protocol.MessageType, fn Listener) Handle {
	r.mu.Lock()
	l, ok := r.byType[t]
	if !ok {
		l = &listener.List[protocol.Envelope]{}
		r.byType[t] = l
	}
	r.mu.Unlock()

	return Handle{ID: l.Add(fn), Type: t}
}

// Off removes a registration made with On. It is a no-op for unknown or
// already removed handles.
func (r *Router) Off(h Handle) bool {
	if h.Type == "" {
		return false
	}

	r.mu.RLock()
	l, ok := r.byType[h.Type]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return l.Remove(h.ID)
}

// OnAny appends fn to the catch-all listeners.
func (r *Router) OnAny(fn Listener) Handle {
	return Handle{ID: r.catchAll.Add(fn)}
}

// OffAny removes a registration made with OnAny.
func (r *Router) OffAny(h Handle) bool {
	if h.Type != "" {
		return false
	}
	return r.catchAll.Remove(h.ID)
}

// Decode parses a text frame. Malformed frames are counted, logged and
// reported through the parse error hook; ok is false for them.
func (r *Router) Decode(data []byte) (protocol.Envelope, bool) {
	env, err := r.decode(data)
	return env, err == nil
}

// DispatchRaw decodes a text frame and dispatches it. Malformed frames are
// logged and dropped; the decode error is returned for the caller's
// bookkeeping but never reaches a listener.
func (r *Router) DispatchRaw(data []byte) error {
	env, err := r.decode(data)
	if err != nil {
		return err
	}

	r.Dispatch(env)
	return nil
}

func (r *Router) decode(data []byte) (protocol.Envelope, error) {
	r.received.Add(1)

	env, err := protocol.Decode(data)
	if err != nil {
		r.parseErrors.Add(1)
		r.logger.Warn("dropping malformed frame",
			"error", err,
			"size", len(data),
		)
		if r.hooks.OnParseError != nil {
			r.hooks.OnParseError(err)
		}
		return protocol.Envelope{}, err
	}
	return env, nil
}

// Dispatch invokes every listener for env.Type in registration order, then
// every catch-all listener in registration order.
func (r *Router) Dispatch(env protocol.Envelope) {
	r.dispatched.Add(1)
	if r.hooks.OnDispatch != nil {
		r.hooks.OnDispatch(env.Type)
	}

	onPanic := func(id listener.ID, err error) {
		r.panics.Add(1)
		r.logger.Error("listener failed",
			"type", env.Type,
			"listener", id,
			"error", err,
		)
		if r.hooks.OnPanic != nil {
			r.hooks.OnPanic(env.Type, err)
		}
	}

	r.mu.RLock()
	l := r.byType[env.Type]
	r.mu.RUnlock()

	handled := false
	if l != nil && l.Len() > 0 {
		handled = true
		l.Emit(env, onPanic)
	}
	if r.catchAll.Len() > 0 {
		handled = true
		r.catchAll.Emit(env, onPanic)
	}

	if !handled {
		r.unhandled.Add(1)
		r.logger.Debug("no listener for message", "type", env.Type)
	}
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	typeListeners := 0
	for _, l := range r.byType {
		typeListeners += l.Len()
	}
	r.mu.RUnlock()

	return Stats{
		FramesReceived:    r.received.Load(),
		ParseErrors:       r.parseErrors.Load(),
		Dispatched:        r.dispatched.Load(),
		Unhandled:         r.unhandled.Load(),
		ListenerPanics:    r.panics.Load(),
		PayloadErrors:     r.payloadErrors.Load(),
		TypeListeners:     typeListeners,
		CatchAllListeners: r.catchAll.Len(),
	}
}

// Typed registers a listener for t that receives the payload narrowed to T.
// Envelopes whose payload does not decode into T are logged and skipped.
func Typed[T any](r *Router, t protocol.MessageType, fn func(T, protocol.Envelope)) Handle {
	return r.On(t, func(env protocol.Envelope) {
		v, err := protocol.DecodePayload[T](env)
		if err != nil {
			r.payloadErrors.Add(1)
			r.logger.Warn("unexpected payload shape",
				"type", env.Type,
				"message_id", env.MessageID,
				"error", err,
			)
			return
		}
		fn(v, env)
	})
}
