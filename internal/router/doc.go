// Package router implements the Message Router component.
//
// The Message Router:
//   - Keeps an ordered listener list per message type plus a catch-all list
//   - Decodes inbound text frames and drops (and logs) malformed ones
//   - Invokes type listeners, then catch-all listeners, in registration order
//   - Isolates listener panics so one bad listener cannot starve the rest
//   - Tracks counters for received, dispatched and rejected frames
package router
