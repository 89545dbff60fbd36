// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single WebSocket transport and runs the connection state machine
//   - Authenticates over the open socket (URL token or authenticate frame)
//   - Reconnects with exponential backoff up to a fixed attempt limit
//   - Re-joins every room in the Room Set after each successful authentication
//   - Sends a ping envelope on a fixed interval while authenticated
//   - Buffers sends in the Offline Queue until authenticated, then flushes in order
//   - Routes inbound frames to the Message Router
package connection
