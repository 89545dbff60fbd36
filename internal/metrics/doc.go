// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state, authentication and reconnect attempts
//   - Outbound frame rates, offline queue growth and drops
//   - Inbound dispatch counts, malformed frames and listener panics
package metrics
