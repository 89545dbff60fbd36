// Package credential provides bearer token sources for the connection
// manager: fixed tokens, environment variables, watched files and a REST
// session endpoint. An empty token with a nil error means no credential is
// available.
package credential
