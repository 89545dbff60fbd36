package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Origin == "" {
		return errors.New("server.origin is required")
	}
	u, err := url.Parse(c.Server.Origin)
	if err != nil || u.Host == "" {
		return fmt.Errorf("server.origin %q is not an absolute URL", c.Server.Origin)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("server.origin scheme must be http, https, ws or wss, got %q", u.Scheme)
	}

	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < 0 {
		return errors.New("reconnect.max_delay must be >= 0")
	}

	if c.Heartbeat.Interval <= 0 {
		return errors.New("heartbeat.interval must be > 0")
	}

	if c.Auth.TokenURLRetries < 0 {
		return errors.New("auth.token_url_retries must be >= 0")
	}
	if c.Auth.WatchTokenFile && c.Auth.TokenFile == "" {
		return errors.New("auth.watch_token_file requires auth.token_file")
	}

	for i, room := range c.Rooms {
		if strings.TrimSpace(room) == "" {
			return fmt.Errorf("rooms[%d] is empty", i)
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}
