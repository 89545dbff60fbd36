package config

import "time"

// Config is the root configuration for a realtime client process.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Auth      AuthConfig      `yaml:"auth"`
	Queue     QueueConfig     `yaml:"queue"`
	Rooms     []string        `yaml:"rooms"` // joined on startup
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig locates the realtime endpoint.
type ServerConfig struct {
	Origin           string        `yaml:"origin"` // page origin, e.g. https://app.example.com
	Path             string        `yaml:"path"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	ReadLimit        int64         `yaml:"read_limit"` // bytes
}

// ReconnectConfig holds the Reconnect Policy.
type ReconnectConfig struct {
	Enabled     *bool         `yaml:"enabled"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxAttempts int           `yaml:"max_attempts"` // negative = never give up
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// IsEnabled reports whether reconnecting is on. Unset means on.
func (r ReconnectConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// HeartbeatConfig holds the Heartbeat Monitor interval.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// AuthConfig holds authentication settings. Credential sources are tried in
// order: token, token_env, token_file, token_url.
type AuthConfig struct {
	Timeout           time.Duration `yaml:"timeout"` // negative = wait forever
	CredentialTimeout time.Duration `yaml:"credential_timeout"`
	Token             string        `yaml:"token"`
	TokenEnv          string        `yaml:"token_env"`
	TokenFile         string        `yaml:"token_file"`
	WatchTokenFile    bool          `yaml:"watch_token_file"`
	TokenURL          string        `yaml:"token_url"`
	TokenURLKey       string        `yaml:"token_url_key"`
	TokenURLRetries   int           `yaml:"token_url_retries"`
}

// QueueConfig bounds the Offline Queue.
type QueueConfig struct {
	MaxSize int `yaml:"max_size"` // negative = unbounded
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text, json
	File       string `yaml:"file"`   // empty = stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig holds the health and metrics server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
