package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds client configuration values.
type Config struct {
	ServerURL      string        `mapstructure:"server_url" yaml:"server_url"`
	SocketPath     string        `mapstructure:"socket_path" yaml:"socket_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	MaxMediaBytes  int64         `mapstructure:"max_media_bytes" yaml:"max_media_bytes"`
	CachePath      string        `mapstructure:"cache_path" yaml:"cache_path"`
	TokenPath      string        `mapstructure:"token_path" yaml:"token_path"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:      "http://localhost:4000",
		SocketPath:     "/ws",
		RequestTimeout: 10 * time.Second,
		MaxMediaBytes:  10 << 20,
		CachePath:      "pizuna.db",
		TokenPath:      "pizuna_token",
		LogLevel:       "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.SocketPath != "" {
		c.SocketPath = other.SocketPath
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
	if other.MaxMediaBytes != 0 {
		c.MaxMediaBytes = other.MaxMediaBytes
	}
	if other.CachePath != "" {
		c.CachePath = other.CachePath
	}
	if other.TokenPath != "" {
		c.TokenPath = other.TokenPath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}

// SocketURL derives the websocket endpoint from the server base URL.
func (c Config) SocketURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + c.SocketPath
	return u.String(), nil
}
