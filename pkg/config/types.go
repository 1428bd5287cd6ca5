package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent unistream configuration stored as
// config.toml in the .unistream/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Storage StorageConfig `toml:"storage"`
	Relay   RelayConfig   `toml:"relay"`
	Stream  StreamConfig  `toml:"stream"`
	API     APIConfig     `toml:"api"`
	Events  EventsConfig  `toml:"events"`
	Client  ClientConfig  `toml:"client"`
}

// StorageConfig holds transcript store settings.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// RelayConfig holds relay server settings.
type RelayConfig struct {
	Provider string `toml:"provider,omitempty"`
	Dialect  string `toml:"dialect,omitempty"`
	Upstream string `toml:"upstream,omitempty"`
	Listen   string `toml:"listen,omitempty"`
}

// StreamConfig holds stream normalization settings.
type StreamConfig struct {
	RequireTerminalEvent bool `toml:"require_terminal_event"`
	TokenSpeed           bool `toml:"token_speed"`
}

// APIConfig holds transcript API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
	Pprof  bool   `toml:"pprof"`
}

// EventsConfig holds stream-finished event publishing settings.
// Brokers is a comma-separated list of Kafka bootstrap addresses.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to running
// unistream services (e.g. unistream tail, unistream status). Values are
// full URLs (scheme + host + port).
type ClientConfig struct {
	RelayTarget string `toml:"relay_target,omitempty"`
	APITarget   string `toml:"api_target,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error { c.Storage.Driver = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"relay.provider": {
		get: func(c *Config) string { return c.Relay.Provider },
		set: func(c *Config, v string) error { c.Relay.Provider = v; return nil },
	},
	"relay.dialect": {
		get: func(c *Config) string { return c.Relay.Dialect },
		set: func(c *Config, v string) error {
			if v != DialectChat && v != DialectResponses {
				return fmt.Errorf("invalid value for relay.dialect: %q (available: %s, %s)", v, DialectChat, DialectResponses)
			}
			c.Relay.Dialect = v
			return nil
		},
	},
	"relay.upstream": {
		get: func(c *Config) string { return c.Relay.Upstream },
		set: func(c *Config, v string) error { c.Relay.Upstream = v; return nil },
	},
	"relay.listen": {
		get: func(c *Config) string { return c.Relay.Listen },
		set: func(c *Config, v string) error { c.Relay.Listen = v; return nil },
	},
	"stream.require_terminal_event": {
		get: func(c *Config) string { return strconv.FormatBool(c.Stream.RequireTerminalEvent) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for stream.require_terminal_event: %w", err)
			}
			c.Stream.RequireTerminalEvent = b
			return nil
		},
	},
	"stream.token_speed": {
		get: func(c *Config) string { return strconv.FormatBool(c.Stream.TokenSpeed) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for stream.token_speed: %w", err)
			}
			c.Stream.TokenSpeed = b
			return nil
		},
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"api.pprof": {
		get: func(c *Config) string { return strconv.FormatBool(c.API.Pprof) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for api.pprof: %w", err)
			}
			c.API.Pprof = b
			return nil
		},
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"client.relay_target": {
		get: func(c *Config) string { return c.Client.RelayTarget },
		set: func(c *Config, v string) error { c.Client.RelayTarget = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
}
