package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --upstream
// on both "unistream serve" and "unistream tail").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "relay.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddBoolFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagRelayListen   = "relay-listen"
	FlagUpstream      = "upstream"
	FlagProvider      = "provider"
	FlagDialect       = "dialect"
	FlagStorageDriver = "storage-driver"
	FlagSQLite        = "sqlite"
	FlagPostgresDSN   = "postgres-dsn"
	FlagEventsProv    = "events-provider"
	FlagEventsBrokers = "events-brokers"
	FlagEventsTopic   = "events-topic"
	FlagRelayTarget   = "relay-target"
	FlagRequireStop   = "require-terminal-event"
	FlagTokenSpeed    = "token-speed"
	FlagAPIListen     = "api-listen"
	FlagAPIPprof      = "api-pprof"
	FlagAPITarget     = "api-target"
)

// Flags is the canonical registry shared by all unistream commands.
var Flags = FlagSet{
	FlagRelayListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "relay.listen",
		Description: "Address the relay listens on",
	},
	FlagUpstream: {
		Name:        "upstream",
		Shorthand:   "u",
		ViperKey:    "relay.upstream",
		Description: "Upstream provider base URL",
	},
	FlagProvider: {
		Name:        "provider",
		Shorthand:   "p",
		ViperKey:    "relay.provider",
		Description: "Upstream provider name used in error classification",
	},
	FlagDialect: {
		Name:        "dialect",
		ViperKey:    "relay.dialect",
		Description: "Upstream stream dialect (chat or responses)",
	},
	FlagStorageDriver: {
		Name:        "storage-driver",
		ViperKey:    "storage.driver",
		Description: "Transcript storage backend (sqlite, postgres, or memory)",
	},
	FlagSQLite: {
		Name:        "sqlite",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite transcript database",
	},
	FlagPostgresDSN: {
		Name:        "postgres-dsn",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string for transcript storage",
	},
	FlagEventsProv: {
		Name:        "events-provider",
		ViperKey:    "events.provider",
		Description: "Stream-finished event publisher (none or kafka)",
	},
	FlagEventsBrokers: {
		Name:        "events-brokers",
		ViperKey:    "events.brokers",
		Description: "Comma-separated Kafka bootstrap addresses",
	},
	FlagEventsTopic: {
		Name:        "events-topic",
		ViperKey:    "events.topic",
		Description: "Kafka topic for stream-finished events",
	},
	FlagRelayTarget: {
		Name:        "relay-target",
		ViperKey:    "client.relay_target",
		Description: "Base URL of the relay for client commands",
	},
	FlagRequireStop: {
		Name:        "require-terminal-event",
		ViperKey:    "stream.require_terminal_event",
		Description: "Append a stream error when the upstream ends without a terminal event",
	},
	FlagTokenSpeed: {
		Name:        "token-speed",
		ViperKey:    "stream.token_speed",
		Description: "Emit an output speed event after usage",
	},
	FlagAPIListen: {
		Name:        "api-listen",
		ViperKey:    "api.listen",
		Description: "Address the transcript API listens on",
	},
	FlagAPIPprof: {
		Name:        "api-pprof",
		ViperKey:    "api.pprof",
		Description: "Expose pprof endpoints on the transcript API",
	},
	FlagAPITarget: {
		Name:        "api-target",
		ViperKey:    "client.api_target",
		Description: "Base URL of the transcript API for client commands",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}
