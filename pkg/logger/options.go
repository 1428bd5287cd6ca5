package logger

import (
	"io"
	"log/slog"
)

// outputFormat selects the slog handler behind New. Text is the default;
// pretty is for interactive commands, JSON for logs meant to be parsed.
type outputFormat int

const (
	formatText outputFormat = iota
	formatPretty
	formatJSON
)

type config struct {
	level   slog.Level
	format  outputFormat
	source  bool
	writers []io.Writer
}

// Option configures a Logger created with New.
type Option func(*config)

// WithDebug lowers the level to Debug; the default is Info.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		} else {
			c.level = slog.LevelInfo
		}
	}
}

// WithPretty selects the charmbracelet/log handler, used by tail and status
// for colorized terminal output.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		if pretty {
			c.format = formatPretty
		}
	}
}

// WithJSON selects slog's JSON handler, used for the .unistream log files.
func WithJSON(json bool) Option {
	return func(c *config) {
		if json {
			c.format = formatJSON
		}
	}
}

// WithWriter overrides the output writer. Defaults to os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writers = []io.Writer{w}
	}
}

// WithWriters sets multiple output writers, combined via io.MultiWriter.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithSource includes source file:line in log output.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
