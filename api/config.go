// Package api provides an HTTP API server for inspecting stored stream transcripts.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// EnablePprof mounts the net/http/pprof handlers under /debug/pprof.
	EnablePprof bool
}
