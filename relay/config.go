package relay

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the upstream provider base URL (e.g., "https://api.openai.com")
	UpstreamURL string

	// Provider names the upstream vendor (e.g., "openai", "deepseek").
	// It tags error events and published stream events.
	Provider string

	// Dialect selects the default transformer for upstream streams:
	// "chat" for the chat-completions wire format, "responses" for the
	// Responses wire format. Individual requests can override it with the
	// dialect header.
	Dialect string

	// RequireTerminalEvent appends a stream parsing error event when an
	// upstream stream ends without a stop or error event.
	RequireTerminalEvent bool

	// TokenSpeed enables the output speed event after usage is reported.
	TokenSpeed bool

	// Debug mounts the net/http/pprof handlers under /debug/pprof.
	Debug bool
}
