package config

const (
	// DialectChat is the chat-completions delta dialect.
	DialectChat = "chat"

	// DialectResponses is the event-typed Responses dialect.
	DialectResponses = "responses"
)

const (
	defaultProvider    = "openai"
	defaultDialect     = DialectChat
	defaultUpstream    = "https://api.openai.com"
	defaultRelayListen = ":8080"

	defaultAPIListen = ":8081"

	defaultClientRelayTarget = "http://localhost:8080"
	defaultClientAPITarget   = "http://localhost:8081"

	defaultStorageDriver = "sqlite"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "unistream.stream.finished"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Relay: RelayConfig{
			Provider: defaultProvider,
			Dialect:  defaultDialect,
			Upstream: defaultUpstream,
			Listen:   defaultRelayListen,
		},
		Stream: StreamConfig{
			RequireTerminalEvent: true,
			TokenSpeed:           true,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Client: ClientConfig{
			RelayTarget: defaultClientRelayTarget,
			APITarget:   defaultClientAPITarget,
		},
	}
}
