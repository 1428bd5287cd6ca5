// Package sse provides SSE (Server-Sent Events) reading and writing for the
// unistream pipeline: a pull-based reader that parses provider event streams
// (optionally teeing the raw bytes to a destination writer), a decoder that
// extracts JSON chunk payloads from `data:` lines, and a writer that
// serializes normalized protocol events back into SSE records.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line in
// the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}
