package sse

import (
	"context"
	"encoding/json"
	"io"
)

// doneSentinel is OpenAI's end-of-stream heartbeat; it carries no payload.
const doneSentinel = "[DONE]"

// DataDecoder extracts JSON chunk payloads from the `data:` fields of an
// SSE stream. Non-data fields, [DONE] heartbeats, empty data lines, and
// payloads that fail to parse as JSON are all skipped silently; one
// malformed frame must not end an otherwise-healthy provider stream.
//
// DataDecoder satisfies the streams.ChunkSource interface.
type DataDecoder struct {
	reader *Reader
}

// NewDataDecoder returns a decoder reading SSE from src.
func NewDataDecoder(src io.Reader, opts ...ReaderOption) *DataDecoder {
	return &DataDecoder{reader: NewReader(src, opts...)}
}

// Next returns the next decoded JSON payload from the stream, or io.EOF
// when the source is exhausted. Cancelling ctx stops the pull; the caller
// owns closing the underlying reader to unblock any in-flight read.
func (d *DataDecoder) Next(ctx context.Context) (json.RawMessage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ev, err := d.reader.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, io.EOF
		}
		if ev.Data == "" || ev.Data == doneSentinel {
			continue
		}
		if !json.Valid([]byte(ev.Data)) {
			continue
		}
		return json.RawMessage(ev.Data), nil
	}
}
