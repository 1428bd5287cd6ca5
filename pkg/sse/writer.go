package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/unistreamhq/unistream/pkg/protocol"
)

// Encode serializes one normalized protocol event into its three-line SSE
// record. Encoding the same event twice yields byte-identical output.
func Encode(ev protocol.Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s event data: %w", ev.Type, err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "id: %s\n", ev.ID)
	fmt.Fprintf(&buf, "event: %s\n", ev.Type)
	fmt.Fprintf(&buf, "data: %s\n\n", payload)
	return buf.Bytes(), nil
}

// Writer serializes normalized protocol events to an io.Writer as SSE
// records, flushing after each record when the destination supports it.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer targeting w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEvent encodes and writes one event, then flushes if possible.
func (w *Writer) WriteEvent(ev protocol.Event) error {
	record, err := Encode(ev)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(record); err != nil {
		return fmt.Errorf("writing SSE record: %w", err)
	}
	if f, ok := w.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flushing SSE record: %w", err)
		}
	} else if f, ok := w.w.(interface{ Flush() }); ok {
		f.Flush()
	}
	return nil
}
