// Package relay provides a streaming relay that forwards chat requests to an
// upstream provider and normalizes the response stream into the uniform event
// protocol before handing it back to the client.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unistreamhq/unistream/pkg/config"
	"github.com/unistreamhq/unistream/pkg/eventstream"
	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/sse"
	"github.com/unistreamhq/unistream/pkg/storage"
	"github.com/unistreamhq/unistream/pkg/streams"
	"github.com/unistreamhq/unistream/pkg/streams/openai"
	"github.com/unistreamhq/unistream/pkg/usage"
	"github.com/unistreamhq/unistream/relay/header"
	"github.com/unistreamhq/unistream/relay/worker"
)

// errorResponse is the JSON body returned for relay-level failures.
type errorResponse struct {
	Error string `json:"error"`
}

// Relay forwards chat requests to the upstream provider, normalizes the
// streamed response, and enqueues finished transcripts for async persistence
// via its worker pool.
type Relay struct {
	config        Config
	driver        storage.Driver
	workerPool    *worker.Pool
	logger        *zap.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Relay.
// The driver and publisher are injected to handle async persistence and
// event publishing of finished streams.
func New(cfg Config, driver storage.Driver, publisher eventstream.Publisher, logger *zap.Logger) (*Relay, error) {
	if cfg.Provider == "" {
		return nil, errors.New("provider is required")
	}
	if cfg.Dialect != config.DialectChat && cfg.Dialect != config.DialectResponses {
		return nil, fmt.Errorf("unknown dialect: %q", cfg.Dialect)
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	r := &Relay{
		config:        cfg,
		driver:        driver,
		workerPool:    wp,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			// Upstream streams can be slow, especially with reasoning models
			Timeout: 5 * time.Minute,
		},
	}

	// Add compression middleware to handle responses
	app.Use(compress.New())

	if cfg.Debug {
		app.Get("/debug/pprof", adaptor.HTTPHandlerFunc(pprof.Index))
		app.Get("/debug/pprof/cmdline", adaptor.HTTPHandlerFunc(pprof.Cmdline))
		app.Get("/debug/pprof/profile", adaptor.HTTPHandlerFunc(pprof.Profile))
		app.Get("/debug/pprof/symbol", adaptor.HTTPHandlerFunc(pprof.Symbol))
		app.Get("/debug/pprof/trace", adaptor.HTTPHandlerFunc(pprof.Trace))
		app.Get("/debug/pprof/:name", adaptor.HTTPHandlerFunc(pprof.Index))
	}

	// Register transparent relay route - forwards any path to upstream
	app.All("/*", r.handleRelay)

	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("upstream", r.config.UpstreamURL),
		zap.String("dialect", r.config.Dialect),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", r.config.UpstreamURL),
	)

	return r.server.Listener(listener)
}

// Close gracefully shuts down the relay and waits for the worker pool to drain.
func (r *Relay) Close() error {
	err := r.server.Shutdown()
	r.workerPool.Close()
	return err
}

// handleRelay forwards requests to the upstream. Streaming chat requests get
// their response stream normalized; everything else passes through verbatim.
func (r *Relay) handleRelay(c *fiber.Ctx) error {
	startTime := time.Now()

	body := c.Body()
	streaming := false
	model := ""
	if c.Method() == http.MethodPost && len(body) > 0 {
		var req struct {
			Stream *bool  `json:"stream"`
			Model  string `json:"model"`
		}
		if err := json.Unmarshal(body, &req); err == nil {
			if req.Stream != nil {
				streaming = *req.Stream
			}
			model = req.Model
		}
	}

	if !streaming {
		return r.handlePassthrough(c, body)
	}

	return r.handleStream(c, body, model, startTime)
}

// handlePassthrough forwards a non-streaming request to the upstream and
// copies the response back untouched.
func (r *Relay) handlePassthrough(c *fiber.Ctx, body []byte) error {
	upstreamURL := r.config.UpstreamURL + c.Path()

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(c.Context(), c.Method(), upstreamURL, reqBody)
	if err != nil {
		r.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}

	r.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	r.logger.Debug("forwarding request to upstream",
		zap.String("method", c.Method()),
		zap.String("url", upstreamURL),
	)

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		r.logger.Error("upstream request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "upstream request failed"})
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		r.logger.Error("failed to read upstream response", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "failed to read upstream response"})
	}

	r.headerHandler.SetClientResponseHeaders(c, httpResp)

	return c.Status(httpResp.StatusCode).Send(respBody)
}

// handleStream forwards a streaming chat request to the upstream and pipes
// the normalized event stream back to the client.
func (r *Relay) handleStream(c *fiber.Ctx, body []byte, model string, startTime time.Time) error {
	upstreamURL := r.config.UpstreamURL + c.Path()
	dialect := r.resolveDialect(c.Get(header.DialectHeader))

	// Use context.Background() instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, but the encoding
	// goroutine runs asynchronously and needs the upstream connection to
	// remain open.
	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, upstreamURL, bytes.NewReader(body))
	if err != nil {
		r.logger.Error("failed to create upstream request", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}

	r.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	r.logger.Debug("forwarding streaming request to upstream",
		zap.String("url", upstreamURL),
		zap.String("dialect", dialect),
	)

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		r.logger.Error("upstream request failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "upstream request failed"})
	}

	var src streams.ChunkSource
	status := httpResp.StatusCode
	if status != http.StatusOK {
		// Convert the upstream error into a single in-band error chunk so the
		// client still receives a well-formed normalized stream.
		respBody, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		r.logger.Error("upstream returned error",
			zap.Int("status", status),
			zap.String("body", string(respBody)),
		)
		src = streams.NewSliceSource(errorChunk(status, respBody))
	} else {
		src = sse.NewDataDecoder(httpResp.Body)
		r.headerHandler.SetClientResponseHeaders(c, httpResp)
	}

	opts := openai.Options{
		Provider: r.config.Provider,
		Logger:   r.logger,
	}
	if r.config.TokenSpeed {
		opts.InputStartAt = startTime
	}

	var stream streams.EventStream
	if dialect == config.DialectResponses {
		stream = openai.ResponsesStream(src, opts)
	} else {
		stream = openai.ChatStream(src, opts)
	}
	rec := &recordingStream{inner: stream}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	// Use io.Pipe + SetBodyStream so that every encoded event is pushed to
	// the TCP socket as soon as the pipe reader consumes it: pw.Write blocks
	// until fasthttp's chunked body writer has flushed the previous chunk,
	// which gives direct backpressure and true per-event streaming.
	pr, pw := io.Pipe()
	go r.encodeToPipe(httpResp, pw, rec, model, dialect, status, startTime)

	// Unknown size (-1) triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// encodeToPipe drives the normalized stream into the pipe writer, then
// enqueues the finished transcript for async persistence.
func (r *Relay) encodeToPipe(httpResp *http.Response, pw *io.PipeWriter, rec *recordingStream, model, dialect string, status int, startTime time.Time) {
	if status == http.StatusOK {
		defer httpResp.Body.Close()
	}
	defer pw.Close()

	err := streams.EncodeSSE(context.Background(), rec, pw, &streams.EncodeOptions{
		RequireTerminalEvent: r.config.RequireTerminalEvent,
	})
	if err != nil {
		r.logger.Error("error encoding normalized stream", zap.Error(err))
	}

	completedAt := time.Now()
	record := rec.record(model, dialect, status, startTime, completedAt, r.config.Provider)

	r.logger.Debug("streaming complete",
		zap.String("stream_id", record.ID),
		zap.Int("event_count", len(record.Events)),
		zap.Duration("duration", completedAt.Sub(startTime)),
	)

	r.workerPool.Enqueue(worker.Job{
		Record: record,
		Source: eventstream.EventSource{
			Provider: r.config.Provider,
			Dialect:  dialect,
		},
	})
}

// resolveDialect applies a per-request dialect header override, falling back
// to the configured default for empty or unknown values.
func (r *Relay) resolveDialect(headerValue string) string {
	switch strings.TrimSpace(strings.ToLower(headerValue)) {
	case config.DialectChat:
		return config.DialectChat
	case config.DialectResponses:
		return config.DialectResponses
	default:
		return r.config.Dialect
	}
}

// errorChunk builds the in-band first-chunk error payload for a non-200
// upstream response. The JSON error body's fields ride along so the
// normalized error event keeps the upstream's message.
func errorChunk(status int, body []byte) json.RawMessage {
	chunk := map[string]any{}
	if err := json.Unmarshal(body, &chunk); err != nil || len(chunk) == 0 {
		chunk = map[string]any{"message": strings.TrimSpace(string(body))}
	}
	chunk[protocol.FirstChunkErrorKey] = true
	chunk["status"] = status

	data, err := json.Marshal(chunk)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"%s":true,"status":%d}`, protocol.FirstChunkErrorKey, status))
	}

	return data
}

// recordingStream captures every event flowing through the pipeline so the
// transcript can be persisted after the stream ends.
type recordingStream struct {
	inner  streams.EventStream
	events []protocol.Event
}

func (s *recordingStream) Next(ctx context.Context) ([]protocol.Event, error) {
	events, err := s.inner.Next(ctx)
	s.events = append(s.events, events...)
	return events, err
}

func (s *recordingStream) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// record converts the captured events into a storage.StreamRecord.
// Only called after the stream has fully drained.
func (s *recordingStream) record(model, dialect string, status int, startedAt, completedAt time.Time, provider string) *storage.StreamRecord {
	record := &storage.StreamRecord{
		Provider:    provider,
		Dialect:     dialect,
		Model:       model,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		DurationMs:  completedAt.Sub(startedAt).Milliseconds(),
		HTTPStatus:  status,
	}

	for i, event := range s.events {
		if record.ID == "" && event.ID != "" && event.ID != protocol.SpeedEventID && event.ID != protocol.FirstChunkErrorID {
			record.ID = event.ID
		}
		if u, ok := event.Data.(usage.Usage); ok && event.Type == protocol.EventUsage {
			record.Usage = &u
		}

		data, err := json.Marshal(event.Data)
		if err != nil {
			data = nil
		}

		record.Events = append(record.Events, storage.StoredEvent{
			Seq:  i,
			Type: string(event.Type),
			ID:   event.ID,
			Data: data,
		})
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	return record
}
