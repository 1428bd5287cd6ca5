// Package worker provides an asynchronous worker pool for persisting stream
// transcripts using the provided storage.Driver and publishing finished-stream
// events using the provided eventstream.Publisher.
//
// The pool decouples persistence from the relay's streaming hot path so that
// the client-relay-upstream interaction stays fully transparent.
package worker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/unistreamhq/unistream/pkg/eventstream"
	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// Record is the finished stream transcript to persist.
	Record *storage.StreamRecord

	// Source identifies where the stream originated, for the published event.
	Source eventstream.EventSource
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting transcripts.
	Driver storage.Driver

	// Publisher is the optional event publisher notified after a transcript
	// is persisted. If nil, event publishing is disabled.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes persistence jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("stream_id", job.Record.ID),
			zap.String("provider", job.Source.Provider),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("stream_id", job.Record.ID),
			zap.String("provider", job.Source.Provider),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the relay HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("transcript worker stopped", zap.Uint("worker_id", id))
}

// processJob persists the transcript and publishes the finished-stream event.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.config.Driver.SaveStream(ctx, job.Record); err != nil {
		p.logger.Error("async transcript storage failed",
			zap.String("stream_id", job.Record.ID),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("stream transcript stored",
		zap.String("stream_id", job.Record.ID),
		zap.String("provider", job.Source.Provider),
		zap.Int("event_count", len(job.Record.Events)),
	)

	if p.config.Publisher == nil {
		return
	}

	event := eventstream.NewStreamFinishedEvent(job.Source, streamMeta(job.Record), job.Record.Usage)
	if err := p.config.Publisher.PublishStream(ctx, event); err != nil {
		p.logger.Warn("failed to publish stream event",
			zap.String("stream_id", job.Record.ID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("stream event published",
		zap.String("stream_id", job.Record.ID),
		zap.String("event_id", event.EventID),
	)
}

// streamMeta derives event metadata from a persisted transcript.
func streamMeta(record *storage.StreamRecord) eventstream.StreamMeta {
	meta := eventstream.StreamMeta{
		StreamID:    record.ID,
		Model:       record.Model,
		StartedAt:   record.StartedAt,
		CompletedAt: record.CompletedAt,
		DurationMs:  record.DurationMs,
		HTTPStatus:  record.HTTPStatus,
		EventCount:  len(record.Events),
	}

	for _, event := range record.Events {
		switch protocol.EventType(event.Type) {
		case protocol.EventText, protocol.EventReasoning:
			meta.TextEvents++
		case protocol.EventToolCalls:
			meta.ToolEvents++
		case protocol.EventError:
			meta.ErrorEvents++
		}
	}

	return meta
}
