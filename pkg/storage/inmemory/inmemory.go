package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/unistreamhq/unistream/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of records
	mu sync.RWMutex

	// records is the in memory map of stream records keyed by stream id
	records map[string]*storage.StreamRecord
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*storage.StreamRecord),
	}
}

// SaveStream stores a stream record, replacing any previous transcript with
// the same id.
func (s *Driver) SaveStream(_ context.Context, record *storage.StreamRecord) error {
	if record == nil {
		return errors.New("cannot store nil stream record")
	}
	if record.ID == "" {
		return errors.New("cannot store stream record without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = record

	return nil
}

// GetStream retrieves a stream record by id.
func (s *Driver) GetStream(_ context.Context, id string) (*storage.StreamRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return record, nil
}

// ListStreams returns up to limit records, most recently started first,
// without events.
func (s *Driver) ListStreams(_ context.Context, limit int) ([]*storage.StreamRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*storage.StreamRecord, 0, len(s.records))
	for _, record := range s.records {
		meta := *record
		meta.Events = nil
		records = append(records, &meta)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	return records, nil
}

// DeleteStream removes a stream record.
func (s *Driver) DeleteStream(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return storage.NotFoundError{ID: id}
	}

	delete(s.records, id)

	return nil
}

// Count returns the number of records in the in-memory store.
func (s *Driver) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op for the in-memory storer.
func (s *Driver) Close() error {
	return nil
}
