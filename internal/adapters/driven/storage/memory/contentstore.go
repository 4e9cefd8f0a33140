package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// Ensure ContentStore implements the interface.
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore is an in-memory implementation of driven.ContentStore.
type ContentStore struct {
	mu        sync.RWMutex
	order     []string
	chunks    map[string]domain.Chunk
	summaries map[string]domain.Summary
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		chunks:    make(map[string]domain.Chunk),
		summaries: make(map[string]domain.Summary),
	}
}

// Put stores or replaces a chunk. Replacing keeps the original position.
func (s *ContentStore) Put(_ context.Context, chunk domain.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[chunk.ID]; !ok {
		s.order = append(s.order, chunk.ID)
	}
	s.chunks[chunk.ID] = chunk
	return nil
}

// Get retrieves a chunk by ID.
func (s *ContentStore) Get(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chunk, nil
}

// PutSummary stores the summary of a known chunk.
func (s *ContentStore) PutSummary(_ context.Context, summary domain.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chunks[summary.ChunkID]; !ok {
		return domain.ErrNotFound
	}
	s.summaries[summary.ChunkID] = summary
	return nil
}

// GetSummary retrieves the summary of a chunk.
func (s *ContentStore) GetSummary(_ context.Context, chunkID string) (*domain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[chunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &summary, nil
}

// Delete removes a chunk and its summary.
func (s *ContentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(func(c domain.Chunk) bool { return c.ID == id })
	return nil
}

// DeleteSource removes every chunk of a source.
func (s *ContentStore) DeleteSource(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(func(c domain.Chunk) bool { return c.Source == source })
	return nil
}

// Reset removes everything.
func (s *ContentStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.chunks = make(map[string]domain.Chunk)
	s.summaries = make(map[string]domain.Summary)
	return nil
}

// remove drops matching chunks. Caller holds the write lock.
func (s *ContentStore) remove(match func(domain.Chunk) bool) {
	kept := s.order[:0]
	for _, id := range s.order {
		if match(s.chunks[id]) {
			delete(s.chunks, id)
			delete(s.summaries, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// IDs returns all chunk ids in insertion order.
func (s *ContentStore) IDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids, nil
}

// Degraded returns ids whose summary is degraded, in insertion order.
func (s *ContentStore) Degraded(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, id := range s.order {
		if summary, ok := s.summaries[id]; ok && summary.IsDegraded() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Count returns the number of chunks per type.
func (s *ContentStore) Count(_ context.Context) (map[domain.ChunkType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.ChunkType]int)
	for _, chunk := range s.chunks {
		counts[chunk.Type]++
	}
	return counts, nil
}

// Close is a no-op for the in-memory store.
func (s *ContentStore) Close() error {
	return nil
}
