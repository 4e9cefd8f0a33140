// Package vectorindex provides an in-process cosine similarity index over
// summary embeddings.
//
// Vectors are L2-normalised on insert so similarity is a dot product. Search
// is exhaustive; ties keep insertion order.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// DefaultBatchSize is the number of texts sent per EmbedBatch call.
const DefaultBatchSize = 32

// Record is one stored vector with its filter fields.
type Record struct {
	ID         string           `json:"id"`
	Type       domain.ChunkType `json:"type"`
	PageNumber int              `json:"page"`
	Source     string           `json:"source"`
	Vector     []float32        `json:"vector"`
}

// Option configures an Index.
type Option func(*Index)

// WithBatchSize sets the embedding batch size.
func WithBatchSize(n int) Option {
	return func(idx *Index) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// WithQueryEmbedder embeds search queries with a different service, typically
// a caching decorator around the ingestion embedder.
func WithQueryEmbedder(e driven.EmbeddingService) Option {
	return func(idx *Index) {
		if e != nil {
			idx.queryEmbedder = e
		}
	}
}

// Index provides vector similarity search held in memory.
type Index struct {
	mu            sync.RWMutex
	embedder      driven.EmbeddingService
	queryEmbedder driven.EmbeddingService
	batchSize     int
	dimension     int
	records       []Record
	slots         map[string]int
}

// New creates an empty index embedding with the given service.
func New(embedder driven.EmbeddingService, opts ...Option) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("vectorindex: embedder is required")
	}
	idx := &Index{
		embedder:      embedder,
		queryEmbedder: embedder,
		batchSize:     DefaultBatchSize,
		dimension:     embedder.Dimensions(),
		slots:         make(map[string]int),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// EmbedAndAdd embeds each record's text in batches and inserts it.
// Nothing is inserted if any batch fails.
func (idx *Index) EmbedAndAdd(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: index record without id", domain.ErrInvalidInput)
		}
	}

	vectors := make([][]float32, 0, len(records))
	for start := 0; start < len(records); start += idx.batchSize {
		end := min(start+idx.batchSize, len(records))
		texts := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			texts = append(texts, r.Text)
		}

		batch, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding records %d-%d: %w", start, end-1, err)
		}
		if len(batch) != len(texts) {
			return fmt.Errorf("%w: got %d embeddings for %d texts",
				domain.ErrEmbeddingUnavailable, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, r := range records {
		if err := idx.checkDimension(len(vectors[i])); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
	}
	for i, r := range records {
		idx.put(Record{
			ID:         r.ID,
			Type:       r.Type,
			PageNumber: r.PageNumber,
			Source:     r.Source,
			Vector:     normalise(vectors[i]),
		})
	}
	return nil
}

// Search returns at most k hits ranked by descending cosine similarity.
func (idx *Index) Search(ctx context.Context, text string, k int, filter domain.TypeFilter) ([]driven.VectorHit, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidInput, k)
	}
	if idx.Len() == 0 {
		return nil, domain.ErrIndexNotReady
	}

	query, err := idx.queryEmbedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), idx.dimension)
	}
	query = normalise(query)

	hits := make([]driven.VectorHit, 0, len(idx.records))
	for _, r := range idx.records {
		if !filter.Matches(r.Type) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    r.ID,
			Similarity: dot(query, r.Vector),
			Type:       r.Type,
			PageNumber: r.PageNumber,
			Source:     r.Source,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes a record. Unknown ids are ignored.
func (idx *Index) Delete(_ context.Context, id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	slot, ok := idx.slots[id]
	if !ok {
		return nil
	}
	idx.records = append(idx.records[:slot], idx.records[slot+1:]...)
	delete(idx.slots, id)
	for i := slot; i < len(idx.records); i++ {
		idx.slots[idx.records[i].ID] = i
	}
	return nil
}

// DeleteSource removes every record of a source document.
func (idx *Index) DeleteSource(_ context.Context, source string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	kept := idx.records[:0]
	removed := 0
	for _, r := range idx.records {
		if r.Source == source {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	idx.records = kept
	idx.reslot()
	return removed
}

// Len returns the number of records.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// IDs returns record ids in insertion order.
func (idx *Index) IDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, len(idx.records))
	for i, r := range idx.records {
		ids[i] = r.ID
	}
	return ids
}

// Records returns a copy of all records in insertion order.
func (idx *Index) Records() []Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Record, len(idx.records))
	for i, r := range idx.records {
		r.Vector = append([]float32(nil), r.Vector...)
		out[i] = r
	}
	return out
}

// Load inserts previously persisted records without re-embedding them.
func (idx *Index) Load(records []Record) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: stored record without id", domain.ErrInvalidInput)
		}
		if err := idx.checkDimension(len(r.Vector)); err != nil {
			return fmt.Errorf("record %s: %w", r.ID, err)
		}
	}
	for _, r := range records {
		r.Vector = normalise(r.Vector)
		idx.put(r)
	}
	return nil
}

// Reset removes every record.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.records = nil
	idx.slots = make(map[string]int)
}

// Dimensions returns the vector size.
func (idx *Index) Dimensions() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

// ModelName returns the embedding model behind the vectors.
func (idx *Index) ModelName() string {
	return idx.embedder.ModelName()
}

// put inserts or replaces in place. Caller holds the write lock.
func (idx *Index) put(r Record) {
	if slot, ok := idx.slots[r.ID]; ok {
		idx.records[slot] = r
		return
	}
	idx.slots[r.ID] = len(idx.records)
	idx.records = append(idx.records, r)
}

// reslot rebuilds the id to slot map. Caller holds the write lock.
func (idx *Index) reslot() {
	idx.slots = make(map[string]int, len(idx.records))
	for i, r := range idx.records {
		idx.slots[r.ID] = i
	}
}

// checkDimension fixes the dimension on first use. Caller holds the write lock.
func (idx *Index) checkDimension(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: empty vector", domain.ErrEmbeddingUnavailable)
	}
	if idx.dimension == 0 {
		idx.dimension = n
		return nil
	}
	if n != idx.dimension {
		return fmt.Errorf("%w: vector has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, n, idx.dimension)
	}
	return nil
}

func normalise(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
