package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/logger"
)

// --- Mock implementations ---

type memImageStore struct {
	mu    sync.Mutex
	saved map[string]domain.DecodedImage
	err   error
	// failNext fails this many Save calls before succeeding.
	failNext int
}

func newMemImageStore() *memImageStore {
	return &memImageStore{saved: make(map[string]domain.DecodedImage)}
}

func (s *memImageStore) Save(id string, img domain.DecodedImage) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return "", errors.New("disk full")
	}
	s.saved[id] = img
	return "images/" + id + ".png", nil
}

func (s *memImageStore) Read(path string) ([]byte, error) {
	return nil, errors.New("not used")
}

type countingMetrics struct {
	mu       sync.Mutex
	failures map[string]int
}

func (m *countingMetrics) ChunkExtracted(domain.ChunkType) {}
func (m *countingMetrics) ExtractionFailed(item string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures == nil {
		m.failures = make(map[string]int)
	}
	m.failures[item]++
}
func (m *countingMetrics) DocumentFailed() {}
func (m *countingMetrics) SummaryDone(domain.ChunkType, bool, time.Duration) {}
func (m *countingMetrics) StrategyChosen(domain.Strategy) {}
func (m *countingMetrics) SubQueryFailed() {}
func (m *countingMetrics) EvidenceSize(int) {}

func goodImage(name string) domain.PageImage {
	return domain.PageImage{
		Name: name,
		Decode: func() (domain.DecodedImage, error) {
			return domain.DecodedImage{Data: []byte{0x89, 'P', 'N', 'G'}, Format: "png", Width: 64, Height: 64}, nil
		},
	}
}

func TestExtractor_SkipsFailingImage(t *testing.T) {
	var logs bytes.Buffer
	logger.SetOutput(&logs)
	defer logger.SetOutput(os.Stderr)

	store := newMemImageStore()
	metrics := &countingMetrics{}
	e := New(store, WithMetrics(metrics))

	page := &domain.Page{
		Source: "doc",
		Number: 1,
		Images: []domain.PageImage{
			goodImage("Im1"),
			{Name: "Im2", Decode: func() (domain.DecodedImage, error) {
				return domain.DecodedImage{}, errors.New("unsupported filter DCTDecode")
			}},
			goodImage("Im3"),
		},
	}

	chunks := e.Extract(context.Background(), page)

	require.Len(t, chunks, 2)
	assert.Equal(t, "doc_page1_img1", chunks[0].ID)
	assert.Equal(t, "doc_page1_img2", chunks[1].ID)
	assert.Equal(t, "images/doc_page1_img1.png", chunks[0].Content)
	assert.Equal(t, 64, chunks[1].Image.Width)
	assert.Equal(t, 1, metrics.failures["image"])
	assert.Contains(t, logs.String(), "image Im2")
	assert.Contains(t, logs.String(), "unsupported filter DCTDecode")
}

func TestExtractor_FailedSaveKeepsNumbering(t *testing.T) {
	logger.SetOutput(&bytes.Buffer{})
	defer logger.SetOutput(os.Stderr)

	store := newMemImageStore()
	store.failNext = 1
	metrics := &countingMetrics{}
	e := New(store, WithMetrics(metrics))

	page := &domain.Page{
		Source: "doc",
		Number: 1,
		Images: []domain.PageImage{goodImage("Im1"), goodImage("Im2"), goodImage("Im3")},
	}

	chunks := e.Extract(context.Background(), page)

	require.Len(t, chunks, 2)
	assert.Equal(t, "doc_page1_img1", chunks[0].ID)
	assert.Equal(t, "doc_page1_img2", chunks[1].ID)
	assert.Equal(t, 1, metrics.failures["image"])

	next := e.Extract(context.Background(), &domain.Page{Source: "doc", Number: 2, Images: []domain.PageImage{goodImage("Im4")}})
	require.Len(t, next, 1)
	assert.Equal(t, "doc_page2_img3", next[0].ID)
}

func TestExtractor_RecoversDecoderPanic(t *testing.T) {
	logger.SetOutput(&bytes.Buffer{})
	defer logger.SetOutput(os.Stderr)

	e := New(newMemImageStore())
	page := &domain.Page{
		Source: "doc",
		Number: 2,
		Images: []domain.PageImage{
			{Name: "bad", Decode: func() (domain.DecodedImage, error) { panic("malformed stream") }},
			goodImage("ok"),
		},
	}

	chunks := e.Extract(context.Background(), page)

	require.Len(t, chunks, 1)
	assert.Equal(t, "doc_page2_img1", chunks[0].ID)
}

func TestExtractor_SaveFailureIsIsolated(t *testing.T) {
	logger.SetOutput(&bytes.Buffer{})
	defer logger.SetOutput(os.Stderr)

	store := newMemImageStore()
	store.err = errors.New("read-only filesystem")
	e := New(store)

	chunks := e.Extract(context.Background(), &domain.Page{Source: "doc", Number: 1, Images: []domain.PageImage{goodImage("a")}})

	assert.Empty(t, chunks)
}

func TestExtractor_CounterSpansPagesOfOneDocument(t *testing.T) {
	e := New(newMemImageStore())
	ctx := context.Background()

	p1 := e.Extract(ctx, &domain.Page{Source: "doc", Number: 1, Images: []domain.PageImage{goodImage("a"), goodImage("b")}})
	p2 := e.Extract(ctx, &domain.Page{Source: "doc", Number: 2, Images: []domain.PageImage{goodImage("c")}})
	other := e.Extract(ctx, &domain.Page{Source: "other", Number: 1, Images: []domain.PageImage{goodImage("d")}})

	assert.Equal(t, "doc_page1_img2", p1[1].ID)
	assert.Equal(t, "doc_page2_img3", p2[0].ID)
	assert.Equal(t, "other_page1_img1", other[0].ID)

	e.StartDocument("doc")
	again := e.Extract(ctx, &domain.Page{Source: "doc", Number: 1, Images: []domain.PageImage{goodImage("a")}})
	assert.Equal(t, "doc_page1_img1", again[0].ID)
}

func TestExtractor_ConcurrentDocumentsAreDeterministic(t *testing.T) {
	e := New(newMemImageStore())
	var wg sync.WaitGroup
	results := make([][]domain.Chunk, 8)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := fmt.Sprintf("doc%d", i)
			e.StartDocument(src)
			for page := 1; page <= 3; page++ {
				results[i] = append(results[i], e.Extract(context.Background(), &domain.Page{
					Source: src, Number: page, Images: []domain.PageImage{goodImage("x")},
				})...)
			}
		}(i)
	}
	wg.Wait()

	for i, chunks := range results {
		require.Len(t, chunks, 3)
		assert.Equal(t, fmt.Sprintf("doc%d_page3_img3", i), chunks[2].ID)
	}
}

func TestExtractor_MinSize(t *testing.T) {
	e := New(newMemImageStore(), WithMinSize(100, 100))

	chunks := e.Extract(context.Background(), &domain.Page{Source: "doc", Number: 1, Images: []domain.PageImage{goodImage("icon")}})

	assert.Empty(t, chunks)
}
