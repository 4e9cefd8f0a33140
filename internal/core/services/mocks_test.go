package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// --- Connector ---

type mockConnector struct {
	docs    map[string]string // path -> content
	readErr map[string]error
}

func (m *mockConnector) List(_ context.Context, _ string) ([]domain.DocumentRef, error) {
	var refs []domain.DocumentRef
	for p := range m.docs {
		refs = append(refs, m.Ref(p))
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

func (m *mockConnector) Ref(path string) domain.DocumentRef {
	base := path[strings.LastIndex(path, "/")+1:]
	source, ext, _ := strings.Cut(base, ".")
	mime := "application/octet-stream"
	switch ext {
	case "txt":
		mime = "text/plain"
	case "pdf":
		mime = "application/pdf"
	}
	return domain.DocumentRef{Path: path, Source: source, MIMEType: mime}
}

func (m *mockConnector) Read(_ context.Context, ref domain.DocumentRef) (*domain.RawDocument, error) {
	if err := m.readErr[ref.Path]; err != nil {
		return nil, err
	}
	content, ok := m.docs[ref.Path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.RawDocument{Source: ref.Source, URI: ref.Path, MIMEType: ref.MIMEType, Content: []byte(content)}, nil
}

func (m *mockConnector) Watch(_ context.Context, _ string) (<-chan domain.DocumentChange, error) {
	return nil, errors.New("not supported")
}

func (m *mockConnector) Close() error { return nil }

// --- Normaliser ---

// mockNormaliser turns "\f"-separated text into pages.
type mockNormaliser struct {
	types []string
	err   error
}

func (m *mockNormaliser) SupportedMIMETypes() []string { return m.types }

func (m *mockNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) ([]domain.Page, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(raw.Content) == 0 {
		return nil, nil
	}
	var pages []domain.Page
	for i, text := range strings.Split(string(raw.Content), "\f") {
		pages = append(pages, domain.Page{Source: raw.Source, Number: i + 1, Text: text})
	}
	return pages, nil
}

// --- Pipeline ---

// mockPipeline emits one text chunk per page, or an error for pages containing "BAD".
type mockPipeline struct {
	mu      sync.Mutex
	started []string
	images  map[string]int // source -> image chunks per page
}

func (m *mockPipeline) StartDocument(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, source)
}

func (m *mockPipeline) Process(_ context.Context, page *domain.Page) ([]domain.Chunk, error) {
	if strings.Contains(page.Text, "BAD") {
		return nil, errors.New("corrupt page")
	}
	var chunks []domain.Chunk
	if strings.TrimSpace(page.Text) != "" {
		c, err := domain.NewTextChunk(page.Source, page.Number, 1, strings.TrimSpace(page.Text))
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	for i := 1; i <= m.images[page.Source]; i++ {
		c, err := domain.NewImageChunk(page.Source, page.Number, i, "images/x.png", domain.ImageMeta{Format: "png"})
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

// --- Content store ---

type mockContentStore struct {
	mu        sync.Mutex
	chunks    map[string]domain.Chunk
	summaries map[string]domain.Summary
	getErr    error
	putErr    error
}

func newMockContentStore() *mockContentStore {
	return &mockContentStore{
		chunks:    make(map[string]domain.Chunk),
		summaries: make(map[string]domain.Summary),
	}
}

func (m *mockContentStore) Put(_ context.Context, c domain.Chunk) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[c.ID] = c
	return nil
}

func (m *mockContentStore) Get(_ context.Context, id string) (*domain.Chunk, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *mockContentStore) PutSummary(_ context.Context, s domain.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[s.ChunkID] = s
	return nil
}

func (m *mockContentStore) GetSummary(_ context.Context, id string) (*domain.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *mockContentStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, id)
	delete(m.summaries, id)
	return nil
}

func (m *mockContentStore) DeleteSource(_ context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.chunks {
		if c.Source == source {
			delete(m.chunks, id)
			delete(m.summaries, id)
		}
	}
	return nil
}

func (m *mockContentStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = make(map[string]domain.Chunk)
	m.summaries = make(map[string]domain.Summary)
	return nil
}

func (m *mockContentStore) IDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.chunks))
	for id := range m.chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockContentStore) Degraded(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.summaries {
		if s.IsDegraded() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockContentStore) Count(_ context.Context) (map[domain.ChunkType]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.ChunkType]int)
	for _, c := range m.chunks {
		counts[c.Type]++
	}
	return counts, nil
}

func (m *mockContentStore) Close() error { return nil }

// --- Vector index ---

// mockVectorIndex returns canned hits per query text.
type mockVectorIndex struct {
	mu       sync.Mutex
	hits     map[string][]driven.VectorHit
	errs     map[string]error
	delay    map[string]time.Duration
	records  []domain.IndexRecord
	deleted  []string
	addErr   error
	searches []string
	ks       []int
}

func (m *mockVectorIndex) EmbedAndAdd(_ context.Context, records []domain.IndexRecord) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *mockVectorIndex) Search(ctx context.Context, text string, k int, _ domain.TypeFilter) ([]driven.VectorHit, error) {
	m.mu.Lock()
	m.searches = append(m.searches, text)
	m.ks = append(m.ks, k)
	delay := m.delay[text]
	err := m.errs[text]
	hits := m.hits[text]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *mockVectorIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockVectorIndex) DeleteSource(_ context.Context, source string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	kept := m.records[:0]
	for _, r := range m.records {
		if r.Source == source {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	m.deleted = append(m.deleted, "source:"+source)
	return n
}

func (m *mockVectorIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// --- Corpus saver ---

type mockSaver struct {
	runIDs []string
	err    error
}

func (m *mockSaver) Save(_ context.Context, runID string) error {
	m.runIDs = append(m.runIDs, runID)
	return m.err
}

// --- LLM ---

type mockLLMService struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
	opts     []driven.GenerateOptions
}

func (m *mockLLMService) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLMService) Chat(_ context.Context, _ []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	return "", nil
}

func (m *mockLLMService) ModelName() string { return "mock-llm" }

func (m *mockLLMService) Ping(_ context.Context) error { return nil }

func (m *mockLLMService) Close() error { return nil }

// routingLLM answers decomposition prompts with subQueries and anything else with answer.
type routingLLM struct {
	mockLLMService
	subQueries string
	subErr     error
	answer     string
	answerErr  error
}

func (m *routingLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	if strings.HasPrefix(prompt, "Break the following") {
		return m.subQueries, m.subErr
	}
	return m.answer, m.answerErr
}

// --- Vision ---

type mockVisionService struct {
	mu     sync.Mutex
	calls  int
	fail   map[int]error // call number (1-based) -> error
	text   string
	active int
	peak   int
	delay  time.Duration
}

func (m *mockVisionService) DescribeImage(ctx context.Context, _ []byte, _, _ string) (string, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.active++
	if m.active > m.peak {
		m.peak = m.active
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := m.fail[n]; err != nil {
		return "", err
	}
	return m.text, nil
}

func (m *mockVisionService) ModelName() string { return "mock-vision" }

// --- Image store ---

type mockImageStore struct {
	data map[string][]byte
}

func (m *mockImageStore) Save(chunkID string, _ domain.DecodedImage) (string, error) {
	return "images/" + chunkID + ".png", nil
}

func (m *mockImageStore) Read(path string) ([]byte, error) {
	if b, ok := m.data[path]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

// --- Rate limiter ---

type mockLimiter struct {
	mu       sync.Mutex
	waits    int
	backoffs []time.Duration
}

func (m *mockLimiter) Wait(ctx context.Context) error {
	m.mu.Lock()
	m.waits++
	m.mu.Unlock()
	return ctx.Err()
}

func (m *mockLimiter) RecordRateLimitError(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backoffs = append(m.backoffs, d)
}

// --- Prompt store ---

type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (m *mockPromptStore) Reload() {}

// --- Metrics ---

type mockMetrics struct {
	mu               sync.Mutex
	extracted        map[domain.ChunkType]int
	extractionFailed map[string]int
	documentsFailed  int
	summaries        int
	degraded         int
	strategies       map[domain.Strategy]int
	subQueryFailures int
	evidenceSizes    []int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		extracted:        make(map[domain.ChunkType]int),
		extractionFailed: make(map[string]int),
		strategies:       make(map[domain.Strategy]int),
	}
}

func (m *mockMetrics) ChunkExtracted(t domain.ChunkType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extracted[t]++
}

func (m *mockMetrics) ExtractionFailed(item string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractionFailed[item]++
}

func (m *mockMetrics) DocumentFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documentsFailed++
}

func (m *mockMetrics) SummaryDone(_ domain.ChunkType, degraded bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries++
	if degraded {
		m.degraded++
	}
}

func (m *mockMetrics) StrategyChosen(s domain.Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies[s]++
}

func (m *mockMetrics) SubQueryFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subQueryFailures++
}

func (m *mockMetrics) EvidenceSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evidenceSizes = append(m.evidenceSizes, n)
}
