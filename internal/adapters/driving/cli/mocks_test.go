package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/custodia-labs/folio/internal/adapters/driven/corpus"
	"github.com/custodia-labs/folio/internal/core/domain"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	mu       sync.Mutex
	answer   *domain.Answer
	evidence domain.EvidenceSet
	err      error

	asked      []string
	lastK      int
	lastFilter domain.TypeFilter
}

func (m *mockQueryService) Ask(_ context.Context, query string) (*domain.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asked = append(m.asked, query)
	if m.err != nil {
		return nil, m.err
	}
	if m.answer != nil {
		return m.answer, nil
	}
	return &domain.Answer{Query: query, Text: "answer to " + query, Strategy: domain.StrategyDirect}, nil
}

func (m *mockQueryService) Retrieve(_ context.Context, query string) (*domain.Retrieval, error) {
	return &domain.Retrieval{Query: domain.NewQuery(query), Evidence: m.evidence}, m.err
}

func (m *mockQueryService) Search(
	_ context.Context,
	_ string,
	k int,
	filter domain.TypeFilter,
) (domain.EvidenceSet, error) {
	m.lastK = k
	m.lastFilter = filter
	return m.evidence, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	report *domain.IngestReport
	err    error
	dirs   []string
}

func (m *mockIngestService) Ingest(_ context.Context, dir string) (*domain.IngestReport, error) {
	m.dirs = append(m.dirs, dir)
	return m.report, m.err
}

func (m *mockIngestService) IngestFiles(_ context.Context, _ []string) (*domain.IngestReport, error) {
	return m.report, m.err
}

func (m *mockIngestService) Remove(_ context.Context, _ []string) error {
	return m.err
}

// mockConnector is a connector whose watch channel is already closed.
type mockConnector struct{}

func (mockConnector) List(_ context.Context, _ string) ([]domain.DocumentRef, error) {
	return nil, nil
}

func (mockConnector) Ref(path string) domain.DocumentRef {
	return domain.DocumentRef{Path: path}
}

func (mockConnector) Read(_ context.Context, _ domain.DocumentRef) (*domain.RawDocument, error) {
	return nil, domain.ErrNotFound
}

func (mockConnector) Watch(_ context.Context, _ string) (<-chan domain.DocumentChange, error) {
	ch := make(chan domain.DocumentChange)
	close(ch)
	return ch, nil
}

func (mockConnector) Close() error { return nil }

// mockStats is a mock implementation of corpusStats.
type mockStats struct {
	stats *corpus.Stats
	err   error
}

func (m *mockStats) Stats(_ context.Context) (*corpus.Stats, error) {
	return m.stats, m.err
}

// useRuntime replaces bootstrap for the duration of the test and returns
// a pointer to the mode the command opened the corpus with.
func useRuntime(t *testing.T, rt *runtime, err error) *openMode {
	t.Helper()
	mode := openMode(-1)
	original := bootstrap
	bootstrap = func(_ context.Context, _ domain.Settings, m openMode) (*runtime, error) {
		mode = m
		if err != nil {
			return nil, err
		}
		return rt, nil
	}
	t.Cleanup(func() { bootstrap = original })
	return &mode
}

// resetFlags restores every flag variable to its default.
func resetFlags() {
	configPath, corpusDir, metricsAddr, verbose = "", "", "", false
	ingestAppend, ingestWatch = false, false
	queryJSON = false
	searchLimit, searchTypes, searchJSON = domain.DefaultDirectK, nil, false
	inspectDegraded = false
	mcpHTTPAddr = ""
	configForce = false
	versionShort = false
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
