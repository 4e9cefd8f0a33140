// Package corpus persists and loads an ingested corpus: the vector index file,
// the content database and the image directory that share one root.
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/folio/internal/adapters/driven/storage/imagefs"
	"github.com/custodia-labs/folio/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/folio/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/folio/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
	"github.com/custodia-labs/folio/internal/logger"
)

// IndexFile is the vector index file name inside the corpus directory.
const IndexFile = "index.json"

// FormatVersion is the index file format written by Save.
const FormatVersion = 1

// stagingPrefix names the directories a rebuild writes into until Save.
const stagingPrefix = ".staging-"

// Ensure Corpus implements the interface.
var _ driven.CorpusSaver = (*Corpus)(nil)

// Manifest describes how the index was built.
type Manifest struct {
	Version        int       `json:"version"`
	CorpusID       string    `json:"corpus_id"`
	RunID          string    `json:"run_id"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// indexFile is the on-disk layout of index.json.
type indexFile struct {
	Manifest Manifest             `json:"manifest"`
	Records  []vectorindex.Record `json:"records"`
}

// Corpus is an opened corpus directory.
type Corpus struct {
	Dir      string
	Manifest Manifest
	Index    *vectorindex.Index
	Store    driven.ContentStore
	Images   *imagefs.Store

	// Degraded is set when some indexed ids have no stored content.
	// Retrieval then returns bare ids for those records.
	Degraded bool

	// MissingIDs lists indexed ids absent from the content store.
	MissingIDs []string

	// staging is set between Create and the first Save. The content
	// database and images live there so an unsaved rebuild leaves the
	// previous corpus untouched.
	staging string
	db      *sqlite.Store
}

// CorpusID derives a stable identifier from the corpus directory.
func CorpusID(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("folio:"+abs)).String()
}

// Create starts a rebuild of dir. The new content database and images are
// written to a staging directory; the corpus already in dir stays readable
// until Save replaces it. Close without Save discards the rebuild.
func Create(_ context.Context, dir string, embedder driven.EmbeddingService, opts ...vectorindex.Option) (*Corpus, error) {
	index, err := vectorindex.New(embedder, opts...)
	if err != nil {
		return nil, err
	}

	removeStaging(dir)
	staging := filepath.Join(dir, stagingPrefix+uuid.NewString())
	store, err := sqlite.NewStore(staging)
	if err != nil {
		os.RemoveAll(staging) //nolint:errcheck // best effort
		return nil, fmt.Errorf("opening content store: %w", err)
	}

	now := time.Now().UTC()
	return &Corpus{
		Dir: dir,
		Manifest: Manifest{
			Version:        FormatVersion,
			CorpusID:       CorpusID(dir),
			EmbeddingModel: embedder.ModelName(),
			Dimensions:     embedder.Dimensions(),
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		Index:   index,
		Store:   store,
		Images:  imagefs.New(staging),
		staging: staging,
		db:      store,
	}, nil
}

// removeStaging deletes rebuilds left behind by runs that never saved.
func removeStaging(dir string) {
	leftovers, _ := filepath.Glob(filepath.Join(dir, stagingPrefix+"*"))
	for _, path := range leftovers {
		logger.Debug("Removing unsaved rebuild %s", path)
		os.RemoveAll(path) //nolint:errcheck // best effort
	}
}

// Load opens an existing corpus.
//
// A missing index file returns domain.ErrCorpusMissing. A missing content
// database loads the index in degraded mode. A content database that shares
// no ids with a non-empty index returns domain.ErrCorpusMismatch. A manifest
// built with another embedding model returns domain.ErrDimensionMismatch.
func Load(ctx context.Context, dir string, embedder driven.EmbeddingService, opts ...vectorindex.Option) (*Corpus, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCorpusMissing, dir)
		}
		return nil, fmt.Errorf("reading index: %w", err)
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding index: %w", err)
	}
	if err := checkEmbedder(file.Manifest, embedder); err != nil {
		return nil, err
	}

	index, err := vectorindex.New(embedder, opts...)
	if err != nil {
		return nil, err
	}
	if err := index.Load(file.Records); err != nil {
		return nil, fmt.Errorf("loading index: %w", err)
	}

	c := &Corpus{
		Dir:      dir,
		Manifest: file.Manifest,
		Index:    index,
		Images:   imagefs.New(dir),
	}

	if !sqlite.Exists(dir) {
		logger.Warn("Content store missing in %s; results will carry chunk ids only", dir)
		c.Store = memory.NewContentStore()
		c.MissingIDs = index.IDs()
		c.Degraded = len(c.MissingIDs) > 0
		return c, nil
	}

	store, err := sqlite.NewStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening content store: %w", err)
	}
	c.Store = store
	c.db = store

	missing, err := missingIDs(ctx, store, index.IDs())
	if err != nil {
		store.Close()
		return nil, err
	}
	if len(missing) > 0 && len(missing) == index.Len() {
		store.Close()
		return nil, fmt.Errorf("%w: none of %d indexed ids are in the content store",
			domain.ErrCorpusMismatch, index.Len())
	}
	if len(missing) > 0 {
		logger.Warn("%d indexed chunk(s) have no stored content; results for them will carry ids only", len(missing))
		c.Degraded = true
		c.MissingIDs = missing
	}
	return c, nil
}

// Open loads dir, or creates an empty corpus when it holds no index yet.
func Open(ctx context.Context, dir string, embedder driven.EmbeddingService, opts ...vectorindex.Option) (*Corpus, error) {
	c, err := Load(ctx, dir, embedder, opts...)
	if errors.Is(err, domain.ErrCorpusMissing) {
		return Create(ctx, dir, embedder, opts...)
	}
	return c, err
}

// Save writes index.json through a temporary file and rename. After a
// rebuild it first moves the staged content database and images into dir,
// so the index is only replaced once its content is in place.
func (c *Corpus) Save(_ context.Context, runID string) error {
	if err := os.MkdirAll(c.Dir, 0700); err != nil {
		return fmt.Errorf("creating corpus directory: %w", err)
	}

	c.Manifest.Version = FormatVersion
	if c.Manifest.CorpusID == "" {
		c.Manifest.CorpusID = CorpusID(c.Dir)
	}
	if c.Manifest.CreatedAt.IsZero() {
		c.Manifest.CreatedAt = time.Now().UTC()
	}
	c.Manifest.RunID = runID
	c.Manifest.EmbeddingModel = c.Index.ModelName()
	c.Manifest.Dimensions = c.Index.Dimensions()
	c.Manifest.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(indexFile{Manifest: c.Manifest, Records: c.Index.Records()})
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	tmp, err := os.CreateTemp(c.Dir, IndexFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // removed by rename on success

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp index: %w", err)
	}

	if err := c.commitStaging(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(c.Dir, IndexFile)); err != nil {
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}

// commitStaging moves a staged rebuild into the corpus directory.
func (c *Corpus) commitStaging() error {
	if c.staging == "" {
		return nil
	}
	if err := c.db.MoveTo(c.Dir); err != nil {
		return fmt.Errorf("replacing content store: %w", err)
	}
	if err := c.Images.MoveTo(c.Dir); err != nil {
		return fmt.Errorf("replacing images: %w", err)
	}
	if err := os.RemoveAll(c.staging); err != nil {
		logger.Warn("Removing %s: %v", c.staging, err)
	}
	c.staging = ""
	return nil
}

// Close releases the content store. An unsaved rebuild is discarded.
func (c *Corpus) Close() error {
	var err error
	if c.Store != nil {
		err = c.Store.Close()
	}
	if c.staging != "" {
		logger.Debug("Discarding unsaved rebuild %s", c.staging)
		if rmErr := os.RemoveAll(c.staging); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
		c.staging = ""
	}
	return err
}

// Stats summarises a corpus for inspection.
type Stats struct {
	Manifest  Manifest
	Records   int
	PerType   map[domain.ChunkType]int
	PerSource map[string]int
	Stored    map[domain.ChunkType]int
	Degraded  []string
	Missing   []string
}

// Sources returns source names sorted alphabetically.
func (s Stats) Sources() []string {
	names := make([]string, 0, len(s.PerSource))
	for name := range s.PerSource {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats counts index records and stored chunks.
func (c *Corpus) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Manifest:  c.Manifest,
		PerType:   make(map[domain.ChunkType]int),
		PerSource: make(map[string]int),
		Missing:   c.MissingIDs,
	}
	for _, r := range c.Index.Records() {
		stats.Records++
		stats.PerType[r.Type]++
		stats.PerSource[r.Source]++
	}

	stored, err := c.Store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	stats.Stored = stored

	degraded, err := c.Store.Degraded(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing degraded chunks: %w", err)
	}
	stats.Degraded = degraded
	return stats, nil
}

func checkEmbedder(m Manifest, embedder driven.EmbeddingService) error {
	if embedder == nil {
		return errors.New("corpus: embedder is required")
	}
	if m.EmbeddingModel != "" && m.EmbeddingModel != embedder.ModelName() {
		return fmt.Errorf("%w: corpus built with %s, configured model is %s",
			domain.ErrDimensionMismatch, m.EmbeddingModel, embedder.ModelName())
	}
	if dims := embedder.Dimensions(); m.Dimensions > 0 && dims > 0 && m.Dimensions != dims {
		return fmt.Errorf("%w: corpus has %d dimensions, configured model has %d",
			domain.ErrDimensionMismatch, m.Dimensions, dims)
	}
	return nil
}

func missingIDs(ctx context.Context, store driven.ContentStore, indexed []string) ([]string, error) {
	stored, err := store.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stored chunks: %w", err)
	}
	have := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		have[id] = struct{}{}
	}

	var missing []string
	for _, id := range indexed {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
