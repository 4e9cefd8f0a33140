package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/folio/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// FileName is the database file name inside the corpus directory.
const FileName = "content.db"

// Ensure Store implements the interface.
var _ driven.ContentStore = (*Store)(nil)

// Store is a SQLite-based content store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates or opens the content database in dataDir.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("%w: empty data directory", domain.ErrInvalidInput)
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &Store{}
	if err := s.open(filepath.Join(dataDir, FileName)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) open(dbPath string) error {
	// WAL for concurrent readers; foreign keys for summary cascades on every connection
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db
	s.path = dbPath

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Exists reports whether dataDir holds a content database.
func Exists(dataDir string) bool {
	info, err := os.Stat(filepath.Join(dataDir, FileName))
	return err == nil && !info.IsDir()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// MoveTo replaces the content database in dataDir with this one and
// reopens it there. It must not run concurrently with other calls.
func (s *Store) MoveTo(dataDir string) error {
	dst := filepath.Join(dataDir, FileName)
	if filepath.Clean(dst) == filepath.Clean(s.path) {
		return nil
	}

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpointing database: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}

	// A stale WAL next to the destination would be replayed into the new file.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dst + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", filepath.Base(dst+suffix), err)
		}
	}
	src := s.path
	if err := os.Rename(src, dst); err != nil {
		if reopenErr := s.open(src); reopenErr != nil {
			return errors.Join(fmt.Errorf("moving database: %w", err), reopenErr)
		}
		return fmt.Errorf("moving database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(src + suffix) //nolint:errcheck // emptied by the checkpoint
	}
	return s.open(dst)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_content.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Chunks ====================

// Put stores or updates a chunk. Updates keep the original insertion sequence.
func (s *Store) Put(ctx context.Context, chunk domain.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}

	metadataJSON, err := marshalMetadata(chunk)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	attributesJSON, err := json.Marshal(chunk.Attributes)
	if err != nil {
		return fmt.Errorf("marshalling attributes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chunks (id, type, content, page_number, source, metadata, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			content = excluded.content,
			page_number = excluded.page_number,
			source = excluded.source,
			metadata = excluded.metadata,
			attributes = excluded.attributes
	`, chunk.ID, string(chunk.Type), chunk.Content, chunk.PageNumber, chunk.Source,
		string(metadataJSON), string(attributesJSON))
	if err != nil {
		return fmt.Errorf("saving chunk: %w", err)
	}
	return nil
}

// Get retrieves a chunk by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, content, page_number, source, metadata, attributes
		FROM chunks WHERE id = ?
	`, id)

	return scanChunk(row)
}

// Delete removes a chunk; its summary cascades.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting chunk: %w", err)
	}
	return nil
}

// DeleteSource removes every chunk of a source.
func (s *Store) DeleteSource(ctx context.Context, source string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source); err != nil {
		return fmt.Errorf("deleting source chunks: %w", err)
	}
	return nil
}

// Reset removes all chunks and summaries.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range []string{"DELETE FROM summaries", "DELETE FROM chunks"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("resetting store: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// IDs returns all chunk ids in insertion order.
func (s *Store) IDs(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, "SELECT id FROM chunks ORDER BY seq")
}

// Count returns the number of chunks per type.
func (s *Store) Count(ctx context.Context) (map[domain.ChunkType]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM chunks GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("counting chunks: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ChunkType]int)
	for rows.Next() {
		var chunkType string
		var n int
		if err := rows.Scan(&chunkType, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[domain.ChunkType(chunkType)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}
	return counts, nil
}

// ==================== Summaries ====================

// PutSummary stores or replaces the summary of an existing chunk.
func (s *Store) PutSummary(ctx context.Context, summary domain.Summary) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (chunk_id, text, status)
		SELECT ?, ?, ? WHERE EXISTS (SELECT 1 FROM chunks WHERE id = ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			text = excluded.text,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`, summary.ChunkID, summary.Text, string(summary.Status), summary.ChunkID)
	if err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetSummary retrieves the summary of a chunk.
func (s *Store) GetSummary(ctx context.Context, chunkID string) (*domain.Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chunk_id, text, status FROM summaries WHERE chunk_id = ?
	`, chunkID)

	var summary domain.Summary
	var status string
	if err := row.Scan(&summary.ChunkID, &summary.Text, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning summary: %w", err)
	}
	summary.Status = domain.SummaryStatus(status)
	return &summary, nil
}

// Degraded returns ids whose summary is degraded, in insertion order.
func (s *Store) Degraded(ctx context.Context) ([]string, error) {
	return s.queryIDs(ctx, `
		SELECT c.id FROM chunks c
		JOIN summaries s ON s.chunk_id = c.id
		WHERE s.status = ?
		ORDER BY c.seq
	`, string(domain.SummaryDegraded))
}

// ==================== Helpers ====================

func (s *Store) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	var ids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ids: %w", err)
	}
	return ids, nil
}

// marshalMetadata encodes the metadata of the chunk's variant.
func marshalMetadata(chunk domain.Chunk) ([]byte, error) {
	switch chunk.Type {
	case domain.ChunkTypeText:
		return json.Marshal(chunk.Text)
	case domain.ChunkTypeTable:
		return json.Marshal(chunk.Table)
	case domain.ChunkTypeImage:
		return json.Marshal(chunk.Image)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, chunk.Type)
	}
}

// unmarshalMetadata sets the variant metadata from its JSON encoding.
func unmarshalMetadata(chunk *domain.Chunk, data []byte) error {
	switch chunk.Type {
	case domain.ChunkTypeText:
		chunk.Text = &domain.TextMeta{}
		return json.Unmarshal(data, chunk.Text)
	case domain.ChunkTypeTable:
		chunk.Table = &domain.TableMeta{}
		return json.Unmarshal(data, chunk.Table)
	case domain.ChunkTypeImage:
		chunk.Image = &domain.ImageMeta{}
		return json.Unmarshal(data, chunk.Image)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedType, chunk.Type)
	}
}

func scanChunk(row *sql.Row) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var chunkType, metadataJSON, attributesJSON string
	if err := row.Scan(&chunk.ID, &chunkType, &chunk.Content, &chunk.PageNumber,
		&chunk.Source, &metadataJSON, &attributesJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	chunk.Type = domain.ChunkType(chunkType)

	if err := unmarshalMetadata(&chunk, []byte(metadataJSON)); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(attributesJSON), &chunk.Attributes); err != nil {
		return nil, fmt.Errorf("unmarshaling attributes: %w", err)
	}
	return &chunk, nil
}
