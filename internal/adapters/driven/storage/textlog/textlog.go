// Package textlog writes the human-readable record of every text chunk.
package textlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// FileName is the log file name inside the corpus directory.
const FileName = "all_text_chunks.txt"

var (
	headerRule = strings.Repeat("=", 80)
	bodyRule   = strings.Repeat("-", 80)
)

// Ensure Log implements the interface.
var _ driven.ChunkLog = (*Log)(nil)

// Log is a mutex-guarded append-only chunk log shared by all ingestion workers.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens the log at path. With truncate the previous content is discarded.
func Open(path string, truncate bool) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening chunk log: %w", err)
	}
	return &Log{file: file}, nil
}

// Append writes one chunk block. Only text chunks are recorded.
func (l *Log) Append(chunk domain.Chunk) error {
	if chunk.Type != domain.ChunkTypeText {
		return nil
	}

	var b strings.Builder
	b.WriteString(headerRule + "\n")
	fmt.Fprintf(&b, "CHUNK_ID: %s\n", chunk.ID)
	fmt.Fprintf(&b, "SOURCE: %s\n", chunk.Source)
	fmt.Fprintf(&b, "PAGE: %d\n", chunk.PageNumber)
	fmt.Fprintf(&b, "CHAR_COUNT: %d\n", len(chunk.Content))
	b.WriteString(bodyRule + "\n")
	b.WriteString(chunk.Content + "\n\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return os.ErrClosed
	}
	if _, err := l.file.WriteString(b.String()); err != nil {
		return fmt.Errorf("writing chunk %s: %w", chunk.ID, err)
	}
	return nil
}

// Close flushes and closes the file. Subsequent appends fail.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
