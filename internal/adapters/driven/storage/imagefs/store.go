// Package imagefs stores extracted rasters under the corpus images directory.
package imagefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

// DirName is the images directory inside the corpus.
const DirName = "images"

// Ensure Store implements the interface.
var _ driven.ImageStore = (*Store)(nil)

// Store writes images as <root>/images/<chunk id>.<format>.
// Returned paths are relative to root, so they stay valid after MoveTo.
type Store struct {
	mu   sync.RWMutex
	root string
}

// New creates a store rooted at the corpus directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the directory holding the images directory.
func (s *Store) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

// Save writes the image and returns its root-relative path.
func (s *Store) Save(chunkID string, img domain.DecodedImage) (string, error) {
	if chunkID == "" || len(img.Data) == 0 {
		return "", fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}
	format := img.Format
	if format == "" {
		format = "png"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rel := filepath.Join(DirName, chunkID+"."+format)
	abs := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0700); err != nil {
		return "", fmt.Errorf("creating images directory: %w", err)
	}
	if err := os.WriteFile(abs, img.Data, 0600); err != nil {
		return "", fmt.Errorf("writing image %s: %w", chunkID, err)
	}
	return filepath.ToSlash(rel), nil
}

// Read returns the bytes behind a path returned by Save.
// Absolute paths are read as-is.
func (s *Store) Read(path string) ([]byte, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.Root(), filepath.FromSlash(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// MoveTo replaces the images directory under root with this store's images
// and rebases the store there. A store that saved nothing leaves root with
// no images directory.
func (s *Store) MoveTo(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if filepath.Clean(root) == filepath.Clean(s.root) {
		return nil
	}

	dst := filepath.Join(root, DirName)
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("removing images: %w", err)
	}
	if err := os.Rename(filepath.Join(s.root, DirName), dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("moving images: %w", err)
	}
	s.root = root
	return nil
}
