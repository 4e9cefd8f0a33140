package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/folio/internal/core/domain"
	"github.com/custodia-labs/folio/internal/core/ports/driven"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestNew(t *testing.T) {
	connector := New()

	require.NotNil(t, connector)
	var _ driven.Connector = connector
}

func TestConnector_List(t *testing.T) {
	t.Run("returns visible files sorted by path", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"b.pdf":           "%PDF",
			"a.txt":           "alpha",
			"nested/c.md":     "# c",
			".hidden.txt":     "secret",
			".git/config":     "x",
			"nested/.d/e.txt": "x",
		})

		refs, err := New().List(context.Background(), root)

		require.NoError(t, err)
		paths := make([]string, len(refs))
		for i, r := range refs {
			paths[i] = r.Path
		}
		assert.Equal(t, []string{
			filepath.Join(root, "a.txt"),
			filepath.Join(root, "b.pdf"),
			filepath.Join(root, "nested", "c.md"),
		}, paths)
	})

	t.Run("empty directory", func(t *testing.T) {
		refs, err := New().List(context.Background(), t.TempDir())

		require.NoError(t, err)
		assert.Empty(t, refs)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := New().List(context.Background(), "/non/existent/path")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("file instead of directory", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"a.txt": "x"})

		_, err := New().List(context.Background(), filepath.Join(root, "a.txt"))

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("cancelled context", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"a.txt": "x"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New().List(ctx, root)

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConnector_Ref(t *testing.T) {
	ref := New().Ref("/docs/Medical Guide.v2.pdf")

	assert.Equal(t, "/docs/Medical Guide.v2.pdf", ref.Path)
	assert.Equal(t, "Medical Guide.v2", ref.Source)
	assert.Equal(t, "application/pdf", ref.MIMEType)
}

func TestConnector_Read(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"notes.txt": "hello world"})
	c := New()

	doc, err := c.Read(context.Background(), c.Ref(filepath.Join(root, "notes.txt")))

	require.NoError(t, err)
	assert.Equal(t, "notes", doc.Source)
	assert.Equal(t, filepath.Join(root, "notes.txt"), doc.URI)
	assert.Equal(t, "text/plain", doc.MIMEType)
	assert.Equal(t, []byte("hello world"), doc.Content)

	_, err = c.Read(context.Background(), c.Ref(filepath.Join(root, "missing.txt")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func waitChange(t *testing.T, changes <-chan domain.DocumentChange, want domain.ChangeType, name string) domain.DocumentChange {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case change, ok := <-changes:
			require.True(t, ok, "channel closed")
			if change.Type == want && filepath.Base(change.Path) == name {
				return change
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s of %s", want, name)
		}
	}
}

func TestConnector_Watch(t *testing.T) {
	t.Run("reports created, updated and deleted files", func(t *testing.T) {
		root := t.TempDir()
		c := New()
		defer c.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := c.Watch(ctx, root)
		require.NoError(t, err)

		path := filepath.Join(root, "new.txt")
		require.NoError(t, os.WriteFile(path, []byte("one"), 0644))
		waitChange(t, changes, domain.ChangeCreated, "new.txt")

		require.NoError(t, os.WriteFile(path, []byte("two"), 0644))
		waitChange(t, changes, domain.ChangeUpdated, "new.txt")

		require.NoError(t, os.Remove(path))
		waitChange(t, changes, domain.ChangeDeleted, "new.txt")
	})

	t.Run("watches directories created later", func(t *testing.T) {
		root := t.TempDir()
		c := New()
		defer c.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes, err := c.Watch(ctx, root)
		require.NoError(t, err)

		sub := filepath.Join(root, "sub")
		require.NoError(t, os.Mkdir(sub, 0755))
		// Give the watcher a moment to add the new directory.
		time.Sleep(100 * time.Millisecond)
		require.NoError(t, os.WriteFile(filepath.Join(sub, "deep.txt"), []byte("x"), 0644))

		waitChange(t, changes, domain.ChangeCreated, "deep.txt")
	})

	t.Run("returns error for non-existent directory", func(t *testing.T) {
		changes, err := New().Watch(context.Background(), "/non/existent/path")

		assert.Error(t, err)
		assert.Nil(t, changes)
		assert.Contains(t, err.Error(), "root path error")
	})

	t.Run("closes channel when context is cancelled", func(t *testing.T) {
		c := New()
		defer c.Close()
		ctx, cancel := context.WithCancel(context.Background())

		changes, err := c.Watch(ctx, t.TempDir())
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-changes:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after context cancellation")
		}
	})

	t.Run("returns error when connector is closed", func(t *testing.T) {
		c := New()
		require.NoError(t, c.Close())

		changes, err := c.Watch(context.Background(), t.TempDir())

		assert.ErrorIs(t, err, ErrClosed)
		assert.Nil(t, changes)
	})

	t.Run("close ends active watches", func(t *testing.T) {
		c := New()
		changes, err := c.Watch(context.Background(), t.TempDir())
		require.NoError(t, err)

		require.NoError(t, c.Close())

		select {
		case _, ok := <-changes:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel did not close after Close")
		}
	})
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		filename     string
		expectedMIME string
	}{
		{"file", "text/plain"},
		{"notes.txt", "text/plain"},
		{"doc.md", "text/markdown"},
		{"doc.markdown", "text/markdown"},
		{"doc.pdf", "application/pdf"},
		{"DOC.PDF", "application/pdf"},
		{"FILE.MD", "text/markdown"},
		{"image.png", "image/png"},
		{"file.zzzzunknown", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.expectedMIME, detectMIMEType(tt.filename))
		})
	}

	t.Run("strips parameters", func(t *testing.T) {
		for _, file := range []string{"file.html", "file.css"} {
			mimeType := detectMIMEType(file)
			assert.NotContains(t, mimeType, ";")
		}
	})
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{"path/to/.hidden", true},
		{"/path/.hidden/file.txt", true},
		{"dir/.git/config", true},
		{"file.txt", false},
		{"path/to/file.txt", false},
		{".", false},
		{"..", false},
		{"path/../file", false},
		{"", false},
		{"/", false},
		{"file.hidden", false},
		{"/a/.b/.c/file", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, isHidden(tt.path))
		})
	}
}

func TestHiddenUnder(t *testing.T) {
	assert.False(t, hiddenUnder("/home/u/.docs", "/home/u/.docs/a.pdf"))
	assert.True(t, hiddenUnder("/home/u/.docs", "/home/u/.docs/.tmp/a.pdf"))
}

func TestHandleFsEvent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"doc.txt": "content", ".swap.txt": "x"})
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0755))
	c := New()

	file := filepath.Join(root, "doc.txt")
	tests := []struct {
		name     string
		event    fsnotify.Event
		wantType domain.ChangeType
		wantNil  bool
	}{
		{name: "create", event: fsnotify.Event{Name: file, Op: fsnotify.Create}, wantType: domain.ChangeCreated},
		{name: "write", event: fsnotify.Event{Name: file, Op: fsnotify.Write}, wantType: domain.ChangeUpdated},
		{name: "write and chmod", event: fsnotify.Event{Name: file, Op: fsnotify.Write | fsnotify.Chmod}, wantType: domain.ChangeUpdated},
		{name: "remove", event: fsnotify.Event{Name: filepath.Join(root, "gone.txt"), Op: fsnotify.Remove}, wantType: domain.ChangeDeleted},
		{name: "rename", event: fsnotify.Event{Name: filepath.Join(root, "old.txt"), Op: fsnotify.Rename}, wantType: domain.ChangeDeleted},
		{name: "chmod only", event: fsnotify.Event{Name: file, Op: fsnotify.Chmod}, wantNil: true},
		{name: "directory", event: fsnotify.Event{Name: filepath.Join(root, "dir"), Op: fsnotify.Create}, wantNil: true},
		{name: "hidden file", event: fsnotify.Event{Name: filepath.Join(root, ".swap.txt"), Op: fsnotify.Write}, wantNil: true},
		{name: "vanished before stat", event: fsnotify.Event{Name: filepath.Join(root, "tmp.txt"), Op: fsnotify.Create}, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := c.handleFsEvent(root, tt.event)

			if tt.wantNil {
				assert.Nil(t, change)
				return
			}
			require.NotNil(t, change)
			assert.Equal(t, tt.wantType, change.Type)
			assert.Equal(t, tt.event.Name, change.Path)
		})
	}
}
