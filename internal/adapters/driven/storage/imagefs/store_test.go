package imagefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/folio/internal/core/domain"
)

func TestSaveAndRead(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	path, err := store.Save("derm_page2_img1", domain.DecodedImage{Data: []byte("png-bytes"), Format: "png"})
	require.NoError(t, err)
	assert.Equal(t, "images/derm_page2_img1.png", path)

	onDisk, err := os.ReadFile(filepath.Join(root, "images", "derm_page2_img1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(onDisk))

	data, err := store.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	data, err = store.Read(filepath.Join(root, path))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestSave_DefaultsToPNG(t *testing.T) {
	path, err := New(t.TempDir()).Save("a_page1_img1", domain.DecodedImage{Data: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, "images/a_page1_img1.png", path)
}

func TestSave_Empty(t *testing.T) {
	_, err := New(t.TempDir()).Save("a_page1_img1", domain.DecodedImage{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRead_Missing(t *testing.T) {
	_, err := New(t.TempDir()).Read("images/none.png")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMoveTo_ReplacesImages(t *testing.T) {
	root := t.TempDir()
	staging := filepath.Join(root, ".staging")

	saveOld(t, root, "old_page1_img1")

	store := New(staging)
	path, err := store.Save("new_page1_img1", domain.DecodedImage{Data: []byte("new")})
	require.NoError(t, err)

	require.NoError(t, store.MoveTo(root))
	assert.Equal(t, root, store.Root())

	data, err := store.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	_, err = os.Stat(filepath.Join(root, "images", "old_page1_img1.png"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(staging, "images"))
	assert.True(t, os.IsNotExist(err))
}

func TestMoveTo_NothingSaved(t *testing.T) {
	root := t.TempDir()
	saveOld(t, root, "old_page1_img1")

	store := New(filepath.Join(root, ".staging"))
	require.NoError(t, store.MoveTo(root))

	_, err := os.Stat(filepath.Join(root, "images"))
	assert.True(t, os.IsNotExist(err))
}

func TestMoveTo_SameRoot(t *testing.T) {
	root := t.TempDir()
	store := New(root)
	path, err := store.Save("a_page1_img1", domain.DecodedImage{Data: []byte{1}})
	require.NoError(t, err)

	require.NoError(t, store.MoveTo(root))
	_, err = store.Read(path)
	assert.NoError(t, err)
}

func saveOld(t *testing.T, root, id string) {
	t.Helper()
	_, err := New(root).Save(id, domain.DecodedImage{Data: []byte("old")})
	require.NoError(t, err)
}
