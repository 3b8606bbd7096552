package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreSave(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir, "/uploads/")

	url, err := s.Save(context.Background(), SlipFolder, "my slip.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/slips/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	raw, err := os.ReadFile(filepath.Join(dir, SlipFolder, filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(raw))
}

func TestLocalStoreKeepsFolderInsideRoot(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir, "/uploads")

	url, err := s.Save(context.Background(), "../../etc", "../passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/etc/"), url)
	_, err = os.Stat(filepath.Join(dir, "etc", filepath.Base(url)))
	assert.NoError(t, err)
}

func TestLocalStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalStore(t.TempDir(), "/u").Save(ctx, SlipFolder, "a.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUniqueNameDropsPath(t *testing.T) {
	a, b := uniqueName("dir/photo.JPG"), uniqueName("photo.jpg")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".jpg"))
	assert.NotContains(t, a, "/")
}

func TestLocalStoreDelete(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir, "/uploads")
	ctx := context.Background()

	url, err := s.Save(ctx, SlipFolder, "slip.png", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(dir, SlipFolder, filepath.Base(url)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(ctx, url), "already gone")
	assert.Error(t, s.Delete(ctx, "https://elsewhere.test/slips/a.png"))
}

func TestParseCloudinaryURL(t *testing.T) {
	rt, id, ok := parseCloudinaryURL("https://res.cloudinary.com/demo/image/upload/v1712345678/swimming-pool/slips/3f2a.png")
	require.True(t, ok)
	assert.Equal(t, "image", rt)
	assert.Equal(t, "swimming-pool/slips/3f2a", id)

	rt, id, ok = parseCloudinaryURL("https://res.cloudinary.com/demo/raw/upload/swimming-pool/slips/doc.pdf")
	require.True(t, ok)
	assert.Equal(t, "raw", rt)
	assert.Equal(t, "swimming-pool/slips/doc", id)

	_, _, ok = parseCloudinaryURL("/uploads/slips/a.png")
	assert.False(t, ok)
}
