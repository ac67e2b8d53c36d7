package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageKey(t *testing.T) {
	key := ImageKey("p1", 2, "image/jpeg; charset=binary")
	assert.True(t, strings.HasPrefix(key, "presentations/p1/02-"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
	assert.NotEqual(t, key, ImageKey("p1", 2, "image/jpeg"))
	assert.True(t, strings.HasSuffix(ImageKey("p1", 0, ""), ".png"))
}

func TestLocalStoreSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:8080/assets/")
	require.NoError(t, err)

	url, err := s.Save(context.Background(), "presentations/p1/00-a.png", "image/png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/assets/presentations/p1/00-a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "presentations", "p1", "00-a.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	require.NoError(t, s.DeletePrefix(context.Background(), PresentationPrefix("p1")))
	_, err = os.Stat(filepath.Join(dir, "presentations", "p1"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "../escape.png", "image/png", []byte("x"))
	require.Error(t, err)
	_, err = s.Save(context.Background(), "  ", "image/png", []byte("x"))
	require.Error(t, err)
}
