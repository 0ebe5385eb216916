package upload

import (
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// pngBytes returns a payload starting with the PNG signature so the sniffer
// reports image/png, padded to the requested size.
func pngBytes(size int) []byte {
	sig := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	out := make([]byte, size)
	copy(out, sig)
	return out
}

// fileHeader builds a *multipart.FileHeader the way echo hands one to the
// store: by encoding a real multipart form and reading it back.
func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("poster", filename)
	assert.NoError(t, err)
	_, err = fw.Write(content)
	assert.NoError(t, err)
	assert.NoError(t, mw.Close())

	form, err := multipart.NewReader(&buf, mw.Boundary()).ReadForm(32 << 20)
	assert.NoError(t, err)
	files := form.File["poster"]
	assert.Len(t, files, 1)
	return files[0]
}

func TestStore_SavePoster(t *testing.T) {
	store, err := NewStore(t.TempDir(), 5<<20)
	assert.NoError(t, err)

	name, err := store.SavePoster(fileHeader(t, "inception.png", pngBytes(2048)))
	assert.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.NotContains(t, name, "inception") // stored name is randomized

	saved, err := os.ReadFile(filepath.Join(store.Dir(), name))
	assert.NoError(t, err)
	assert.Len(t, saved, 2048)
}

func TestStore_SavePoster_RejectsNonImage(t *testing.T) {
	store, err := NewStore(t.TempDir(), 5<<20)
	assert.NoError(t, err)

	// A text payload with an image extension must still be rejected.
	_, err = store.SavePoster(fileHeader(t, "script.png", []byte("#!/bin/sh\necho pwned\n")))
	assert.ErrorIs(t, err, ErrNotImage)

	entries, readErr := os.ReadDir(store.Dir())
	assert.NoError(t, readErr)
	assert.Empty(t, entries) // nothing left behind
}

func TestStore_SavePoster_RejectsOversized(t *testing.T) {
	store, err := NewStore(t.TempDir(), 1024)
	assert.NoError(t, err)

	_, err = store.SavePoster(fileHeader(t, "big.png", pngBytes(4096)))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestStore_SavePoster_UniqueNames(t *testing.T) {
	store, err := NewStore(t.TempDir(), 5<<20)
	assert.NoError(t, err)

	a, err := store.SavePoster(fileHeader(t, "same.png", pngBytes(100)))
	assert.NoError(t, err)
	b, err := store.SavePoster(fileHeader(t, "same.png", pngBytes(100)))
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStore_Remove(t *testing.T) {
	store, err := NewStore(t.TempDir(), 5<<20)
	assert.NoError(t, err)

	name, err := store.SavePoster(fileHeader(t, "gone.png", pngBytes(100)))
	assert.NoError(t, err)

	assert.NoError(t, store.Remove(name))
	_, statErr := os.Stat(filepath.Join(store.Dir(), name))
	assert.True(t, os.IsNotExist(statErr))

	// Removing twice or removing nothing is not an error.
	assert.NoError(t, store.Remove(name))
	assert.NoError(t, store.Remove(""))
}

func TestStore_Remove_StripsPath(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "uploads"), 5<<20)
	assert.NoError(t, err)

	outside := filepath.Join(dir, "precious.txt")
	assert.NoError(t, os.WriteFile(outside, []byte("keep me"), 0o644))

	// A traversal-style reference only touches the uploads dir.
	assert.NoError(t, store.Remove("../precious.txt"))
	_, statErr := os.Stat(outside)
	assert.NoError(t, statErr)
}
