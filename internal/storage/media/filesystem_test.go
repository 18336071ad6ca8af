package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngEntry(name string) Entry {
	return Entry{DisplayName: name, MIMEType: "image/png", Collection: CollectionPictures}
}

func writeEntry(t *testing.T, store MediaStore, entry Entry, content string) EntryWriter {
	t.Helper()
	w, err := store.Create(context.Background(), entry)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return w
}

func TestFilesystemStore_Create(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root)
	require.NoError(t, err)

	w := writeEntry(t, store, pngEntry("c2i_1700000000000.png"), "image bytes")

	assert.Equal(t, "c2i_1700000000000.png", w.DisplayName())
	assert.True(t, strings.HasPrefix(w.Locator(), "file://"))
	assert.True(t, strings.HasSuffix(w.Locator(), "/Pictures/c2i_1700000000000.png"))

	data, err := os.ReadFile(filepath.Join(root, "Pictures", "c2i_1700000000000.png"))
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))
}

func TestFilesystemStore_NameCollision(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root)
	require.NoError(t, err)

	first := writeEntry(t, store, pngEntry("c2i_42.png"), "first")
	second := writeEntry(t, store, pngEntry("c2i_42.png"), "second")
	third := writeEntry(t, store, pngEntry("c2i_42.png"), "third")

	assert.Equal(t, "c2i_42.png", first.DisplayName())
	assert.Equal(t, "c2i_42 (1).png", second.DisplayName())
	assert.Equal(t, "c2i_42 (2).png", third.DisplayName())

	got, err := os.ReadFile(filepath.Join(root, "Pictures", "c2i_42 (1).png"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestFilesystemStore_Delete(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root)
	require.NoError(t, err)

	w := writeEntry(t, store, pngEntry("c2i_7.png"), "x")

	require.NoError(t, store.Delete(context.Background(), w.Locator()))
	assert.ErrorIs(t, store.Delete(context.Background(), w.Locator()), ErrEntryNotFound)

	_, err = os.Stat(filepath.Join(root, "Pictures", "c2i_7.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestFilesystemStore_AbortRemovesPartialFile(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilesystemStore(root)
	require.NoError(t, err)

	w, err := store.Create(context.Background(), pngEntry("c2i_8.png"))
	require.NoError(t, err)
	_, err = io.WriteString(w, "half an ima")
	require.NoError(t, err)

	require.NoError(t, w.Abort(errors.New("encoder failed")))
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(filepath.Join(root, "Pictures"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The name is free again.
	again := writeEntry(t, store, pngEntry("c2i_8.png"), "whole image")
	assert.Equal(t, "c2i_8.png", again.DisplayName())
}

func TestFilesystemStore_RejectsForeignLocators(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	for _, loc := range []string{
		"file:///etc/passwd",
		"https://example.com/Pictures/c2i_1.png",
		"not a url at all",
	} {
		assert.ErrorIs(t, store.Delete(context.Background(), loc), ErrEntryNotFound, loc)
	}
}

func TestFilesystemStore_InvalidEntry(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name  string
		entry Entry
	}{
		{"empty name", Entry{MIMEType: "image/png", Collection: CollectionPictures}},
		{"name with separator", Entry{DisplayName: "../x.png", MIMEType: "image/png", Collection: CollectionPictures}},
		{"missing mime", Entry{DisplayName: "x.png", Collection: CollectionPictures}},
		{"escaping collection", Entry{DisplayName: "x.png", MIMEType: "image/png", Collection: "../up"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Create(context.Background(), tc.entry)
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "tape"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestNew_DefaultsToFilesystem(t *testing.T) {
	store, err := New(context.Background(), Config{Root: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FilesystemStore{}, store)
}
